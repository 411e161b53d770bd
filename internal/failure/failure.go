package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why a sampling cycle was abandoned.
type Kind string

const (
	KindNone      Kind = ""
	KindTransport Kind = "transport"
	KindParse     Kind = "parse"
	KindStorage   Kind = "storage"
	KindUnknown   Kind = "unknown"
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport wraps network and HTTP status failures.
func Transport(op string, err error) error { return wrap(KindTransport, op, err) }

// Parse wraps malformed or unusable upstream payloads.
func Parse(op string, err error) error { return wrap(KindParse, op, err) }

// Storage wraps persistence failures.
func Storage(op string, err error) error { return wrap(KindStorage, op, err) }

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the outermost Kind found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
