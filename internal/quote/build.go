package quote

import (
	"fmt"

	"github.com/rs/zerolog"

	"marketwatch/internal/config"
)

// FromConfig constructs the source described by cfg.
func FromConfig(cfg config.SourceConfig, logger zerolog.Logger) (Source, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Kind
	}

	switch cfg.Kind {
	case config.SourceKindJSON:
		return NewJSON(JSONOptions{
			Name:      name,
			URL:       cfg.URL,
			Path:      cfg.Path,
			UserAgent: cfg.UserAgent,
			Headers:   cfg.Headers,
			Timeout:   cfg.Timeout,
		}, logger), nil
	case config.SourceKindHTML:
		return NewHTML(HTMLOptions{
			Name:      name,
			URL:       cfg.URL,
			Selector:  cfg.Selector,
			UserAgent: cfg.UserAgent,
			Headers:   cfg.Headers,
			Timeout:   cfg.Timeout,
		}, logger), nil
	case config.SourceKindChainlink:
		return NewChainlink(ChainlinkOptions{
			Name:    name,
			RPCURL:  cfg.RPCURL,
			Address: cfg.Address,
			Timeout: cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// FieldFromConfig builds the primary/fallback chain for one sampled field.
func FieldFromConfig(field string, cfg config.FieldConfig, logger zerolog.Logger) (*Chain, error) {
	primary, err := FromConfig(cfg.Primary, logger)
	if err != nil {
		return nil, fmt.Errorf("%s primary: %w", field, err)
	}

	var fallback Source
	if cfg.Fallback.Configured() {
		fallback, err = FromConfig(cfg.Fallback, logger)
		if err != nil {
			return nil, fmt.Errorf("%s fallback: %w", field, err)
		}
	}

	return NewChain(field, primary, fallback, logger), nil
}
