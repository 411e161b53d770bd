package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"marketwatch/internal/failure"
	"marketwatch/internal/quote"
	"marketwatch/internal/scheduler"
	"marketwatch/internal/storage"
)

// Sources groups the three quote lookups performed each cycle.
type Sources struct {
	Index    quote.Source
	FX       quote.Source
	Exchange quote.Source
}

// Recorder receives one observation per finished cycle.
type Recorder interface {
	ObserveCycle(outcome Outcome, elapsed time.Duration)
}

// Alerter inspects freshly stored samples.
type Alerter interface {
	Evaluate(ctx context.Context, ts time.Time, fxRate, exchangePrice float64) (bool, error)
}

// Options wires optional collaborators.
type Options struct {
	Recorder Recorder
	Alerter  Alerter
	// Now overrides the capture clock; defaults to time.Now.
	Now func() time.Time
}

// Index source provenance values reported in Outcome.IndexSource.
const (
	IndexPrimary  = "primary"
	IndexFallback = "fallback"
)

// Outcome summarises one cycle.
type Outcome struct {
	Timestamp   time.Time
	Sample      storage.Sample
	IndexSource string
	// IndexFrom names the concrete source that produced the index value.
	IndexFrom string
	Inserted  bool
	Err       error
}

// Kind classifies the cycle failure; KindNone on success.
func (o Outcome) Kind() failure.Kind { return failure.KindOf(o.Err) }

// OK reports whether the cycle completed.
func (o Outcome) OK() bool { return o.Err == nil }

// Sampler captures one combined sample per cycle and hands it to the store.
type Sampler struct {
	sources Sources
	store   storage.SampleWriter
	opts    Options
	logger  zerolog.Logger
}

// New constructs a Sampler.
func New(sources Sources, store storage.SampleWriter, opts Options, logger zerolog.Logger) *Sampler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sampler{
		sources: sources,
		store:   store,
		opts:    opts,
		logger:  logger.With().Str("component", "sampler").Logger(),
	}
}

// Run executes cycles on the scheduler until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context, sched *scheduler.Scheduler) error {
	if sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return sched.Run(ctx, s.tick)
}

func (s *Sampler) tick(ctx context.Context, tick time.Time) error {
	// failures are already logged by Cycle
	s.Cycle(ctx, tick)
	return nil
}

// Cycle performs one capture. Any lookup or storage error abandons the cycle
// without writing a partial row.
func (s *Sampler) Cycle(ctx context.Context, tick time.Time) Outcome {
	started := time.Now()
	out := s.cycle(ctx)
	if s.opts.Recorder != nil {
		s.opts.Recorder.ObserveCycle(out, time.Since(started))
	}
	s.log(tick, out)

	if out.OK() && out.Inserted && s.opts.Alerter != nil {
		if _, err := s.opts.Alerter.Evaluate(ctx, out.Timestamp, out.Sample.FXRate, out.Sample.ExchangePrice); err != nil {
			s.logger.Error().Err(err).Time("ts", out.Timestamp).Msg("premium alert dispatch failed")
		}
	}
	return out
}

func (s *Sampler) cycle(ctx context.Context) Outcome {
	ts := storage.NormalizeTimestamp(s.opts.Now())
	out := Outcome{Timestamp: ts}

	if err := s.validate(); err != nil {
		out.Err = err
		return out
	}

	index, err := quote.ResolveDetailed(ctx, s.sources.Index)
	if err != nil {
		out.Err = fmt.Errorf("index value: %w", err)
		return out
	}
	out.IndexFrom = index.Source
	out.IndexSource = IndexPrimary
	if index.Fallback {
		out.IndexSource = IndexFallback
	}

	fx, err := s.sources.FX.Resolve(ctx)
	if err != nil {
		out.Err = fmt.Errorf("fx rate: %w", err)
		return out
	}

	exchange, err := s.sources.Exchange.Resolve(ctx)
	if err != nil {
		out.Err = fmt.Errorf("exchange price: %w", err)
		return out
	}

	sample := storage.Sample{
		Timestamp:     ts,
		IndexValue:    index.Value,
		FXRate:        fx,
		ExchangePrice: exchange,
	}

	inserted, err := s.store.InsertSample(ctx, sample)
	if err != nil {
		out.Err = err
		return out
	}

	out.Sample = sample
	out.Inserted = inserted
	return out
}

func (s *Sampler) validate() error {
	if s.sources.Index == nil || s.sources.FX == nil || s.sources.Exchange == nil {
		return errors.New("sampler sources not configured")
	}
	if s.store == nil {
		return failure.Storage("insert sample", storage.ErrNotConfigured)
	}
	return nil
}

func (s *Sampler) log(tick time.Time, out Outcome) {
	if !out.OK() {
		s.logger.Error().Err(out.Err).
			Time("tick", tick).
			Time("ts", out.Timestamp).
			Str("kind", string(out.Kind())).
			Msg("cycle failed")
		return
	}

	evt := s.logger.Info()
	if !out.Inserted {
		evt = s.logger.Warn()
	}
	evt.Time("ts", out.Timestamp).
		Float64("index_value", out.Sample.IndexValue).
		Float64("fx_rate", out.Sample.FXRate).
		Float64("exchange_price", out.Sample.ExchangePrice).
		Str("index_source", out.IndexSource).
		Str("index_from", out.IndexFrom).
		Bool("inserted", out.Inserted).
		Msg("sample recorded")
}
