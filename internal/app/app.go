package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"marketwatch/internal/alerting"
	"marketwatch/internal/config"
	"marketwatch/internal/metrics"
	"marketwatch/internal/quote"
	"marketwatch/internal/report"
	"marketwatch/internal/sampler"
	"marketwatch/internal/scheduler"
	"marketwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// openStore is replaced in tests.
	openStore func(ctx context.Context) (storage.SampleStore, error)
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	a := &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
	a.openStore = func(ctx context.Context) (storage.SampleStore, error) {
		return storage.Open(ctx, a.Config.Database, a.Logger)
	}
	return a
}

func (a *App) newSources() (sampler.Sources, func(), error) {
	cfg := a.Config.Sources
	index, err := quote.FieldFromConfig("index", cfg.Index, a.Logger)
	if err != nil {
		return sampler.Sources{}, nil, err
	}
	fx, err := quote.FieldFromConfig("fx", cfg.FX, a.Logger)
	if err != nil {
		return sampler.Sources{}, nil, err
	}
	exchange, err := quote.FieldFromConfig("exchange", cfg.Exchange, a.Logger)
	if err != nil {
		return sampler.Sources{}, nil, err
	}

	closer := func() {
		index.Close()
		fx.Close()
		exchange.Close()
	}
	return sampler.Sources{Index: index, FX: fx, Exchange: exchange}, closer, nil
}

func (a *App) newNotifier() (*alerting.TelegramNotifier, error) {
	cfg := a.Config.Alerting.Telegram
	if !cfg.Enabled {
		return nil, nil
	}
	return alerting.NewTelegramNotifier(alerting.TelegramOptions{
		BotToken: cfg.BotToken,
		ChatID:   cfg.ChatID,
		APIBase:  cfg.APIBase,
		Timeout:  10 * time.Second,
	}, a.Logger)
}

func (a *App) newEvaluator(notifier alerting.Notifier) *alerting.Evaluator {
	return alerting.NewEvaluator(alerting.EvaluatorOptions{
		ThresholdPct: a.Config.Alerting.ThresholdPct,
		Cooldown:     a.Config.Alerting.Cooldown,
	}, notifier, a.Logger)
}

func (a *App) newReporter(reader storage.SampleReader, window time.Duration, maxPoints int) *report.Reporter {
	return report.New(reader, report.Options{
		Window:    a.Config.ResolveWindow(window),
		Width:     a.Config.Report.Width,
		Height:    a.Config.Report.Height,
		MaxPoints: a.Config.ResolveMaxPoints(maxPoints),
	}, a.Logger)
}

// sharedStore guards the store when another goroutine reads it while the
// sampler writes: the report schedule or the /chart.png route.
func (a *App) sharedStore(store storage.SampleStore) storage.SampleStore {
	if a.Config.Report.Schedule != "" || a.Config.Metrics.Enabled {
		return storage.NewGuarded(store)
	}
	return store
}

// Run executes the long-running sampler until SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opened, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer opened.Close()

	store := a.sharedStore(opened)

	sources, closeSources, err := a.newSources()
	if err != nil {
		return err
	}
	defer closeSources()

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	opts := sampler.Options{}
	if a.Config.Alerting.Enabled && notifier != nil {
		opts.Alerter = a.newEvaluator(notifier)
	}

	var collector *metrics.Collector
	if a.Config.Metrics.Enabled {
		collector = metrics.New()
		opts.Recorder = collector
	}

	reporter := a.newReporter(store, 0, 0)
	if a.Config.Report.Schedule != "" {
		var chartSender alerting.ChartSender
		if notifier != nil {
			chartSender = notifier
		}
		stop, err := a.startReportSchedule(reporter, chartSender)
		if err != nil {
			return err
		}
		defer stop()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	smp := sampler.New(sources, store, opts, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	if collector != nil {
		srv := metrics.NewServer(a.Config.Metrics.ListenAddr, metrics.NewRouter(collector, reporter), a.Logger)
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				return fmt.Errorf("ops listener: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return smp.Run(gctx, sched)
	})

	a.Logger.Info().
		Dur("interval", a.Config.Scheduler.Interval).
		Str("driver", a.Config.Database.Driver).
		Msg("starting sampler")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("sampler terminated with error")
		return err
	}

	a.Logger.Info().Msg("sampler stopped")
	return nil
}

// ReportOptions configure a one-off chart render.
type ReportOptions struct {
	Window   time.Duration
	Output   string
	Telegram bool
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	Window    time.Duration
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SampleOptions configure a single on-demand cycle.
type SampleOptions struct {
	DryRun bool
}
