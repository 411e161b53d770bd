package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"marketwatch/internal/alerting"
	"marketwatch/internal/report"
)

// Report renders the trailing window to a PNG and optionally pushes it to Telegram.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var sender alerting.ChartSender
	if opts.Telegram {
		notifier, err := a.newNotifier()
		if err != nil {
			return err
		}
		if notifier == nil {
			return errors.New("alerting.telegram is not enabled; cannot send chart")
		}
		sender = notifier
	}

	path := opts.Output
	if path == "" {
		path = a.Config.Report.OutputPath
	}

	reporter := a.newReporter(store, opts.Window, 0)
	err = renderAndSend(ctx, reporter, path, sender, time.Now())
	if errors.Is(err, report.ErrNoData) {
		// already reported by the renderer
		return nil
	}
	return err
}

func renderAndSend(ctx context.Context, reporter *report.Reporter, path string, sender alerting.ChartSender, now time.Time) error {
	if _, err := reporter.RenderFile(ctx, now, path); err != nil {
		return err
	}
	if sender == nil {
		return nil
	}

	png, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rendered chart: %w", err)
	}
	caption := fmt.Sprintf("Market prices, last %s (as of %s UTC)", reporter.Window(), now.UTC().Format("2006-01-02 15:04"))
	return sender.SendChart(ctx, caption, png)
}

// startReportSchedule re-renders the chart on report.schedule. The returned
// func stops the schedule and waits for a running render to finish.
func (a *App) startReportSchedule(reporter *report.Reporter, sender alerting.ChartSender) (func(), error) {
	logger := a.Logger.With().Str("component", "report_schedule").Logger()
	c := cron.New(cron.WithLogger(cronLogger{logger: logger}))

	path := a.Config.Report.OutputPath
	_, err := c.AddFunc(a.Config.Report.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		err := renderAndSend(ctx, reporter, path, sender, time.Now())
		if err != nil && !errors.Is(err, report.ErrNoData) {
			logger.Error().Err(err).Msg("scheduled report failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid report.schedule %q: %w", a.Config.Report.Schedule, err)
	}

	c.Start()
	logger.Info().Str("schedule", a.Config.Report.Schedule).Str("path", path).Msg("report schedule started")
	return func() { <-c.Stop().Done() }, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

var _ cron.Logger = cronLogger{}
