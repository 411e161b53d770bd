package app

import (
	"context"
	"errors"
	"time"

	"marketwatch/internal/alerting"
)

// SimulateAlert 通过给定的汇率/交易所价格模拟一次溢价告警流程。
func (a *App) SimulateAlert(ctx context.Context, fxRate, exchangePrice float64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	sent, err := a.newEvaluator(notifier).Evaluate(ctx, time.Now().UTC(), fxRate, exchangePrice)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("premium_pct", alerting.PremiumPct(fxRate, exchangePrice).StringFixed(3)).
		Float64("threshold_pct", a.Config.Alerting.ThresholdPct).
		Bool("sent", sent).
		Msg("simulated premium alert")
	return nil
}
