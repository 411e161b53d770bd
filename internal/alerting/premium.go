package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PremiumPct 计算交易所 USDT 报价相对汇率的溢价百分比。
func PremiumPct(fxRate, exchangePrice float64) decimal.Decimal {
	fx := decimal.NewFromFloat(fxRate)
	if fx.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(exchangePrice).Div(fx).Sub(decimal.NewFromInt(1)).Mul(hundred)
}

func classifyPremium(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "premium"
	case -1:
		return "discount"
	default:
		return "flat"
	}
}

// EvaluatorOptions 配置阈值与冷却时间。
type EvaluatorOptions struct {
	ThresholdPct float64
	Cooldown     time.Duration
}

// Evaluator 判断溢价是否越过阈值，并在冷却期外发送告警。
type Evaluator struct {
	threshold decimal.Decimal
	cooldown  time.Duration
	notifier  Notifier
	logger    zerolog.Logger

	mu       sync.Mutex
	lastSent time.Time
}

// NewEvaluator 构造溢价告警判定器。
func NewEvaluator(opts EvaluatorOptions, notifier Notifier, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		threshold: decimal.NewFromFloat(opts.ThresholdPct),
		cooldown:  opts.Cooldown,
		notifier:  notifier,
		logger:    logger.With().Str("component", "premium_alert").Logger(),
	}
}

// Evaluate 返回是否实际发出了告警。冷却期以样本时间计算。
func (e *Evaluator) Evaluate(ctx context.Context, ts time.Time, fxRate, exchangePrice float64) (bool, error) {
	premium := PremiumPct(fxRate, exchangePrice)
	if !premium.Abs().GreaterThan(e.threshold) {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.lastSent.IsZero() && ts.Sub(e.lastSent) < e.cooldown {
		e.logger.Debug().Time("ts", ts).Time("last_sent", e.lastSent).Msg("premium alert suppressed by cooldown")
		return false, nil
	}
	if e.notifier == nil {
		e.logger.Warn().Time("ts", ts).Str("premium_pct", premium.StringFixed(3)).Msg("premium over threshold but no notifier configured")
		return false, nil
	}

	note := Notification{
		Timestamp:     ts,
		FXRate:        decimal.NewFromFloat(fxRate),
		ExchangePrice: decimal.NewFromFloat(exchangePrice),
		PremiumPct:    premium,
		ThresholdPct:  e.threshold,
		Direction:     classifyPremium(premium),
	}
	if err := e.notifier.Notify(ctx, note); err != nil {
		return false, err
	}
	e.lastSent = ts
	return true, nil
}
