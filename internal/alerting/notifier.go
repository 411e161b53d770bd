package alerting

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification 封装告警上下文。
type Notification struct {
	Timestamp     time.Time
	FXRate        decimal.Decimal
	ExchangePrice decimal.Decimal
	PremiumPct    decimal.Decimal
	ThresholdPct  decimal.Decimal
	Direction     string
	AdditionalMsg string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// ChartSender 推送渲染好的图表。
type ChartSender interface {
	SendChart(ctx context.Context, caption string, png []byte) error
}

// TelegramOptions 描述 Telegram Bot 连接参数。
type TelegramOptions struct {
	BotToken string
	ChatID   int64
	APIBase  string
	Timeout  time.Duration
}

// TelegramNotifier 通过 Telegram Bot API 推送消息与图表。
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器，会调用 getMe 校验 token。
func NewTelegramNotifier(opts TelegramOptions, logger zerolog.Logger) (*TelegramNotifier, error) {
	if opts.BotToken == "" || opts.ChatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	base := strings.TrimRight(opts.APIBase, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.BotToken, base+"/bot%s/%s", &http.Client{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chatID: opts.ChatID,
		logger: logger.With().Str("component", "alert_telegram").Str("bot", bot.Self.UserName).Logger(),
	}, nil
}

// Notify 调用 sendMessage 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, renderMessage(note))); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.logger.Info().Time("ts", note.Timestamp).
		Str("direction", note.Direction).
		Str("premium_pct", note.PremiumPct.StringFixed(3)).
		Msg("告警已发送 (Telegram)")
	return nil
}

// SendChart 调用 sendPhoto 上传 PNG。
func (n *TelegramNotifier) SendChart(ctx context.Context, caption string, png []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileBytes{Name: "market_prices.png", Bytes: png})
	photo.Caption = caption
	if _, err := n.bot.Send(photo); err != nil {
		return fmt.Errorf("send telegram photo: %w", err)
	}

	n.logger.Info().Int("bytes", len(png)).Msg("图表已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[USDT Kimchi Premium Alert]\n")
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.Timestamp.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("USD/KRW: %s\n", note.FXRate.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("USDT/KRW: %s\n", note.ExchangePrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Premium: %s%% (threshold %s%%)\n", note.PremiumPct.StringFixed(3), note.ThresholdPct.StringFixed(3)))
	builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var (
	_ Notifier    = (*TelegramNotifier)(nil)
	_ ChartSender = (*TelegramNotifier)(nil)
)
