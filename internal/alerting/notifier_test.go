package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeTelegram struct {
	mu       sync.Mutex
	messages []map[string]string
	photos   [][]byte
	failSend bool
}

func (f *fakeTelegram) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottoken/") {
			t.Errorf("路径应包含 bot token, 实际 %s", r.URL.Path)
		}
		method := strings.TrimPrefix(r.URL.Path, "/bottoken/")
		w.Header().Set("Content-Type", "application/json")

		switch method {
		case "getMe":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"id": 1, "is_bot": true, "first_name": "watch", "username": "marketwatch_bot"},
			})
		case "sendMessage":
			if err := r.ParseForm(); err != nil {
				t.Errorf("解析表单失败: %v", err)
			}
			f.mu.Lock()
			f.messages = append(f.messages, map[string]string{
				"chat_id": r.PostForm.Get("chat_id"),
				"text":    r.PostForm.Get("text"),
			})
			f.mu.Unlock()
			f.reply(w)
		case "sendPhoto":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("解析 multipart 失败: %v", err)
			}
			file, _, err := r.FormFile("photo")
			if err != nil {
				t.Errorf("缺少 photo 字段: %v", err)
			} else {
				data, _ := io.ReadAll(file)
				f.mu.Lock()
				f.photos = append(f.photos, data)
				f.mu.Unlock()
			}
			f.reply(w)
		default:
			t.Errorf("未预期的方法 %s", method)
		}
	})
}

func (f *fakeTelegram) reply(w http.ResponseWriter) {
	if f.failSend {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":     true,
		"result": map[string]any{"message_id": 7, "date": 0, "chat": map[string]any{"id": 42, "type": "private"}},
	})
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	notifier, err := NewTelegramNotifier(TelegramOptions{BotToken: "token", ChatID: 42, APIBase: srv.URL, Timeout: time.Second}, testLogger())
	if err != nil {
		t.Fatalf("构造 Telegram 告警器失败: %v", err)
	}
	return notifier
}

func sampleNote() Notification {
	return Notification{
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FXRate:        decimal.RequireFromString("1350.2"),
		ExchangePrice: decimal.RequireFromString("1400"),
		PremiumPct:    PremiumPct(1350.2, 1400),
		ThresholdPct:  decimal.NewFromInt(2),
		Direction:     "premium",
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	fake := &fakeTelegram{}
	notifier := newTestNotifier(t, fake)

	if err := notifier.Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if len(fake.messages) != 1 {
		t.Fatalf("应发送 1 条消息, 实际 %d", len(fake.messages))
	}
	if fake.messages[0]["chat_id"] != "42" {
		t.Fatalf("chat_id 不正确: %#v", fake.messages[0])
	}
	if !strings.Contains(fake.messages[0]["text"], "Premium: 3.688%") {
		t.Fatalf("消息内容不正确: %s", fake.messages[0]["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	fake := &fakeTelegram{failSend: true}
	notifier := newTestNotifier(t, fake)

	if err := notifier.Notify(context.Background(), sampleNote()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestTelegramNotifierSendChart(t *testing.T) {
	fake := &fakeTelegram{}
	notifier := newTestNotifier(t, fake)

	png := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	if err := notifier.SendChart(context.Background(), "last 30 days", png); err != nil {
		t.Fatalf("SendChart 应成功: %v", err)
	}
	if len(fake.photos) != 1 || string(fake.photos[0]) != string(png) {
		t.Fatalf("上传的图片内容不正确: %v", fake.photos)
	}
}

func TestTelegramNotifierCancelledContext(t *testing.T) {
	fake := &fakeTelegram{}
	notifier := newTestNotifier(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := notifier.Notify(ctx, sampleNote()); err == nil {
		t.Fatal("已取消的 context 应报错")
	}
	if len(fake.messages) != 0 {
		t.Fatal("取消后不应发送消息")
	}
}

func TestNewTelegramNotifierValidation(t *testing.T) {
	if _, err := NewTelegramNotifier(TelegramOptions{ChatID: 1}, testLogger()); err == nil {
		t.Fatal("缺少 token 应报错")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
	}))
	defer srv.Close()
	if _, err := NewTelegramNotifier(TelegramOptions{BotToken: "bad", ChatID: 1, APIBase: srv.URL}, testLogger()); err == nil {
		t.Fatal("getMe 失败应报错")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
