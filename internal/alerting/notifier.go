package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notification 封装告警上下文。
type Notification struct {
	Title     string
	Message   string
	Metric    string
	Direction Direction
	Observed  float64
	Threshold float64
	Date      time.Time
	FiredAt   time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("title", note.Title).Str("metric", note.Metric).Msg("告警已发送 (Telegram)")
	return nil
}

// LogNotifier surfaces notifications as log lines.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a notifier writing to logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the notification at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("metric", note.Metric).
		Str("direction", string(note.Direction)).
		Float64("observed", note.Observed).
		Float64("threshold", note.Threshold).
		Msg(note.Title + ": " + note.Message)
	return nil
}

// MultiNotifier fans a notification out to every member.
type MultiNotifier []Notifier

// Notify delivers to all members and joins their errors.
func (m MultiNotifier) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[GSR Alert] ")
	builder.WriteString(note.Title)
	builder.WriteString("\n")
	builder.WriteString(note.Message)
	builder.WriteString("\n")
	if !note.Date.IsZero() {
		builder.WriteString(fmt.Sprintf("Date: %s\n", note.Date.UTC().Format("2006-01-02")))
	}
	if !note.FiredAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Fired: %s UTC\n", note.FiredAt.UTC().Format(time.RFC3339)))
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = MultiNotifier(nil)
)
