package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramClient handles sending notifications to Telegram
type TelegramClient struct {
	BotToken string
	ChatID   string
	Enabled  bool

	apiBase    string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(botToken, chatID string, enabled bool, logger logrus.FieldLogger) *TelegramClient {
	return &TelegramClient{
		BotToken:   botToken,
		ChatID:     chatID,
		Enabled:    enabled,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithAPIBase points the client at another Bot API host.
func (t *TelegramClient) WithAPIBase(base string) *TelegramClient {
	t.apiBase = strings.TrimRight(base, "/")
	return t
}

// Configured reports whether messages will actually be sent.
func (t *TelegramClient) Configured() bool {
	return t != nil && t.Enabled && t.BotToken != "" && t.ChatID != ""
}

// SendMessage sends an HTML message to Telegram
func (t *TelegramClient) SendMessage(ctx context.Context, message string) error {
	if !t.Configured() {
		return nil // Silently ignore if Telegram is not configured
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.BotToken)

	payload := map[string]interface{}{
		"chat_id":                  t.ChatID,
		"text":                     message,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned non-OK status: %d", resp.StatusCode)
	}

	return nil
}

// SendDepositNotification notifies about SOL received on the deposit wallet
func (t *TelegramClient) SendDepositNotification(ctx context.Context, wallet, amountSol, signature string, blockTime *time.Time) {
	when := time.Now()
	if blockTime != nil {
		when = *blockTime
	}

	message := fmt.Sprintf(
		"💰 <b>Deposit Received</b>\n\n"+
			"👛 <b>Wallet:</b> <code>%s</code>\n"+
			"◎ <b>Amount:</b> %s SOL\n"+
			"🕒 <b>Time:</b> %s\n"+
			"🔗 <b>Transaction:</b> <a href=\"https://solscan.io/tx/%s\">View on Solscan</a>",
		html.EscapeString(wallet), html.EscapeString(amountSol),
		when.UTC().Format("2006-01-02 15:04:05"),
		signature,
	)

	if err := t.SendMessage(ctx, message); err != nil {
		t.logger.WithError(err).Warn("Failed to send deposit notification")
	}
}

// SendWithdrawNotification notifies about funds leaving a custodial wallet
func (t *TelegramClient) SendWithdrawNotification(ctx context.Context, from, to, amount, token, signature string) {
	message := fmt.Sprintf(
		"📤 <b>Withdrawal Sent</b>\n\n"+
			"👛 <b>From:</b> <code>%s</code>\n"+
			"🎯 <b>To:</b> <code>%s</code>\n"+
			"💸 <b>Amount:</b> %s %s\n"+
			"🕒 <b>Time:</b> %s\n"+
			"🔗 <b>Transaction:</b> <a href=\"https://solscan.io/tx/%s\">View on Solscan</a>",
		html.EscapeString(from), html.EscapeString(to),
		html.EscapeString(amount), html.EscapeString(token),
		time.Now().UTC().Format("2006-01-02 15:04:05"),
		signature,
	)

	if err := t.SendMessage(ctx, message); err != nil {
		t.logger.WithError(err).Warn("Failed to send withdraw notification")
	}
}

// SendSwapNotification notifies about a completed swap
func (t *TelegramClient) SendSwapNotification(ctx context.Context, provider, inputMint, outputMint, inAmount, outAmount, signature string) {
	message := fmt.Sprintf(
		"🔄 <b>Swap Complete</b>\n\n"+
			"🏦 <b>Provider:</b> %s\n"+
			"➡️ <b>In:</b> %s of <code>%s</code>\n"+
			"⬅️ <b>Out:</b> %s of <code>%s</code>\n"+
			"🔗 <b>Transaction:</b> <a href=\"https://solscan.io/tx/%s\">View on Solscan</a>",
		html.EscapeString(provider),
		html.EscapeString(inAmount), html.EscapeString(inputMint),
		html.EscapeString(outAmount), html.EscapeString(outputMint),
		signature,
	)

	if err := t.SendMessage(ctx, message); err != nil {
		t.logger.WithError(err).Warn("Failed to send swap notification")
	}
}

// SendStartupMessage announces a server start with its main settings.
func (t *TelegramClient) SendStartupMessage(ctx context.Context, depositWallet string, checkInterval time.Duration) {
	monitor := "Disabled"
	if depositWallet != "" {
		monitor = fmt.Sprintf("<code>%s</code> every %s", html.EscapeString(depositWallet), checkInterval)
	}
	message := fmt.Sprintf(
		"🚀 <b>Veilfi wallet server started</b>\n\n"+
			"🔍 <b>Deposit monitor:</b> %s\n"+
			"🕒 <b>Time:</b> %s",
		monitor,
		time.Now().UTC().Format("2006-01-02 15:04:05"),
	)

	if err := t.SendMessage(ctx, message); err != nil {
		t.logger.WithError(err).Warn("Failed to send startup message")
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// SendStatusMessage reports deposit monitor activity since start.
func (t *TelegramClient) SendStatusMessage(ctx context.Context, depositsSeen int, uptime time.Duration, lastCheck time.Time) {
	message := fmt.Sprintf(
		"📊 <b>Status Update</b>\n\n"+
			"⏱️ <b>Uptime:</b> %s\n"+
			"💰 <b>Deposits seen:</b> %d\n"+
			"🕒 <b>Last check:</b> %s",
		formatDuration(uptime),
		depositsSeen,
		lastCheck.UTC().Format("2006-01-02 15:04:05"),
	)

	if err := t.SendMessage(ctx, message); err != nil {
		t.logger.WithError(err).Warn("Failed to send status message")
	}
}
