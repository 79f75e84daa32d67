package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/logging"
)

func TestSendMessage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewTelegramClient("TOKEN", "42", true, logging.Discard()).WithAPIBase(srv.URL)
	require.NoError(t, client.SendMessage(context.Background(), "<b>hi</b>"))

	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendMessageDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("disabled client must not call the API")
	}))
	defer srv.Close()

	for _, client := range []*TelegramClient{
		NewTelegramClient("TOKEN", "42", false, logging.Discard()),
		NewTelegramClient("", "42", true, logging.Discard()),
		NewTelegramClient("TOKEN", "", true, logging.Discard()),
	} {
		client.WithAPIBase(srv.URL)
		assert.False(t, client.Configured())
		assert.NoError(t, client.SendMessage(context.Background(), "ignored"))
	}

	var nilClient *TelegramClient
	assert.False(t, nilClient.Configured())
}

func TestSendMessageNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewTelegramClient("TOKEN", "42", true, logging.Discard()).WithAPIBase(srv.URL)
	err := client.SendMessage(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSendDepositNotification(t *testing.T) {
	var text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		text = body.Text
	}))
	defer srv.Close()

	client := NewTelegramClient("TOKEN", "42", true, logging.Discard()).WithAPIBase(srv.URL)
	when := time.Date(2024, 3, 9, 16, 0, 0, 0, time.UTC)
	client.SendDepositNotification(context.Background(), "Wallet111", "0.25", "Sig111", &when)

	assert.Contains(t, text, "0.25 SOL")
	assert.Contains(t, text, "Wallet111")
	assert.Contains(t, text, "2024-03-09 16:00:00")
	assert.Contains(t, text, "https://solscan.io/tx/Sig111")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5m", formatDuration(5*time.Minute))
	assert.Equal(t, "2h 3m", formatDuration(2*time.Hour+3*time.Minute))
	assert.Equal(t, "1d 1h 0m", formatDuration(25*time.Hour))
}
