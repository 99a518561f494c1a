package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSender(t *testing.T, h http.HandlerFunc) *TelegramSender {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := NewTelegramSender(TelegramOptions{APIURL: srv.URL + "/", Token: "123:abc", RPS: 1000})
	require.NoError(t, err)
	return s
}

func TestNewTelegramSender_RequiresToken(t *testing.T) {
	_, err := NewTelegramSender(TelegramOptions{Token: " "})
	require.Error(t, err)
}

func TestTelegramSender_Success(t *testing.T) {
	var got sendMessageRequest
	var path string
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	require.NoError(t, s.Send(context.Background(), "42", "Math in 15 minutes"))
	require.Equal(t, "/bot123:abc/sendMessage", path)
	require.Equal(t, "42", got.ChatID)
	require.Equal(t, "Math in 15 minutes", got.Text)
}

func TestTelegramSender_Classification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		unreachable bool
		retryAfter  time.Duration
		statusErr   bool
	}{
		{name: "blocked", status: 403, body: `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, unreachable: true},
		{name: "chat not found", status: 400, body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, unreachable: true},
		{name: "deactivated", status: 400, body: `{"ok":false,"error_code":400,"description":"Bad Request: USER IS DEACTIVATED"}`, unreachable: true},
		{name: "bad markup", status: 400, body: `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`, statusErr: true},
		{name: "throttled", status: 429, body: `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":7}}`, retryAfter: 7 * time.Second},
		{name: "server error", status: 502, body: `bad gateway`, statusErr: true},
		{name: "ok false on 200", status: 200, body: `{"ok":false,"description":"weird"}`, statusErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			err := s.Send(context.Background(), "42", "hi")
			require.Error(t, err)
			require.Equal(t, tc.unreachable, errors.Is(err, ErrRecipientUnreachable))

			var ra *RetryAfterError
			require.Equal(t, tc.retryAfter > 0, errors.As(err, &ra))
			if ra != nil {
				require.Equal(t, tc.retryAfter, ra.After)
			}
			var se *StatusError
			require.Equal(t, tc.statusErr, errors.As(err, &se))
			if se != nil {
				require.Equal(t, tc.status, se.StatusCode)
			}
		})
	}
}

func TestTelegramSender_TransportErrorHidesToken(t *testing.T) {
	s, err := NewTelegramSender(TelegramOptions{APIURL: "http://127.0.0.1:1", Token: "123:supersecret"})
	require.NoError(t, err)
	err = s.Send(context.Background(), "42", "hi")
	require.Error(t, err)
	require.False(t, strings.Contains(err.Error(), "supersecret"), err.Error())
}

func TestTelegramSender_ContextCanceledWhileWaiting(t *testing.T) {
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Send(ctx, "42", "hi"))
}

func TestLogSender(t *testing.T) {
	require.NoError(t, LogSender{}.Send(context.Background(), "42", "hi"))
}
