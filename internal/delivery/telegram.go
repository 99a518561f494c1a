package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Telegram defaults.
const (
	DefaultTelegramAPI = "https://api.telegram.org"
	DefaultSendRPS     = 25
	maxResponseBody    = 64 << 10
)

// Descriptions Telegram uses on 400 for recipients that no longer exist.
var unreachableHints = []string{
	"chat not found",
	"user is deactivated",
	"bot was blocked",
	"bot was kicked",
	"peer_id_invalid",
}

// TelegramOptions configures a TelegramSender.
type TelegramOptions struct {
	APIURL     string
	Token      string
	RPS        float64
	HTTPClient *http.Client
}

// TelegramSender delivers through the Bot API sendMessage method, paced by a
// token bucket shared by all callers.
type TelegramSender struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewTelegramSender validates opts and returns a sender.
func NewTelegramSender(opts TelegramOptions) (*TelegramSender, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("delivery: telegram token is empty")
	}
	api := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if api == "" {
		api = DefaultTelegramAPI
	}
	if _, err := url.Parse(api); err != nil {
		return nil, fmt.Errorf("delivery: parse telegram url: %w", err)
	}
	if opts.RPS <= 0 {
		opts.RPS = DefaultSendRPS
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &TelegramSender{
		endpoint: api + "/bot" + opts.Token + "/sendMessage",
		http:     hc,
		limiter:  rate.NewLimiter(rate.Limit(opts.RPS), max(1, int(opts.RPS))),
	}, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send implements Sender.
func (s *TelegramSender) Send(ctx context.Context, userRef, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: userRef, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New("delivery: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		// The request URL carries the bot token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("delivery: telegram: %w", err)
	}
	defer resp.Body.Close()

	var br botResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	_ = json.Unmarshal(raw, &br)
	if resp.StatusCode < 300 && br.OK {
		return nil
	}
	return classify(resp.StatusCode, br)
}

func classify(status int, br botResponse) error {
	desc := strings.TrimSpace(br.Description)
	switch {
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrRecipientUnreachable, desc)
	case status == http.StatusBadRequest && hasUnreachableHint(desc):
		return fmt.Errorf("%w: %s", ErrRecipientUnreachable, desc)
	case status == http.StatusTooManyRequests:
		return &RetryAfterError{After: time.Duration(br.Parameters.RetryAfter) * time.Second}
	default:
		return &StatusError{StatusCode: status, Description: desc}
	}
}

func hasUnreachableHint(desc string) bool {
	d := strings.ToLower(desc)
	for _, h := range unreachableHints {
		if strings.Contains(d, h) {
			return true
		}
	}
	return false
}
