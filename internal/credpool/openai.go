package credpool

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientConfig describes an OpenAI-compatible endpoint.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient returns an openai client bound to one secret. SDK retries are
// disabled; rotation across keys is the pool's job.
func NewClient(cfg ClientConfig, secret string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(secret),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return openai.NewClient(opts...)
}

// StatusOf returns the HTTP status carried by an openai error, or 0.
func StatusOf(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ProbeResult is the outcome of a minimal call made with one credential.
type ProbeResult struct {
	Status int
	Header http.Header
}

// Prober issues a minimal authenticated call for a secret.
type Prober interface {
	Probe(ctx context.Context, secret string) (ProbeResult, error)
}

// OpenAIProber probes with a one-token chat completion.
type OpenAIProber struct {
	Client ClientConfig
	Model  string
}

// Probe implements Prober. The response headers are returned even when the
// call fails so that quota state can still be refreshed.
func (p OpenAIProber) Probe(ctx context.Context, secret string) (ProbeResult, error) {
	client := NewClient(p.Client, secret)
	var resp *http.Response
	_, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(p.Model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		MaxTokens: openai.Int(1),
	}, option.WithResponseInto(&resp))

	var res ProbeResult
	if resp != nil {
		res.Status = resp.StatusCode
		res.Header = resp.Header
	}
	if err != nil {
		if s := StatusOf(err); s != 0 {
			res.Status = s
		}
		return res, err
	}
	return res, nil
}

// Mask renders a secret for logs and API responses.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
