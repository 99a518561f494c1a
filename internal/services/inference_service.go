// Package services – InferenceService
//
// This file implements calls to the OpenAI-compatible inference API through
// the credential pool. Each attempt selects a credential, performs the call
// and reports the provider's quota headers back to the pool. A rate-limited
// attempt fails over to the next credential.

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-timetable-notifier/internal/credpool"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
)

// DefaultInferenceAttempts bounds failover across credentials per call.
const DefaultInferenceAttempts = 3

// CredentialPool is the subset of credpool.Pool used by InferenceService.
type CredentialPool interface {
	Select() (domain.Credential, error)
	ReportUsage(ctx context.Context, id string, h http.Header, usage *credpool.Usage) error
	ReportError(ctx context.Context, id string, status int, h http.Header, err error) error
}

// Completion is the answer of a chat completion.
type Completion struct {
	Text         string         `json:"text"`
	Model        string         `json:"model"`
	CredentialID string         `json:"credential_id"`
	Attempts     int            `json:"attempts"`
	Usage        credpool.Usage `json:"usage"`
}

// InferenceService performs pooled inference calls.
type InferenceService struct {
	Pool            CredentialPool
	Client          credpool.ClientConfig
	Model           string
	TranscribeModel string
	MaxAttempts     int
	MaxPromptRunes  int
}

// Complete answers prompt with a single-turn chat completion.
func (s *InferenceService) Complete(ctx context.Context, prompt string) (*Completion, error) {
	tr := otel.Tracer("services/InferenceService")
	ctx, span := tr.Start(ctx, "Complete", trace.WithAttributes(attribute.String("model", s.Model)))
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	var out *Completion
	err := s.withCredential(ctx, "complete", func(ctx context.Context, client openai.Client, resp **http.Response) (*credpool.Usage, error) {
		cc, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(s.Model),
			Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		}, option.WithResponseInto(resp))
		if err != nil {
			return nil, err
		}
		u := credpool.Usage{
			PromptTokens:     cc.Usage.PromptTokens,
			CompletionTokens: cc.Usage.CompletionTokens,
			TotalTokens:      cc.Usage.TotalTokens,
		}
		out = &Completion{Model: cc.Model, Usage: u}
		if len(cc.Choices) > 0 {
			out.Text = cc.Choices[0].Message.Content
		}
		return &u, nil
	}, func(id string, attempts int) {
		out.CredentialID, out.Attempts = id, attempts
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// Transcribe converts audio to text. The audio is buffered so that it can be
// replayed on failover.
func (s *InferenceService) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	tr := otel.Tracer("services/InferenceService")
	ctx, span := tr.Start(ctx, "Transcribe", trace.WithAttributes(attribute.String("model", s.TranscribeModel)))
	defer span.End()

	raw, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", ErrEmptyAudio
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.ogg"
	}

	var text string
	err = s.withCredential(ctx, "transcribe", func(ctx context.Context, client openai.Client, resp **http.Response) (*credpool.Usage, error) {
		t, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
			File:  openai.File(bytes.NewReader(raw), filename, "application/octet-stream"),
			Model: openai.AudioModel(s.TranscribeModel),
		}, option.WithResponseInto(resp))
		if err != nil {
			return nil, err
		}
		text = t.Text
		return nil, nil
	}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

type inferenceCall func(ctx context.Context, client openai.Client, resp **http.Response) (*credpool.Usage, error)

// withCredential runs call with up to MaxAttempts distinct credentials. Only
// a 429 moves on to another credential.
func (s *InferenceService) withCredential(ctx context.Context, op string, call inferenceCall, done func(id string, attempts int)) error {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = DefaultInferenceAttempts
	}
	tried := make(map[string]bool, attempts)
	var lastErr error
	for i := 1; i <= attempts; i++ {
		cred, err := s.Pool.Select()
		if err != nil {
			metrics.InferenceRequests.WithLabelValues(op, "no_credential").Inc()
			return err
		}
		if tried[cred.ID] {
			break
		}
		tried[cred.ID] = true

		var resp *http.Response
		usage, err := call(ctx, credpool.NewClient(s.Client, cred.Secret), &resp)
		var header http.Header
		if resp != nil {
			header = resp.Header
		}
		if err == nil {
			metrics.InferenceRequests.WithLabelValues(op, "ok").Inc()
			if rerr := s.Pool.ReportUsage(ctx, cred.ID, header, usage); rerr != nil {
				log.Warn().Err(rerr).Str("credential_id", cred.ID).Msg("report usage failed")
			}
			if done != nil {
				done(cred.ID, i)
			}
			return nil
		}

		status := credpool.StatusOf(err)
		if rerr := s.Pool.ReportError(ctx, cred.ID, status, header, err); rerr != nil {
			log.Warn().Err(rerr).Str("credential_id", cred.ID).Msg("report error failed")
		}
		if status != http.StatusTooManyRequests {
			metrics.InferenceRequests.WithLabelValues(op, "error").Inc()
			return fmt.Errorf("inference %s: %w", op, err)
		}
		metrics.InferenceRequests.WithLabelValues(op, "rate_limited").Inc()
		log.Warn().Str("credential_id", cred.ID).Int("attempt", i).Msg("credential rate limited, failing over")
		lastErr = err
	}
	return errors.Join(ErrInferenceRateLimited, lastErr)
}
