// Package services implements the notification engine: the lesson and exam
// dispatchers, the grade tracker and the pooled inference client.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/go-timetable-notifier/internal/credpool"
)

var (
	// ErrNoCredentialAvailable is returned when the credential pool holds no
	// active key. It is fatal for the call and not retried.
	ErrNoCredentialAvailable = credpool.ErrNoCredentialAvailable

	// ErrInferenceRateLimited is returned when every attempted credential was
	// rate limited.
	ErrInferenceRateLimited = errors.New("inference rate limited on every credential")

	// ErrEmptyPrompt is returned when a completion request has no prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a prompt exceeds the configured limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrEmptyAudio is returned when a transcription request has no audio.
	ErrEmptyAudio = errors.New("audio is empty")

	// ErrEmptyUserRef is returned when a grade check names no subscriber.
	ErrEmptyUserRef = errors.New("user reference is empty")
)
