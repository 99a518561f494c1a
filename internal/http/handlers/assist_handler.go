package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timetable-notifier/internal/services"
)

// CompleteRequest is the payload of POST /assist/complete.
type CompleteRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// TranscribeResponse is the result of POST /assist/transcribe.
type TranscribeResponse struct {
	Text string `json:"text"`
}

// Complete runs one chat completion on the least constrained credential.
//
// @ID          assistComplete
// @Summary     Single-turn chat completion through the credential pool
// @Tags        Assistant
// @Accept      json
// @Produce     json
// @Security    AdminToken
//
// @Param       body  body  handlers.CompleteRequest  true  "Prompt"
//
// @Success     200  {object}  services.Completion
// @Failure     400  {object}  handlers.ErrorResponse  "Empty prompt"
// @Failure     413  {object}  handlers.ErrorResponse  "Prompt too long"
// @Failure     429  {object}  handlers.ErrorResponse  "Every credential rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "Inference failure"
// @Failure     503  {object}  handlers.ErrorResponse  "No credential available"
// @Router      /assist/complete [post]
func (h *Handlers) Complete(c *gin.Context) {
	if h.d.Assistant == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "assistant not configured")
		return
	}
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	out, err := h.d.Assistant.Complete(c.Request.Context(), req.Prompt)
	if err != nil {
		failInference(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// Transcribe turns the uploaded multipart "file" into text.
//
// @ID          assistTranscribe
// @Summary     Transcribe a voice note
// @Tags        Assistant
// @Accept      multipart/form-data
// @Produce     json
// @Security    AdminToken
//
// @Param       file  formData  file  true  "Audio file"
//
// @Success     200  {object}  handlers.TranscribeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or empty file"
// @Failure     503  {object}  handlers.ErrorResponse  "No credential available"
// @Router      /assist/transcribe [post]
func (h *Handlers) Transcribe(c *gin.Context) {
	if h.d.Assistant == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "assistant not configured")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read upload")
		return
	}
	defer f.Close()

	text, err := h.d.Assistant.Transcribe(c.Request.Context(), fh.Filename, f)
	if err != nil {
		failInference(c, err)
		return
	}
	ok(c, http.StatusOK, TranscribeResponse{Text: text})
}

func failInference(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyPrompt), errors.Is(err, services.ErrEmptyAudio):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
	case errors.Is(err, services.ErrNoCredentialAvailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeNoCredential, "no inference credential available")
	case errors.Is(err, services.ErrInferenceRateLimited):
		c.Header("Retry-After", "60")
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "every inference credential is rate limited")
	default:
		fail(c, http.StatusBadGateway, ErrCodeInferenceFailed, "inference call failed")
	}
}
