// Dispatch HTTP handlers.
//
//   - POST /dispatch/lessons   run one lesson reminder tick now
//   - POST /dispatch/exams     run one exam tick now
//   - POST /grades/{user}      push a record book and notify on changes
//
// A manual tick shares the in-progress guard with the scheduler: when a tick
// is already running the call returns at once with "skipped": true.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/services"
)

// GradesRequest is the payload of POST /grades/{user}.
type GradesRequest struct {
	Grades []domain.GradeRecord `json:"grades"`
}

// DispatchLessons runs one lesson tick and returns its report.
//
// @ID          dispatchLessons
// @Summary     Run one lesson reminder tick
// @Tags        Dispatch
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  services.TickReport
// @Failure     500  {object}  handlers.ErrorResponse  "Tick failed"
// @Router      /dispatch/lessons [post]
func (h *Handlers) DispatchLessons(c *gin.Context) {
	if h.d.Lessons == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson dispatcher not configured")
		return
	}
	rep, err := h.d.Lessons.RunTick(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeTickFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, rep)
}

// DispatchExams runs one exam tick and returns its report.
//
// @ID          dispatchExams
// @Summary     Run one exam tick
// @Tags        Dispatch
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  services.ExamReport
// @Failure     500  {object}  handlers.ErrorResponse  "Tick failed"
// @Router      /dispatch/exams [post]
func (h *Handlers) DispatchExams(c *gin.Context) {
	if h.d.Exams == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "exam dispatcher not configured")
		return
	}
	rep, err := h.d.Exams.RunTick(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeTickFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, rep)
}

// PushGrades diffs the pushed record book of a subscriber against the stored
// snapshot. The first push for a subscriber is stored silently.
//
// @ID          pushGrades
// @Summary     Push a record book and notify on changes
// @Tags        Dispatch
// @Accept      json
// @Produce     json
// @Security    AdminToken
//
// @Param       user  path  string                  true  "Subscriber reference"
// @Param       body  body  handlers.GradesRequest  true  "Current record book"
//
// @Success     200  {object}  services.GradeResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /grades/{user} [post]
func (h *Handlers) PushGrades(c *gin.Context) {
	if h.d.Grades == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "grade tracker not configured")
		return
	}
	var req GradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.d.Grades.Check(c.Request.Context(), strings.TrimSpace(c.Param("user")), req.Grades)
	switch {
	case err == nil:
		ok(c, http.StatusOK, res)
	case errors.Is(err, services.ErrEmptyUserRef):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "grade check failed")
	}
}
