// Schedule HTTP handlers.
//
//   - GET /schedule/{kind}/{id}      cached timetable
//   - DELETE /schedule/{kind}/{id}   drop the cached timetable
//   - GET /exams/{group}             cached exam list
//   - GET /groups                    groups known upstream
//   - GET /cache/stats               gateway counters
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/timetable"
)

// ScheduleResponse wraps a timetable with the key it was served for.
type ScheduleResponse struct {
	Key      domain.ScheduleKey `json:"key"`
	Schedule *domain.Schedule   `json:"schedule"`
}

// ExamsResponse wraps the exam list of a group.
type ExamsResponse struct {
	Group string        `json:"group"`
	Exams []domain.Exam `json:"exams"`
}

// GroupsResponse lists the groups the upstream timetable knows.
type GroupsResponse struct {
	Groups []string `json:"groups"`
}

// GetSchedule serves one timetable through the single-flight gateway.
//
// @ID          getSchedule
// @Summary     Get a cached timetable
// @Tags        Schedules
// @Produce     json
// @Security    AdminToken
//
// @Param       kind  path  string  true  "Timetable kind"  Enums(group, teacher, audience)
// @Param       id    path  string  true  "Group name, teacher id or audience id"
//
// @Success     200  {object}  handlers.ScheduleResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown kind"
// @Failure     404  {object}  handlers.ErrorResponse  "Timetable absent upstream"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failure"
// @Failure     503  {object}  handlers.ErrorResponse  "Upstream rate limited"
// @Router      /schedule/{kind}/{id} [get]
func (h *Handlers) GetSchedule(c *gin.Context) {
	if h.d.Schedules == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "schedules not configured")
		return
	}
	key, valid := scheduleKey(c)
	if !valid {
		return
	}
	s, err := h.d.Schedules.GetSchedule(c.Request.Context(), key)
	if err != nil {
		failUpstream(c, err, "schedule not found")
		return
	}
	ok(c, http.StatusOK, ScheduleResponse{Key: key, Schedule: s})
}

// InvalidateSchedule drops one cached timetable so the next read goes
// upstream.
//
// @ID          invalidateSchedule
// @Summary     Drop a cached timetable
// @Tags        Schedules
// @Security    AdminToken
//
// @Param       kind  path  string  true  "Timetable kind"  Enums(group, teacher, audience)
// @Param       id    path  string  true  "Group name, teacher id or audience id"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown kind"
// @Router      /schedule/{kind}/{id} [delete]
func (h *Handlers) InvalidateSchedule(c *gin.Context) {
	if h.d.Schedules == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "schedules not configured")
		return
	}
	key, valid := scheduleKey(c)
	if !valid {
		return
	}
	h.d.Schedules.InvalidateSchedule(key)
	noContent(c)
}

// GetExams serves the exam list of a group.
//
// @ID          getExams
// @Summary     Get the exam list of a group
// @Tags        Schedules
// @Produce     json
// @Security    AdminToken
// @Param       group  path  string  true  "Group name"
// @Success     200  {object}  handlers.ExamsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Group absent upstream"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /exams/{group} [get]
func (h *Handlers) GetExams(c *gin.Context) {
	if h.d.Schedules == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "schedules not configured")
		return
	}
	group := strings.TrimSpace(c.Param("group"))
	if group == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group is required")
		return
	}
	exams, err := h.d.Schedules.GetExams(c.Request.Context(), group)
	if err != nil {
		failUpstream(c, err, "exams not found")
		return
	}
	if exams == nil {
		exams = []domain.Exam{}
	}
	ok(c, http.StatusOK, ExamsResponse{Group: group, Exams: exams})
}

// ListGroups serves the groups known upstream.
//
// @ID          listGroups
// @Summary     List groups known upstream
// @Tags        Schedules
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.GroupsResponse
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failure"
// @Router      /groups [get]
func (h *Handlers) ListGroups(c *gin.Context) {
	if h.d.Schedules == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "schedules not configured")
		return
	}
	groups, err := h.d.Schedules.ActualGroups(c.Request.Context())
	if err != nil {
		failUpstream(c, err, "groups not found")
		return
	}
	if groups == nil {
		groups = []string{}
	}
	ok(c, http.StatusOK, GroupsResponse{Groups: groups})
}

// CacheStats reports the gateway's upstream and cache counters.
//
// @ID          cacheStats
// @Summary     Timetable cache counters
// @Tags        Schedules
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  timetable.GatewayStats
// @Router      /cache/stats [get]
func (h *Handlers) CacheStats(c *gin.Context) {
	if h.d.Schedules == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "schedules not configured")
		return
	}
	ok(c, http.StatusOK, h.d.Schedules.Stats())
}

// scheduleKey parses the kind and id path params, answering 400 itself when
// they are invalid.
func scheduleKey(c *gin.Context) (domain.ScheduleKey, bool) {
	kind, err := domain.ParseScheduleKind(c.Param("kind"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return domain.ScheduleKey{}, false
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id is required")
		return domain.ScheduleKey{}, false
	}
	return domain.ScheduleKey{Kind: kind, ID: id}, true
}

// failUpstream maps timetable errors: absence is 404, an exhausted 429 retry
// budget is 503, anything else from upstream is 502.
func failUpstream(c *gin.Context, err error, notFound string) {
	var se *timetable.StatusError
	switch {
	case errors.Is(err, timetable.ErrAbsent), errors.Is(err, timetable.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, notFound)
	case errors.Is(err, timetable.ErrRateLimited), errors.As(err, &se) && se.IsRateLimited():
		c.Header("Retry-After", "60")
		fail(c, http.StatusServiceUnavailable, ErrCodeUpstreamLimited, "timetable upstream is rate limiting")
	default:
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, err.Error())
	}
}
