package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/repo"
	"github.com/tbourn/go-timetable-notifier/internal/utils"
)

// ListSubscriptionsResponse wraps a page of subscriptions.
type ListSubscriptionsResponse struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
	Pagination    Pagination            `json:"pagination"`
}

// ListSubscriptions pages through active subscriptions of reachable
// subscribers. Query: page (>=1), page_size (1..100).
//
// @ID          listSubscriptions
// @Summary     List active subscriptions (paginated)
// @Tags        Subscriptions
// @Produce     json
// @Security    AdminToken
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListSubscriptionsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscriptions [get]
func (h *Handlers) ListSubscriptions(c *gin.Context) {
	if h.d.Subscriptions == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriptions not configured")
		return
	}
	page, size := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	subs, total, err := h.d.Subscriptions.ActiveSubscriptionsPage(c.Request.Context(), utils.Offset(page, size), size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list subscriptions")
		return
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	pages := utils.TotalPages(total, size)
	ok(c, http.StatusOK, ListSubscriptionsResponse{
		Subscriptions: subs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   size,
			Total:      total,
			TotalPages: pages,
			HasNext:    page < pages,
		},
	})
}

// SubscribedGroupsResponse lists the groups the dispatchers poll.
type SubscribedGroupsResponse struct {
	Groups []string `json:"groups"`
}

// GradeTrackersResponse lists reachable subscribers that opted into grade
// notifications.
type GradeTrackersResponse struct {
	Subscribers []domain.Subscriber `json:"subscribers"`
}

// SubscribedGroups lists the distinct groups of active subscriptions.
//
// @ID          subscribedGroups
// @Summary     Groups with at least one active subscription
// @Tags        Subscriptions
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.SubscribedGroupsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscriptions/groups [get]
func (h *Handlers) SubscribedGroups(c *gin.Context) {
	if h.d.Subscriptions == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriptions not configured")
		return
	}
	groups, err := h.d.Subscriptions.ActiveGroups(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list groups")
		return
	}
	ok(c, http.StatusOK, SubscribedGroupsResponse{Groups: nonNil(groups)})
}

// GradeTrackers lists subscribers whose record books are tracked.
//
// @ID          gradeTrackers
// @Summary     Subscribers tracking grades
// @Tags        Subscriptions
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.GradeTrackersResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscribers/grades [get]
func (h *Handlers) GradeTrackers(c *gin.Context) {
	if h.d.Subscriptions == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriptions not configured")
		return
	}
	subs, err := h.d.Subscriptions.GradeTrackers(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list grade trackers")
		return
	}
	if subs == nil {
		subs = []domain.Subscriber{}
	}
	ok(c, http.StatusOK, GradeTrackersResponse{Subscribers: subs})
}

// SubscriberResponse is one subscriber with its subscriptions.
type SubscriberResponse struct {
	Subscriber    *domain.Subscriber    `json:"subscriber"`
	Subscriptions []domain.Subscription `json:"subscriptions"`
}

// GetSubscriber shows one subscriber, blocked or not, and all of its
// subscriptions.
//
// @ID          getSubscriber
// @Summary     Get a subscriber and its subscriptions
// @Tags        Subscriptions
// @Produce     json
// @Security    AdminToken
// @Param       user  path  string  true  "Subscriber reference"
// @Success     200  {object}  handlers.SubscriberResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown subscriber"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscribers/{user} [get]
func (h *Handlers) GetSubscriber(c *gin.Context) {
	if h.d.Subscriptions == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriptions not configured")
		return
	}
	sub, subs, err := h.d.Subscriptions.Subscriber(c.Request.Context(), strings.TrimSpace(c.Param("user")))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriber not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load subscriber")
		return
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	ok(c, http.StatusOK, SubscriberResponse{Subscriber: sub, Subscriptions: subs})
}

// UnblockSubscriber clears the unreachable flag set by a failed delivery, so
// the dispatchers pick the subscriber up again.
//
// @ID          unblockSubscriber
// @Summary     Mark a subscriber reachable again
// @Tags        Subscriptions
// @Security    AdminToken
// @Param       user  path  string  true  "Subscriber reference"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown subscriber"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscribers/{user}/unblock [post]
func (h *Handlers) UnblockSubscriber(c *gin.Context) {
	if h.d.Subscriptions == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriptions not configured")
		return
	}
	err := h.d.Subscriptions.UnblockSubscriber(c.Request.Context(), strings.TrimSpace(c.Param("user")))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriber not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not unblock subscriber")
	}
}

// StoreStats reports row counts of the notifier's tables.
//
// @ID          storeStats
// @Summary     Row counts of the notifier store
// @Tags        Subscriptions
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  repo.Counts
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) StoreStats(c *gin.Context) {
	if h.d.Subscriptions == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "subscriptions not configured")
		return
	}
	counts, err := h.d.Subscriptions.Counts(c.Request.Context(), h.d.Now().UTC())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not count records")
		return
	}
	ok(c, http.StatusOK, counts)
}
