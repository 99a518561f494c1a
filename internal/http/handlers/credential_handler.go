// Credential pool HTTP handlers.
//
// Secrets never leave the process: listings and sync plans carry only
// credential ids and masked secrets.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timetable-notifier/internal/credpool"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// CredentialView is a credential as exposed over HTTP.
type CredentialView struct {
	domain.Credential
	Masked string `json:"masked"`
}

// ListCredentialsResponse wraps every credential of the pool.
type ListCredentialsResponse struct {
	Credentials []CredentialView `json:"credentials"`
}

// AddCredentialsRequest is the payload of POST /credentials.
type AddCredentialsRequest struct {
	Keys []string `json:"keys" binding:"required,min=1,max=100"`
}

// SyncResponse describes what reconciling with the source changed.
type SyncResponse struct {
	Added       []string `json:"added"`
	Deactivated []string `json:"deactivated"`
	Reactivated []string `json:"reactivated"`
}

// HealthResponse wraps the probe results of every active credential.
type HealthResponse struct {
	Results []credpool.HealthResult `json:"results"`
	Healthy int                     `json:"healthy"`
}

// CredentialStats reports pool-wide counters.
//
// @ID          credentialStats
// @Summary     Credential pool counters
// @Tags        Credentials
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  credpool.PoolStats
// @Router      /credentials/stats [get]
func (h *Handlers) CredentialStats(c *gin.Context) {
	if h.d.Credentials == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "credential pool not configured")
		return
	}
	ok(c, http.StatusOK, h.d.Credentials.Stats())
}

// ListCredentials lists every credential with its quota state.
//
// @ID          listCredentials
// @Summary     List credentials with masked secrets
// @Tags        Credentials
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.ListCredentialsResponse
// @Router      /credentials [get]
func (h *Handlers) ListCredentials(c *gin.Context) {
	if h.d.Credentials == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "credential pool not configured")
		return
	}
	creds := h.d.Credentials.Credentials()
	out := make([]CredentialView, 0, len(creds))
	for _, cr := range creds {
		out = append(out, CredentialView{Credential: cr, Masked: credpool.Mask(cr.Secret)})
	}
	ok(c, http.StatusOK, ListCredentialsResponse{Credentials: out})
}

// AddCredentials adds keys to the pool. Known and invalid keys are skipped
// and reported; the call itself succeeds unless the body is malformed.
//
// @ID          addCredentials
// @Summary     Add credentials to the pool
// @Tags        Credentials
// @Accept      json
// @Produce     json
// @Security    AdminToken
//
// @Param       body  body  handlers.AddCredentialsRequest  true  "Keys to add"
//
// @Success     201  {object}  credpool.AddResult  "At least one key added"
// @Success     200  {object}  credpool.AddResult  "Nothing added"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Router      /credentials [post]
func (h *Handlers) AddCredentials(c *gin.Context) {
	if h.d.Credentials == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "credential pool not configured")
		return
	}
	var req AddCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res := h.d.Credentials.AddCredentials(c.Request.Context(), req.Keys)
	status := http.StatusOK
	if res.Added > 0 {
		status = http.StatusCreated
	}
	ok(c, status, res)
}

// SyncCredentials reconciles the pool with the configured key source.
//
// @ID          syncCredentials
// @Summary     Reconcile the pool with the configured key source
// @Tags        Credentials
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.SyncResponse
// @Failure     409  {object}  handlers.ErrorResponse  "No key source configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credentials/sync [post]
func (h *Handlers) SyncCredentials(c *gin.Context) {
	if h.d.Credentials == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "credential pool not configured")
		return
	}
	plan, err := h.d.Credentials.SyncFromSource(c.Request.Context())
	if err != nil {
		if errors.Is(err, credpool.ErrNoSource) {
			fail(c, http.StatusConflict, ErrCodeNoSource, "no credential source configured")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	added := make([]string, 0, len(plan.ToAdd))
	for _, s := range plan.ToAdd {
		added = append(added, credpool.Mask(s))
	}
	ok(c, http.StatusOK, SyncResponse{
		Added:       added,
		Deactivated: nonNil(plan.ToDeactivate),
		Reactivated: nonNil(plan.ToReactivate),
	})
}

// CheckCredentials probes every active credential. Results are diagnostics
// only and never change which credentials are active.
//
// @ID          checkCredentials
// @Summary     Probe every active credential
// @Tags        Credentials
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.HealthResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /credentials/health [post]
func (h *Handlers) CheckCredentials(c *gin.Context) {
	if h.d.Credentials == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "credential pool not configured")
		return
	}
	results, err := h.d.Credentials.HealthCheckAll(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	resp := HealthResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []credpool.HealthResult{}
	}
	for _, r := range results {
		if r.OK {
			resp.Healthy++
		}
	}
	ok(c, http.StatusOK, resp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
