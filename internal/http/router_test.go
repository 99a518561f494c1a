package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-timetable-notifier/internal/config"
	"github.com/tbourn/go-timetable-notifier/internal/credpool"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/http/handlers"
	"github.com/tbourn/go-timetable-notifier/internal/http/middleware"
	"github.com/tbourn/go-timetable-notifier/internal/repo"
	"github.com/tbourn/go-timetable-notifier/internal/services"
)

// newTestStore opens a unique in-memory database with the full schema.
func newTestStore(t *testing.T) *repo.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return repo.NewStore(db)
}

type nopCreds struct{}

func (nopCreds) Stats() credpool.PoolStats        { return credpool.PoolStats{} }
func (nopCreds) Credentials() []domain.Credential { return nil }
func (nopCreds) AddCredentials(_ context.Context, raw []string) credpool.AddResult {
	return credpool.AddResult{Added: len(raw)}
}
func (nopCreds) SyncFromSource(context.Context) (credpool.Plan, error) {
	return credpool.Plan{}, credpool.ErrNoSource
}
func (nopCreds) HealthCheckAll(context.Context) ([]credpool.HealthResult, error) { return nil, nil }

type echoAssistant struct{}

func (echoAssistant) Complete(_ context.Context, prompt string) (*services.Completion, error) {
	return &services.Completion{Text: prompt}, nil
}

func (echoAssistant) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	n, err := io.Copy(io.Discard, audio)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d bytes", n), nil
}

func baseCfg() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newEngine(t *testing.T, cfg config.Config, deps handlers.Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, deps, cfg)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r := newEngine(t, baseCfg(), handlers.Deps{})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all CORS expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing request id or security headers: %v", w.Header())
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "notifier_http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	var er handlers.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != handlers.ErrCodeNotFound {
		t.Fatalf("404 envelope = %+v err=%v", er, err)
	}

	w = serve(r, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerDocs(t *testing.T) {
	cfg := baseCfg()
	cfg.AdminToken = "s3cret"
	r := newEngine(t, cfg, handlers.Deps{})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode doc: %v", err)
	}
	if doc.BasePath != "/api/v1" {
		t.Fatalf("basePath = %q", doc.BasePath)
	}
	for _, p := range []string{"/schedule/{kind}/{id}", "/credentials", "/dispatch/lessons", "/assist/transcribe"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("doc is missing %s", p)
		}
	}
}

func TestRegisterRoutes_CORSAllowlistEcho(t *testing.T) {
	cfg := baseCfg()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://admin.example.com"}}
	r := newEngine(t, cfg, handlers.Deps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://admin.example.com")
	w := serve(r, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://admin.example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_AdminTokenGuardsAPI(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, g := range []string{"G-1", "G-2"} {
		sub := &domain.Subscription{UserRef: "u-" + g, GroupName: g, NotifyMinutes: 10, IsActive: true}
		if err := repo.CreateSubscription(ctx, store.DB, sub); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	cfg := baseCfg()
	cfg.AdminToken = "s3cret"
	r := newEngine(t, cfg, handlers.Deps{Subscriptions: store})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Fatalf("/health must stay open: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions?page_size=1", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("with token: %d %s", w.Code, w.Body.String())
	}
	var resp handlers.ListSubscriptionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Subscriptions) != 1 || resp.Pagination.Total != 2 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set(middleware.HeaderAdminToken, "s3cret")
	if w := serve(r, req); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"active_subscriptions":2`) {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_BodyLimits(t *testing.T) {
	r := newEngine(t, baseCfg(), handlers.Deps{Credentials: nopCreds{}, Assistant: echoAssistant{}})

	big := `{"keys":["` + strings.Repeat("k", 2<<20) + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credentials", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	if w := serve(r, req); w.Code != http.StatusBadRequest {
		t.Fatalf("oversized JSON body: %d", w.Code)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "voice.ogg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(bytes.Repeat([]byte{0x4f}, 2<<20))
	_ = mw.Close()

	req = httptest.NewRequest(http.MethodPost, "/api/v1/assist/transcribe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := serve(r, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), fmt.Sprintf("%d bytes", 2<<20)) {
		t.Fatalf("voice upload within its cap: %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	r := newEngine(t, baseCfg(), handlers.Deps{Credentials: nopCreds{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credentials/stats", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(r, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, got %d %q", w.Code, w.Header().Get("Content-Encoding"))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/credentials/sync", nil)
	if w := serve(r, req); w.Code != http.StatusConflict {
		t.Fatalf("sync without source: %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimit(t *testing.T) {
	cfg := baseCfg()
	cfg.RateRPS, cfg.RateBurst = 0.001, 2
	r := newEngine(t, cfg, handlers.Deps{})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func Test_limitBody_Overrides(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10, map[string]int64{"/big": 100}))
	read := func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	}
	r.POST("/small", read)
	r.POST("/big", read)

	payload := strings.Repeat("x", 50)
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/small", strings.NewReader(payload))); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("/small = %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/big", strings.NewReader(payload))); w.Code != http.StatusOK {
		t.Fatalf("/big = %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
