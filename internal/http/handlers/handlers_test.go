package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-timetable-notifier/internal/credpool"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/repo"
	"github.com/tbourn/go-timetable-notifier/internal/services"
	"github.com/tbourn/go-timetable-notifier/internal/timetable"
)

//
// Fakes
//

type fakeSchedules struct {
	schedules   map[string]*domain.Schedule
	errs        map[string]error
	exams       map[string][]domain.Exam
	groups      []string
	invalidated []domain.ScheduleKey
}

func (f *fakeSchedules) GetSchedule(_ context.Context, key domain.ScheduleKey) (*domain.Schedule, error) {
	if err := f.errs[key.ID]; err != nil {
		return nil, err
	}
	if s, ok := f.schedules[key.ID]; ok {
		return s, nil
	}
	return nil, timetable.ErrAbsent
}

func (f *fakeSchedules) GetExams(_ context.Context, group string) ([]domain.Exam, error) {
	if err := f.errs[group]; err != nil {
		return nil, err
	}
	return f.exams[group], nil
}

func (f *fakeSchedules) ActualGroups(context.Context) ([]string, error) { return f.groups, nil }

func (f *fakeSchedules) InvalidateSchedule(key domain.ScheduleKey) {
	f.invalidated = append(f.invalidated, key)
}

func (f *fakeSchedules) Stats() timetable.GatewayStats {
	return timetable.GatewayStats{UpstreamCalls: 7, Limit: 5}
}

type fakeSubs struct {
	all      []domain.Subscription
	trackers []domain.Subscriber
	blocked  map[string]bool
	err      error
}

func (f *fakeSubs) ActiveSubscriptionsPage(_ context.Context, offset, limit int) ([]domain.Subscription, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	total := int64(len(f.all))
	if offset >= len(f.all) {
		return nil, total, nil
	}
	end := min(offset+limit, len(f.all))
	return f.all[offset:end], total, nil
}

func (f *fakeSubs) ActiveGroups(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var out []string
	for _, s := range f.all {
		if s.GroupName != "" && !seen[s.GroupName] {
			seen[s.GroupName] = true
			out = append(out, s.GroupName)
		}
	}
	return out, nil
}

func (f *fakeSubs) GradeTrackers(context.Context) ([]domain.Subscriber, error) {
	return f.trackers, f.err
}

func (f *fakeSubs) Subscriber(_ context.Context, userRef string) (*domain.Subscriber, []domain.Subscription, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	var owned []domain.Subscription
	for _, s := range f.all {
		if s.UserRef == userRef {
			owned = append(owned, s)
		}
	}
	if owned == nil {
		return nil, nil, repo.ErrNotFound
	}
	return &domain.Subscriber{UserRef: userRef, Blocked: f.blocked[userRef]}, owned, nil
}

func (f *fakeSubs) UnblockSubscriber(_ context.Context, userRef string) error {
	if _, ok := f.blocked[userRef]; !ok {
		return repo.ErrNotFound
	}
	f.blocked[userRef] = false
	return nil
}

func (f *fakeSubs) Counts(context.Context, time.Time) (repo.Counts, error) {
	return repo.Counts{Subscribers: int64(len(f.all))}, f.err
}

type fakeCreds struct {
	creds   []domain.Credential
	plan    credpool.Plan
	syncErr error
	health  []credpool.HealthResult
	added   []string
}

func (f *fakeCreds) Stats() credpool.PoolStats {
	return credpool.PoolStats{TotalKeys: len(f.creds), ActiveKeys: len(f.creds)}
}

func (f *fakeCreds) Credentials() []domain.Credential { return f.creds }

func (f *fakeCreds) AddCredentials(_ context.Context, raw []string) credpool.AddResult {
	var res credpool.AddResult
	for _, k := range raw {
		if len(k) < 8 {
			res.Skipped++
			continue
		}
		f.added = append(f.added, k)
		res.Added++
	}
	return res
}

func (f *fakeCreds) SyncFromSource(context.Context) (credpool.Plan, error) {
	return f.plan, f.syncErr
}

func (f *fakeCreds) HealthCheckAll(context.Context) ([]credpool.HealthResult, error) {
	return f.health, nil
}

type fakeLessons struct {
	rep services.TickReport
	err error
}

func (f fakeLessons) RunTick(context.Context) (services.TickReport, error) { return f.rep, f.err }

type fakeExams struct {
	rep services.ExamReport
	err error
}

func (f fakeExams) RunTick(context.Context) (services.ExamReport, error) { return f.rep, f.err }

type fakeGrades struct {
	gotUser   string
	gotGrades []domain.GradeRecord
}

func (f *fakeGrades) Check(_ context.Context, userRef string, grades []domain.GradeRecord) (services.GradeResult, error) {
	if userRef == "" {
		return services.GradeResult{}, services.ErrEmptyUserRef
	}
	f.gotUser, f.gotGrades = userRef, grades
	return services.GradeResult{Baseline: true, Fingerprint: "fp"}, nil
}

type fakeAssistant struct {
	err error
}

func (f fakeAssistant) Complete(_ context.Context, prompt string) (*services.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.Completion{Text: "re: " + prompt, Model: "m", CredentialID: "c1", Attempts: 1}, nil
}

func (f fakeAssistant) Transcribe(_ context.Context, name string, audio io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(audio)
	return name + ":" + string(b), nil
}

//
// Helpers
//

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/schedule/:kind/:id", h.GetSchedule)
	r.DELETE("/schedule/:kind/:id", h.InvalidateSchedule)
	r.GET("/exams/:group", h.GetExams)
	r.GET("/groups", h.ListGroups)
	r.GET("/cache/stats", h.CacheStats)
	r.GET("/subscriptions", h.ListSubscriptions)
	r.GET("/subscriptions/groups", h.SubscribedGroups)
	r.GET("/subscribers/grades", h.GradeTrackers)
	r.GET("/subscribers/:user", h.GetSubscriber)
	r.POST("/subscribers/:user/unblock", h.UnblockSubscriber)
	r.GET("/stats", h.StoreStats)
	r.GET("/credentials", h.ListCredentials)
	r.GET("/credentials/stats", h.CredentialStats)
	r.POST("/credentials", h.AddCredentials)
	r.POST("/credentials/sync", h.SyncCredentials)
	r.POST("/credentials/health", h.CheckCredentials)
	r.POST("/dispatch/lessons", h.DispatchLessons)
	r.POST("/dispatch/exams", h.DispatchExams)
	r.POST("/grades/:user", h.PushGrades)
	r.POST("/assist/complete", h.Complete)
	r.POST("/assist/transcribe", h.Transcribe)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, w).Code
}

//
// Tests
//

func TestSchedules(t *testing.T) {
	sched := &fakeSchedules{
		schedules: map[string]*domain.Schedule{
			"G-1": {Key: domain.ScheduleKey{Kind: domain.KindGroup, ID: "G-1"}, Days: []domain.ScheduleDay{{Date: "2025-03-04"}}},
		},
		errs: map[string]error{
			"limited": fmt.Errorf("fetch: %w", timetable.ErrRateLimited),
			"raw429":  &timetable.StatusError{Endpoint: "schedule", StatusCode: http.StatusTooManyRequests},
			"broken":  &timetable.StatusError{Endpoint: "schedule", StatusCode: http.StatusInternalServerError},
		},
	}
	r := newRouter(New(Deps{Schedules: sched}))

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/schedule/group/G-1", http.StatusOK, ""},
		{"/schedule/GROUP/G-1", http.StatusOK, ""},
		{"/schedule/room/G-1", http.StatusBadRequest, ErrCodeBadRequest},
		{"/schedule/teacher/nobody", http.StatusNotFound, ErrCodeNotFound},
		{"/schedule/group/limited", http.StatusServiceUnavailable, ErrCodeUpstreamLimited},
		{"/schedule/group/raw429", http.StatusServiceUnavailable, ErrCodeUpstreamLimited},
		{"/schedule/group/broken", http.StatusBadGateway, ErrCodeUpstreamFailed},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := do(t, r, http.MethodGet, tc.path, "")
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.code != "" && errCode(t, w) != tc.code {
				t.Fatalf("code = %q; want %q", errCode(t, w), tc.code)
			}
		})
	}

	resp := decode[ScheduleResponse](t, do(t, r, http.MethodGet, "/schedule/group/G-1", ""))
	if resp.Key.Kind != domain.KindGroup || resp.Schedule == nil || len(resp.Schedule.Days) != 1 {
		t.Fatalf("unexpected schedule response: %+v", resp)
	}
}

func TestInvalidateSchedule(t *testing.T) {
	sched := &fakeSchedules{}
	r := newRouter(New(Deps{Schedules: sched}))

	w := do(t, r, http.MethodDelete, "/schedule/teacher/42", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	want := domain.ScheduleKey{Kind: domain.KindTeacher, ID: "42"}
	if len(sched.invalidated) != 1 || sched.invalidated[0] != want {
		t.Fatalf("invalidated = %+v", sched.invalidated)
	}
}

func TestExamsGroupsAndCacheStats(t *testing.T) {
	sched := &fakeSchedules{
		exams:  map[string][]domain.Exam{"G-1": {{LessonName: "Math", Date: "2025-06-10"}}},
		groups: []string{"G-1", "G-2"},
	}
	r := newRouter(New(Deps{Schedules: sched}))

	exams := decode[ExamsResponse](t, do(t, r, http.MethodGet, "/exams/G-1", ""))
	if exams.Group != "G-1" || len(exams.Exams) != 1 {
		t.Fatalf("exams = %+v", exams)
	}
	w := do(t, r, http.MethodGet, "/exams/G-9", "")
	if !strings.Contains(w.Body.String(), `"exams":[]`) {
		t.Fatalf("empty exam list must encode as []: %s", w.Body.String())
	}

	groups := decode[GroupsResponse](t, do(t, r, http.MethodGet, "/groups", ""))
	if len(groups.Groups) != 2 {
		t.Fatalf("groups = %+v", groups)
	}

	stats := decode[timetable.GatewayStats](t, do(t, r, http.MethodGet, "/cache/stats", ""))
	if stats.UpstreamCalls != 7 || stats.Limit != 5 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestListSubscriptions_Paginates(t *testing.T) {
	subs := &fakeSubs{all: []domain.Subscription{{ID: "a", GroupName: "G-1"}, {ID: "b", GroupName: "G-2"}, {ID: "c", GroupName: "G-1"}}}
	r := newRouter(New(Deps{Subscriptions: subs}))

	resp := decode[ListSubscriptionsResponse](t, do(t, r, http.MethodGet, "/subscriptions?page=2&page_size=1", ""))
	if len(resp.Subscriptions) != 1 || resp.Subscriptions[0].ID != "b" {
		t.Fatalf("page = %+v", resp.Subscriptions)
	}
	p := resp.Pagination
	if p.Page != 2 || p.PageSize != 1 || p.Total != 3 || p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("pagination = %+v", p)
	}

	last := decode[ListSubscriptionsResponse](t, do(t, r, http.MethodGet, "/subscriptions?page=9", ""))
	if last.Subscriptions == nil || len(last.Subscriptions) != 0 || last.Pagination.HasNext {
		t.Fatalf("past-the-end page = %+v", last)
	}

	counts := decode[repo.Counts](t, do(t, r, http.MethodGet, "/stats", ""))
	if counts.Subscribers != 3 {
		t.Fatalf("counts = %+v", counts)
	}

	groups := decode[SubscribedGroupsResponse](t, do(t, r, http.MethodGet, "/subscriptions/groups", ""))
	if len(groups.Groups) != 2 || groups.Groups[0] != "G-1" {
		t.Fatalf("groups = %+v", groups)
	}
	trackers := decode[GradeTrackersResponse](t, do(t, r, http.MethodGet, "/subscribers/grades", ""))
	if trackers.Subscribers == nil || len(trackers.Subscribers) != 0 {
		t.Fatalf("trackers = %+v", trackers)
	}

	subs.err = errors.New("db down")
	w := do(t, r, http.MethodGet, "/subscriptions", "")
	if w.Code != http.StatusInternalServerError || errCode(t, w) != ErrCodeListFailed {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestSubscriberLookupAndUnblock(t *testing.T) {
	subs := &fakeSubs{
		all:     []domain.Subscription{{ID: "a", UserRef: "u1", GroupName: "G-1"}},
		blocked: map[string]bool{"u1": true},
	}
	r := newRouter(New(Deps{Subscriptions: subs}))

	got := decode[SubscriberResponse](t, do(t, r, http.MethodGet, "/subscribers/u1", ""))
	if got.Subscriber == nil || !got.Subscriber.Blocked || len(got.Subscriptions) != 1 {
		t.Fatalf("subscriber = %+v", got)
	}
	if w := do(t, r, http.MethodGet, "/subscribers/ghost", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown subscriber: %d", w.Code)
	}

	if w := do(t, r, http.MethodPost, "/subscribers/u1/unblock", ""); w.Code != http.StatusNoContent {
		t.Fatalf("unblock: %d %s", w.Code, w.Body.String())
	}
	if subs.blocked["u1"] {
		t.Fatalf("u1 still blocked")
	}
	if w := do(t, r, http.MethodPost, "/subscribers/ghost/unblock", ""); w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("unblock unknown: %d", w.Code)
	}
}

func TestCredentials(t *testing.T) {
	creds := &fakeCreds{
		creds: []domain.Credential{{ID: "c1", Secret: "gsk_supersecretvalue", IsActive: true}},
		plan:  credpool.Plan{ToAdd: []string{"gsk_brandnewsecret1"}, ToDeactivate: []string{"c9"}},
		health: []credpool.HealthResult{
			{ID: "c1", OK: true, Status: 200},
			{ID: "c2", OK: false, Status: 401, Error: "invalid"},
		},
	}
	r := newRouter(New(Deps{Credentials: creds}))

	w := do(t, r, http.MethodGet, "/credentials", "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "supersecret") {
		t.Fatalf("listing leaks secret or failed: %d %s", w.Code, w.Body.String())
	}
	list := decode[ListCredentialsResponse](t, w)
	if len(list.Credentials) != 1 || list.Credentials[0].Masked != "gsk_...alue" {
		t.Fatalf("list = %+v", list)
	}

	stats := decode[credpool.PoolStats](t, do(t, r, http.MethodGet, "/credentials/stats", ""))
	if stats.TotalKeys != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	w = do(t, r, http.MethodPost, "/credentials", `{"keys":["gsk_0123456789","short"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d", w.Code)
	}
	if res := decode[credpool.AddResult](t, w); res.Added != 1 || res.Skipped != 1 {
		t.Fatalf("add result = %+v", res)
	}
	if w := do(t, r, http.MethodPost, "/credentials", `{"keys":["short"]}`); w.Code != http.StatusOK {
		t.Fatalf("add with nothing new = %d", w.Code)
	}
	for _, body := range []string{`{"keys":[]}`, `{`, `{"other":1}`} {
		if w := do(t, r, http.MethodPost, "/credentials", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, w.Code)
		}
	}

	w = do(t, r, http.MethodPost, "/credentials/sync", "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "brandnewsecret") {
		t.Fatalf("sync leaks secret or failed: %d %s", w.Code, w.Body.String())
	}
	sync := decode[SyncResponse](t, w)
	if len(sync.Added) != 1 || len(sync.Deactivated) != 1 || sync.Reactivated == nil {
		t.Fatalf("sync = %+v", sync)
	}

	creds.syncErr = credpool.ErrNoSource
	w = do(t, r, http.MethodPost, "/credentials/sync", "")
	if w.Code != http.StatusConflict || errCode(t, w) != ErrCodeNoSource {
		t.Fatalf("no source: %d %s", w.Code, w.Body.String())
	}

	health := decode[HealthResponse](t, do(t, r, http.MethodPost, "/credentials/health", ""))
	if len(health.Results) != 2 || health.Healthy != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestDispatch(t *testing.T) {
	r := newRouter(New(Deps{
		Lessons: fakeLessons{rep: services.TickReport{Skipped: true}},
		Exams:   fakeExams{err: errors.New("store down")},
	}))

	w := do(t, r, http.MethodPost, "/dispatch/lessons", "")
	if w.Code != http.StatusOK || !decode[services.TickReport](t, w).Skipped {
		t.Fatalf("lessons: %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/dispatch/exams", "")
	if w.Code != http.StatusInternalServerError || errCode(t, w) != ErrCodeTickFailed {
		t.Fatalf("exams: %d %s", w.Code, w.Body.String())
	}
}

func TestPushGrades(t *testing.T) {
	grades := &fakeGrades{}
	r := newRouter(New(Deps{Grades: grades}))

	w := do(t, r, http.MethodPost, "/grades/42", `{"grades":[{"lesson_name":"Math","semester":1,"course":1,"control_type":"exam","mark":5}]}`)
	if w.Code != http.StatusOK || !decode[services.GradeResult](t, w).Baseline {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if grades.gotUser != "42" || len(grades.gotGrades) != 1 || grades.gotGrades[0].Mark != 5 {
		t.Fatalf("tracker got %q %+v", grades.gotUser, grades.gotGrades)
	}

	if w := do(t, r, http.MethodPost, "/grades/%20", `{"grades":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("blank user: %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/grades/42", `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad body: %d", w.Code)
	}
}

func TestComplete_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusOK, ""},
		{services.ErrEmptyPrompt, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrTooLong, http.StatusRequestEntityTooLarge, ErrCodeTooLarge},
		{services.ErrNoCredentialAvailable, http.StatusServiceUnavailable, ErrCodeNoCredential},
		{errors.Join(services.ErrInferenceRateLimited, errors.New("429")), http.StatusTooManyRequests, ErrCodeRateLimited},
		{errors.New("boom"), http.StatusBadGateway, ErrCodeInferenceFailed},
	}
	for _, tc := range cases {
		r := newRouter(New(Deps{Assistant: fakeAssistant{err: tc.err}}))
		w := do(t, r, http.MethodPost, "/assist/complete", `{"prompt":"hi"}`)
		if w.Code != tc.status {
			t.Fatalf("err %v: status = %d; want %d", tc.err, w.Code, tc.status)
		}
		if tc.code != "" && errCode(t, w) != tc.code {
			t.Fatalf("err %v: code = %q; want %q", tc.err, errCode(t, w), tc.code)
		}
		if tc.err == nil && decode[services.Completion](t, w).Text != "re: hi" {
			t.Fatalf("completion body = %s", w.Body.String())
		}
	}

	r := newRouter(New(Deps{Assistant: fakeAssistant{}}))
	if w := do(t, r, http.MethodPost, "/assist/complete", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing prompt: %d", w.Code)
	}
}

func TestTranscribe(t *testing.T) {
	r := newRouter(New(Deps{Assistant: fakeAssistant{}}))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "voice.ogg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("OggS"))
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/assist/transcribe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if got := decode[TranscribeResponse](t, w).Text; got != "voice.ogg:OggS" {
		t.Fatalf("text = %q", got)
	}

	if w := do(t, r, http.MethodPost, "/assist/transcribe", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing file: %d", w.Code)
	}
}

func TestUnconfiguredDepsAnswer404(t *testing.T) {
	r := newRouter(New(Deps{}))
	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/schedule/group/G-1"},
		{http.MethodGet, "/groups"},
		{http.MethodGet, "/subscriptions"},
		{http.MethodGet, "/subscriptions/groups"},
		{http.MethodGet, "/credentials/stats"},
		{http.MethodPost, "/dispatch/lessons"},
		{http.MethodPost, "/dispatch/exams"},
		{http.MethodPost, "/assist/complete"},
	} {
		if w := do(t, r, rt.method, rt.path, ""); w.Code != http.StatusNotFound {
			t.Fatalf("%s %s: status = %d", rt.method, rt.path, w.Code)
		}
	}
}
