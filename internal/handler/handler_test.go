package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/attempt"
	"github.com/stemsi/exstem-mock/internal/event"
	"github.com/stemsi/exstem-mock/internal/kv"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/program"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/scoring"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/session"
	"github.com/stemsi/exstem-mock/internal/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

type testServer struct {
	engine   *gin.Engine
	sessions *service.ExamSessionService
	events   *event.Recorder
}

// Two sections of two questions; option 0 is always correct.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	qs := func(section string) []model.Question {
		return []model.Question{
			{ID: section + "-a", SectionID: section, Prompt: "a", Options: []string{"yes", "no"}},
			{ID: section + "-b", SectionID: section, Prompt: "b", Options: []string{"yes", "no"}},
		}
	}
	registry := program.NewRegistry(program.Program{
		ID:          "demo",
		DisplayName: "Demo",
		Sections: []program.SectionSpec{
			{ID: "s1", DisplayName: "One", TimeLimitSeconds: 60},
			{ID: "s2", DisplayName: "Two", TimeLimitSeconds: 60},
		},
		Scheme: scoring.Scheme{MarksCorrect: 4, Penalty: 1, Percentile: scoring.Linear(50, 50)},
	})
	bank := questionbank.StaticProvider{"demo": {"s1": qs("s1"), "s2": qs("s2")}}

	log := zerolog.Nop()
	rec := &event.Recorder{}
	store := attempt.NewStore(kv.NewMemoryStore(0), "test", 10, log)
	clock := session.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sessions := service.NewExamSessionService(registry, bank, store, rec, clock, log)
	attempts := service.NewAttemptService(store, rec, log)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	sh := NewSessionHandler(sessions, log)
	ah := NewAttemptHandler(attempts, log)
	ph := NewProgramHandler(registry)
	sys := NewSystemHandler(sessions, nil, "memory", log)

	r := gin.New()
	r.GET("/health", sys.Health)
	r.GET("/api/v1/programs", ph.List)
	r.POST("/api/v1/sessions", sh.Start)
	r.GET("/api/v1/sessions/:id", sh.Get)
	r.POST("/api/v1/sessions/:id/answer", sh.Answer)
	r.POST("/api/v1/sessions/:id/flag", sh.Flag)
	r.POST("/api/v1/sessions/:id/navigate", sh.Navigate)
	r.POST("/api/v1/sessions/:id/submit", sh.Submit)
	r.POST("/api/v1/sessions/:id/save", sh.Save)
	r.DELETE("/api/v1/sessions/:id", sh.Abandon)
	r.GET("/api/v1/attempts", ah.List)
	r.GET("/api/v1/attempts/stats", ah.Stats)
	r.GET("/api/v1/attempts/:id", ah.Get)
	r.GET("/api/v1/attempts/:id/review", ah.Review)
	r.DELETE("/api/v1/attempts/:id", ah.Delete)

	return &testServer{engine: r, sessions: sessions, events: rec}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func (s *testServer) start(t *testing.T) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/sessions", gin.H{"program_id": "demo", "variant": "full"})
	if code != http.StatusCreated {
		t.Fatalf("start status = %d, error = %+v", code, env.Error)
	}
	var data struct {
		Session service.SessionView `json:"session"`
	}
	decode(t, env, &data)
	return data.Session.ID
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func wantError(t *testing.T, code int, env envelope, wantStatus int, wantCode response.ErrCode) {
	t.Helper()
	if code != wantStatus || env.Error == nil || env.Error.Code != wantCode {
		t.Fatalf("got %d %+v, want %d %s", code, env.Error, wantStatus, wantCode)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.start(t)
	base := "/api/v1/sessions/" + id

	code, env := s.do(t, http.MethodPost, base+"/answer", gin.H{"question_index": 0, "option_index": 0})
	if code != http.StatusOK {
		t.Fatalf("answer: %d %+v", code, env.Error)
	}
	code, _ = s.do(t, http.MethodPost, base+"/flag", gin.H{"question_index": 0})
	if code != http.StatusOK {
		t.Fatalf("flag: %d", code)
	}
	code, env = s.do(t, http.MethodPost, base+"/navigate", gin.H{"action": "next"})
	if code != http.StatusOK {
		t.Fatalf("navigate: %d %+v", code, env.Error)
	}
	var nav struct {
		State model.SessionState `json:"state"`
	}
	decode(t, env, &nav)
	if nav.State.ActiveQuestionIndex != 1 {
		t.Fatalf("active = %d, want 1", nav.State.ActiveQuestionIndex)
	}

	code, env = s.do(t, http.MethodPost, base+"/submit", nil)
	if code != http.StatusOK {
		t.Fatalf("submit: %d %+v", code, env.Error)
	}
	var sub struct {
		Outcome service.SubmitOutcome `json:"outcome"`
	}
	decode(t, env, &sub)
	if !sub.Outcome.Saved || sub.Outcome.Result.Correct != 1 || sub.Outcome.Result.Unanswered != 3 {
		t.Fatalf("outcome = %+v", sub.Outcome)
	}

	// Intents after submission are rejected.
	code, env = s.do(t, http.MethodPost, base+"/flag", gin.H{"question_index": 1})
	wantError(t, code, env, http.StatusConflict, response.ErrSessionClosed)

	code, env = s.do(t, http.MethodGet, "/api/v1/attempts?exam_type=demo", nil)
	if code != http.StatusOK {
		t.Fatalf("list: %d", code)
	}
	var list struct {
		Attempts []model.AttemptSummary `json:"attempts"`
	}
	decode(t, env, &list)
	if len(list.Attempts) != 1 || list.Attempts[0].ID != sub.Outcome.AttemptID {
		t.Fatalf("attempts = %+v", list.Attempts)
	}

	attemptPath := "/api/v1/attempts/" + sub.Outcome.AttemptID
	code, env = s.do(t, http.MethodGet, attemptPath+"/review?filter=unanswered", nil)
	if code != http.StatusOK {
		t.Fatalf("review: %d %+v", code, env.Error)
	}
	var rv struct {
		Review service.ReviewResult `json:"review"`
	}
	decode(t, env, &rv)
	if len(rv.Review.Items) != 3 {
		t.Fatalf("unanswered items = %d, want 3", len(rv.Review.Items))
	}

	code, env = s.do(t, http.MethodGet, attemptPath+"/review?filter=bogus", nil)
	wantError(t, code, env, http.StatusBadRequest, response.ErrInvalidFilter)

	code, _ = s.do(t, http.MethodDelete, attemptPath, nil)
	if code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	code, env = s.do(t, http.MethodGet, attemptPath, nil)
	wantError(t, code, env, http.StatusNotFound, response.ErrAttemptNotFound)
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.start(t)
	base := "/api/v1/sessions/" + id

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCode   response.ErrCode
	}{
		{"malformed id", http.MethodGet, "/api/v1/sessions/not-a-uuid", nil, http.StatusBadRequest, response.ErrInvalidID},
		{"unknown session", http.MethodGet, "/api/v1/sessions/" + uuid.NewString(), nil, http.StatusNotFound, response.ErrSessionNotFound},
		{"unknown program", http.MethodPost, "/api/v1/sessions", gin.H{"program_id": "gre", "variant": "full"}, http.StatusNotFound, response.ErrUnknownProgram},
		{"unknown section", http.MethodPost, "/api/v1/sessions", gin.H{"program_id": "demo", "variant": "section", "section_id": "s9"}, http.StatusBadRequest, response.ErrUnknownSection},
		{"section variant needs section", http.MethodPost, "/api/v1/sessions", gin.H{"program_id": "demo", "variant": "section"}, http.StatusBadRequest, response.ErrValidation},
		{"not the active question", http.MethodPost, base + "/answer", gin.H{"question_index": 1, "option_index": 0}, http.StatusConflict, response.ErrNotActiveQuestion},
		{"option out of range", http.MethodPost, base + "/answer", gin.H{"question_index": 0, "option_index": 5}, http.StatusUnprocessableEntity, response.ErrOutOfRange},
		{"missing question index", http.MethodPost, base + "/flag", gin.H{}, http.StatusBadRequest, response.ErrValidation},
		{"goto without index", http.MethodPost, base + "/navigate", gin.H{"action": "goto"}, http.StatusBadRequest, response.ErrValidation},
		{"unknown action", http.MethodPost, base + "/navigate", gin.H{"action": "jump"}, http.StatusBadRequest, response.ErrValidation},
		{"save before submit", http.MethodPost, base + "/save", nil, http.StatusConflict, response.ErrNotSubmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(t, tt.method, tt.path, tt.body)
			wantError(t, code, env, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestNavigateAcrossLockedSections(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/sessions/" + s.start(t)

	code, env := s.do(t, http.MethodPost, base+"/navigate", gin.H{"action": "goto", "question_index": 2})
	if code != http.StatusOK {
		t.Fatalf("forward goto: %d %+v", code, env.Error)
	}
	code, env = s.do(t, http.MethodPost, base+"/navigate", gin.H{"action": "goto", "question_index": 0})
	wantError(t, code, env, http.StatusConflict, response.ErrSectionLocked)
}

func TestAnswerClearWithNull(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/sessions/" + s.start(t)

	s.do(t, http.MethodPost, base+"/answer", gin.H{"question_index": 0, "option_index": 1})
	code, env := s.do(t, http.MethodPost, base+"/answer", gin.H{"question_index": 0, "option_index": nil})
	if code != http.StatusOK {
		t.Fatalf("clear: %d %+v", code, env.Error)
	}
	var data struct {
		State model.SessionState `json:"state"`
	}
	decode(t, env, &data)
	if data.State.Answers[0] != nil {
		t.Fatalf("answer = %v, want cleared", *data.State.Answers[0])
	}
}

func TestAbandon(t *testing.T) {
	s := newTestServer(t)
	id := s.start(t)

	code, _ := s.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	if code != http.StatusOK {
		t.Fatalf("abandon: %d", code)
	}
	code, env := s.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	wantError(t, code, env, http.StatusNotFound, response.ErrSessionNotFound)

	code, env = s.do(t, http.MethodGet, "/api/v1/attempts", nil)
	var list struct {
		Attempts []model.AttemptSummary `json:"attempts"`
	}
	decode(t, env, &list)
	if code != http.StatusOK || len(list.Attempts) != 0 {
		t.Fatalf("abandoned session left attempts: %+v", list.Attempts)
	}
}

func TestAttemptPagination(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		id := s.start(t)
		s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/submit", nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts?page=2&per_page=2", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp struct {
		Data struct {
			Attempts []model.AttemptSummary `json:"attempts"`
		} `json:"data"`
		Pagination response.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Attempts) != 1 || resp.Pagination.TotalItems != 3 || resp.Pagination.TotalPages != 2 {
		t.Fatalf("page 2 = %d items, pagination %+v", len(resp.Data.Attempts), resp.Pagination)
	}

	code, env := s.do(t, http.MethodGet, "/api/v1/attempts?per_page=500", nil)
	wantError(t, code, env, http.StatusBadRequest, response.ErrValidation)
}

func TestProgramsAndHealth(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/api/v1/programs", nil)
	var progs struct {
		Programs []programView `json:"programs"`
	}
	decode(t, env, &progs)
	if code != http.StatusOK || len(progs.Programs) != 1 || progs.Programs[0].TotalDurationSeconds != 120 {
		t.Fatalf("programs = %+v", progs.Programs)
	}

	s.start(t)
	code, env = s.do(t, http.MethodGet, "/health", nil)
	var health struct {
		Status       string `json:"status"`
		LiveSessions int    `json:"live_sessions"`
	}
	decode(t, env, &health)
	if code != http.StatusOK || health.Status != "ok" || health.LiveSessions != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{fmt.Errorf("%w: x", kv.ErrQuotaExceeded), http.StatusInsufficientStorage, response.ErrStorageFull},
		{fmt.Errorf("%w: %w", attempt.ErrPersistence, kv.ErrQuotaExceeded), http.StatusInsufficientStorage, response.ErrStorageFull},
		{fmt.Errorf("%w: %w", attempt.ErrPersistence, kv.ErrUnavailable), http.StatusServiceUnavailable, response.ErrPersistenceFailure},
		{questionbank.ErrSectionNotFound, http.StatusServiceUnavailable, response.ErrQuestionBank},
		{session.ErrNotStarted, http.StatusConflict, response.ErrSessionClosed},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("errorStatus(%v) = %d %s, want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}
