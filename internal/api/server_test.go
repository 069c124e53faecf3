package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MikeSquared-Agency/avqqc/internal/qqc"
)

type fakeReader struct {
	metrics map[string][]qqc.SpeakerMetrics
	turns   map[string][]qqc.TurnRecord
	err     error
}

func (f *fakeReader) GetSpeakerMetrics(_ context.Context, name string) ([]qqc.SpeakerMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.metrics[name], nil
}

func (f *fakeReader) GetTurnData(_ context.Context, name string) ([]qqc.TurnRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.turns[name], nil
}

func newTestServer(token string, reader Reader) *Server {
	return NewServer(8760, token, reader, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleReader() *fakeReader {
	interviewer := qqc.RoleInterviewer
	end := "00:00:05.000"
	return &fakeReader{
		metrics: map[string][]qqc.SpeakerMetrics{
			"PRONET-AB12345-interview-day1": {
				{Speaker: "S1", NumQuestions: 3, NumTurns: 4, Role: &interviewer, InterviewerConfidence: 0.8, SubjectConfidence: 0.2},
			},
		},
		turns: map[string][]qqc.TurnRecord{
			"PRONET-AB12345-interview-day1": {
				{Speaker: "S1", StartTime: "00:00:00.000", EndTime: &end},
				{Speaker: "S2", StartTime: "00:00:05.000"},
			},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer("", sampleReader())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer("", sampleReader())

	req := httptest.NewRequest("GET", "/api/v1/qqc/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body struct {
		Agent  string            `json:"agent"`
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Agent != "avqqc" {
		t.Errorf("expected agent avqqc, got %q", body.Agent)
	}
	if body.Status != "active" {
		t.Errorf("expected status active, got %q", body.Status)
	}
}

func TestStatusEndpoint_Checks(t *testing.T) {
	srv := newTestServer("", sampleReader())
	srv.AddCheck("database", func(context.Context) error { return nil })
	srv.AddCheck("nats", func(context.Context) error { return errors.New("not connected") })

	req := httptest.NewRequest("GET", "/api/v1/qqc/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("expected status degraded, got %q", body.Status)
	}
	if body.Checks["database"] != "ok" || body.Checks["nats"] != "not connected" {
		t.Errorf("unexpected checks %v", body.Checks)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer("", sampleReader())

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSpeakerMetricsEndpoint(t *testing.T) {
	srv := newTestServer("", sampleReader())

	req := httptest.NewRequest("GET", "/api/v1/interviews/PRONET-AB12345-interview-day1/speaker-metrics", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		InterviewName  string                    `json:"interview_name"`
		SpeakerMetrics map[string]map[string]any `json:"speaker_metrics"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	s1, ok := body.SpeakerMetrics["S1"]
	if !ok {
		t.Fatalf("expected S1 in response, got %v", body.SpeakerMetrics)
	}
	if s1["role"] != "INTERVIEWER" {
		t.Errorf("expected role INTERVIEWER, got %v", s1["role"])
	}
	if s1["num_questions"] != float64(3) {
		t.Errorf("expected 3 questions, got %v", s1["num_questions"])
	}
}

func TestTurnsEndpoint(t *testing.T) {
	srv := newTestServer("", sampleReader())

	req := httptest.NewRequest("GET", "/api/v1/interviews/PRONET-AB12345-interview-day1/turns", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Turns []qqc.TurnRecord `json:"turns"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(body.Turns))
	}
	if body.Turns[1].EndTime != nil {
		t.Errorf("expected last turn without end time, got %v", *body.Turns[1].EndTime)
	}
}

func TestInterviewEndpoints_Missing(t *testing.T) {
	srv := newTestServer("", sampleReader())

	for _, path := range []string{
		"/api/v1/interviews/unknown/speaker-metrics",
		"/api/v1/interviews/unknown/turns",
	} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestInterviewEndpoints_ReaderError(t *testing.T) {
	srv := newTestServer("", &fakeReader{err: errors.New("db down")})

	req := httptest.NewRequest("GET", "/api/v1/interviews/x/turns", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer("secret", sampleReader())
	path := "/api/v1/interviews/PRONET-AB12345-interview-day1/turns"

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}

	// Health stays open.
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected open /health, got %d", w.Code)
	}
}
