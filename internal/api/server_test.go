package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studypack/internal/db"
	"studypack/internal/extract"
	"studypack/internal/llm"
	"studypack/internal/models"
	"studypack/internal/services"
	"studypack/internal/srs"
)

// cannedClient serves fixed JSON per template and a fixed chat answer.
type cannedClient struct {
	responses map[string]string
	answer    string
}

func (c *cannedClient) Generate(ctx context.Context, tmpl llm.Template, vars map[string]string, out any) error {
	payload, ok := c.responses[tmpl.Name]
	if !ok {
		return fmt.Errorf("%w: no canned response for %s", llm.ErrUpstreamRejected, tmpl.Name)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", llm.ErrSchemaMismatch, err)
	}
	if v, ok := out.(llm.Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", llm.ErrSchemaMismatch, err)
		}
	}
	return nil
}

func (c *cannedClient) Chat(ctx context.Context, system string, history []models.ChatTurn, question string) (string, error) {
	return c.answer, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	client := &cannedClient{
		answer: "Light powers it.",
		responses: map[string]string{
			"base_pack": `{
				"title": "Photosynthesis",
				"summary": "How plants make energy.",
				"flashcards": [{"front": "What powers photosynthesis?", "back": "Light."}]
			}`,
			"quiz": `{
				"questions": [{
					"question": "What do plants absorb?",
					"options": ["Light", "Sound", "Heat", "Wind"],
					"correctAnswer": "Light"
				}]
			}`,
		},
	}

	store := services.NewPackStore(conn)
	quiz := services.NewQuizGenerator(client, time.Second)
	packs := services.NewPackGenerator(client, quiz, time.Second)
	tutor := services.NewTutor(client, time.Second)
	reviews := services.NewReviewService(store, srs.StrategySM2, nil, time.Second)

	return NewServer(extract.NewExtractor(nil), packs, quiz, tutor, reviews, store)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON response: %v", method, path, err)
		}
	}
	return rec, decoded
}

func TestCreateAndFetchPack(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	rec, created := doJSON(t, handler, http.MethodPost, "/api/packs", `{"text":"plants convert light into chemical energy"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	packID, _ := created["id"].(string)
	if packID == "" {
		t.Fatal("response missing pack id")
	}
	if created["title"] != "Photosynthesis" {
		t.Errorf("unexpected title %v", created["title"])
	}

	rec, fetched := doJSON(t, handler, http.MethodGet, "/api/packs/"+packID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cards, _ := fetched["flashcards"].([]any)
	if len(cards) != 1 {
		t.Errorf("expected 1 flashcard, got %d", len(cards))
	}
	questions, _ := fetched["quiz"].([]any)
	if len(questions) != 1 {
		t.Errorf("expected 1 quiz question, got %d", len(questions))
	}

	rec, listed := doJSON(t, handler, http.MethodGet, "/api/packs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	packs, _ := listed["packs"].([]any)
	if len(packs) != 1 {
		t.Errorf("expected 1 pack listed, got %d", len(packs))
	}
}

func TestCreatePackRejectsEmptyBody(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server.Handler(), http.MethodPost, "/api/packs", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestReviewFlow(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	doJSON(t, handler, http.MethodPost, "/api/packs", `{"text":"study material"}`)

	rec, due := doJSON(t, handler, http.MethodGet, "/api/cards/due", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cards, _ := due["cards"].([]any)
	if len(cards) != 1 {
		t.Fatalf("expected the fresh card due, got %d", len(cards))
	}
	card, _ := cards[0].(map[string]any)
	cardID, _ := card["id"].(string)

	rec, reviewed := doJSON(t, handler, http.MethodPost, "/api/cards/"+cardID+"/review", `{"outcome":"easy"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated, _ := reviewed["card"].(map[string]any)
	if updated["repetitions"].(float64) != 1 {
		t.Errorf("expected 1 repetition, got %v", updated["repetitions"])
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/cards/"+cardID+"/review", `{"outcome":"impossible"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown outcome, got %d", rec.Code)
	}

	// Nothing due right after an easy review.
	rec, due = doJSON(t, handler, http.MethodGet, "/api/cards/due", "")
	cards, _ = due["cards"].([]any)
	if len(cards) != 0 {
		t.Errorf("expected no cards due, got %d", len(cards))
	}
}

func TestChatEndpoint(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	_, created := doJSON(t, handler, http.MethodPost, "/api/packs", `{"text":"plants and light"}`)
	packID, _ := created["id"].(string)

	rec, resp := doJSON(t, handler, http.MethodPost, "/api/packs/"+packID+"/chat", `{"question":"What powers it?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp["answer"] != "Light powers it." {
		t.Errorf("unexpected answer %v", resp["answer"])
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/api/packs/missing/chat", `{"question":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown pack, got %d", rec.Code)
	}
}

func TestDeletePack(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	_, created := doJSON(t, handler, http.MethodPost, "/api/packs", `{"text":"to be deleted"}`)
	packID, _ := created["id"].(string)

	rec, _ := doJSON(t, handler, http.MethodDelete, "/api/packs/"+packID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec, _ = doJSON(t, handler, http.MethodGet, "/api/packs/"+packID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after deletion, got %d", rec.Code)
	}
}

func TestQuizEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doJSON(t, server.Handler(), http.MethodPost, "/api/quiz", `{"text":"quiz material","count":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	questions, _ := resp["questions"].([]any)
	if len(questions) != 1 {
		t.Errorf("expected the canned question, got %d", len(questions))
	}
}

func TestMethodGuards(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	rec, _ := doJSON(t, handler, http.MethodPut, "/api/packs", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	rec, _ = doJSON(t, handler, http.MethodPost, "/api/health", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestJobEndpoints(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	rec, job := doJSON(t, handler, http.MethodPost, "/api/packs/jobs", `{"text":"async material"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	jobID, _ := job["jobId"].(string)
	if jobID == "" {
		t.Fatal("response missing job id")
	}

	// The job runs in the background; poll briefly for completion.
	deadline := time.Now().Add(2 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		_, polled := doJSON(t, handler, http.MethodGet, "/api/packs/jobs/"+jobID, "")
		status, _ = polled["status"].(string)
		if status == JobStatusComplete || status == JobStatusFailed {
			if packID, _ := polled["packId"].(string); status == JobStatusComplete && packID == "" {
				t.Error("completed job missing pack id")
			}
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status != JobStatusComplete {
		t.Errorf("expected job completion, last status %q", status)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/packs/jobs/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown job, got %d", rec.Code)
	}
}
