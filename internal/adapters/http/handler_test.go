package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/coax-games/coax-api/internal/adapters/http"
	memstore "github.com/coax-games/coax-api/internal/adapters/storage/memory"
	"github.com/coax-games/coax-api/internal/app/game"
	"github.com/coax-games/coax-api/internal/domain"
)

type stubOracle struct {
	delta int
}

func (o *stubOracle) Generate(_ context.Context, _ domain.GenerateInput) (*domain.GenerateOutput, error) {
	return &domain.GenerateOutput{Reply: "嗯，我听着呢。", ForgivenessDelta: o.delta}, nil
}

func newTestServer(t *testing.T, delta int) http.Handler {
	t.Helper()

	scenes := memstore.NewSceneStore()
	scenes.AddScene(domain.Scene{
		ID:                 "late-again",
		Title:              "又迟到了",
		Category:           "恋爱",
		Role:               "女朋友",
		AngryReason:        "你又让我等了一个小时",
		Difficulty:         "中",
		Status:             "active",
		InitialForgiveness: 40,
		MaxInteractions:    5,
	})

	svc := game.NewService(scenes, &stubOracle{delta: delta},
		memstore.NewSessionStore(), memstore.NewRecordStore())
	return httpadapter.NewServer(svc)
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, 0)
	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestListScenes(t *testing.T) {
	srv := newTestServer(t, 0)
	w := doJSON(t, srv, http.MethodGet, "/scenes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Scenes []struct {
			ID          string `json:"id"`
			AngryReason string `json:"angry_reason"`
		} `json:"scenes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Scenes) != 1 || resp.Scenes[0].ID != "late-again" {
		t.Fatalf("unexpected scenes: %+v", resp.Scenes)
	}
}

func TestStartSessionUnknownScene(t *testing.T) {
	srv := newTestServer(t, 0)
	w := doJSON(t, srv, http.MethodPost, "/sessions",
		map[string]string{"user_id": "u1", "scene_id": "nope"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body=%s", w.Code, w.Body.String())
	}
}

type sessionJSON struct {
	ID          string `json:"id"`
	Forgiveness int    `json:"forgiveness"`
	Turn        int    `json:"turn"`
	MaxTurns    int    `json:"max_turns"`
	Ended       bool   `json:"ended"`
	Messages    []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"messages"`
}

func startSession(t *testing.T, srv http.Handler) sessionJSON {
	t.Helper()

	w := doJSON(t, srv, http.MethodPost, "/sessions",
		map[string]string{"user_id": "u1", "scene_id": "late-again"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var sess sessionJSON
	if err := json.NewDecoder(w.Body).Decode(&sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestStartSessionOpensWithAngryReason(t *testing.T) {
	srv := newTestServer(t, 0)
	sess := startSession(t, srv)

	if sess.Forgiveness != 40 || sess.Turn != 0 || sess.MaxTurns != 5 {
		t.Errorf("unexpected session state: %+v", sess)
	}
	if len(sess.Messages) != 1 || sess.Messages[0].Role != "ai" {
		t.Fatalf("expected one AI opening line, got %+v", sess.Messages)
	}
	if sess.Messages[0].Text != "你又让我等了一个小时" {
		t.Errorf("opening line = %q", sess.Messages[0].Text)
	}
}

func TestPlayToVictory(t *testing.T) {
	srv := newTestServer(t, 30)
	sess := startSession(t, srv)

	// 40 → 70 → 100
	type turnJSON struct {
		Forgiveness int  `json:"forgiveness"`
		Ended       bool `json:"ended"`
		Outcome     *struct {
			Success bool `json:"success"`
		} `json:"outcome"`
		Summary *struct {
			IsSuccess        bool `json:"is_success"`
			InteractionCount int  `json:"interaction_count"`
		} `json:"summary"`
	}
	var last turnJSON
	for turn := 1; turn <= 2; turn++ {
		w := doJSON(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/messages",
			map[string]string{"text": "真的对不起"})
		if w.Code != http.StatusOK {
			t.Fatalf("turn %d: expected 200, got %d, body=%s", turn, w.Code, w.Body.String())
		}
		last = turnJSON{}
		if err := json.NewDecoder(w.Body).Decode(&last); err != nil {
			t.Fatal(err)
		}
	}

	if !last.Ended || last.Outcome == nil || !last.Outcome.Success {
		t.Fatalf("expected a win, got %+v", last)
	}
	if last.Summary == nil || last.Summary.InteractionCount != 2 {
		t.Fatalf("expected summary with 2 interactions, got %+v", last.Summary)
	}

	// the finished game shows up in the records listing
	w := doJSON(t, srv, http.MethodGet, "/records?user_id=u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var recs struct {
		Records []struct {
			IsSuccess bool `json:"is_success"`
		} `json:"records"`
	}
	if err := json.NewDecoder(w.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if len(recs.Records) != 1 || !recs.Records[0].IsSuccess {
		t.Fatalf("unexpected records: %+v", recs.Records)
	}

	// playing on a finished session is a conflict
	w = doJSON(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/messages",
		map[string]string{"text": "还在吗"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on ended session, got %d", w.Code)
	}
}

func TestEmptyTextRejected(t *testing.T) {
	srv := newTestServer(t, 0)
	sess := startSession(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/messages",
		map[string]string{"text": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestRestartSession(t *testing.T) {
	srv := newTestServer(t, 10)
	sess := startSession(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/messages",
		map[string]string{"text": "对不起"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/restart", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var fresh sessionJSON
	if err := json.NewDecoder(w.Body).Decode(&fresh); err != nil {
		t.Fatal(err)
	}
	if fresh.ID == sess.ID {
		t.Error("restart must produce a new session id")
	}
	if fresh.Turn != 0 || fresh.Forgiveness != 40 || len(fresh.Messages) != 1 {
		t.Errorf("restart did not reset state: %+v", fresh)
	}

	// the old session is gone
	w = doJSON(t, srv, http.MethodGet, "/sessions/"+sess.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for old session, got %d", w.Code)
	}
}

func TestRecordsRequireUserID(t *testing.T) {
	srv := newTestServer(t, 0)
	w := doJSON(t, srv, http.MethodGet, "/records", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
