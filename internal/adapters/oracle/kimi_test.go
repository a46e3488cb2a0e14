package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coax-games/coax-api/internal/domain"
)

func testInput() domain.GenerateInput {
	return domain.GenerateInput{
		Scene:       domain.Scene{Title: "迟到", Role: "女朋友", AngryReason: "等了你一小时"},
		History:     []domain.ChatTurn{{Role: "assistant", Content: "你还来干嘛？"}},
		UserInput:   "路上堵车，真的对不起",
		Forgiveness: 25,
	}
}

func kimiContent(t *testing.T, content string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestKimiOracleSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("wrong auth header: %s", r.Header.Get("Authorization"))
		}

		var req kimiChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "moonshot-v1-8k" {
			t.Errorf("expected default model, got %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}

		w.Write([]byte(kimiContent(t, `{"reply":"算你有心。","forgivenessDelta":15}`)))
	}))
	defer srv.Close()

	o := NewKimiOracle("test-key", WithKimiBaseURL(srv.URL))
	out, err := o.Generate(context.Background(), testInput())
	if err != nil {
		t.Fatal(err)
	}
	if out.Reply != "算你有心。" {
		t.Errorf("reply = %q", out.Reply)
	}
	if out.ForgivenessDelta != 15 {
		t.Errorf("delta = %d, want 15", out.ForgivenessDelta)
	}
}

func TestKimiOracleEmptyKey(t *testing.T) {
	o := NewKimiOracle("")
	if _, err := o.Generate(context.Background(), testInput()); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestKimiOracleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewKimiOracle("test-key", WithKimiBaseURL(srv.URL))
	if _, err := o.Generate(context.Background(), testInput()); err == nil {
		t.Error("expected error on HTTP 429")
	}
}

func TestKimiOracleNonJSONAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(kimiContent(t, "我不想按格式回答")))
	}))
	defer srv.Close()

	o := NewKimiOracle("test-key", WithKimiBaseURL(srv.URL))
	if _, err := o.Generate(context.Background(), testInput()); err == nil {
		t.Error("expected error when model skips the JSON contract")
	}
}

func TestKimiOracleNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	o := NewKimiOracle("test-key", WithKimiBaseURL(srv.URL))
	if _, err := o.Generate(context.Background(), testInput()); err == nil {
		t.Error("expected error on empty choices")
	}
}
