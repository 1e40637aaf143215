package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/threadwise/agentd/internal/agent"
)

// newGraphFixture serves a minimal graph-run service: one thread, runs that
// finish on the first poll, and a canned reply.
func newGraphFixture(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	var runStarted int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"thread_id": "t-9"})
	})
	mux.HandleFunc("DELETE /threads/t-9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /threads/t-9/runs", func(w http.ResponseWriter, r *http.Request) {
		atomic.StoreInt32(&runStarted, 1)
		json.NewEncoder(w).Encode(map[string]string{"run_id": "r-9", "status": "pending"})
	})
	mux.HandleFunc("GET /threads/t-9/runs/r-9", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"run_id": "r-9", "status": "success"})
	})
	mux.HandleFunc("GET /threads/t-9/state", func(w http.ResponseWriter, r *http.Request) {
		messages := []map[string]string{{"role": "human", "content": "hi"}}
		if atomic.LoadInt32(&runStarted) == 1 {
			messages = append(messages, map[string]string{"role": "ai", "content": reply})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"values": map[string]interface{}{"messages": messages},
		})
	})
	return httptest.NewServer(mux)
}

func newChatHandler(srvURL string) *ChatHandler {
	return &ChatHandler{
		Graph:            agent.NewClient(srvURL, time.Millisecond, time.Second, nil),
		DefaultAssistant: "a-default",
	}
}

func TestChatHandlerRepliesWithAgentMessage(t *testing.T) {
	srv := newGraphFixture(t, "the answer")
	defer srv.Close()
	handler := newChatHandler(srv.URL)

	body, _ := json.Marshal(ChatRequest{Message: "hi"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.chat(ctx); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Content != "the answer" {
		t.Fatalf("content = %q", resp.Content)
	}
	if resp.ThreadID != "t-9" {
		t.Fatalf("thread_id = %q", resp.ThreadID)
	}
	if resp.AssistantID != "a-default" {
		t.Fatalf("assistant_id = %q, want configured default", resp.AssistantID)
	}
}

func TestChatHandlerRejectsEmptyMessage(t *testing.T) {
	handler := newChatHandler("http://localhost:0")

	body, _ := json.Marshal(ChatRequest{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := handler.chat(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestChatHandlerCreateThread(t *testing.T) {
	srv := newGraphFixture(t, "")
	defer srv.Close()
	handler := newChatHandler(srv.URL)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/threads", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.createThread(ctx); err != nil {
		t.Fatalf("createThread: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp ThreadCreateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ThreadID != "t-9" {
		t.Fatalf("thread_id = %q", resp.ThreadID)
	}
}

func TestChatHandlerMessages(t *testing.T) {
	srv := newGraphFixture(t, "")
	defer srv.Close()
	handler := newChatHandler(srv.URL)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/threads/t-9/messages", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("thread_id")
	ctx.SetParamValues("t-9")

	if err := handler.messages(ctx); err != nil {
		t.Fatalf("messages: %v", err)
	}
	var resp ThreadMessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Content != "hi" {
		t.Fatalf("messages = %+v", resp.Messages)
	}
}

func TestChatHandlerDeleteThread(t *testing.T) {
	srv := newGraphFixture(t, "")
	defer srv.Close()
	handler := newChatHandler(srv.URL)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/chat/threads/t-9", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("thread_id")
	ctx.SetParamValues("t-9")

	if err := handler.deleteThread(ctx); err != nil {
		t.Fatalf("deleteThread: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
