package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRunService simulates the graph-run service with one thread that
// completes a run after a couple of polls.
func fakeRunService(t *testing.T, pollsUntilDone int32) *httptest.Server {
	t.Helper()
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Thread{ThreadID: "t-1"})
	})
	mux.HandleFunc("DELETE /threads/t-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /threads/t-1/runs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AssistantID string `json:"assistant_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AssistantID == "" {
			http.Error(w, "missing assistant_id", http.StatusUnprocessableEntity)
			return
		}
		json.NewEncoder(w).Encode(Run{RunID: "r-1", Status: "pending"})
	})
	mux.HandleFunc("GET /threads/t-1/runs/r-1", func(w http.ResponseWriter, r *http.Request) {
		status := "running"
		if atomic.AddInt32(&polls, 1) >= pollsUntilDone {
			status = "success"
		}
		json.NewEncoder(w).Encode(Run{RunID: "r-1", Status: status})
	})
	mux.HandleFunc("GET /threads/t-1/state", func(w http.ResponseWriter, r *http.Request) {
		var st ThreadState
		st.Values.Messages = []Message{
			{Role: "human", Content: "hello"},
			{Role: "ai", Content: "hi there"},
		}
		json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("POST /assistants", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GraphID string                 `json:"graph_id"`
			Name    string                 `json:"name"`
			Context map[string]interface{} `json:"context"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(Assistant{AssistantID: "a-1", Name: body.Name, GraphID: body.GraphID, Context: body.Context})
	})
	mux.HandleFunc("POST /assistants/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Assistant{{AssistantID: "a-1", Name: "default", GraphID: "agent"}})
	})
	mux.HandleFunc("GET /ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func TestSendMessageCreatesThreadAndReturnsLastMessage(t *testing.T) {
	srv := fakeRunService(t, 3)
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Millisecond, time.Second, nil)
	res, err := c.SendMessage(context.Background(), "hello", "", "a-1")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.ThreadID != "t-1" {
		t.Errorf("thread id = %q, want t-1", res.ThreadID)
	}
	if res.Content != "hi there" {
		t.Errorf("content = %q, want last ai message", res.Content)
	}
	if res.Status != "success" {
		t.Errorf("status = %q", res.Status)
	}
}

func TestSendMessageReusesExistingThread(t *testing.T) {
	srv := fakeRunService(t, 1)
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Millisecond, time.Second, nil)
	res, err := c.SendMessage(context.Background(), "again", "t-1", "a-1")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.ThreadID != "t-1" {
		t.Errorf("thread id = %q, want t-1", res.ThreadID)
	}
}

func TestWaitRunTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /threads/t-1/runs/r-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Run{RunID: "r-1", Status: "running"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, time.Millisecond, 20*time.Millisecond, nil)
	if err := c.WaitRun(context.Background(), "t-1", "r-1"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWaitRunFailedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /threads/t-1/runs/r-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Run{RunID: "r-1", Status: "error"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, time.Millisecond, time.Second, nil)
	if err := c.WaitRun(context.Background(), "t-1", "r-1"); err == nil {
		t.Fatal("expected error status to fail the wait")
	}
}

func TestCreateAssistantCarriesModelContext(t *testing.T) {
	srv := fakeRunService(t, 1)
	defer srv.Close()

	c := NewClient(srv.URL, time.Millisecond, time.Second, nil)
	a, err := c.CreateAssistant(context.Background(), "agent", "gpt-4o-mini", "helper", nil)
	if err != nil {
		t.Fatalf("CreateAssistant: %v", err)
	}
	if a.AssistantID != "a-1" || a.GraphID != "agent" {
		t.Errorf("assistant = %+v", a)
	}
	if got := a.Context["model_name"]; got != "gpt-4o-mini" {
		t.Errorf("context model_name = %v", got)
	}
}

func TestListAssistants(t *testing.T) {
	srv := fakeRunService(t, 1)
	defer srv.Close()

	c := NewClient(srv.URL, time.Millisecond, time.Second, nil)
	out, err := c.ListAssistants(context.Background())
	if err != nil {
		t.Fatalf("ListAssistants: %v", err)
	}
	if len(out) != 1 || out[0].Name != "default" {
		t.Errorf("assistants = %+v", out)
	}
}

func TestHealthAgainstDeadService(t *testing.T) {
	srv := fakeRunService(t, 1)
	c := NewClient(srv.URL, time.Millisecond, time.Second, nil)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	srv.Close()
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected health check to fail once service is down")
	}
}
