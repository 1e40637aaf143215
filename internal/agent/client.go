// Package agent talks to the external graph-run service that executes
// agent graphs against conversation threads. The service owns graph
// traversal, scheduling and state persistence; this client only drives its
// REST lifecycle: create a thread, start a run, poll until it settles, read
// the final state.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client is an HTTP client for the graph-run service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	runTimeout   time.Duration
	logger       *log.Logger
}

// Thread identifies a conversation thread on the run service.
type Thread struct {
	ThreadID string `json:"thread_id"`
}

// Run identifies a single graph execution.
type Run struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// Assistant is a configured graph+model pairing on the run service.
type Assistant struct {
	AssistantID string                 `json:"assistant_id"`
	Name        string                 `json:"name"`
	GraphID     string                 `json:"graph_id"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Message is a single conversation message in thread state.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadState is the run service's view of a thread after its last run.
type ThreadState struct {
	Values struct {
		Messages []Message `json:"messages"`
	} `json:"values"`
}

// ChatResult is the outcome of one SendMessage round trip.
type ChatResult struct {
	Content     string    `json:"content"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
}

// NewClient builds a graph-run service client.
func NewClient(baseURL string, pollInterval, runTimeout time.Duration, logger *log.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if runTimeout <= 0 {
		runTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
		logger:       logger,
	}
}

// Health checks whether the run service answers at all.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/ok", nil, nil)
}

// CreateThread starts a new conversation thread.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var t Thread
	if err := c.doJSON(ctx, http.MethodPost, "/threads", map[string]interface{}{}, &t); err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return t, nil
}

// DeleteThread removes a conversation thread.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/threads/"+threadID, nil, nil); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// State reads the thread's current state.
func (c *Client) State(ctx context.Context, threadID string) (ThreadState, error) {
	var st ThreadState
	if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/state", nil, &st); err != nil {
		return ThreadState{}, fmt.Errorf("thread state: %w", err)
	}
	return st, nil
}

// Messages returns all messages recorded on the thread.
func (c *Client) Messages(ctx context.Context, threadID string) ([]Message, error) {
	st, err := c.State(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return st.Values.Messages, nil
}

// CreateAssistant registers a graph+model pairing under a name.
func (c *Client) CreateAssistant(ctx context.Context, graph, model, name string, extra map[string]interface{}) (Assistant, error) {
	assistantCtx := map[string]interface{}{"model_name": model}
	for k, v := range extra {
		assistantCtx[k] = v
	}
	body := map[string]interface{}{
		"graph_id": graph,
		"name":     name,
		"context":  assistantCtx,
	}
	var a Assistant
	if err := c.doJSON(ctx, http.MethodPost, "/assistants", body, &a); err != nil {
		return Assistant{}, fmt.Errorf("create assistant: %w", err)
	}
	return a, nil
}

// ListAssistants returns all assistants known to the run service.
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var out []Assistant
	if err := c.doJSON(ctx, http.MethodPost, "/assistants/search", map[string]interface{}{}, &out); err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	return out, nil
}

// CreateRun starts a run of assistantID on threadID with the given input.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string, input map[string]interface{}) (Run, error) {
	body := map[string]interface{}{
		"assistant_id": assistantID,
		"input":        input,
	}
	var r Run
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &r); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

// WaitRun polls the run until it leaves the pending/running states or the
// configured run timeout elapses.
func (c *Client) WaitRun(ctx context.Context, threadID, runID string) error {
	deadline := time.Now().Add(c.runTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		var r Run
		if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &r); err != nil {
			return fmt.Errorf("poll run: %w", err)
		}
		switch r.Status {
		case "success", "":
			return nil
		case "error", "timeout", "interrupted":
			return fmt.Errorf("run %s finished with status %q", runID, r.Status)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("run %s did not finish within %s", runID, c.runTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SendMessage forwards a user message to the agent: it creates a thread when
// none is supplied, starts a run, waits for completion and returns the last
// message of the final state.
func (c *Client) SendMessage(ctx context.Context, content, threadID, assistantID string) (ChatResult, error) {
	if threadID == "" {
		t, err := c.CreateThread(ctx)
		if err != nil {
			return ChatResult{}, err
		}
		threadID = t.ThreadID
	}

	input := map[string]interface{}{
		"messages": []Message{{Role: "human", Content: content}},
	}
	run, err := c.CreateRun(ctx, threadID, assistantID, input)
	if err != nil {
		return ChatResult{}, err
	}
	if err := c.WaitRun(ctx, threadID, run.RunID); err != nil {
		return ChatResult{}, err
	}

	st, err := c.State(ctx, threadID)
	if err != nil {
		return ChatResult{}, err
	}
	reply := "No response from agent"
	if msgs := st.Values.Messages; len(msgs) > 0 {
		reply = msgs[len(msgs)-1].Content
	}
	return ChatResult{
		Content:     reply,
		ThreadID:    threadID,
		AssistantID: assistantID,
		Timestamp:   time.Now(),
		Status:      "success",
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
