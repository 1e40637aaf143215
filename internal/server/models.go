package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// ChatRequest is a user message bound for the agent.
type ChatRequest struct {
	Message     string `json:"message"`
	ThreadID    string `json:"thread_id,omitempty"`
	AssistantID string `json:"assistant_id,omitempty"`
}

// ChatResponse is the agent's reply.
type ChatResponse struct {
	Content     string `json:"content"`
	ThreadID    string `json:"thread_id"`
	AssistantID string `json:"assistant_id"`
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
}

// ThreadCreateResponse returns the id of a freshly created thread.
type ThreadCreateResponse struct {
	ThreadID string `json:"thread_id"`
}

// ThreadMessagesResponse lists a thread's conversation history.
type ThreadMessagesResponse struct {
	ThreadID string        `json:"thread_id"`
	Messages []ChatMessage `json:"messages"`
}

// ChatMessage is one message in a thread.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateAssistantRequest registers a named graph+model pairing.
type CreateAssistantRequest struct {
	Graph string                 `json:"graph"`
	Model string                 `json:"model"`
	Name  string                 `json:"name"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// EmbedFileRequest asks the server to download and ingest a file by URL.
// FileType declares the media type; when absent the download's Content-Type
// and then the filename extension are used.
type EmbedFileRequest struct {
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type,omitempty"`
}

// EmbedFileResponse reports the outcome of an ingestion.
type EmbedFileResponse struct {
	DocumentID string `json:"documentId"`
	Chunks     int    `json:"chunks"`
	Filename   string `json:"filename"`
	TextLength int    `json:"text_length"`
}

// SearchRequest is a semantic or keyword search over ingested chunks.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchHit is one matched chunk.
type SearchHit struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float64                `json:"score"`
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// DeleteDocumentResponse reports a deletion by filename.
type DeleteDocumentResponse struct {
	Deleted  bool   `json:"deleted"`
	Filename string `json:"filename"`
}

// AskRequest is a natural-language database question.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries the generated query and the phrased answer.
type AskResponse struct {
	Question string `json:"question"`
	Query    string `json:"query"`
	Answer   string `json:"answer"`
}

// StatsResponse summarizes platform activity.
type StatsResponse struct {
	Documents    int64            `json:"documents"`
	Chunks       int64            `json:"chunks"`
	Requests     map[string]int64 `json:"requests"`
	LastActivity string           `json:"last_activity,omitempty"`
}
