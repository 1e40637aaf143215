package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/threadwise/agentd/internal/agent"
	"github.com/threadwise/agentd/internal/runtime"
)

// ChatHandler bridges HTTP chat requests to the graph-run service.
type ChatHandler struct {
	Graph            *agent.Client
	DefaultAssistant string
	DefaultGraph     string
	DefaultModel     string
	Counter          *RequestCounter
}

func (h *ChatHandler) Register(g *echo.Group, secret []byte) {
	g.GET("/health", h.health)
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("", h.chat)
	g.POST("/threads", h.createThread)
	g.GET("/threads/:thread_id/messages", h.messages)
	g.DELETE("/threads/:thread_id", h.deleteThread)
	g.GET("/assistants", h.listAssistants)
	g.POST("/assistants", h.createAssistant)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	assistantID := req.AssistantID
	if assistantID == "" {
		assistantID = h.DefaultAssistant
	}
	if assistantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no assistant configured")
	}
	h.Counter.Inc(c.Request().Context(), "chat")

	res, err := h.Graph.SendMessage(c.Request().Context(), req.Message, req.ThreadID, assistantID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, ChatResponse{
		Content:     res.Content,
		ThreadID:    res.ThreadID,
		AssistantID: res.AssistantID,
		Timestamp:   res.Timestamp.Format(time.RFC3339),
		Status:      res.Status,
	})
}

func (h *ChatHandler) createThread(c echo.Context) error {
	t, err := h.Graph.CreateThread(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, ThreadCreateResponse{ThreadID: t.ThreadID})
}

func (h *ChatHandler) messages(c echo.Context) error {
	threadID := c.Param("thread_id")
	msgs, err := h.Graph.Messages(c.Request().Context(), threadID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "thread not found")
	}
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return c.JSON(http.StatusOK, ThreadMessagesResponse{ThreadID: threadID, Messages: out})
}

func (h *ChatHandler) deleteThread(c echo.Context) error {
	if err := h.Graph.DeleteThread(c.Request().Context(), c.Param("thread_id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "thread not found")
	}
	return c.NoContent(http.StatusOK)
}

func (h *ChatHandler) listAssistants(c echo.Context) error {
	out, err := h.Graph.ListAssistants(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ChatHandler) createAssistant(c echo.Context) error {
	var req CreateAssistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if req.Graph == "" {
		req.Graph = h.DefaultGraph
	}
	if req.Model == "" {
		req.Model = h.DefaultModel
	}
	a, err := h.Graph.CreateAssistant(c.Request().Context(), req.Graph, req.Model, req.Name, req.Extra)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *ChatHandler) health(c echo.Context) error {
	if err := h.Graph.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unreachable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
