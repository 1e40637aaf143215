package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/threadwise/agentd/internal/agent/sqltool"
	"github.com/threadwise/agentd/internal/runtime"
)

// AgentHandler exposes the SQL question agent.
type AgentHandler struct {
	SQL     *sqltool.Agent
	Counter *RequestCounter
}

func (h *AgentHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("/ask", h.ask)
}

func (h *AgentHandler) ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	h.Counter.Inc(c.Request().Context(), "ask")

	ans, err := h.SQL.Ask(c.Request().Context(), req.Question)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, AskResponse{
		Question: ans.Question,
		Query:    ans.Query,
		Answer:   ans.Answer,
	})
}
