package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/threadwise/agentd/config"
	"github.com/threadwise/agentd/internal/agent"
	"github.com/threadwise/agentd/internal/agent/sqltool"
	"github.com/threadwise/agentd/internal/ingest"
	"github.com/threadwise/agentd/internal/runtime"
	"github.com/threadwise/agentd/internal/store"
	"github.com/threadwise/agentd/provider"
)

// Run wires the whole service together and serves HTTP until the listener
// fails. addr overrides the configured listen address when non-empty.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	_ = Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0)

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	llm, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	ingestLogger := log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	ingestSvc, err := ingest.NewService(st, llm, cfg.Embedding, cfg.LLM.EmbeddingModel, ingestLogger)
	if err != nil {
		return err
	}

	graph := agent.NewClient(cfg.Graph.BaseURL, cfg.Graph.PollInterval, cfg.Graph.RunTimeout, nil)

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}
	auth, err := initAuth(ctx, st, []byte(secret))
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(runtime.EchoAuthMiddleware(auth.Secret))
	me.GET("", func(c echo.Context) error {
		sub, ok := runtime.SubjectFromContext(c.Request().Context())
		if !ok {
			return echo.NewHTTPError(401, "unauthorized")
		}
		return c.JSON(200, MeResponse{UserID: sub})
	})

	counter := NewRequestCounter(rdb)

	ch := &ChatHandler{
		Graph:            graph,
		DefaultAssistant: cfg.Graph.DefaultAssistant,
		DefaultGraph:     cfg.Graph.DefaultGraph,
		DefaultModel:     cfg.LLM.CompletionModel,
		Counter:          counter,
	}
	ch.Register(api.Group("/chat"), auth.Secret)

	eh := &EmbeddingsHandler{Ingest: ingestSvc, Store: st, TopK: cfg.Embedding.SearchTopK, Counter: counter}
	eh.Register(api.Group("/embeddings"), auth.Secret)

	ah := &AgentHandler{
		SQL:     sqltool.NewAgent(sqltool.NewToolkit(st.DB, "postgresql", cfg.Embedding.SearchTopK), llm, nil),
		Counter: counter,
	}
	ah.Register(api.Group("/agent"), auth.Secret)

	oh := &OpsHandler{Store: st, Counter: counter}
	oh.Register(api.Group("/stats"), auth.Secret)

	if cfg.Janitor.Enabled {
		jan := &Janitor{Store: st, Rdb: rdb, Cron: cfg.Janitor.Cron, Stop: make(chan struct{})}
		jan.Start()
	}

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":8000"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func buildProvider(cfg config.LLMConfig) (provider.Provider, error) {
	return provider.NewProvider(provider.OpenAI, provider.Options{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		CompletionModel: cfg.CompletionModel,
		EmbeddingModel:  cfg.EmbeddingModel,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		Timeout:         cfg.Timeout,
	})
}
