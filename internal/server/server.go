package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/harvestlab/knowledge-harvest/config"
	"github.com/harvestlab/knowledge-harvest/internal/coverage"
	"github.com/harvestlab/knowledge-harvest/internal/docgen"
	"github.com/harvestlab/knowledge-harvest/internal/pipeline"
	"github.com/harvestlab/knowledge-harvest/internal/search"
	"github.com/harvestlab/knowledge-harvest/internal/store"
	"github.com/harvestlab/knowledge-harvest/provider"
)

// Run wires the backend and serves HTTP until the process exits.
func Run(cfg *appconfig.Config, addr string) error {
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
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	e.Use(requestMetrics)

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		log.Printf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	if cfg.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY not configured (providers.openai.api_key)")
	}
	llm, err := provider.NewProvider(provider.OpenAI, cfg.Providers.OpenAI)
	if err != nil {
		return err
	}

	if err := cfg.Storage.Redis.Validate(); err != nil {
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

	calc := coverage.NewCalculator(st)
	assembler := docgen.NewAssembler(st)
	runner := pipeline.NewRunner(st, llm, rdb)
	searcher := search.NewSearcher(st)

	api := e.Group("/api")

	ch := &CompaniesHandler{Store: st}
	ch.Register(api.Group("/companies"))

	sh := &SeedHandler{Store: st, LLM: llm}
	sh.Register(api.Group("/seed"))

	ih := &SessionsHandler{Store: st, Pipeline: runner, DataDir: cfg.Storage.File.DataDir}
	ih.Register(api.Group("/sessions"))
	api.GET("/audio/:session", ih.streamAudio)

	cvh := &CoverageHandler{Store: st, Calc: calc}
	cvh.Register(api.Group("/coverage"))

	dh := &DocsHandler{Assembler: assembler}
	dh.Register(api.Group("/docs"))

	xh := &ExportHandler{Assembler: assembler, ChromePath: cfg.Export.ChromeExecPath}
	xh.Register(api.Group("/export"))

	kh := &KnowledgeHandler{Searcher: searcher}
	kh.Register(api.Group("/knowledge"))

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{Store: st, Calc: calc, Rdb: rdb, CronSpec: cfg.Scheduler.RecomputeCron, Stop: make(chan struct{})}
		sched.Start()
	}

	if addr == "" {
		addr = normalizeAddr(cfg.General.Listen)
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// normalizeAddr turns a bare port into ":port" and leaves host-qualified
// values ("localhost:8080") alone.
func normalizeAddr(addr string) string {
	if addr == "" {
		return ":10010"
	}
	if _, err := strconv.Atoi(addr); err == nil {
		return ":" + addr
	}
	return addr
}
