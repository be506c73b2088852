// Package server exposes the sourcing agent over HTTP: auth, the SSE query
// stream, report and supplier retrieval, and operational endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfg-agent/mfgagent/config"
	"github.com/mfg-agent/mfgagent/internal/pipeline"
	"github.com/mfg-agent/mfgagent/internal/scrape"
	"github.com/mfg-agent/mfgagent/internal/scrape/sources"
	"github.com/mfg-agent/mfgagent/internal/searchidx"
	"github.com/mfg-agent/mfgagent/internal/store"
	"github.com/mfg-agent/mfgagent/internal/webfetch"
	"github.com/mfg-agent/mfgagent/provider"
	groq "github.com/mfg-agent/mfgagent/provider/groq"
)

// Run wires every component and serves until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

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

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := store.Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var history *store.HistoryCache
	if cfg.Storage.Redis.Host != "" {
		rc, err := store.ConnRedis(ctx, cfg.Storage.Redis.Host, cfg.Storage.Redis.Port,
			cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
		if err != nil {
			baseLogger.Printf("redis unavailable, history served from postgres only: %v", err)
		} else {
			history = store.NewHistoryCache(rc, cfg.Storage.Redis.HistoryTTL)
		}
	}

	index, err := searchidx.New()
	if err != nil {
		return err
	}

	prov, err := newProvider(cfg)
	if err != nil {
		return err
	}
	gatherer, err := buildAggregator(cfg)
	if err != nil {
		return err
	}
	registry := pipeline.NewRegistry(cfg.Cache.ReportCapacity)
	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch := pipeline.NewOrchestrator(prov, gatherer, registry, orchLogger)

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	api := e.Group("/api")
	ah := &AuthHandler{Store: st, Secret: []byte(secret)}
	ah.Register(api.Group("/auth"))

	qh := &QueryHandler{
		Orch:    orch,
		Store:   st,
		History: history,
		Index:   index,
		Logger:  baseLogger,
		Model:   prov.Model(),
		Tavily:  cfg.Search.TavilyAPIKey != "",
		Serper:  cfg.Search.SerperAPIKey != "",
	}
	qh.Register(api, []byte(secret))

	rh := &ReportsHandler{
		Store:    st,
		Registry: registry,
		History:  history,
		Index:    index,
		Secret:   []byte(secret),
	}
	rh.Register(api, []byte(secret))

	return e.Start(cfg.General.Listen)
}

func newProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.LLM.Provider {
	case "groq", "":
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("llm api key not configured (llm.api_key)")
		}
		return groq.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
			cfg.LLM.Temperature, cfg.LLM.MaxTokens, cfg.LLM.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// buildAggregator assembles the search and directory adapters from config.
func buildAggregator(cfg *config.Config) (*scrape.Aggregator, error) {
	fetcher, err := webfetch.New(webfetch.FetcherType(cfg.Scrape.Fetcher),
		cfg.Scrape.AdapterTimeout, cfg.Scrape.MaxChars)
	if err != nil {
		return nil, err
	}

	var adapters []scrape.Adapter
	if cfg.Search.TavilyAPIKey != "" {
		adapters = append(adapters, sources.NewTavily(cfg.Search.TavilyAPIKey, cfg.Search.MaxResults))
	}
	if cfg.Search.SerperAPIKey != "" {
		adapters = append(adapters, sources.NewSerper(cfg.Search.SerperAPIKey, cfg.Search.MaxResults))
	}
	adapters = append(adapters, sources.NewDuckDuckGo(cfg.Search.MaxResults))

	dirs := map[string]scrape.Adapter{
		"indiamart":     sources.NewIndiaMART(fetcher),
		"alibaba":       sources.NewAlibaba(fetcher),
		"made-in-china": sources.NewMadeInChina(fetcher),
		"thomasnet":     sources.NewThomasNet(fetcher),
		"europages":     sources.NewEuropages(fetcher),
	}
	if len(cfg.Scrape.Directories) == 0 {
		for _, tag := range []string{"indiamart", "alibaba", "made-in-china", "thomasnet", "europages"} {
			adapters = append(adapters, dirs[tag])
		}
	} else {
		for _, tag := range cfg.Scrape.Directories {
			ad, ok := dirs[tag]
			if !ok {
				return nil, fmt.Errorf("unknown directory %q", tag)
			}
			adapters = append(adapters, ad)
		}
	}
	return scrape.NewAggregator(adapters, cfg.Scrape.AdapterTimeout, cfg.Scrape.Deadline), nil
}
