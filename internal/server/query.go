package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mfg-agent/mfgagent/internal/auth"
	"github.com/mfg-agent/mfgagent/internal/pipeline"
	"github.com/mfg-agent/mfgagent/internal/searchidx"
	"github.com/mfg-agent/mfgagent/internal/store"
	"github.com/mfg-agent/mfgagent/models"
)

// QueryHandler drives pipeline runs and the control endpoints around them.
type QueryHandler struct {
	Orch    *pipeline.Orchestrator
	Store   *store.Store
	History *store.HistoryCache
	Index   *searchidx.Index
	Logger  *log.Logger
	Model   string
	Tavily  bool
	Serper  bool
}

func (h *QueryHandler) Register(g *echo.Group, secret []byte) {
	mw := auth.Middleware(secret)
	g.POST("/query", h.query, mw)
	g.POST("/stop", h.stop, mw)
	g.GET("/health", h.health)
	g.GET("/stats", h.stats, mw)
}

type queryRequest struct {
	Query string `json:"query"`
}

type stopRequest struct {
	SessionID string `json:"session_id"`
}

// query starts a pipeline run and streams its events as SSE until the run
// reaches a terminal state. Closing the connection cancels the run.
func (h *QueryHandler) query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	userID, _ := c.Get("user_id").(string)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	events := h.Orch.Start(c.Request().Context(), req.Query, userID)

	var sessionID string
	var suppliers []models.SupplierRecord
	var completed bool
	for ev := range events {
		switch ev.Type {
		case pipeline.EventSession:
			sessionID = ev.SessionID
		case pipeline.EventSuppliers:
			suppliers = ev.Data
		case pipeline.EventDone:
			completed = true
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			// client went away; drain the channel so the run can finish
			// cancelling via the request context
			for range events {
			}
			break
		}
		flusher.Flush()
	}

	if completed {
		go h.persist(sessionID, userID, req.Query, suppliers)
	}
	return nil
}

// persist writes the finished run to durable storage. Failures are logged,
// never surfaced; the client already has the report.
func (h *QueryHandler) persist(sessionID, userID, query string, suppliers []models.SupplierRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if rec, ok := h.Orch.Registry().Report(sessionID); ok {
		if err := h.Store.SaveReport(ctx, rec); err != nil {
			h.Logger.Printf("save report %s: %v", sessionID, err)
		}
	}
	if err := h.Store.SaveSuppliers(ctx, suppliers); err != nil {
		h.Logger.Printf("save suppliers %s: %v", sessionID, err)
	}
	entry := models.HistoryEntry{
		UserID:    userID,
		Query:     query,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.AppendHistory(ctx, entry); err != nil {
		h.Logger.Printf("append history %s: %v", sessionID, err)
	}
	if h.History != nil {
		if err := h.History.Push(ctx, entry); err != nil {
			h.Logger.Printf("cache history %s: %v", sessionID, err)
		}
	}
	if err := h.Index.Add(suppliers); err != nil {
		h.Logger.Printf("index suppliers %s: %v", sessionID, err)
	}
}

func (h *QueryHandler) stop(c echo.Context) error {
	var req stopRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id required")
	}
	stopped := h.Orch.Registry().Stop(req.SessionID)
	return c.JSON(http.StatusOK, map[string]bool{"stopped": stopped})
}

func (h *QueryHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"model":           h.Model,
		"tavily":          h.Tavily,
		"serper":          h.Serper,
		"ddg_fallback":    true,
		"database":        "postgres",
		"active_sessions": h.Orch.Registry().ActiveCount(),
	})
}

func (h *QueryHandler) stats(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	st, err := h.Store.Stats(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}
