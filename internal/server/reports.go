package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mfg-agent/mfgagent/internal/auth"
	"github.com/mfg-agent/mfgagent/internal/pipeline"
	"github.com/mfg-agent/mfgagent/internal/searchidx"
	"github.com/mfg-agent/mfgagent/internal/store"
	"github.com/mfg-agent/mfgagent/models"
)

// ReportsHandler serves completed runs: reports, suppliers, history, search
// and downloads. Reads prefer the registry's in-process cache and fall back
// to Postgres.
type ReportsHandler struct {
	Store    *store.Store
	Registry *pipeline.Registry
	History  *store.HistoryCache
	Index    *searchidx.Index
	Secret   []byte
}

func (h *ReportsHandler) Register(g *echo.Group, secret []byte) {
	mw := auth.Middleware(secret)
	g.GET("/history", h.history, mw)
	g.GET("/reports", h.listReports, mw)
	g.GET("/report/:session_id", h.getReport, mw)
	g.DELETE("/report/:session_id", h.deleteReport, mw)
	g.GET("/suppliers", h.listSuppliers, mw)
	g.GET("/suppliers/search", h.searchSuppliers, mw)
	g.GET("/download/:session_id", h.downloadText, mw)
	g.GET("/download-json/:session_id", h.downloadJSON, mw)
}

func (h *ReportsHandler) history(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	limit := intParam(c, "limit", 20)

	if h.History != nil {
		if entries, err := h.History.Recent(c.Request().Context(), userID, limit); err == nil && len(entries) > 0 {
			return c.JSON(http.StatusOK, map[string]interface{}{"history": entries})
		}
	}
	entries, err := h.Store.History(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": entries})
}

func (h *ReportsHandler) listReports(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	recs, err := h.Store.ListReports(c.Request().Context(), userID, intParam(c, "limit", 50))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if recs == nil {
		recs = []models.ReportRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reports": recs})
}

// loadReport resolves a report through the cache first, checking ownership.
func (h *ReportsHandler) loadReport(c echo.Context, sessionID, userID string) (models.ReportRecord, error) {
	if rec, ok := h.Registry.Report(sessionID); ok {
		if rec.UserID != userID {
			return models.ReportRecord{}, echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return rec, nil
	}
	rec, err := h.Store.GetReport(c.Request().Context(), sessionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReportRecord{}, echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return models.ReportRecord{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return rec, nil
}

func (h *ReportsHandler) getReport(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	rec, err := h.loadReport(c, c.Param("session_id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *ReportsHandler) deleteReport(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	sessionID := c.Param("session_id")

	// ownership must be settled before any state is touched
	if _, err := h.loadReport(c, sessionID, userID); err != nil {
		if he, ok := err.(*echo.HTTPError); ok && he.Code == http.StatusNotFound {
			return c.JSON(http.StatusOK, map[string]bool{"deleted": false})
		}
		return err
	}
	err := h.Store.DeleteReport(c.Request().Context(), sessionID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// cache and index only after the durable delete; ErrNoRows means the
	// report lived only in the cache, which is still ours to purge
	h.Registry.DeleteReport(sessionID)
	if err := h.Index.Remove(sessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

func (h *ReportsHandler) listSuppliers(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	ctx := c.Request().Context()

	var recs []models.SupplierRecord
	var err error
	if sessionID := c.QueryParam("session_id"); sessionID != "" {
		recs, err = h.Store.ListSuppliersBySession(ctx, sessionID, userID)
	} else {
		recs, err = h.Store.ListSuppliers(ctx, userID, intParam(c, "limit", 200))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if recs == nil {
		recs = []models.SupplierRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suppliers": recs})
}

func (h *ReportsHandler) searchSuppliers(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	userID, _ := c.Get("user_id").(string)
	hits, err := h.Index.Search(q, userID, intParam(c, "limit", 10))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []searchidx.Hit{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}

func (h *ReportsHandler) downloadText(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	rec, err := h.loadReport(c, c.Param("session_id"), userID)
	if err != nil {
		return err
	}
	sep := strings.Repeat("=", 64)
	header := fmt.Sprintf("MFG AGENT SUPPLIER SOURCING REPORT\n%s\n"+
		"Session  : %s\nQuery    : %s\nProduct  : %s\nLocation : %s\n"+
		"Sources  : %s\nSuppliers: %d\n%s\n\n",
		sep, rec.SessionID, rec.Query, rec.Product, rec.Location,
		strings.Join(rec.SourcesUsed, ", "), rec.SuppliersFound, sep)
	body := rec.ReportText
	if body == "" {
		body = "No report text available."
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s.txt"`, rec.SessionID))
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(header+body))
}

func (h *ReportsHandler) downloadJSON(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	sessionID := c.Param("session_id")
	rec, err := h.loadReport(c, sessionID, userID)
	if err != nil {
		return err
	}
	suppliers, err := h.Store.ListSuppliersBySession(c.Request().Context(), sessionID, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	payload, err := json.MarshalIndent(map[string]interface{}{
		"report":    rec,
		"suppliers": suppliers,
	}, "", "  ")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s.json"`, sessionID))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, payload)
}

func intParam(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
