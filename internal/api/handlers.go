// Package api exposes the constructed dataset for review: manifest
// stats and entries from the catalog, and on-demand split verification
// against the output directory.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/covidct/builder/internal/catalog"
	"github.com/covidct/builder/internal/config"
	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/split"
)

// Handler serves the review API.
type Handler struct {
	cat     *catalog.Catalog
	cfg     *config.Config
	log     *zap.Logger
	version string
}

// NewHandler creates the API handler. version is the build version of
// the binary, reported by the health endpoint.
func NewHandler(cat *catalog.Catalog, cfg *config.Config, log *zap.Logger, version string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{cat: cat, cfg: cfg, log: log, version: version}
}

// Register mounts all routes under /api.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.HandleHealth)
	g.GET("/manifest/stats", h.HandleStats)
	g.GET("/manifest/entries", h.HandleEntries)
	g.GET("/manifest/entries/msgpack", h.HandleEntriesMsgpack)
	g.POST("/verify", h.HandleVerify)
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// resolveRun picks the run to inspect: the runId query parameter, or
// the latest recorded run. An explicit ID must name a recorded run.
func (h *Handler) resolveRun(c echo.Context) (*catalog.RunInfo, *APIError) {
	if id := c.QueryParam("runId"); id != "" {
		run, err := h.cat.Run(id)
		if errors.Is(err, catalog.ErrRunNotFound) {
			return nil, NewNotFoundError("build run")
		}
		if err != nil {
			return nil, NewInternalError("querying run", err)
		}
		return run, nil
	}
	run, err := h.cat.LatestRun()
	if err != nil {
		return nil, NewNotFoundError("build run")
	}
	return run, nil
}

// HandleStats returns per-class and per-source counts for a run.
func (h *Handler) HandleStats(c echo.Context) error {
	run, apiErr := h.resolveRun(c)
	if apiErr != nil {
		return c.JSON(apiErr.Status, apiErr)
	}

	byClass, err := h.cat.CountsByClass(run.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewInternalError("querying class counts", err))
	}
	bySource, err := h.cat.CountsBySource(run.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewInternalError("querying source counts", err))
	}

	classes := make(map[string]int, len(byClass))
	for _, cl := range models.ClassLabels {
		classes[cl.String()] = byClass[cl]
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run":     run,
		"classes": classes,
		"sources": bySource,
	})
}

func pagination(c echo.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 {
		pageSize = 100
	}
	return page, pageSize
}

// HandleEntries returns one page of a run's manifest entries.
func (h *Handler) HandleEntries(c echo.Context) error {
	run, apiErr := h.resolveRun(c)
	if apiErr != nil {
		return c.JSON(apiErr.Status, apiErr)
	}
	page, pageSize := pagination(c)

	entries, total, err := h.cat.Entries(run.ID, page, pageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewInternalError("querying entries", err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries":  entries,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// HandleEntriesMsgpack is HandleEntries with MessagePack encoding,
// noticeably smaller than JSON for large manifests.
func (h *Handler) HandleEntriesMsgpack(c echo.Context) error {
	run, apiErr := h.resolveRun(c)
	if apiErr != nil {
		return c.JSON(apiErr.Status, apiErr)
	}
	page, pageSize := pagination(c)

	entries, total, err := h.cat.Entries(run.ID, page, pageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewInternalError("querying entries", err))
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"entries":  entries,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewInternalError("encoding msgpack", err))
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleVerify runs split verification against the output directory and
// returns the completeness report.
func (h *Handler) HandleVerify(c echo.Context) error {
	versionTag := c.QueryParam("version")
	if versionTag == "" {
		versionTag = h.cfg.Version
	}
	version, err := models.ParseVersion(versionTag)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewBadRequestError("invalid version", err))
	}

	files, err := split.Discover(h.cfg.SplitDir, version)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewBadRequestError("discovering split files", err))
	}
	report, err := split.Verify(h.cfg.OutputDir, files, h.log)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewInternalError("verifying", err))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":  version.Tag(),
		"complete": report.Complete(),
		"summary":  report.Summary(),
		"report":   report,
	})
}
