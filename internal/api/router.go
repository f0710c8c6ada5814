package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"market-snapshot/internal/briefagent"
	"market-snapshot/internal/market"
	"market-snapshot/internal/store"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	log "github.com/sirupsen/logrus"
)

const (
	SnapshotErrorLabel = "Failed to fetch data"

	routeMarket = "/api-market"
	routeBrief  = "/api/v1/market/brief"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) (*market.Snapshot, error)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// RegisterRoutes wires every route. st and agent may be nil.
func RegisterRoutes(h *server.Hertz, mkt SnapshotSource, st *store.Store, agent *briefagent.Agent) {
	h.Use(requestIDMiddleware(), accessLogMiddleware(), corsMiddleware())

	h.OPTIONS("/*path", func(_ context.Context, c *app.RequestContext) {
		c.AbortWithStatus(http.StatusNoContent)
	})

	h.GET("/", func(_ context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, "Market snapshot service is active.")
	})

	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.GET(routeMarket, func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		snap, err := fetchSnapshot(ctx, mkt)
		journal(st, c, routeMarket, snap, err, start)
		if err != nil {
			writeSnapshotError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	h.GET(routeBrief, func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		snap, err := fetchSnapshot(ctx, mkt)
		journal(st, c, routeBrief, snap, err, start)
		if err != nil {
			writeSnapshotError(c, err)
			return
		}
		brief, mode, err := agent.Evaluate(ctx, snap)
		if err != nil {
			log.WithField("request_id", requestID(c)).Warnf("briefagent eval error, fallback used: %v", err)
		}
		resp := map[string]any{
			"ok":       true,
			"mode":     mode,
			"model":    agent.Model(),
			"brief":    brief,
			"snapshot": snap,
		}
		if !agent.Enabled() {
			resp["reason"] = agent.DisabledReason()
		}
		c.JSON(http.StatusOK, resp)
	})

	h.GET("/api/v1/journal", func(_ context.Context, c *app.RequestContext) {
		if st == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "journal not enabled",
			})
			return
		}
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		offset, err := parseOffset(c.Query("offset"))
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		items, err := st.QueryJournal(c.Query("status"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})
}

func fetchSnapshot(ctx context.Context, mkt SnapshotSource) (*market.Snapshot, error) {
	if mkt == nil {
		return nil, fmt.Errorf("market service not configured")
	}
	return mkt.Snapshot(ctx)
}

// writeSnapshotError collapses every aggregation failure into one 500.
func writeSnapshotError(c *app.RequestContext, err error) {
	log.WithFields(log.Fields{
		"request_id": requestID(c),
		"path":       string(c.Path()),
		"error":      err.Error(),
	}).Error("market snapshot failed")

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   SnapshotErrorLabel,
		Details: err.Error(),
	})
}

func journal(st *store.Store, c *app.RequestContext, route string, snap *market.Snapshot, err error, start time.Time) {
	if st == nil {
		return
	}
	entry := store.JournalEntry{
		TS:         start.Unix(),
		RequestID:  requestID(c),
		Route:      route,
		Status:     store.StatusOK,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = store.StatusFailed
		entry.Error = err.Error()
	}
	if snap != nil {
		entry.IndexCount = len(snap.Indices)
		entry.GainerCount = len(snap.TopGainers)
		entry.LoserCount = len(snap.TopLosers)
		entry.Advances = snap.MarketBreadth.Advances
		entry.Declines = snap.MarketBreadth.Declines
		entry.Unchanged = snap.MarketBreadth.Unchanged
		entry.Ratio = snap.MarketBreadth.Ratio
	}
	if _, err := st.InsertJournal(entry); err != nil {
		log.Printf("insert journal error: %v", err)
	}
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return v, nil
}
