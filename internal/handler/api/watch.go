// Package api exposes the admin HTTP surface: trigger runs, inspect the
// last summary, and manage watchlist records.
package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"StockWatch/internal/condition"
	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/internal/usecase"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/logger"
	"StockWatch/pkg/util"
)

type WatchHandler struct {
	runner *usecase.WatchRunner
	store  drepo.RecordStore
	log    *logger.Logger
}

func NewWatchHandler(runner *usecase.WatchRunner, store drepo.RecordStore, log *logger.Logger) *WatchHandler {
	return &WatchHandler{runner: runner, store: store, log: log}
}

func (h *WatchHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/run", h.TriggerRun)
	g.GET("/summary", h.GetSummary)
	g.GET("/records", h.ListRecords)
	g.POST("/records", h.InsertRecord)
}

// TriggerRun starts a batch run. With wait=true (the default) it blocks
// until the run finishes and returns the summary; otherwise it returns 202
// and the run continues in the background.
func (h *WatchHandler) TriggerRun(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if req.Wait == nil || *req.Wait {
		summary, err := h.runner.Run(c.Request().Context())
		if err != nil {
			if errors.Is(err, usecase.ErrRunInProgress) {
				return xhttp.AppErrorResponse(c, xhttp.ConflictError("a run is already in progress"))
			}
			h.log.Error("run failed", logger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("run failed"))
		}
		return xhttp.SuccessResponse(c, summary)
	}

	// The request context dies with the response; the detached run gets
	// its own.
	go func() {
		if _, err := h.runner.Run(context.Background()); err != nil && !errors.Is(err, usecase.ErrRunInProgress) {
			h.log.Error("background run failed", logger.Error(err))
		}
	}()
	return xhttp.DataResponse(c, 202, map[string]string{"status": "started"})
}

// GetSummary returns the summary of the most recent completed run.
func (h *WatchHandler) GetSummary(c echo.Context) error {
	summary := h.runner.LastSummary()
	if summary == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no run has completed yet"))
	}
	return xhttp.SuccessResponse(c, summary)
}

type recordView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Ticker        string   `json:"ticker"`
	Symbol        string   `json:"symbol"`
	Region        string   `json:"region"`
	Condition     string   `json:"condition"`
	Deadline      string   `json:"deadline,omitempty"`
	Notify        bool     `json:"notify"`
	Achieved      bool     `json:"achieved"`
	LastPrice     *float64 `json:"last_price,omitempty"`
	LastCheckedAt string   `json:"last_checked_at,omitempty"`
}

// ListRecords returns the current watchlist as stored.
func (h *WatchHandler) ListRecords(c echo.Context) error {
	records, err := h.store.ListRecords(c.Request().Context())
	if err != nil {
		h.log.Error("list records failed", logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to list records"))
	}

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		v := recordView{
			ID:        rec.ID,
			Name:      rec.DisplayName,
			Ticker:    rec.RawTicker,
			Symbol:    rec.Region.NormalizeTicker(rec.RawTicker),
			Region:    string(rec.Region),
			Condition: rec.Condition,
			Notify:    rec.NotifyEnabled,
			Achieved:  rec.Achieved,
			LastPrice: rec.LastPrice,
		}
		if rec.Deadline != nil {
			v.Deadline = util.FormatDate(*rec.Deadline)
		}
		if rec.LastCheckedAt != nil {
			v.LastCheckedAt = rec.LastCheckedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		views = append(views, v)
	}
	return xhttp.ListResponse(c, views, int64(len(views)))
}

// InsertRecord creates a new watchlist entry. The condition expression is
// parsed up front so malformed rules are rejected before they reach the store.
func (h *WatchHandler) InsertRecord(c echo.Context) error {
	req := &models.InsertRecordRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if _, err := condition.Parse(req.Condition); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid condition: %v", err))
	}

	rec := &models.WatchlistRecord{
		DisplayName:   req.Name,
		RawTicker:     req.Ticker,
		Region:        models.NormalizeRegion(req.Region),
		Condition:     req.Condition,
		NotifyEnabled: req.Notify == nil || *req.Notify,
	}
	if req.Deadline != "" {
		t, ok := util.ParseTime(req.Deadline)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid deadline date"))
		}
		rec.Deadline = &t
	}

	id, err := h.store.InsertRecord(c.Request().Context(), rec)
	if err != nil {
		h.log.Error("insert record failed", logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to insert record"))
	}
	return xhttp.CreatedResponse(c, map[string]string{"id": id})
}
