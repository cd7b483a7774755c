package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	"github.com/STTM-NSU/stocks-alerter/internal/sink"
	"github.com/gin-gonic/gin"
)

const (
	_defaultLimit = 50
	_maxLimit     = 500
)

type StatusProvider interface {
	Status() model.StatusSummary
	Workers() map[string]int
}

type InstrumentLookup interface {
	Lookup(uid string) (model.Instrument, bool)
}

type CandleSource interface {
	Snapshot(instrumentId string) []model.CandleSample
}

type EventLog interface {
	Recent(n int, kind sink.EntryKind) []sink.Entry
}

type AlertJournal interface {
	Recent(ctx context.Context, n int64) ([]model.AlertEvent, error)
}

type Handler struct {
	status      StatusProvider
	instruments InstrumentLookup
	candles     CandleSource
	events      EventLog
	journal     AlertJournal
	ws          http.Handler

	logger logger.Logger
}

// NewHandler wires the read-only HTTP surface. journal and ws may be nil.
func NewHandler(status StatusProvider,
	instruments InstrumentLookup,
	candles CandleSource,
	events EventLog,
	journal AlertJournal,
	ws http.Handler,
	logger logger.Logger,
) *Handler {
	return &Handler{
		status:      status,
		instruments: instruments,
		candles:     candles,
		events:      events,
		journal:     journal,
		ws:          ws,
		logger:      logger,
	}
}

func (h *Handler) InitRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", h.GetStatus)
	r.GET("/instruments/:uid/candles", h.GetCandles)
	r.GET("/alerts", h.GetAlerts)
	r.GET("/alerts/journal", h.GetJournal)
	if h.ws != nil {
		r.GET("/ws", gin.WrapH(h.ws))
	}

	return r
}

const (
	_uidParam   = "uid"
	_limitQuery = "limit"
	_kindQuery  = "kind"
)

func (h *Handler) GetStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"summary": h.status.Status(),
		"workers": h.status.Workers(),
	})
}

func (h *Handler) GetCandles(ctx *gin.Context) {
	uid := ctx.Param(_uidParam)
	instrument, ok := h.instruments.Lookup(uid)
	if !ok {
		ctx.String(http.StatusNotFound, "unknown instrument")
		return
	}

	candles := h.candles.Snapshot(uid)
	if candles == nil {
		candles = []model.CandleSample{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"instrument": instrument,
		"candles":    candles,
	})
}

func (h *Handler) GetAlerts(ctx *gin.Context) {
	limit, ok := parseLimit(ctx)
	if !ok {
		return
	}

	kind := sink.EntryKind(ctx.DefaultQuery(_kindQuery, string(sink.KindAlert)))
	switch kind {
	case sink.KindAlert, sink.KindStatus:
	case "all":
		kind = ""
	default:
		ctx.String(http.StatusBadRequest, "unknown kind")
		return
	}

	ctx.JSON(http.StatusOK, h.events.Recent(limit, kind))
}

func (h *Handler) GetJournal(ctx *gin.Context) {
	if h.journal == nil {
		ctx.String(http.StatusNotFound, "journal is disabled")
		return
	}

	limit, ok := parseLimit(ctx)
	if !ok {
		return
	}

	alerts, err := h.journal.Recent(ctx.Request.Context(), int64(limit))
	if err != nil {
		h.logger.Errorf("%s: can't read alert journal", err)
		ctx.String(http.StatusBadGateway, "journal is unavailable")
		return
	}

	ctx.JSON(http.StatusOK, alerts)
}

func parseLimit(ctx *gin.Context) (int, bool) {
	raw := ctx.Query(_limitQuery)
	if raw == "" {
		return _defaultLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		ctx.String(http.StatusBadRequest, "limit must be a positive number")
		return 0, false
	}
	return min(limit, _maxLimit), true
}
