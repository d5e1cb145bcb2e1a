// Package api exposes the matching core over HTTP for internal
// callers: order submission and cancellation, book snapshots, recent
// trades and a health probe.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/openexchange/matching-core/pkg/matching"
	"github.com/openexchange/matching-core/pkg/orderbook"
	"github.com/openexchange/matching-core/pkg/validate"
)

type Server struct {
	store     matching.Store
	validator *validate.Validator
	timeout   time.Duration
}

func NewServer(store matching.Store, validator *validate.Validator, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Server{store: store, validator: validator, timeout: timeout}
}

// Router builds the chi router with the hygiene stack in front of the
// matching endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/internal/orders", s.handleSubmitOrder)
		r.Delete("/internal/orders/{instrumentID}/{orderID}", s.handleCancelOrder)
		r.Get("/internal/books/{instrumentID}", s.handleGetBook)
		r.Get("/internal/trades/{instrumentID}", s.handleGetTrades)
		r.Get("/matching/health", s.handleHealth)
	})

	return r
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type submitOrderRequest struct {
	OrderID      string  `json:"order_id"` // generated when empty
	InstrumentID string  `json:"instrument_id"`
	Account      string  `json:"account"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Qty          int64   `json:"qty"`
	Qualifier    string  `json:"qualifier"` // defaults to LIMIT
}

func (req *submitOrderRequest) toOrder() (*orderbook.BookOrder, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.InstrumentID = strings.TrimSpace(req.InstrumentID)
	req.Account = strings.TrimSpace(req.Account)

	if req.InstrumentID == "" || req.Account == "" {
		return nil, errors.New("instrument_id and account are required")
	}
	if req.OrderID == "" {
		req.OrderID = uuid.New().String()
	}

	var side orderbook.Side
	switch strings.ToUpper(strings.TrimSpace(req.Side)) {
	case "BUY":
		side = orderbook.BUY
	case "SELL":
		side = orderbook.SELL
	default:
		return nil, errors.New("side must be BUY or SELL")
	}

	qualifier := orderbook.LIMIT
	if q := strings.ToUpper(strings.TrimSpace(req.Qualifier)); q != "" {
		qualifier = orderbook.Qualifier(q)
	}

	return &orderbook.BookOrder{
		OrderID:      req.OrderID,
		InstrumentID: req.InstrumentID,
		Account:      req.Account,
		Side:         side,
		Price:        req.Price,
		Qty:          req.Qty,
		Qualifier:    qualifier,
	}, nil
}

type submitOrderResponse struct {
	OrderID      string            `json:"order_id"`
	InstrumentID string            `json:"instrument_id"`
	Sequence     uint64            `json:"sequence"`
	FilledQty    int64             `json:"filled_qty"`
	RemainingQty int64             `json:"remaining_qty"`
	Resting      bool              `json:"resting"`
	Trades       []orderbook.Trade `json:"trades"`
	RequestID    string            `json:"request_id"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := req.toOrder()
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if s.validator != nil {
		if err := s.validator.Check(order); err != nil {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}

	res, err := s.store.SubmitOrder(r.Context(), order)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	remaining := int64(0)
	if res.Remaining != nil {
		remaining = res.Remaining.Qty
	}
	trades := res.Trades
	if trades == nil {
		trades = []orderbook.Trade{}
	}
	writeJSON(w, r, http.StatusCreated, submitOrderResponse{
		OrderID:      order.OrderID,
		InstrumentID: order.InstrumentID,
		Sequence:     order.Sequence,
		FilledQty:    res.FilledQty(),
		RemainingQty: remaining,
		Resting:      res.ShouldInsert,
		Trades:       trades,
		RequestID:    middleware.GetReqID(r.Context()),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	instrumentID := chi.URLParam(r, "instrumentID")
	orderID := chi.URLParam(r, "orderID")

	res, err := s.store.CancelOrder(r.Context(), instrumentID, orderID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !res.Cancelled {
		writeProblem(w, r, http.StatusNotFound, "not_found", "order not found")
		return
	}
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	instrumentID := chi.URLParam(r, "instrumentID")

	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", "depth must be a non-negative integer")
			return
		}
		depth = d
	}

	snapshot, err := s.store.GetBook(r.Context(), instrumentID, depth)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	instrumentID := chi.URLParam(r, "instrumentID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeProblem(w, r, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	trades, err := s.store.GetTrades(r.Context(), instrumentID, limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if trades == nil {
		trades = []orderbook.Trade{}
	}
	writeJSON(w, r, http.StatusOK, trades)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	seq, err := s.store.GetSequence(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"sequence": seq,
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orderbook.ErrInvalidOrder), errors.Is(err, orderbook.ErrUnsupportedQualifier):
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, matching.ErrInstrumentHalted):
		writeProblem(w, r, http.StatusServiceUnavailable, "instrument_halted", err.Error())
	default:
		writeProblem(w, r, http.StatusInternalServerError, "store_error", err.Error())
	}
}
