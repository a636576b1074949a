package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-order-status.git/internal/logging"
	"github.com/ariefcatur/go-order-status.git/internal/orders"
	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"net"
	"net/http"
	"strconv"
	"time"
)

type StatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, clientID, incrementID, status string) (bool, error)
}

type LogAdmin interface {
	List(ctx context.Context, limit, offset int) ([]orders.StatusLog, error)
	Delete(ctx context.Context, ids []int64) (int64, error)
}

type OrdersHandler struct {
	Service StatusUpdater
	Logs    LogAdmin
	Tokens  []string
	Log     zerolog.Logger
}

// IncrementID accepts both "000000123" and 100000066 in request bodies.
type IncrementID string

func (id *IncrementID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = IncrementID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("orderId must be a string or number")
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("orderId must be a whole number")
	}
	*id = IncrementID(n.String())
	return nil
}

type UpdateStatusReq struct {
	OrderID IncrementID `json:"orderId"`
	Status  string      `json:"status"`
}

type DeleteLogsReq struct {
	IDs []int64 `json:"ids"`
}

type DeleteLogsResp struct {
	Deleted int64  `json:"deleted"`
	Message string `json:"message"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(h.Tokens))
		r.Post("/orders/status", h.updateStatus)
		if h.Logs != nil {
			r.Get("/admin/order-status-logs", h.listLogs)
			r.Post("/admin/order-status-logs/delete", h.deleteLogs)
		}
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, map[string]errorBody{"error": {Code: kind, Message: msg}})
}

func statusFor(kind orders.Kind) int {
	switch kind {
	case orders.KindRateLimited:
		return http.StatusTooManyRequests
	case orders.KindOrderNotFound:
		return http.StatusNotFound
	case orders.KindInvalidStatus:
		return http.StatusBadRequest
	case orders.KindUnknownStatus:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// clientIP is the rate-limit identity: the socket peer, or the forwarded
// client when clientAddr accepted the peer as a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}
	if req.OrderID == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "orderId and status are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Service.UpdateOrderStatus(ctx, clientIP(r), string(req.OrderID), req.Status)
	if err != nil {
		var de *orders.Error
		if !errors.As(err, &de) {
			de = orders.Internal(err)
		}
		writeError(w, statusFor(de.Kind), string(de.Kind), de.Message)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

func (h *OrdersHandler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit <= 0 || limit > 200 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 200")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "offset must be non-negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	logs, err := h.Logs.List(ctx, limit, offset)
	if err != nil {
		l := h.Log.With().Int("limit", limit).Int("offset", offset).Logger()
		logging.Critical(&l).Stack().Err(pkgerrors.Wrap(err, "list status logs")).Msg("Unexpected exception while loading order status logs")
		writeError(w, http.StatusInternalServerError, string(orders.KindInternal), "Something went wrong while loading records.")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *OrdersHandler) deleteLogs(w http.ResponseWriter, r *http.Request) {
	var req DeleteLogsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Logs.Delete(ctx, req.IDs)
	if err != nil {
		l := h.Log.With().Int("ids", len(req.IDs)).Logger()
		logging.Critical(&l).Stack().Err(pkgerrors.Wrap(err, "delete status logs")).Msg("Unexpected exception while deleting order status logs")
		writeError(w, http.StatusInternalServerError, string(orders.KindInternal), "Something went wrong while deleting records.")
		return
	}
	writeJSON(w, http.StatusOK, DeleteLogsResp{Deleted: n, Message: fmt.Sprintf("%d record(s) have been deleted.", n)})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
