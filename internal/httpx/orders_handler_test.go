package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-order-status.git/internal/cache"
	"github.com/ariefcatur/go-order-status.git/internal/orders"
	"github.com/ariefcatur/go-order-status.git/internal/ratelimit"
	"github.com/rs/zerolog"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeUpdater struct {
	err                       error
	clientID, orderID, status string
	calls                     int
}

func (f *fakeUpdater) UpdateOrderStatus(_ context.Context, clientID, orderID, status string) (bool, error) {
	f.calls++
	f.clientID, f.orderID, f.status = clientID, orderID, status
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}

type fakeLogAdmin struct {
	logs          []orders.StatusLog
	limit, offset int
	deleted       []int64
	err           error
}

func (f *fakeLogAdmin) List(_ context.Context, limit, offset int) ([]orders.StatusLog, error) {
	f.limit, f.offset = limit, offset
	return f.logs, f.err
}

func (f *fakeLogAdmin) Delete(_ context.Context, ids []int64) (int64, error) {
	f.deleted = ids
	return int64(len(ids)), f.err
}

type observed struct {
	handler string
	status  int
}

type fakeObserver struct{ calls []observed }

func (f *fakeObserver) ObserveHTTP(handler string, status int, _ time.Duration) {
	f.calls = append(f.calls, observed{handler, status})
}

const token = "test_bearer_token"

func newServer(svc StatusUpdater, logs LogAdmin, obs HTTPObserver) http.Handler {
	return newServerWith(svc, logs, obs, nil, zerolog.New(io.Discard))
}

func newServerWith(svc StatusUpdater, logs LogAdmin, obs HTTPObserver, trusted TrustedProxies, log zerolog.Logger) http.Handler {
	r := NewRouter(log, obs, nil, trusted)
	h := &OrdersHandler{Service: svc, Logs: logs, Tokens: []string{token}, Log: log}
	h.Register(r)
	return r
}

func mustTrust(t *testing.T, list ...string) TrustedProxies {
	t.Helper()
	tp, err := ParseTrustedProxies(list)
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}
	return tp
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = "192.0.2.10:51234"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body map[string]errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestUpdateStatusSuccess(t *testing.T) {
	svc := &fakeUpdater{}
	obs := &fakeObserver{}
	rec := do(t, newServer(svc, nil, obs), http.MethodPost, "/orders/status", `{"orderId":"000000123","status":"shipped"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var ok bool
	if err := json.Unmarshal(rec.Body.Bytes(), &ok); err != nil || !ok {
		t.Fatalf("expected JSON true, got %q", rec.Body.String())
	}
	if svc.orderID != "000000123" || svc.status != "shipped" || svc.clientID != "192.0.2.10" {
		t.Fatalf("unexpected call %+v", svc)
	}
	if len(obs.calls) != 1 || obs.calls[0] != (observed{"/orders/status", 200}) {
		t.Fatalf("unexpected observations %+v", obs.calls)
	}
}

func TestUpdateStatusNumericOrderID(t *testing.T) {
	svc := &fakeUpdater{}
	rec := do(t, newServer(svc, nil, nil), http.MethodPost, "/orders/status", `{"orderId":100000066,"status":"shipped"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if svc.orderID != "100000066" {
		t.Fatalf("expected numeric id as string, got %q", svc.orderID)
	}
}

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		hdr     map[string]string
		want    string
	}{
		{"socket peer by default", nil, nil, "192.0.2.10"},
		{"untrusted peer ignores forwarded for", nil, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.10"},
		{"untrusted peer ignores real ip", []string{"10.0.0.0/8"}, map[string]string{"X-Real-IP": "203.0.113.7"}, "192.0.2.10"},
		{"trusted proxy real ip", []string{"192.0.2.10"}, map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"trusted proxy nearest untrusted hop", []string{"192.0.2.0/24"}, map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.7, 192.0.2.44"}, "203.0.113.7"},
		{"trusted proxy garbage header", []string{"192.0.2.10"}, map[string]string{"X-Forwarded-For": "not-an-ip"}, "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUpdater{}
			h := newServerWith(svc, nil, nil, mustTrust(t, tt.trusted...), zerolog.New(io.Discard))
			rec := do(t, h, http.MethodPost, "/orders/status", `{"orderId":"1","status":"shipped"}`, tt.hdr)
			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status %d", rec.Code)
			}
			if svc.clientID != tt.want {
				t.Fatalf("expected client %q, got %q", tt.want, svc.clientID)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	tp := mustTrust(t, "10.0.0.0/8", "192.0.2.1", "::1")
	if len(tp) != 3 || tp[1].Bits() != 32 || tp[2].Bits() != 128 {
		t.Fatalf("unexpected prefixes %v", tp)
	}
	if _, err := ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Fatal("expected error for hostname")
	}
}

// limitedUpdater puts the real limiter in front of a successful update.
type limitedUpdater struct{ l *ratelimit.Limiter }

func (u *limitedUpdater) UpdateOrderStatus(ctx context.Context, clientID, _, _ string) (bool, error) {
	if !u.l.Admit(ctx, clientID) {
		return false, orders.RateLimited()
	}
	return true, nil
}

func TestRateLimitIgnoresSpoofedForwardedHeaders(t *testing.T) {
	svc := &limitedUpdater{l: ratelimit.New(cache.NewMemory(), true, 5, zerolog.New(io.Discard))}
	h := newServer(svc, nil, nil)

	limited := 0
	for i := 0; i < 20; i++ {
		rec := do(t, h, http.MethodPost, "/orders/status", `{"orderId":"1","status":"shipped"}`, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i),
			"X-Real-IP":       fmt.Sprintf("198.51.100.%d", i),
		})
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 15 {
		t.Fatalf("expected 15 of 20 requests from one socket rate limited, got %d", limited)
	}
}

func TestUpdateStatusBadRequests(t *testing.T) {
	tests := []struct{ name, body string }{
		{"not json", `{`},
		{"missing status", `{"orderId":"1"}`},
		{"missing order", `{"status":"shipped"}`},
		{"fractional id", `{"orderId":1.5,"status":"shipped"}`},
		{"bool id", `{"orderId":true,"status":"shipped"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUpdater{}
			rec := do(t, newServer(svc, nil, nil), http.MethodPost, "/orders/status", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if svc.calls != 0 {
				t.Fatal("service must not be called")
			}
		})
	}
}

func TestUpdateStatusErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		code     int
		kind     orders.Kind
		contains string
	}{
		{orders.RateLimited(), http.StatusTooManyRequests, orders.KindRateLimited, "Rate limit exceeded"},
		{orders.OrderNotFound("9"), http.StatusNotFound, orders.KindOrderNotFound, `"9" does not exist`},
		{orders.InvalidStatus("x", []string{"pending"}), http.StatusBadRequest, orders.KindInvalidStatus, "Allowed statuses: pending"},
		{orders.UnknownStatus("x"), http.StatusUnprocessableEntity, orders.KindUnknownStatus, "not configured"},
		{orders.Internal(errors.New("pg: secret")), http.StatusInternalServerError, orders.KindInternal, orders.MsgInternal},
		{errors.New("raw secret"), http.StatusInternalServerError, orders.KindInternal, orders.MsgInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rec := do(t, newServer(&fakeUpdater{err: tt.err}, nil, nil), http.MethodPost, "/orders/status", `{"orderId":"9","status":"x"}`, nil)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			body := decodeError(t, rec)
			if body.Code != string(tt.kind) || !strings.Contains(body.Message, tt.contains) {
				t.Fatalf("unexpected body %+v", body)
			}
			if strings.Contains(rec.Body.String(), "secret") {
				t.Fatal("internal detail leaked")
			}
		})
	}
}

func TestBearerAuth(t *testing.T) {
	tests := []struct{ name, header string }{
		{"missing", ""},
		{"wrong scheme", "Basic " + token},
		{"wrong token", "Bearer nope"},
		{"empty token", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUpdater{}
			h := newServer(svc, nil, nil)
			req := httptest.NewRequest(http.MethodPost, "/orders/status", strings.NewReader(`{"orderId":"1","status":"shipped"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized || svc.calls != 0 {
				t.Fatalf("expected 401 without service call, got %d calls=%d", rec.Code, svc.calls)
			}
		})
	}
}

func TestNoTokensRefusesEverything(t *testing.T) {
	r := NewRouter(zerolog.New(io.Discard), nil, nil, nil)
	(&OrdersHandler{Service: &fakeUpdater{}}).Register(r)
	rec := do(t, r, http.MethodPost, "/orders/status", `{"orderId":"1","status":"shipped"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListLogs(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	logs := &fakeLogAdmin{logs: []orders.StatusLog{{LogID: 2, OrderID: "000000123", OldStatus: "processing", NewStatus: "shipped", CreatedAt: at}}}
	h := newServer(&fakeUpdater{}, logs, nil)

	rec := do(t, h, http.MethodGet, "/admin/order-status-logs?limit=10&offset=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var got []orders.StatusLog
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || len(got) != 1 || got[0].NewStatus != "shipped" {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}
	if logs.limit != 10 || logs.offset != 5 {
		t.Fatalf("unexpected paging %d/%d", logs.limit, logs.offset)
	}

	for _, q := range []string{"limit=0", "limit=500", "limit=x", "offset=-1"} {
		if rec := do(t, h, http.MethodGet, "/admin/order-status-logs?"+q, "", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestDeleteLogs(t *testing.T) {
	logs := &fakeLogAdmin{}
	h := newServer(&fakeUpdater{}, logs, nil)

	rec := do(t, h, http.MethodPost, "/admin/order-status-logs/delete", `{"ids":[1,2,3]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp DeleteLogsResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deleted != 3 || resp.Message != "3 record(s) have been deleted." {
		t.Fatalf("unexpected response %+v", resp)
	}

}

func TestLogAdminFaultsAreLogged(t *testing.T) {
	tests := []struct {
		name, method, path, body, msg string
	}{
		{"list", http.MethodGet, "/admin/order-status-logs", "", "loading order status logs"},
		{"delete", http.MethodPost, "/admin/order-status-logs/delete", `{"ids":[1]}`, "deleting order status logs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logs := &fakeLogAdmin{err: errors.New("pg: relation missing")}
			h := newServerWith(&fakeUpdater{}, logs, nil, nil, zerolog.New(&buf))

			rec := do(t, h, tt.method, tt.path, tt.body, nil)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			if strings.Contains(rec.Body.String(), "relation missing") {
				t.Fatal("internal detail leaked")
			}
			out := buf.String()
			if !strings.Contains(out, `"severity":"critical"`) || !strings.Contains(out, "relation missing") || !strings.Contains(out, tt.msg) {
				t.Fatalf("expected critical log line, got %s", out)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(&fakeUpdater{}, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rec.Code, rec.Body.String())
	}
}
