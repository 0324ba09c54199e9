package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/ledger"
	"github.com/Mschirtzinger/bugledger/internal/ledger/ledgertest"
	"github.com/Mschirtzinger/bugledger/internal/present"
)

func newTestAPI(t *testing.T, fake *ledgertest.Ledger) *httptest.Server {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.Logger = testLogger()
	e, err := engine.Start(context.Background(), fake.Dialer(), "fake://", cfg, nil)
	if err != nil {
		t.Fatalf("engine.Start failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	ts := httptest.NewServer(NewAPI(present.NewActions(e), testLogger()))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, data
}

func decodeView(t *testing.T, data []byte) present.View {
	t.Helper()
	var v present.View
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("invalid view json %q: %v", data, err)
	}
	return v
}

func TestAPILifecycle(t *testing.T) {
	fake := ledgertest.New("0xA")
	ts := newTestAPI(t, fake)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/bugs", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}
	if v := decodeView(t, data); len(v.Rows) != 0 {
		t.Errorf("expected empty view, got %+v", v.Rows)
	}

	resp, data = do(t, http.MethodPost, ts.URL+"/api/bugs", `{"id":"BUG-1","description":"null pointer","criticality":"Medium"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d: %s", resp.StatusCode, data)
	}
	v := decodeView(t, data)
	if len(v.Rows) != 1 || v.Rows[0].Criticality != "Medium" || !v.Rows[0].CanResolve {
		t.Fatalf("view after add = %+v", v.Rows)
	}

	resp, data = do(t, http.MethodDelete, ts.URL+"/api/bugs/0", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("DELETE unresolved status = %d, want 409: %s", resp.StatusCode, data)
	}

	resp, data = do(t, http.MethodPost, ts.URL+"/api/bugs/0/resolve", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d: %s", resp.StatusCode, data)
	}
	if v := decodeView(t, data); !v.Rows[0].IsResolved || v.Rows[0].Resolved != "Yes" {
		t.Errorf("row after resolve = %+v", v.Rows[0])
	}

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/bugs/0/resolve", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second resolve status = %d, want 409", resp.StatusCode)
	}

	resp, data = do(t, http.MethodDelete, ts.URL+"/api/bugs/0", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d: %s", resp.StatusCode, data)
	}
	if v := decodeView(t, data); len(v.Rows) != 0 {
		t.Errorf("view after delete = %+v", v.Rows)
	}
	if len(fake.Records()) != 0 {
		t.Error("ledger should be empty")
	}
}

func TestAPIAddDefaultsToLow(t *testing.T) {
	fake := ledgertest.New("0xA")
	ts := newTestAPI(t, fake)

	resp, data := do(t, http.MethodPost, ts.URL+"/api/bugs", `{"id":"BUG-1","description":"x"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if got := fake.Records()[0].CriticalityCode; got != 0 {
		t.Errorf("criticality code = %d, want 0", got)
	}
}

func TestAPIErrors(t *testing.T) {
	fake := ledgertest.New("0xA")
	fake.Seed(ledger.Record{ID: "BUG-1"})
	ts := newTestAPI(t, fake)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/bugs", `{`, http.StatusBadRequest},
		{"bad criticality", http.MethodPost, "/api/bugs", `{"id":"X","criticality":"Critical"}`, http.StatusBadRequest},
		{"bad index", http.MethodPost, "/api/bugs/abc/resolve", "", http.StatusBadRequest},
		{"negative index", http.MethodDelete, "/api/bugs/-1", "", http.StatusBadRequest},
		{"resolve missing", http.MethodPost, "/api/bugs/9/resolve", "", http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/bugs/9", "", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/bugs", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, tt.method, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, data)
			}
		})
	}

	if fake.Mutations() != 0 {
		t.Errorf("Mutations = %d, want 0", fake.Mutations())
	}
}

func TestAPIRefresh(t *testing.T) {
	fake := ledgertest.New("0xA")
	ts := newTestAPI(t, fake)

	fake.Seed(ledger.Record{ID: "BUG-9", CriticalityCode: 2})

	resp, data := do(t, http.MethodPost, ts.URL+"/api/refresh", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if v := decodeView(t, data); len(v.Rows) != 1 || v.Rows[0].ID != "BUG-9" {
		t.Errorf("view = %+v", v.Rows)
	}

	fake.FailCount(errors.New("rpc down"))
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/refresh", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("failed refresh status = %d, want 502", resp.StatusCode)
	}
}

func TestAPINoIdentity(t *testing.T) {
	ts := newTestAPI(t, ledgertest.New())

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/bugs", `{"id":"X"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("add status = %d, want 503", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/refresh", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("refresh status = %d, want 503", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid criticality", fmt.Errorf("%w: x", bug.ErrInvalidCriticality), http.StatusBadRequest},
		{"precondition", fmt.Errorf("%w: y", engine.ErrPreconditionNotMet), http.StatusConflict},
		{"already resolved", present.ErrAlreadyResolved, http.StatusConflict},
		{"no such row", present.ErrNoSuchRow, http.StatusNotFound},
		{"index out of range", &engine.CommandError{Command: engine.CommandDelete, Index: 9, Err: ledger.Revert(fmt.Errorf("%w: 9", ledger.ErrIndexOutOfRange))}, http.StatusNotFound},
		{"no identity", engine.ErrNoIdentity, http.StatusServiceUnavailable},
		{"not ready", engine.ErrNotReady, http.StatusServiceUnavailable},
		{"command", &engine.CommandError{Command: engine.CommandAdd, Index: -1, Err: ledger.ErrReverted}, http.StatusBadGateway},
		{"load", &engine.LoadError{Index: 2, Err: errors.New("x")}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestServerMountsAPI(t *testing.T) {
	fake := ledgertest.New("0xA")
	cfg := engine.DefaultConfig()
	cfg.Logger = testLogger()

	server := NewServer(&Config{Port: 0, Logger: testLogger()})
	handler := NewHandler(server, testLogger())

	e, err := engine.Start(context.Background(), fake.Dialer(), "fake://", cfg, handler)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	server.Handle("/api/", NewAPI(present.NewActions(e), testLogger()))
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	defer server.Stop()

	resp, data := do(t, http.MethodGet, "http://"+server.GetAddr()+"/api/bugs", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if handler.GetStats().Revision != 1 {
		t.Errorf("handler should have seen the initial load, stats = %+v", handler.GetStats())
	}
}
