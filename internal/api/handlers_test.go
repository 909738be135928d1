package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/internal/engine"
	"spotmm/pkg/types"
)

func testAPILogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeProvider is a canned MarketSnapshotProvider standing in for a running
// engine.Bot, so handlers can be exercised without a live control loop.
type fakeProvider struct {
	snap engine.Snapshot
}

func (p fakeProvider) Status() engine.Snapshot { return p.snap }

func testSnapshot() engine.Snapshot {
	return engine.Snapshot{
		Pair:         types.Pair{Symbol: "SPOT/USD", BaseCoin: "SPOT"},
		BestBid:      decimal.NewFromInt(100000),
		BestAsk:      decimal.NewFromInt(100002),
		HasBid:       true,
		HasAsk:       true,
		Mid:          decimal.NewFromInt(100001),
		MidReady:     true,
		BaseBalance:  decimal.NewFromFloat(0.01),
		QuoteBalance: decimal.NewFromInt(-1000),
		Skew:         decimal.NewFromFloat(0.1),
		Now:          time.Now(),
	}
}

func TestHandleHealthReportsPair(t *testing.T) {
	t.Parallel()
	h := NewHandlers(fakeProvider{testSnapshot()}, config.Config{}, NewBroadcaster("SPOT/USD", testAPILogger()), testAPILogger())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if body["pair"] != "SPOT/USD" {
		t.Errorf("pair = %q, want SPOT/USD", body["pair"])
	}
}

func TestHandleSnapshotReflectsProviderState(t *testing.T) {
	t.Parallel()
	h := NewHandlers(fakeProvider{testSnapshot()}, config.Config{Market: config.MarketConfig{Market: "SPOT/USD"}}, NewBroadcaster("SPOT/USD", testAPILogger()), testAPILogger())

	rec := httptest.NewRecorder()
	h.HandleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	var body StatusSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Pair != "SPOT/USD" {
		t.Errorf("pair = %q, want SPOT/USD", body.Pair)
	}
	if body.BaseBalance != "0.01" {
		t.Errorf("base_balance = %q, want 0.01", body.BaseBalance)
	}
	if !body.MidReady {
		t.Error("expected mid_ready=true with a consistent BBO")
	}
}

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		cfg     config.DashboardConfig
		reqHost string
		want    bool
	}{
		{
			name:    "empty origin is allowed",
			origin:  "",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "localhost origin allowed by default",
			origin:  "http://localhost:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    true,
		},
		{
			name:    "non-local origin denied by default",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8080",
			want:    false,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://dash.example.com",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8080",
			want:    false,
		},
		{
			name:    "same host allowed when no allowlist",
			origin:  "https://mm.internal:8080",
			cfg:     config.DashboardConfig{},
			reqHost: "mm.internal:8080",
			want:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isOriginAllowed(tt.origin, tt.cfg, tt.reqHost); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestNewHandlersUpgraderRejectsDisallowedOrigin(t *testing.T) {
	t.Parallel()
	h := NewHandlers(fakeProvider{testSnapshot()}, config.Config{
		Dashboard: config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
	}, NewBroadcaster("SPOT/USD", testAPILogger()), testAPILogger())

	if h.upgrader.CheckOrigin == nil {
		t.Fatal("expected NewHandlers to install a CheckOrigin closure")
	}
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	if h.upgrader.CheckOrigin(req) {
		t.Error("expected CheckOrigin to reject an origin outside the allowlist")
	}
}
