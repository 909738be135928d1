package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"spotmm/internal/config"
)

// Handlers serves the read-only status surface for one pair: a health
// check, a point-in-time snapshot, and the websocket upgrade that streams
// further snapshots/fills. One Handlers per agent, matching one Broadcaster.
type Handlers struct {
	provider MarketSnapshotProvider
	cfg      config.Config
	bc       *Broadcaster
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandlers wires a Handlers against the given snapshot provider and
// broadcaster. The upgrader is built once here (its CheckOrigin closes over
// cfg) rather than per request.
func NewHandlers(provider MarketSnapshotProvider, cfg config.Config, bc *Broadcaster, logger *slog.Logger) *Handlers {
	h := &Handlers{
		provider: provider,
		cfg:      cfg,
		bc:       bc,
		logger:   logger.With("component", "api-handlers"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r.Header.Get("Origin"), h.cfg.Dashboard, r.Host)
		},
	}
	return h
}

// HandleHealth reports that the status server is up; it says nothing about
// whether the agent itself is quoting (see HandleSnapshot for that).
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "pair": h.bc.pair})
}

// HandleSnapshot returns the agent's current point-in-time state as JSON.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := BuildSnapshot(h.provider, h.cfg)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
}

// HandleWebSocket upgrades the connection, registers it with the
// Broadcaster, and pushes one initial snapshot so a new viewer doesn't wait
// for the next tick to see current state.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := h.bc.Connect(conn)

	data, err := json.Marshal(DashboardEvent{Type: "snapshot", Data: BuildSnapshot(h.provider, h.cfg)})
	if err != nil {
		h.logger.Error("failed to marshal initial snapshot", "error", err)
		return
	}
	if !client.Send(data) {
		h.logger.Warn("failed to send initial snapshot to client")
	}
}

func isOriginAllowed(origin string, cfg config.DashboardConfig, reqHost string) bool {
	if origin == "" {
		// Non-browser clients often omit Origin; keep this path functional.
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
