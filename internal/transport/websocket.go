package transport

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chainops/agentdash/internal/ledger"
	"github.com/chainops/agentdash/pkg/types"
)

// initialSnapshotLimit caps the transaction backlog sent on connect.
const initialSnapshotLimit = 10

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Same-origin or direct connection
		}

		originURL, err := url.Parse(origin)
		if err != nil {
			return false
		}

		if originURL.Host == r.Host {
			return true
		}

		// Allow localhost connections (common for development)
		if originURL.Hostname() == "localhost" || originURL.Hostname() == "127.0.0.1" {
			return true
		}

		return false
	},
}

// handleWebSocket upgrades the connection and streams hub events to it.
// Each connection gets its own hub subscription; a client that cannot keep
// up is dropped by the hub, which closes the event channel and ends the
// write pump.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := s.hub.Subscribe()
	if s.prom != nil {
		s.prom.ConnectedClients.Inc()
	}

	s.logger.Debug("WebSocket client connected",
		slog.Int("total_clients", s.hub.Count()),
	)

	defer func() {
		s.hub.Unsubscribe(sub)
		conn.Close()
		if s.prom != nil {
			s.prom.ConnectedClients.Dec()
		}
		s.logger.Debug("WebSocket client disconnected",
			slog.Int("total_clients", s.hub.Count()),
		)
	}()

	// Write pump, the connection's only writer: initial snapshot first,
	// then hub events until the subscription is dropped.
	go func() {
		s.sendInitialSnapshot(r, conn)
		for event := range sub.C {
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Debug("WebSocket write failed", slog.String("error", err.Error()))
				return
			}
		}
		// Subscription dropped or hub closed: tell the client why.
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream closed"),
			deadline)
		conn.Close()
	}()

	// Read loop: drain control frames and detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("WebSocket read error", slog.String("error", err.Error()))
			}
			break
		}
	}
}

// sendInitialSnapshot pushes the current wallet state and recent
// transactions so a fresh client renders without waiting for activity.
func (s *Server) sendInitialSnapshot(r *http.Request, conn *websocket.Conn) {
	event := types.Event{}
	if s.wallet != nil {
		event.Wallet = s.wallet.Info()
	}
	if s.store != nil {
		records, err := s.store.Query(r.Context(), ledger.Filter{}, initialSnapshotLimit, 0)
		if err != nil {
			s.logger.Warn("initial snapshot query failed", slog.String("error", err.Error()))
		} else {
			event.Transactions = records
		}
	}
	if event.Wallet == nil && len(event.Transactions) == 0 {
		return
	}
	if err := conn.WriteJSON(event); err != nil {
		s.logger.Debug("initial snapshot write failed", slog.String("error", err.Error()))
	}
}
