package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/sentinel/internal/domain"
)

const streamWriteWait = 5 * time.Second

// streamMessage is one websocket frame of the price stream.
type streamMessage struct {
	Type        string                      `json:"type"`
	Prices      domain.PriceSnapshot        `json:"prices"`
	Opportunity domain.ArbitrageOpportunity `json:"opportunity"`
}

// handleStream empuja un snapshot al conectar y después cada StreamInterval.
// Los mensajes del cliente se descartan; se leen solo para detectar el cierre.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade ya respondió con el error HTTP.
		s.logger.Warn("httpapi: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	s.deps.Metrics.StreamOpened()
	defer s.deps.Metrics.StreamClosed()
	s.logger.Debug("httpapi: stream opened", "remote_addr", r.RemoteAddr)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(streamMessage{
			Type:        "prices",
			Prices:      s.deps.Market.Snapshot(),
			Opportunity: s.deps.Market.Arbitrage(),
		})
	}
	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(s.deps.StreamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			s.logger.Debug("httpapi: stream closed by client", "remote_addr", r.RemoteAddr)
			return
		case <-s.quit:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if err := send(); err != nil {
				s.logger.Debug("httpapi: stream write failed", "err", err)
				return
			}
		}
	}
}
