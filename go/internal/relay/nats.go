// Package relay mirrors outbound room events onto NATS so out-of-process
// consumers (stream overlays, analytics) can follow games without holding a
// websocket into the gateway.
package relay

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// subjectPrefix namespaces every published subject:
// party.room.<code>.<event>.
const subjectPrefix = "party.room"

// NATSRelay publishes room events as they are broadcast. Publish failures
// are logged and dropped; the relay is an observer, never a dependency of
// game flow.
type NATSRelay struct {
	conn *nats.Conn
}

// Connect dials the NATS server. Returns an error only on initial dial;
// reconnects are handled by the client.
func Connect(url string) (*NATSRelay, error) {
	conn, err := nats.Connect(url,
		nats.Name("podiumquiz-relay"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	log.Info().Str("url", url).Msg("event relay connected")
	return &NATSRelay{conn: conn}, nil
}

// Publish implements gateway.EventSink.
func (r *NATSRelay) Publish(roomCode string, event game.EventType, data []byte) {
	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, roomCode, event)
	if err := r.conn.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to publish room event")
	}
}

// Close drains and closes the connection.
func (r *NATSRelay) Close() {
	if err := r.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("failed to drain NATS connection")
	}
}
