package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
)

// Subjects
const (
	SubjectTrackingState = "tracking.state."  // + session ID
	SubjectPrompt        = "tracking.prompt." // + session ID
	SubjectMatch         = "match.success"
	SubjectFix           = "location.fix." // + device
)

// StateEvent is the payload published on every tracking transition.
type StateEvent struct {
	SessionID    string               `json:"session_id"`
	State        domain.TrackingState `json:"state"`
	DistanceText string               `json:"distance_text"`
	Subtitle     string               `json:"subtitle"`
	Indicator    string               `json:"indicator"`
}

// NewStateEvent wraps a snapshot with its rendered texts.
func NewStateEvent(sessionID string, st domain.TrackingState) StateEvent {
	return StateEvent{
		SessionID:    sessionID,
		State:        st,
		DistanceText: st.DistanceText(),
		Subtitle:     st.Subtitle(),
		Indicator:    st.Indicator(),
	}
}

// Publisher implements ports.EventPublisher. Tracking snapshots go over core
// NATS; matches are persisted in JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newPublisher(conn)
}

// newPublisher takes ownership of conn; it is closed if JetStream setup fails.
func newPublisher(conn *nats.Conn, jsOpts ...nats.JSOpt) (*Publisher, error) {
	js, err := conn.JetStream(jsOpts...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "MATCHES",
			Subjects:  []string{"match.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishTrackingState(ctx context.Context, sessionID string, st domain.TrackingState) error {
	data, err := json.Marshal(NewStateEvent(sessionID, st))
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectTrackingState+sessionID, data)
}

func (p *Publisher) PublishPermissionPrompt(ctx context.Context, sessionID string) error {
	return p.conn.Publish(SubjectPrompt+sessionID, []byte(sessionID))
}

func (p *Publisher) PublishMatch(ctx context.Context, m *domain.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectMatch, data, nats.Context(ctx), nats.MsgId(m.ID))
	return err
}

// Conn exposes the underlying connection for subscribers sharing it.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("neighborhelper"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
