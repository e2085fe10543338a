package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/neighborhelper/internal/adapters/nats"
	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// trackingCommand is sent by the screen over the session socket.
type trackingCommand struct {
	Action string `json:"action"` // "grant" | "deny" | "request" | "revoke"
}

// TrackingSocketHandler streams SessionView snapshots of one session and
// accepts permission commands from the screen. The socket closes when the
// session is disposed.
func TrackingSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		id := c.Params("id")
		sess, err := deps.Sessions.Get(id)
		if err != nil {
			_ = c.WriteJSON(socketError(err))
			return
		}
		log := slog.Default().With("session", id, "remote", c.RemoteAddr().String())
		log.Info("tracking socket connected")

		var mu sync.Mutex
		writeJSON := func(v any) error {
			mu.Lock()
			defer mu.Unlock()
			return c.WriteJSON(v)
		}

		// the observer runs on the session loop and must not block it
		updates := make(chan domain.TrackingState, 16)
		unobserve := sess.Controller.Observe(func(st domain.TrackingState) {
			select {
			case updates <- st:
			default:
				log.Debug("socket slow, dropping snapshot")
			}
		})
		defer unobserve()

		if err := writeJSON(newSessionView(sess)); err != nil {
			return
		}

		done := make(chan struct{})
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case st := <-updates:
					if err := writeJSON(sessionViewOf(sess, st)); err != nil {
						return
					}
					if st.Phase == domain.PhaseDisposed {
						mu.Lock()
						_ = c.WriteMessage(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
						mu.Unlock()
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var cmd trackingCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch cmd.Action {
			case "grant":
				err = sess.Decide(true)
			case "deny":
				err = sess.Decide(false)
			case "request":
				err = sess.RequestPermission()
			case "revoke":
				err = sess.Revoke()
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + cmd.Action, "code": "bad_request"})
				continue
			}
			if err != nil {
				_ = writeJSON(socketError(err))
				if errors.Is(err, domain.ErrSessionClosed) {
					break
				}
			}
		}

		close(done)
		<-writerDone
		log.Info("tracking socket disconnected")
	}
}

// socketError renders err the way the REST envelope would.
func socketError(err error) map[string]string {
	_, code := classify(err)
	return map[string]string{"error": err.Error(), "code": code}
}

// eventMessage is sent from client to subscribe/unsubscribe to event channels.
type eventMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "states" | "prompts" | "matches"
	Session string `json:"session"` // session filter (optional, "" = all)
}

// EventsSocketHandler relays tracking and match events from NATS.
// Clients send JSON: {"action":"subscribe","channel":"states","session":"<id>"}
func EventsSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("events socket connected", "remote", remoteAddr)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m eventMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, err := eventSubject(m)
			if err != nil {
				_ = writeJSON(map[string]string{"error": err.Error()})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
					if json.Valid(msg.Data) {
						_ = writeJSON(json.RawMessage(msg.Data))
						return
					}
					_ = writeJSON(map[string]string{"subject": msg.Subject, "data": string(msg.Data)})
				})
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("events socket disconnected", "remote", remoteAddr)
	}
}

// eventSubject maps a channel and optional session filter to a NATS subject.
// Session filters are single tokens; wildcards and separators are rejected.
func eventSubject(m eventMessage) (string, error) {
	suffix := ">"
	if m.Session != "" {
		if strings.ContainsAny(m.Session, ".*> \t\r\n") {
			return "", fmt.Errorf("invalid session filter %q", m.Session)
		}
		suffix = m.Session
	}
	switch m.Channel {
	case "states", "":
		return natsadapter.SubjectTrackingState + suffix, nil
	case "prompts":
		return natsadapter.SubjectPrompt + suffix, nil
	case "matches":
		return natsadapter.SubjectMatch, nil
	default:
		return "", fmt.Errorf("unknown channel: %s", m.Channel)
	}
}
