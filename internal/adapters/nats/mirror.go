// Package natsadapter mirrors the in-process event bus onto NATS so
// other services (dashboards, auditing) can observe capture activity.
// The in-process bus stays the source of truth; the mirror is
// best-effort and never blocks the coordinator.
package natsadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/roadclosures/capture/internal/core/domain"
	"github.com/roadclosures/capture/internal/core/ports"
)

const subjectPrefix = "closures.session."

// headerInstance stamps every mirrored message with the publishing
// instance, so the bridge can tell its own traffic from everyone
// else's. The id is per-process: mirror and bridge share it.
const headerInstance = "Capture-Instance"

var instanceID = nuid.Next()

// Mirror republishes bus events to NATS JetStream.
type Mirror struct {
	conn  *nats.Conn
	js    nats.JetStreamContext
	unsub func()
}

// NewMirror connects to NATS and ensures the capture stream exists.
func NewMirror(url string) (*Mirror, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "CAPTURE_EVENTS",
		Subjects:  []string{"closures.session.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Mirror{conn: conn, js: js}, nil
}

// Attach subscribes the mirror to every bus topic. Call Detach (or
// Close) to stop mirroring.
func (m *Mirror) Attach(bus ports.EventBus) {
	m.unsub = bus.Subscribe(TopicAll, func(topic string, payload any) {
		m.publish(topic, payload)
	})
}

// TopicAll matches the bus wildcard. Kept here so callers wiring the
// mirror do not need to import the bus package.
const TopicAll = "*"

func (m *Mirror) publish(topic string, payload any) {
	// Events the bridge imported from other instances stay local.
	if strings.HasPrefix(topic, remotePrefix) {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("mirror: marshal event", "topic", topic, "error", err)
		return
	}

	// Dropped events are logged, never retried: the in-process bus has
	// already delivered to local subscribers.
	msg := &nats.Msg{
		Subject: subjectPrefix + topic,
		Data:    data,
		Header:  nats.Header{headerInstance: []string{instanceID}},
	}
	if _, err := m.js.PublishMsgAsync(msg); err != nil {
		slog.Warn("mirror: publish event", "subject", msg.Subject, "error", err)
	}
}

// PublishSubmission pushes the submitted closure record itself, beyond
// the bare bus event, for downstream consumers that want the payload.
func (m *Mirror) PublishSubmission(closure *domain.Closure) error {
	data, err := json.Marshal(closure)
	if err != nil {
		return err
	}
	_, err = m.js.PublishMsg(&nats.Msg{
		Subject: "closures.session.submitted.record",
		Data:    data,
		Header:  nats.Header{headerInstance: []string{instanceID}},
	})
	return err
}

// Close detaches from the bus and drains the connection.
func (m *Mirror) Close() {
	if m.unsub != nil {
		m.unsub()
	}
	_ = m.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. remote
// event bridge).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
