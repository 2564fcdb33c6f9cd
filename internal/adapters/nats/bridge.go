package natsadapter

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/roadclosures/capture/internal/core/ports"
)

// remotePrefix marks bus topics that arrived over NATS. The bridge
// never re-imports a remote topic, which keeps two bridged instances
// from ping-ponging events forever.
const remotePrefix = "remote."

// Bridge feeds capture events published by other instances into the
// local bus under the remote. topic prefix. Local subscribers opt in
// explicitly; nothing in the coordinator reacts to remote events.
type Bridge struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewBridge creates a bridge on its own plain connection. JetStream is
// not used on the inbound side: the local bus has no replay either, so
// live delivery is the honest contract.
func NewBridge(url string) (*Bridge, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Bridge{conn: conn}, nil
}

// Run subscribes to every capture subject and republishes onto bus.
func (b *Bridge) Run(bus ports.EventBus) error {
	sub, err := b.conn.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		if topic, ok := importTopic(msg); ok {
			bus.Publish(remotePrefix+topic, msg.Data)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s>: %w", subjectPrefix, err)
	}
	b.sub = sub
	return nil
}

// importTopic maps a mirrored message onto a local bus topic. Messages
// this instance's own mirror published are dropped, as are already
// re-imported ones: the local bus delivered those firsthand, and an
// echo would show every local event twice.
func importTopic(msg *nats.Msg) (string, bool) {
	if msg.Header.Get(headerInstance) == instanceID {
		return "", false
	}
	topic := strings.TrimPrefix(msg.Subject, subjectPrefix)
	if strings.HasPrefix(topic, remotePrefix) {
		return "", false
	}
	return topic, true
}

// Close unsubscribes and drains.
func (b *Bridge) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	_ = b.conn.Drain()
}
