package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"packwatch/internal/catalog"
	"packwatch/internal/components/assert"
	"packwatch/internal/components/chrono"
	"packwatch/internal/components/telemetry"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

const report_nats_publish = "nats.publish"

const DefaultSubjectPrefix = "packwatch.events"

// Message is the payload published for every notification.
type Message struct {
	SubscriberId int64                 `json:"subscriber_id"`
	SentAt       time.Time             `json:"sent_at"`
	Events       []catalog.ChangeEvent `json:"events"`
}

// headerCarrier adapts nats.Msg headers for otel propagation.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSNotifier publishes events as json on "<prefix>.<subscriber id>" for a
// chat transport to pick up.
type NATSNotifier struct {
	conn   Publisher
	prefix string
	time   chrono.TimeAPI
	tel    telemetry.API
}

func NewNATSNotifier(conn Publisher, prefix string, tel telemetry.API) *NATSNotifier {
	assert.NotNil(conn)
	assert.NotNil(tel)

	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSNotifier{
		conn:   conn,
		prefix: prefix,
		time:   chrono.NewStandardTime(),
		tel:    telemetry.NewScopedAPI("notify", tel),
	}
}

func (n *NATSNotifier) Subject(subscriberId int64) string {
	return fmt.Sprintf("%s.%d", n.prefix, subscriberId)
}

func (n *NATSNotifier) Notify(ctx context.Context, subscriberId int64, events []catalog.ChangeEvent) error {
	data, err := json.Marshal(Message{
		SubscriberId: subscriberId,
		SentAt:       n.time.Now().UTC(),
		Events:       events,
	})
	if err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: n.Subject(subscriberId),
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))

	err = n.conn.PublishMsg(msg)
	if err != nil {
		n.tel.ReportBroken(report_nats_publish, err, msg.Subject)
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}
