package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
	"advisory-canvas/internal/protocol"
	"advisory-canvas/internal/resilience"
	"advisory-canvas/internal/store"
	"advisory-canvas/internal/stream"
)

// journalConsumer records the metadata of every relayed envelope.
type journalConsumer struct {
	journal store.Journal
	breaker *resilience.Breaker
	metrics *Metrics
	logger  zerolog.Logger
	timeout time.Duration
}

func (c *journalConsumer) Rooms() []string { return nil }

func (c *journalConsumer) OnMessage(msg stream.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	entry := store.JournalEntry{
		Session: msg.Room,
		Type:    msg.Envelope.Type,
		Chart:   chartOf(msg.Envelope.Payload),
		Sender:  msg.Envelope.From,
		Size:    msg.Size,
		At:      msg.ReceivedAt,
	}
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.journal.Record(ctx, entry)
	})
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrCircuitOpen):
		c.metrics.journalSkipped.Inc()
	default:
		c.metrics.journalErrs.Inc()
		c.logger.Warn().Err(err).Str("session", msg.Room).Str("type", entry.Type).Msg("Journal write failed")
	}
}

// chartOf pulls the chart key out of a payload without decoding the rest.
// chart:change carries the key at the top level.
func chartOf(payload json.RawMessage) string {
	var head struct {
		Chart  *protocol.ChartKey `json:"chart"`
		Ticker string             `json:"ticker"`
		Period string             `json:"period"`
	}
	if len(payload) == 0 || json.Unmarshal(payload, &head) != nil {
		return ""
	}
	if head.Chart != nil {
		return head.Chart.ToModel().String()
	}
	if head.Ticker != "" {
		return models.ChartKey{Ticker: head.Ticker, Period: head.Period}.String()
	}
	return ""
}

var _ stream.Consumer = (*journalConsumer)(nil)
