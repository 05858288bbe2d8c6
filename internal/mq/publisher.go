package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
)

const (
	attrEventType   = "event_type"
	defaultSendWait = 5 * time.Second
)

// Publisher encodes domain events as JSON and publishes them to one channel
// in the background. Failures are logged and never returned to the caller.
type Publisher struct {
	mq      *MQ
	channel string
	logger  zerolog.Logger
	pending sync.WaitGroup
}

func NewPublisher(mq *MQ, channel string, logger zerolog.Logger) *Publisher {
	return &Publisher{mq: mq, channel: channel, logger: logger}
}

// Publish queues event for sending, filling in its ID when empty. It returns
// before the broker acknowledges; call Wait to flush.
func (p *Publisher) Publish(ctx context.Context, event types.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("encode event")
		return
	}

	// Detach from request cancellation so a finished request still publishes.
	ctx = context.WithoutCancel(ctx)
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.send(ctx, event, data)
	}()
}

// Wait blocks until every queued event has been sent or has failed.
func (p *Publisher) Wait() {
	p.pending.Wait()
}

func (p *Publisher) send(ctx context.Context, event types.Event, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, defaultSendWait)
	defer cancel()

	id, err := p.mq.Publish(ctx, p.channel, data, map[string]string{attrEventType: string(event.Type)})
	if err != nil {
		p.logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("publish event")
		return
	}
	p.logger.Debug().Str("event_id", event.ID).Str("message_id", id).Str("event_type", string(event.Type)).Msg("event published")
}

// DecodeEvent parses a message produced by Publisher.
func DecodeEvent(msg Message) (types.Event, error) {
	var event types.Event
	err := json.Unmarshal(msg.Data, &event)
	return event, err
}
