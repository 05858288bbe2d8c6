package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/mindsight/journal/config"
	"github.com/segmentio/kafka-go"
)

type fakeKafkaReader struct {
	messages  []kafka.Message
	committed []int64
}

func (f *fakeKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		f.committed = append(f.committed, msg.Offset)
	}
	return nil
}

func TestConsumeKafkaStopsWithoutCommittingFailedMessage(t *testing.T) {
	reader := &fakeKafkaReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte("ok"), Headers: []kafka.Header{{Key: "message_id", Value: []byte("m1")}}},
		{Offset: 2, Value: []byte("bad")},
		{Offset: 3, Value: []byte("ok")},
	}}
	handlerErr := errors.New("boom")

	var seen []string
	err := consumeKafka(context.Background(), reader, func(_ context.Context, msg Message) error {
		seen = append(seen, string(msg.Data))
		if string(msg.Data) == "bad" {
			return handlerErr
		}
		return nil
	})

	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected consumption to stop at the failed message, saw %v", seen)
	}
	if len(reader.committed) != 1 || reader.committed[0] != 1 {
		t.Fatalf("expected only offset 1 committed, got %v", reader.committed)
	}
}

func TestConsumeKafkaPassesHeaders(t *testing.T) {
	reader := &fakeKafkaReader{messages: []kafka.Message{{
		Offset:  7,
		Value:   []byte("{}"),
		Headers: []kafka.Header{{Key: "message_id", Value: []byte("m7")}, {Key: attrEventType, Value: []byte("entry.created")}},
	}}}
	ctx, cancel := context.WithCancel(context.Background())

	var got Message
	err := consumeKafka(ctx, reader, func(_ context.Context, msg Message) error {
		got = msg
		cancel()
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if got.ID != "m7" || got.Attributes[attrEventType] != "entry.created" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if len(reader.committed) != 1 || reader.committed[0] != 7 {
		t.Fatalf("expected offset 7 committed, got %v", reader.committed)
	}
}

func TestNewKafkaClientRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaClient(config.KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	client, err := NewKafkaClient(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.groupID != "mindsight" {
		t.Fatalf("unexpected default group: %s", client.groupID)
	}
}
