package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mindsight/journal/config"
	"github.com/segmentio/kafka-go"
)

// KafkaClient maps channels to Kafka topics. Writers are created lazily per
// topic and share the broker list.
type KafkaClient struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	groupID := strings.TrimSpace(cfg.GroupID)
	if groupID == "" {
		groupID = "mindsight"
	}
	return &KafkaClient{
		brokers: cfg.Brokers,
		groupID: groupID,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := uuid.NewString()
	headers := make([]kafka.Header, 0, len(attrs)+1)
	headers = append(headers, kafka.Header{Key: "message_id", Value: []byte(messageID)})
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	err := k.writer(channel).WriteMessages(ctx, kafka.Message{
		Key:     []byte(messageID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		return "", fmt.Errorf("write kafka message: %w", err)
	}
	return messageID, nil
}

// Subscribe reads the topic as part of the configured consumer group. Offsets
// are committed only after the handler succeeds; a handler error ends the
// subscription and is returned.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    channel,
		GroupID:  k.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	return consumeKafka(ctx, reader, handler)
}

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// consumeKafka stops at the first handler error without committing, so the
// group resumes from the failed message instead of skipping it.
func consumeKafka(ctx context.Context, reader kafkaReader, handler Handler) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		attrs := make(map[string]string, len(msg.Headers))
		for _, header := range msg.Headers {
			attrs[header.Key] = string(header.Value)
		}
		if err := handler(ctx, Message{ID: attrs["message_id"], Data: msg.Value, Attributes: attrs}); err != nil {
			return fmt.Errorf("handle kafka message at offset %d: %w", msg.Offset, err)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit kafka message: %w", err)
		}
	}
}

func (k *KafkaClient) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var errs []error
	for topic, w := range k.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(k.writers, topic)
	}
	return errors.Join(errs...)
}

func (k *KafkaClient) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	if w, ok := k.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = w
	return w
}
