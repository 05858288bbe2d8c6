package mq

import (
	"testing"

	"github.com/mindsight/journal/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRoutingKey(t *testing.T) {
	if got := routingKey(map[string]string{attrEventType: "entry.deleted"}); got != "entry.deleted" {
		t.Fatalf("unexpected routing key: %q", got)
	}
	if got := routingKey(nil); got != "event" {
		t.Fatalf("expected fallback routing key, got %q", got)
	}
}

func TestTableToAttributes(t *testing.T) {
	attrs := tableToAttributes(amqp.Table{"event_type": "user.registered", "attempt": int32(2)})
	if attrs["event_type"] != "user.registered" || attrs["attempt"] != "2" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if tableToAttributes(nil) != nil {
		t.Fatalf("expected nil attributes for empty table")
	}
}

func TestNewRabbitMQClientRequiresURL(t *testing.T) {
	if _, err := NewRabbitMQClient(config.RabbitMQConfig{URL: " "}); err == nil {
		t.Fatalf("expected error without url")
	}
}
