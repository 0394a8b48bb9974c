// Package broker forwards domain notifications to an external message broker.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ds124wfegd/ewm/config"
	"github.com/sirupsen/logrus"
)

const (
	KindRabbitMQ = "rabbitmq"
	KindKafka    = "kafka"
	KindLog      = "log"
)

// Publisher sends a JSON payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// New builds the publisher selected by cfg.Kind.
func New(cfg *config.BrokerConfig) (Publisher, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindRabbitMQ:
		return NewRabbitPublisher(cfg.RabbitMQURL, cfg.Exchange)
	case KindKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case KindLog, "":
		return NewLogPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}

// LogPublisher writes notifications to the application log. It is used when
// no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

func (p *LogPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	logrus.WithField("routing_key", routingKey).Info(string(body))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
