package app

import (
	"log/slog"

	"fulfillment/internal/config"
	"fulfillment/internal/events"
)

// NewPublisher connects to RabbitMQ when a URL is configured. Without one,
// ledger events are dropped and the returned close func is a no-op.
func NewPublisher(cfg config.RabbitMQConfig, log *slog.Logger) (events.Publisher, func() error, error) {
	if cfg.URL == "" {
		log.Info("RABBITMQ_URL not set, ledger events disabled")
		return events.NopPublisher{}, func() error { return nil }, nil
	}

	publisher, err := events.NewRabbitPublisher(cfg.URL, cfg.Exchange, log)
	if err != nil {
		return nil, nil, err
	}
	return publisher, publisher.Close, nil
}
