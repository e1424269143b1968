package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/zedx/payments-service/internal/store"
	"github.com/zedx/payments-service/pkg/rabbitmq"
)

const (
	defaultBatchSize       = 50
	defaultPollInterval    = 1200 * time.Millisecond
	defaultStaleProcessing = 2 * time.Minute
	maxRetryDelaySeconds   = 300
)

// PublisherFactory opens a publisher. It is called lazily and again after a
// publish failure.
type PublisherFactory func() (rabbitmq.Publisher, error)

// OutboxDispatcher publishes events written to the outbox.
type OutboxDispatcher struct {
	repo                store.OutboxRepository
	newPublisher        PublisherFactory
	batchSize           int
	pollInterval        time.Duration
	staleProcessingTime time.Duration
	publisher           rabbitmq.Publisher
}

// NewOutboxDispatcher creates a dispatcher. An empty rabbitURL selects the
// logging fallback publisher.
func NewOutboxDispatcher(repo store.OutboxRepository, rabbitURL string) *OutboxDispatcher {
	factory := func() (rabbitmq.Publisher, error) {
		if rabbitURL == "" {
			return &rabbitmq.EventProducerFallback{}, nil
		}
		return rabbitmq.NewEventProducer(rabbitURL)
	}
	return NewOutboxDispatcherWithFactory(repo, factory)
}

// NewOutboxDispatcherWithFactory creates a dispatcher that opens publishers with factory.
func NewOutboxDispatcherWithFactory(repo store.OutboxRepository, factory PublisherFactory) *OutboxDispatcher {
	return &OutboxDispatcher{
		repo:                repo,
		newPublisher:        factory,
		batchSize:           defaultBatchSize,
		pollInterval:        defaultPollInterval,
		staleProcessingTime: defaultStaleProcessing,
	}
}

// Run polls the outbox until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	defer d.closePublisher()

	log.Printf("level=info component=outbox msg=\"dispatcher started\" interval=%s", d.pollInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("level=info component=outbox msg=\"dispatcher stopped\"")
			return
		case <-ticker.C:
			if err := d.FlushOnce(ctx); err != nil {
				log.Printf("level=warn component=outbox msg=\"flush failed\" err=%v", err)
			}
		}
	}
}

// FlushOnce claims one batch and publishes it.
func (d *OutboxDispatcher) FlushOnce(ctx context.Context) error {
	staleAfterSeconds := int(d.staleProcessingTime.Seconds())
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, staleAfterSeconds)
	if err != nil {
		return err
	}

	for _, message := range messages {
		if err := d.publishMessage(ctx, message); err != nil {
			retryAfter := retryDelaySeconds(message.Attempts)
			log.Printf("level=warn component=outbox msg=\"publish failed\" id=%d routing_key=%s attempts=%d retry_after=%d err=%v", message.ID, message.RoutingKey, message.Attempts, retryAfter, err)
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryAfter, err.Error()); markErr != nil {
				log.Printf("level=error component=outbox msg=\"mark failed failed\" id=%d err=%v", message.ID, markErr)
			}
			continue
		}
		if err := d.repo.MarkOutboxPublished(ctx, message.ID); err != nil {
			log.Printf("level=error component=outbox msg=\"mark published failed\" id=%d err=%v", message.ID, err)
		}
	}
	return nil
}

func (d *OutboxDispatcher) publishMessage(ctx context.Context, message store.OutboxMessage) error {
	if d.publisher == nil {
		publisher, err := d.newPublisher()
		if err != nil {
			return err
		}
		d.publisher = publisher
	}

	if err := d.publisher.Publish(ctx, message.Exchange, message.RoutingKey, json.RawMessage(message.Payload)); err != nil {
		d.closePublisher()
		return err
	}
	return nil
}

func (d *OutboxDispatcher) closePublisher() {
	if d.publisher != nil {
		d.publisher.Close()
		d.publisher = nil
	}
}

func retryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << min(attempt, 8)
	if delay > maxRetryDelaySeconds {
		return maxRetryDelaySeconds
	}
	return delay
}
