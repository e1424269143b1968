package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/zedx/payments-service/internal/store"
	"github.com/zedx/payments-service/pkg/rabbitmq"
)

type outboxRepoStub struct {
	store.OutboxRepository

	messages  []store.OutboxMessage
	published []int64
	failed    map[int64]int
	claimErr  error
}

func (s *outboxRepoStub) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	out := s.messages
	s.messages = nil
	return out, nil
}

func (s *outboxRepoStub) MarkOutboxPublished(ctx context.Context, id int64) error {
	s.published = append(s.published, id)
	return nil
}

func (s *outboxRepoStub) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	if s.failed == nil {
		s.failed = map[int64]int{}
	}
	s.failed[id] = retryAfterSeconds
	return nil
}

type publisherStub struct {
	failRoutingKey string
	bodies         map[string]string
	closed         int
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if routingKey == p.failRoutingKey {
		return errors.New("channel closed")
	}
	raw, _ := body.(json.RawMessage)
	if p.bodies == nil {
		p.bodies = map[string]string{}
	}
	p.bodies[routingKey] = string(raw)
	return nil
}

func (p *publisherStub) Close() { p.closed++ }

func TestOutboxDispatcher_PublishesAndMarks(t *testing.T) {
	repo := &outboxRepoStub{messages: []store.OutboxMessage{
		{ID: 1, Exchange: "zedx.events", RoutingKey: "payment.initiated", Payload: []byte(`{"payment_id":"p1"}`), Attempts: 1},
		{ID: 2, Exchange: "zedx.events", RoutingKey: "customer.verified", Payload: []byte(`{"user_id":"u1"}`), Attempts: 3},
	}}
	publisher := &publisherStub{failRoutingKey: "customer.verified"}
	opened := 0
	dispatcher := NewOutboxDispatcherWithFactory(repo, func() (rabbitmq.Publisher, error) {
		opened++
		return publisher, nil
	})

	if err := dispatcher.FlushOnce(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(repo.published) != 1 || repo.published[0] != 1 {
		t.Fatalf("expected message 1 published, got %v", repo.published)
	}
	if publisher.bodies["payment.initiated"] != `{"payment_id":"p1"}` {
		t.Fatalf("expected raw payload to be forwarded, got %q", publisher.bodies["payment.initiated"])
	}
	if repo.failed[2] != 8 {
		t.Fatalf("expected message 2 retried after 8s, got %v", repo.failed)
	}
	if publisher.closed != 1 || dispatcher.publisher != nil {
		t.Fatalf("expected publisher to be closed after failure")
	}
	if opened != 1 {
		t.Fatalf("expected one publisher to be opened, got %d", opened)
	}
}

func TestOutboxDispatcher_FactoryFailureMarksFailed(t *testing.T) {
	repo := &outboxRepoStub{messages: []store.OutboxMessage{{ID: 7, RoutingKey: "payment.initiated", Payload: []byte(`{}`), Attempts: 1}}}
	dispatcher := NewOutboxDispatcherWithFactory(repo, func() (rabbitmq.Publisher, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	if err := dispatcher.FlushOnce(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, ok := repo.failed[7]; !ok {
		t.Fatalf("expected message 7 to be marked failed")
	}
}

func TestOutboxDispatcher_ClaimErrorIsReturned(t *testing.T) {
	repo := &outboxRepoStub{claimErr: errors.New("db down")}
	dispatcher := NewOutboxDispatcher(repo, "")
	if err := dispatcher.FlushOnce(context.Background()); err == nil {
		t.Fatalf("expected claim error")
	}
}

func TestOutboxDispatcher_FallbackWhenBrokerNotConfigured(t *testing.T) {
	repo := &outboxRepoStub{messages: []store.OutboxMessage{{ID: 3, RoutingKey: "funding_source.linked", Payload: []byte(`{}`), Attempts: 1}}}
	dispatcher := NewOutboxDispatcher(repo, "")

	if err := dispatcher.FlushOnce(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(repo.published) != 1 {
		t.Fatalf("expected fallback publish to mark message published, got %v", repo.published)
	}
}

func TestRetryDelaySeconds(t *testing.T) {
	tests := []struct {
		attempt int
		want    int
	}{
		{0, 1},
		{1, 2},
		{3, 8},
		{8, 256},
		{20, 256},
	}
	for _, tt := range tests {
		if got := retryDelaySeconds(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: expected %d, got %d", tt.attempt, tt.want, got)
		}
	}
}
