package stripewebhook

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("ds:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestIdempotencyGuard_CheckAndMark(t *testing.T) {
	guard, err := NewIdempotencyGuard(newInMemoryStore(), time.Minute, "stripe-webhook")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	alreadyProcessed, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if alreadyProcessed {
		t.Fatalf("first delivery must not be marked processed")
	}

	alreadyProcessed, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !alreadyProcessed {
		t.Fatalf("replay must be marked processed")
	}
}

func TestIdempotencyGuard_DeleteReleasesKey(t *testing.T) {
	guard, err := NewIdempotencyGuard(newInMemoryStore(), time.Minute, "stripe-webhook")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), "evt_1"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	alreadyProcessed, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("check after delete: %v", err)
	}
	if alreadyProcessed {
		t.Fatalf("deleted key must be claimable again")
	}
}

func TestNewIdempotencyGuard_Validation(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Minute, "scope"); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewIdempotencyGuard(newInMemoryStore(), -time.Minute, "scope"); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
	if _, err := NewIdempotencyGuard(newInMemoryStore(), time.Minute, ""); err == nil {
		t.Fatalf("expected error for blank scope")
	}

	guard, err := NewIdempotencyGuard(newInMemoryStore(), time.Minute, "scope")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatalf("expected error for blank event id")
	}
}
