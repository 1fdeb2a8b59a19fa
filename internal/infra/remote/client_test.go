package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
	"github.com/swaplane/offersvc/internal/infra/resilience"
)

type fakeCatalog struct {
	calls   int
	results []domain.ValidationResult
	err     error
}

func (f *fakeCatalog) ValidateItems(ctx context.Context, itemIDs []uuid.UUID) ([]domain.ValidationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeChat struct {
	calls  int
	roomID uuid.UUID
	err    error
}

func (f *fakeChat) CreateRoom(ctx context.Context, a, b uuid.UUID, roomContext string) (uuid.UUID, error) {
	f.calls++
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.roomID, nil
}

func testConfig() Config {
	return Config{
		Breaker: resilience.BreakerConfig{FailMax: 5, ResetTimeout: time.Minute},
		Retry:   resilience.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond},
	}
}

func TestClient_ValidateItemsSuccess(t *testing.T) {
	itemID := uuid.New()
	catalog := &fakeCatalog{results: []domain.ValidationResult{{ItemID: itemID, Exists: true, IsActive: true}}}
	c := NewClient(catalog, &fakeChat{}, testConfig(), nil)

	results, err := c.ValidateItems(context.Background(), []uuid.UUID{itemID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ItemID != itemID {
		t.Errorf("unexpected results: %+v", results)
	}
	if catalog.calls != 1 {
		t.Errorf("expected 1 raw call, got %d", catalog.calls)
	}
}

func TestClient_TransientFailureRetriedThenUnavailable(t *testing.T) {
	catalog := &fakeCatalog{err: &domain.TransientError{Op: "catalog validate", Err: errors.New("connection refused")}}
	c := NewClient(catalog, &fakeChat{}, testConfig(), nil)

	_, err := c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if catalog.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", catalog.calls)
	}
}

func TestClient_BreakerOpensThenFailsFast(t *testing.T) {
	catalog := &fakeCatalog{err: &domain.TransientError{Op: "catalog validate", Err: errors.New("connection refused")}}
	cfg := testConfig()
	cfg.Breaker.FailMax = 5
	c := NewClient(catalog, &fakeChat{}, cfg, nil)

	// First call: 3 attempts, all failing. Second call: 2 more attempts trip
	// the breaker at 5 consecutive failures, then ErrCircuitOpen short-circuits.
	_, _ = c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()})
	_, _ = c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()})

	rawCallsBefore := catalog.calls
	if rawCallsBefore != 5 {
		t.Fatalf("expected breaker to trip after 5 raw calls, got %d", rawCallsBefore)
	}

	start := time.Now()
	_, err := c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()})
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if catalog.calls != rawCallsBefore {
		t.Errorf("open breaker must not invoke the dependency, got %d extra calls", catalog.calls-rawCallsBefore)
	}
	// Fail fast: no backoff observed.
	if elapsed > 50*time.Millisecond {
		t.Errorf("expected sub-millisecond fail-fast, took %v", elapsed)
	}
}

func TestClient_BreakerRecoversAfterCooldown(t *testing.T) {
	catalog := &fakeCatalog{err: &domain.TransientError{Op: "catalog validate", Err: errors.New("connection refused")}}
	cfg := testConfig()
	cfg.Breaker.FailMax = 3
	cfg.Breaker.ResetTimeout = 20 * time.Millisecond
	c := NewClient(catalog, &fakeChat{}, cfg, nil)

	_, _ = c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()}) // trips at 3 failures

	time.Sleep(30 * time.Millisecond)

	// Catalog recovered: the half-open probe succeeds and the breaker closes.
	catalog.err = nil
	catalog.results = []domain.ValidationResult{}
	if _, err := c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()}); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}

	states := c.BreakerStates()
	if states[0].State != "closed" {
		t.Errorf("expected catalog breaker closed after recovery, got %s", states[0].State)
	}
}

func TestClient_PermanentErrorPassesThrough(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("catalog validate: unexpected status 400")}
	c := NewClient(catalog, &fakeChat{}, testConfig(), nil)

	_, err := c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()})
	if errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("permanent error must not map to unavailable: %v", err)
	}
	if catalog.calls != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", catalog.calls)
	}
}

func TestClient_ChatAndCatalogBreakersIndependent(t *testing.T) {
	catalog := &fakeCatalog{err: &domain.TransientError{Op: "catalog validate", Err: errors.New("connection refused")}}
	chat := &fakeChat{roomID: uuid.New()}
	cfg := testConfig()
	cfg.Breaker.FailMax = 3
	c := NewClient(catalog, chat, cfg, nil)

	_, _ = c.ValidateItems(context.Background(), []uuid.UUID{uuid.New()}) // trips catalog breaker

	roomID, err := c.CreateChatRoom(context.Background(), uuid.New(), uuid.New(), "trade:x")
	if err != nil {
		t.Fatalf("chat breaker must be unaffected by catalog failures: %v", err)
	}
	if roomID != chat.roomID {
		t.Errorf("unexpected room id %s", roomID)
	}

	states := c.BreakerStates()
	if states[0].State != "open" || states[1].State != "closed" {
		t.Errorf("expected catalog open / chat closed, got %s / %s", states[0].State, states[1].State)
	}
}
