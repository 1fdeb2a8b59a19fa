package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
)

type fakeSubscription struct {
	ch chan domain.Delivery
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{ch: make(chan domain.Delivery, 16)}
}

func (f *fakeSubscription) Deliveries() <-chan domain.Delivery { return f.ch }
func (f *fakeSubscription) Close() error                       { close(f.ch); return nil }

type fakeStore struct {
	mu     sync.Mutex
	events []*domain.NotificationEvent
	err    error
}

func (f *fakeStore) Save(ctx context.Context, event *domain.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *event
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type delivered struct {
	mu     sync.Mutex
	acked  int
	nacked int
}

func (d *delivered) delivery(body []byte, redelivered bool) domain.Delivery {
	return domain.Delivery{
		Body:        body,
		Redelivered: redelivered,
		AckFunc: func() error {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.acked++
			return nil
		},
		NackFunc: func() error {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.nacked++
			return nil
		},
	}
}

func (d *delivered) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acked, d.nacked
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func event(userID uuid.UUID) *domain.NotificationEvent {
	return &domain.NotificationEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.NotificationTradeOfferReceived,
		Title:     "New trade offer",
		Body:      "Someone wants to trade with you",
		CreatedAt: time.Now().UTC(),
	}
}

func TestConsumer_StoresAndAcks(t *testing.T) {
	sub := newFakeSubscription()
	store := &fakeStore{}
	track := &delivered{}
	c := NewConsumer(sub, store, nil, nil)
	c.Start()
	defer c.Stop(context.Background())

	body, _ := json.Marshal(event(uuid.New()))
	sub.ch <- track.delivery(body, false)

	waitFor(t, func() bool { acked, _ := track.counts(); return acked == 1 })
	if store.count() != 1 {
		t.Errorf("expected 1 stored event, got %d", store.count())
	}
	if _, nacked := track.counts(); nacked != 0 {
		t.Errorf("expected no nacks, got %d", nacked)
	}
}

func TestConsumer_MalformedPayloadAckedNotStored(t *testing.T) {
	sub := newFakeSubscription()
	store := &fakeStore{}
	track := &delivered{}
	c := NewConsumer(sub, store, nil, nil)
	c.Start()
	defer c.Stop(context.Background())

	sub.ch <- track.delivery([]byte("{not json"), false)
	// A valid message behind the poison one must still get through.
	body, _ := json.Marshal(event(uuid.New()))
	sub.ch <- track.delivery(body, false)

	waitFor(t, func() bool { acked, _ := track.counts(); return acked == 2 })
	if store.count() != 1 {
		t.Errorf("expected only the valid event stored, got %d", store.count())
	}
}

func TestConsumer_StorageFailureNacksForRequeue(t *testing.T) {
	sub := newFakeSubscription()
	store := &fakeStore{}
	store.setErr(errors.New("db down"))
	track := &delivered{}
	c := NewConsumer(sub, store, nil, nil)
	c.Start()
	defer c.Stop(context.Background())

	ev := event(uuid.New())
	body, _ := json.Marshal(ev)
	sub.ch <- track.delivery(body, false)

	waitFor(t, func() bool { _, nacked := track.counts(); return nacked == 1 })
	if acked, _ := track.counts(); acked != 0 {
		t.Errorf("failed event must not be acked, got %d acks", acked)
	}

	// Storage recovers; the redelivery succeeds.
	store.setErr(nil)
	sub.ch <- track.delivery(body, true)
	waitFor(t, func() bool { acked, _ := track.counts(); return acked == 1 })
	if store.count() != 1 {
		t.Errorf("expected event stored on redelivery, got %d", store.count())
	}
}

type fakeDedup struct {
	mu    sync.Mutex
	seen  map[string]bool
	marks int
}

func (f *fakeDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[eventID], nil
}

func (f *fakeDedup) Mark(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[eventID] = true
	f.marks++
	return nil
}

func (f *fakeDedup) markCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks
}

func TestConsumer_DuplicateDeliveryAckedOnce(t *testing.T) {
	sub := newFakeSubscription()
	store := &fakeStore{}
	track := &delivered{}
	c := NewConsumer(sub, store, &fakeDedup{}, nil)
	c.Start()
	defer c.Stop(context.Background())

	body, _ := json.Marshal(event(uuid.New()))
	sub.ch <- track.delivery(body, false)
	sub.ch <- track.delivery(body, true)

	waitFor(t, func() bool { acked, _ := track.counts(); return acked == 2 })
	if store.count() != 1 {
		t.Errorf("duplicate delivery must be stored once, got %d", store.count())
	}
}

// A failed store write must not leave the event marked as seen: the
// redelivery has to pass the dedup check and reach storage, otherwise the
// notification is lost forever.
func TestConsumer_FailedSaveIsNotMarkedSeen(t *testing.T) {
	sub := newFakeSubscription()
	store := &fakeStore{}
	store.setErr(errors.New("db down"))
	dedup := &fakeDedup{}
	track := &delivered{}
	c := NewConsumer(sub, store, dedup, nil)
	c.Start()
	defer c.Stop(context.Background())

	body, _ := json.Marshal(event(uuid.New()))
	sub.ch <- track.delivery(body, false)
	waitFor(t, func() bool { _, nacked := track.counts(); return nacked == 1 })
	if dedup.markCount() != 0 {
		t.Fatalf("failed save must not mark the event seen, got %d marks", dedup.markCount())
	}

	store.setErr(nil)
	sub.ch <- track.delivery(body, true)
	waitFor(t, func() bool { acked, _ := track.counts(); return acked == 1 })
	if store.count() != 1 {
		t.Errorf("redelivered event must be stored, got %d", store.count())
	}
	if dedup.markCount() != 1 {
		t.Errorf("expected the event marked once after the successful save, got %d", dedup.markCount())
	}
}

type blockingStore struct {
	fakeStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, event *domain.NotificationEvent) error {
	close(b.entered)
	<-b.release
	return b.fakeStore.Save(ctx, event)
}

func TestConsumer_StopDrainsInFlightMessage(t *testing.T) {
	sub := newFakeSubscription()
	store := &blockingStore{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	track := &delivered{}
	c := NewConsumer(sub, store, nil, nil)
	c.Start()

	body, _ := json.Marshal(event(uuid.New()))
	sub.ch <- track.delivery(body, false)
	<-store.entered // message is now in flight

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopped <- c.Stop(ctx)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a message was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	if err := <-stopped; err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	acked, nacked := track.counts()
	if acked != 1 || nacked != 0 {
		t.Errorf("in-flight message left unresolved: acked=%d nacked=%d", acked, nacked)
	}
}
