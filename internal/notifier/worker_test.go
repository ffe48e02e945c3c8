package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/notifier"
	"github.com/ErlanBelekov/account-service/internal/repository"
)

// ---- fakes ----

type fakeSubscriber struct {
	deliveries chan repository.Delivery
	queue      string
	err        error
}

func (s *fakeSubscriber) Subscribe(_ context.Context, queue string) (<-chan repository.Delivery, error) {
	s.queue = queue
	if s.err != nil {
		return nil, s.err
	}
	return s.deliveries, nil
}

type memCache struct {
	mu   sync.Mutex
	keys map[string][]byte
	err  error
}

func (c *memCache) Set(_ context.Context, k string, v []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[k] = v
	return nil
}

func (c *memCache) Get(_ context.Context, k string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.keys[k]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v, nil
}

func (c *memCache) Delete(_ context.Context, k string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, k)
	return nil
}

func (c *memCache) SetNX(_ context.Context, k string, v []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.keys[k]; ok {
		return false, nil
	}
	c.keys[k] = v
	return true, nil
}

func (c *memCache) has(k string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keys[k]
	return ok
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []email.Message
}

func (s *fakeSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type outcome struct {
	acked   bool
	nacked  bool
	requeue bool
}

type recorder struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (r *recorder) delivery(body []byte, redelivered bool) repository.Delivery {
	return repository.Delivery{
		Body:        body,
		Redelivered: redelivered,
		Ack: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.outcomes = append(r.outcomes, outcome{acked: true})
			return nil
		},
		Nack: func(requeue bool) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.outcomes = append(r.outcomes, outcome{nacked: true, requeue: requeue})
			return nil
		},
	}
}

// ---- helpers ----

func eventBody(t *testing.T, eventID string) []byte {
	t.Helper()
	ev := domain.NewVerificationRequestedEvent("ver-1", "user-1", "alice@example.com", "042042", time.Now())
	ev.EventID = eventID
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// run feeds deliveries through a worker and waits for it to drain.
func run(t *testing.T, cache *memCache, sender *fakeSender, deliveries ...repository.Delivery) {
	t.Helper()
	sub := &fakeSubscriber{deliveries: make(chan repository.Delivery, len(deliveries))}
	for _, d := range deliveries {
		sub.deliveries <- d
	}
	close(sub.deliveries)

	w := notifier.NewWorker(sub, cache, sender, notifier.Config{
		Queue:       "user.verification.requested",
		LinkBase:    "https://app.example.com/",
		Concurrency: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if sub.queue != "user.verification.requested" {
		t.Errorf("subscribed to %q", sub.queue)
	}
}

func newCache() *memCache { return &memCache{keys: make(map[string][]byte)} }

// ---- tests ----

func TestWorker_SendsAndAcks(t *testing.T) {
	cache, sender, rec := newCache(), &fakeSender{}, &recorder{}

	run(t, cache, sender, rec.delivery(eventBody(t, "evt-1"), false))

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "alice@example.com" {
		t.Errorf("to = %q", msg.To)
	}
	if msg.Link != "https://app.example.com/v1/users/verify?code=042042&verification_id=ver-1" {
		t.Errorf("link = %q", msg.Link)
	}
	if !strings.Contains(msg.HTML, "042042") {
		t.Error("body should contain the code")
	}
	if len(rec.outcomes) != 1 || !rec.outcomes[0].acked {
		t.Errorf("outcomes = %+v, want one ack", rec.outcomes)
	}
	if !cache.has("notified:evt-1") {
		t.Error("dedup key should be kept after a successful send")
	}
}

func TestWorker_DuplicateEventSentOnce(t *testing.T) {
	cache, sender, rec := newCache(), &fakeSender{}, &recorder{}

	run(t, cache, sender,
		rec.delivery(eventBody(t, "evt-1"), false),
		rec.delivery(eventBody(t, "evt-1"), true),
	)

	if len(sender.sent) != 1 {
		t.Errorf("sent %d emails, want 1", len(sender.sent))
	}
	for i, o := range rec.outcomes {
		if !o.acked {
			t.Errorf("delivery %d: %+v, want ack", i, o)
		}
	}
}

func TestWorker_MalformedDropped(t *testing.T) {
	cache, sender, rec := newCache(), &fakeSender{}, &recorder{}

	run(t, cache, sender,
		rec.delivery([]byte("{not json"), false),
		rec.delivery([]byte(`{"event":"user.deleted","event_id":"x"}`), false),
	)

	if len(sender.sent) != 0 {
		t.Errorf("sent %d emails, want 0", len(sender.sent))
	}
	for i, o := range rec.outcomes {
		if !o.nacked || o.requeue {
			t.Errorf("delivery %d: %+v, want nack without requeue", i, o)
		}
	}
}

func TestWorker_SendFailure(t *testing.T) {
	tests := []struct {
		name        string
		redelivered bool
		wantRequeue bool
	}{
		{"first delivery requeued", false, true},
		{"redelivery dropped", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, rec := newCache(), &recorder{}
			sender := &fakeSender{err: errors.New("smtp unavailable")}

			run(t, cache, sender, rec.delivery(eventBody(t, "evt-2"), tt.redelivered))

			if len(rec.outcomes) != 1 {
				t.Fatalf("outcomes = %+v", rec.outcomes)
			}
			o := rec.outcomes[0]
			if !o.nacked || o.requeue != tt.wantRequeue {
				t.Errorf("outcome = %+v, want nack requeue=%v", o, tt.wantRequeue)
			}
			if cache.has("notified:evt-2") {
				t.Error("dedup key must be released so a retry can send")
			}
		})
	}
}

func TestWorker_DedupStoreDownStillSends(t *testing.T) {
	cache, sender, rec := newCache(), &fakeSender{}, &recorder{}
	cache.err = repository.ErrUnavailable

	run(t, cache, sender, rec.delivery(eventBody(t, "evt-3"), false))

	if len(sender.sent) != 1 {
		t.Errorf("sent %d emails, want 1", len(sender.sent))
	}
}

func TestWorker_SubscribeError(t *testing.T) {
	w := notifier.NewWorker(&fakeSubscriber{err: errors.New("no broker")}, newCache(), &fakeSender{},
		notifier.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
}

func TestVerifyLink(t *testing.T) {
	got, err := notifier.VerifyLink("http://localhost:8080", "v 1", "000123")
	if err != nil {
		t.Fatalf("verify link: %v", err)
	}
	if got != "http://localhost:8080/v1/users/verify?code=000123&verification_id=v+1" {
		t.Errorf("link = %q", got)
	}
}
