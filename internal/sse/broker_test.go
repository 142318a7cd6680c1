package sse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// drain collects whatever is queued on ch after a short settle period.
func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

// serve runs the broker handler for req until stop is called and returns the body.
func serve(t *testing.T, b *Broker, req *http.Request) (stop func() string) {
	t.Helper()
	ctx, cancel := context.WithCancel(req.Context())
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req.WithContext(ctx))
		close(done)
	}()
	return func() string {
		cancel()
		<-done
		return w.Body.String()
	}
}

func waitClients(t *testing.T, b *Broker, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", b.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientCount(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestContractEvents_CatalogThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishContractEvent(KindCreated, "consents/consents.yaml")
	b.PublishContractEvent(KindUpdated, "accounts/accounts.json")
	b.PublishContractEvent("renamed", "ignored.yaml")

	var contract, catalog []string
	for _, msg := range drain(ch) {
		if strings.Contains(msg, "event: catalog.updated") {
			catalog = append(catalog, msg)
		} else {
			contract = append(contract, msg)
		}
	}
	if len(contract) != 2 {
		t.Fatalf("contract events = %d, want 2", len(contract))
	}
	if !strings.Contains(contract[0], `"path":"consents/consents.yaml"`) {
		t.Errorf("first event = %q", contract[0])
	}
	if len(catalog) != 1 {
		t.Errorf("catalog events = %d, want 1", len(catalog))
	}
}

func TestRecordEvents_SequentialIDs(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishRecordEvent("registered", "consents", 3)
	b.PublishRecordEvent("reset", "", 0)

	got := drain(ch)
	want := []string{
		"id: 1\nevent: records.registered\ndata: {\"contract\":\"consents\",\"count\":3}\n\n",
		"id: 2\nevent: records.reset\ndata: {\"count\":0}\n\n",
	}
	if len(got) != len(want) {
		t.Fatalf("events = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSubscribeWith_Families(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.SubscribeWith(Subscription{Families: []string{"records"}})
	defer b.Unsubscribe(ch)

	b.PublishContractEvent(KindCreated, "loans.yaml")
	b.PublishRecordEvent("registered", "loans", 1)

	got := drain(ch)
	if len(got) != 1 || !strings.Contains(got[0], "event: records.registered") {
		t.Errorf("filtered events = %q", got)
	}
}

func TestSubscribeWith_Replay(t *testing.T) {
	b := NewBroker(time.Second, WithHistory(2))
	defer b.Close()

	for i := 1; i <= 3; i++ {
		b.PublishRecordEvent("registered", fmt.Sprintf("c%d", i), i)
	}
	// Let the loop record the events before subscribing.
	warm := b.Subscribe()
	drain(warm)
	b.Unsubscribe(warm)

	ch := b.SubscribeWith(Subscription{LastEventID: 1})
	defer b.Unsubscribe(ch)
	got := drain(ch)
	if len(got) != 2 {
		t.Fatalf("replayed = %q", got)
	}
	if !strings.HasPrefix(got[0], "id: 2\n") || !strings.HasPrefix(got[1], "id: 3\n") {
		t.Errorf("replay order = %q", got)
	}

	// History is bounded: id 1 is gone.
	all := b.SubscribeWith(Subscription{LastEventID: 0})
	defer b.Unsubscribe(all)
	if got := drain(all); len(got) != 0 {
		t.Errorf("LastEventID 0 should not replay, got %q", got)
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithHeartbeat(0))
	defer b.Close()

	stop := serve(t, b, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	waitClients(t, b, 1)

	b.PublishRecordEvent("registered", "accounts", 1)
	time.Sleep(50 * time.Millisecond)
	body := stop()

	if !strings.Contains(body, "event: records.registered") {
		t.Errorf("handler output missing event: %q", body)
	}
	waitClients(t, b, 0)
}

func TestServeHTTP_QueryAndLastEventID(t *testing.T) {
	b := NewBroker(time.Hour, WithHeartbeat(0))
	defer b.Close()

	warm := b.Subscribe()
	b.PublishContractEvent(KindCreated, "a.yaml") // id 1, catalog.updated id 2
	drain(warm)
	b.PublishRecordEvent("registered", "a", 1) // id 3
	drain(warm)
	b.Unsubscribe(warm)

	req := httptest.NewRequest(http.MethodGet, "/api/events?types=contract,catalog", nil)
	req.Header.Set("Last-Event-ID", "1")
	stop := serve(t, b, req)
	waitClients(t, b, 1)
	time.Sleep(50 * time.Millisecond)
	body := stop()

	if !strings.Contains(body, "id: 2\nevent: catalog.updated") {
		t.Errorf("missing replayed catalog event: %q", body)
	}
	if strings.Contains(body, "records.") || strings.Contains(body, "id: 1\n") {
		t.Errorf("unexpected events: %q", body)
	}
}

func TestServeHTTP_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	stop := serve(t, b, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	time.Sleep(70 * time.Millisecond)
	if body := stop(); !strings.Contains(body, ": ping\n\n") {
		t.Errorf("no heartbeat in %q", body)
	}
}

func TestPublish_SlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "records.registered", Data: map[string]int{"i": i}})
	}
	if got := len(drain(ch)); got != clientBuffer {
		t.Errorf("queued = %d, want %d", got, clientBuffer)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// No-ops after close.
	b.Close()
	b.PublishContractEvent(KindUpdated, "x.yaml")
	b.PublishRecordEvent("reset", "", 0)
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close should return a closed channel")
	}
}
