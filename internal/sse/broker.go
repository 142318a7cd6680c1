// Package sse streams contract and record store changes to clients as
// Server-Sent Events.
//
// Every event carries a sequence id. The broker keeps the most recent events
// so a client reconnecting with Last-Event-ID receives what it missed, and
// clients may restrict the stream to event families with ?types=records,contract.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// family is the part of the event type before the first dot.
func (e Event) family() string {
	f, _, _ := strings.Cut(e.Type, ".")
	return f
}

// Contract change kinds, matching the catalog watcher's callback kinds.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

const (
	defaultHistory   = 256
	defaultHeartbeat = 15 * time.Second
	clientBuffer     = 64
)

// Option configures a Broker.
type Option func(*Broker)

// WithHistory sets how many past events are kept for Last-Event-ID replay.
func WithHistory(n int) Option {
	return func(b *Broker) { b.historySize = n }
}

// WithHeartbeat sets the interval of comment lines written to idle streams.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// Subscription selects which events a client receives.
type Subscription struct {
	Families    []string // empty means all
	LastEventID uint64   // replay retained events with a greater id
}

func (s Subscription) wants(family string) bool {
	if len(s.Families) == 0 {
		return true
	}
	for _, f := range s.Families {
		if f == family {
			return true
		}
	}
	return false
}

type client struct {
	ch  chan []byte
	sub Subscription
}

type frame struct {
	seq    uint64
	family string
	raw    []byte
}

type contractEventReq struct {
	kind string
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the client set, the sequence counter, the replay
// history and the catalog.updated throttle; public methods talk to it over
// channels.
type Broker struct {
	catalogMin  time.Duration
	historySize int
	heartbeat   time.Duration

	subscribeCh     chan *client
	unsubscribeCh   chan chan []byte
	publishCh       chan Event
	contractEventCh chan contractEventReq
	countReqCh      chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one catalog.updated event per
// catalogThrottle.
func NewBroker(catalogThrottle time.Duration, opts ...Option) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}

	b := &Broker{
		catalogMin:      catalogThrottle,
		historySize:     defaultHistory,
		heartbeat:       defaultHeartbeat,
		subscribeCh:     make(chan *client),
		unsubscribeCh:   make(chan chan []byte),
		publishCh:       make(chan Event, 256),
		contractEventCh: make(chan contractEventReq, 256),
		countReqCh:      make(chan chan int),
		stopCh:          make(chan struct{}),
		stopped:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)
	history := make([]frame, 0, b.historySize)
	var lastCatalog time.Time
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		f := frame{
			seq:    seq,
			family: event.family(),
			raw:    []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)),
		}
		if b.historySize > 0 {
			if len(history) == b.historySize {
				history = append(history[:0], history[1:]...)
			}
			history = append(history, f)
		}

		for _, c := range clients {
			if !c.sub.wants(f.family) {
				continue
			}
			select {
			case c.ch <- f.raw:
			default:
				// slow client; drop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c
			if c.sub.LastEventID == 0 {
				continue
			}
			for _, f := range history {
				if f.seq <= c.sub.LastEventID || !c.sub.wants(f.family) {
					continue
				}
				select {
				case c.ch <- f.raw:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.contractEventCh:
			switch req.kind {
			case KindCreated, KindUpdated, KindDeleted:
				broadcast(Event{Type: "contract." + req.kind, Data: map[string]string{"path": req.path}})
			default:
				continue
			}

			now := time.Now()
			if now.Sub(lastCatalog) >= b.catalogMin {
				lastCatalog = now
				broadcast(Event{Type: "catalog.updated", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client for every event family.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeWith(Subscription{})
}

// SubscribeWith registers a client restricted by sub. Retained events newer
// than sub.LastEventID are queued before live ones.
func (b *Broker) SubscribeWith(sub Subscription) chan []byte {
	c := &client{ch: make(chan []byte, clientBuffer), sub: sub}
	if b.closed.Load() {
		close(c.ch)
		return c.ch
	}

	select {
	case b.subscribeCh <- c:
	case <-b.stopped:
		close(c.ch)
	}
	return c.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all interested clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishContractEvent publishes a contract file change and a throttled
// catalog.updated event. Unknown kinds are ignored.
func (b *Broker) PublishContractEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.contractEventCh <- contractEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishRecordEvent publishes a record store change as "records.<kind>".
func (b *Broker) PublishRecordEvent(kind, contract string, count int) {
	data := map[string]any{"count": count}
	if contract != "" {
		data["contract"] = contract
	}
	b.Publish(Event{Type: "records." + kind, Data: data})
}

// subscriptionFrom reads ?types= and the Last-Event-ID header.
func subscriptionFrom(r *http.Request) Subscription {
	var sub Subscription
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				sub.Families = append(sub.Families, f)
			}
		}
	}
	if id, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		sub.LastEventID = id
	}
	return sub
}

// ServeHTTP streams events until the client disconnects (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeWith(subscriptionFrom(r))
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
