// Package sse implements a Server-Sent Events broker that pushes document
// check and fix notifications to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeDocumentChecked = "document.checked"
	TypeDocumentFixed   = "document.fixed"
	TypeDocumentDeleted = "document.deleted"
	TypeReportUpdated   = "report.updated"
)

var documentEventTypes = map[string]string{
	"created": TypeDocumentChecked,
	"updated": TypeDocumentChecked,
	"checked": TypeDocumentChecked,
	"fixed":   TypeDocumentFixed,
	"deleted": TypeDocumentDeleted,
}

// Event represents an SSE event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// DocumentEvent is the payload of document.* events.
type DocumentEvent struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type documentEventReq struct {
	kind string
	path string
}

type subscribeReq struct {
	ch     chan []byte
	prefix string
}

// TotalsFunc returns the payload of report.updated events.
type TotalsFunc func() (any, error)

// Option configures a Broker.
type Option func(*Broker)

// WithTotals attaches fn's result to every report.updated event.
func WithTotals(fn TotalsFunc) Option {
	return func(b *Broker) { b.totals = fn }
}

// WithHeartbeat sets the interval of keep-alive comments sent to idle
// clients. Zero disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, their path filters, the event sequence and the report throttle
// timestamp). Public methods communicate with this loop through channels, so
// no mutexes are required.
type Broker struct {
	reportMin time.Duration
	heartbeat time.Duration
	totals    TotalsFunc

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	docEventCh    chan documentEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. report.updated is sent at most once
// per reportThrottle.
func NewBroker(reportThrottle time.Duration, opts ...Option) *Broker {
	if reportThrottle <= 0 {
		reportThrottle = 2 * time.Second
	}

	b := &Broker{
		reportMin:     reportThrottle,
		heartbeat:     30 * time.Second,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		docEventCh:    make(chan documentEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// matches reports whether path falls under the folder prefix. An empty prefix
// matches everything.
func matches(prefix, path string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var (
		seq        uint64
		lastReport time.Time
	)

	// send delivers event to every client accepted by want.
	send := func(event Event, want func(prefix string) bool) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			slog.Warn("sse: encode event", slog.String("type", event.Type), slog.String("error", err.Error()))
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, prefix := range clients {
			if !want(prefix) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}
	all := func(string) bool { return true }

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = req.prefix

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			send(event, all)

		case req := <-b.docEventCh:
			typ, ok := documentEventTypes[req.kind]
			if !ok {
				continue
			}
			send(Event{Type: typ, Data: DocumentEvent{Path: req.path, Kind: req.kind}},
				func(prefix string) bool { return matches(prefix, req.path) })

			now := time.Now()
			if now.Sub(lastReport) >= b.reportMin {
				lastReport = now
				send(Event{Type: TypeReportUpdated, Data: b.reportPayload()}, all)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func (b *Broker) reportPayload() any {
	if b.totals == nil {
		return map[string]string{}
	}
	v, err := b.totals()
	if err != nil {
		slog.Warn("sse: report totals", slog.String("error", err.Error()))
		return map[string]string{}
	}
	return v
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. Document events are
// delivered only for paths under prefix ("" for all); other events reach
// every client.
func (b *Broker) Subscribe(prefix string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, prefix: strings.Trim(prefix, "/")}:
	case <-b.stopped:
		close(ch)
	}

	return ch
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishDocumentEvent publishes a document change and a throttled
// report.updated event. kind is a watcher kind (created, updated, deleted)
// or a service kind (checked, fixed); other kinds are ignored.
func (b *Broker) PublishDocumentEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.docEventCh <- documentEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// "prefix" query parameter limits document events to one folder.
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

	ch := b.Subscribe(r.URL.Query().Get("prefix"))
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
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
