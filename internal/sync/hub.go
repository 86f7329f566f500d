package sync

import (
	"encoding/json"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	transportTCP = "tcp"
	transportWS  = "websocket"

	writeTimeout = 2 * time.Second
	queueSize    = 256
)

// Subscription is one live client of the hub. A nil topic set means every
// topic.
type Subscription struct {
	transport string
	topics    map[string]struct{}

	write func([]byte) error
	close func() error
}

func (s *Subscription) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Hub fans events out to subscribers. A single dispatch goroutine delivers
// queued events in publish order. Writes happen under the hub lock, so a
// subscriber never sees two writes at once; a failed write drops it.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	queue     chan Event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
}

type Stats struct {
	TCPClients int    `json:"tcp_clients"`
	WSClients  int    `json:"ws_clients"`
	Published  uint64 `json:"published"`
	Dropped    uint64 `json:"dropped"`
}

// NewHub starts the dispatch goroutine; Close stops it.
func NewHub() *Hub {
	return newHub(queueSize)
}

func newHub(size int) *Hub {
	h := &Hub{
		subs:  make(map[*Subscription]struct{}),
		queue: make(chan Event, size),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go h.dispatch()
	return h
}

// ParseTopics turns "saved, trend" into a topic set. Unknown names are
// ignored; an empty result subscribes to everything.
func ParseTopics(raw []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, item := range raw {
		for _, t := range strings.Split(item, ",") {
			switch t = strings.ToLower(strings.TrimSpace(t)); t {
			case TopicSaved, TopicTrend:
				set[t] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func topicList(set map[string]struct{}) []string {
	if len(set) == 0 {
		return []string{TopicSaved, TopicTrend}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) SubscribeTCP(conn net.Conn, topics map[string]struct{}) *Subscription {
	return h.add(&Subscription{
		transport: transportTCP,
		topics:    topics,
		write: func(b []byte) error {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_, err := conn.Write(b)
			return err
		},
		close: conn.Close,
	})
}

func (h *Hub) SubscribeWS(ws *websocket.Conn, topics map[string]struct{}) *Subscription {
	return h.add(&Subscription{
		transport: transportWS,
		topics:    topics,
		write: func(b []byte) error {
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			return ws.WriteMessage(websocket.TextMessage, b)
		},
		close: ws.Close,
	})
}

func (h *Hub) add(s *Subscription) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		_ = s.close()
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// SetTopics replaces the topic filter of a live subscription and confirms it
// to the client with a "subscribed" line.
func (h *Hub) SetTopics(s *Subscription, topics map[string]struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s.topics = topics
	if _, ok := h.subs[s]; !ok {
		return
	}
	if err := s.write(statusLine("subscribed", s.transport, topics)); err != nil {
		_ = s.close()
		delete(h.subs, s)
	}
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	_ = s.close()
}

// Publish queues ev and returns without waiting for subscribers. Events are
// delivered in the order they were published. A full queue drops the event.
func (h *Hub) Publish(ev Event) {
	select {
	case <-h.quit:
		return
	default:
	}
	select {
	case h.queue <- ev:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hub) dispatch() {
	defer close(h.done)
	for {
		select {
		case ev := <-h.queue:
			h.deliver(ev)
		case <-h.quit:
			for {
				select {
				case ev := <-h.queue:
					h.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver encodes ev once and writes it as a single line to every
// subscriber of its topic.
func (h *Hub) deliver(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b = append(b, '\n')
	topic := ev.Topic()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.published.Add(1)
	for s := range h.subs {
		if !s.wants(topic) {
			continue
		}
		if err := s.write(b); err != nil {
			_ = s.close()
			delete(h.subs, s)
		}
	}
}

// Close flushes queued events, then disconnects every subscriber and refuses
// new ones.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.subs {
		_ = s.close()
		delete(h.subs, s)
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{Published: h.published.Load(), Dropped: h.dropped.Load()}
	for s := range h.subs {
		switch s.transport {
		case transportTCP:
			st.TCPClients++
		case transportWS:
			st.WSClients++
		}
	}
	return st
}

func statusLine(kind, transport string, topics map[string]struct{}) []byte {
	b, _ := json.Marshal(welcome{Type: kind, Transport: transport, Topics: topicList(topics)})
	return append(b, '\n')
}
