package handlers

import (
	"sync"
)

// DefaultSubscriberBuffer - размер буфера снимков одного подписчика
const DefaultSubscriberBuffer = 8

// Subscriber получает сериализованные сообщения подписки одного документа.
type Subscriber struct {
	ch     chan []byte
	key    string
	id     uint64
	closed bool
	mu     sync.Mutex
}

// C returns the channel of stream messages. Закрывается при Unsubscribe.
func (s *Subscriber) C() <-chan []byte {
	return s.ch
}

// send кладет сообщение без блокировки. Каждое сообщение - полный снимок,
// поэтому при переполнении вытесняется самый старый.
func (s *Subscriber) send(msg []byte) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return false
	default:
	}

	select {
	case <-s.ch:
		dropped = true
	default:
	}

	select {
	case s.ch <- msg:
	default:
	}
	return dropped
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub рассылает новые версии документов подписчикам по ключу рабочего пространства.
type Hub struct {
	subs   map[string]map[uint64]*Subscriber
	buffer int
	nextID uint64
	mu     sync.RWMutex
}

// NewHub creates a hub. buffer <= 0 uses DefaultSubscriberBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[string]map[uint64]*Subscriber),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for key
func (h *Hub) Subscribe(key string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		ch:  make(chan []byte, h.buffer),
		key: key,
		id:  h.nextID,
	}

	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]*Subscriber)
	}
	h.subs[key][sub.id] = sub

	return sub
}

// Unsubscribe removes the subscriber and closes its channel
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if subs, ok := h.subs[sub.key]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.subs, sub.key)
		}
	}
	h.mu.Unlock()

	sub.close()
}

// Publish sends msg to every subscriber of key and returns the number of
// subscribers that had to drop an older message.
func (h *Hub) Publish(key string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, sub := range h.subs[key] {
		if sub.send(msg) {
			dropped++
		}
	}
	return dropped
}

// Count returns the number of subscribers of key
func (h *Hub) Count(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Close unsubscribes everyone. Используется при остановке сервера.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[uint64]*Subscriber)
	h.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.close()
		}
	}
}
