package core

import (
	"sync"
	"time"
)

// Stage names a step of a sync run.
type Stage string

const (
	StageStart     Stage = "start"
	StageFetch     Stage = "fetch"
	StageAssemble  Stage = "assemble"
	StageReconcile Stage = "reconcile"
	StageWrite     Stage = "write"
	StageComplete  Stage = "complete"
	StageFailed    Stage = "failed"
)

// Event is one progress notification of a sync run.
type Event struct {
	RunID   string    `json:"runId"`
	Command Command   `json:"action"`
	Stage   Stage     `json:"stage"`
	Source  string    `json:"source,omitempty"`
	Done    int       `json:"done"`
	Total   int       `json:"total"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Broadcaster fans events out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses that event.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[chan Event]struct{})}
}

// Subscribe registers a listener with the given buffer size. The returned
// func unsubscribes and closes the channel; it is safe to call twice.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every listener that has room.
func (b *Broadcaster) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.listeners {
		select {
		case ch <- e:
		default:
			// Listener is slow, skip this update
		}
	}
}

// Subscribers returns the current listener count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
