// ABOUTME: Bounded event queue and worker dispatch for engine callbacks
// ABOUTME: Audio-thread publishers never block; oldest events drop when full
package engine

import (
	"log"
	"sync"

	"github.com/onestopradio/radiocore-go/internal/deck"
	"github.com/onestopradio/radiocore-go/pkg/audio"
	"go.uber.org/atomic"
)

// EventKind discriminates engine events.
type EventKind int

const (
	EventTrackLoaded EventKind = iota
	EventTrackEnded
	EventBeat
	EventStreamStatus
	EventDeviceFallback
)

// Event is one asynchronous notification.
type Event struct {
	Kind    EventKind
	Deck    deck.ID
	Track   *audio.Track
	Beat    int
	Status  string
	Message string
}

// Callbacks are the externally registered observers. All of them run on the
// dispatch worker, never on the audio thread. Any field may be nil.
type Callbacks struct {
	OnTrackLoaded  func(id deck.ID, track *audio.Track)
	OnTrackEnded   func(id deck.ID)
	OnBeat         func(id deck.ID, beat int)
	OnStreamStatus func(status, message string)
	OnDeviceError  func(message string)
}

const defaultEventCap = 256

// eventRing is a bounded multi-producer queue built on per-slot sequence
// numbers. push and pop never block and never take a lock, so the audio
// callback can post events directly.
type eventRing struct {
	mask  uint64
	slots []eventSlot
	head  atomic.Uint64 // next pop position
	tail  atomic.Uint64 // next push position
}

type eventSlot struct {
	seq atomic.Uint64
	ev  Event
}

func newEventRing(capacity int) *eventRing {
	n := 1
	for n < capacity {
		n <<= 1
	}
	r := &eventRing{mask: uint64(n - 1), slots: make([]eventSlot, n)}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// push enqueues ev, reporting false when the ring is full.
func (r *eventRing) push(ev Event) bool {
	for {
		pos := r.tail.Load()
		slot := &r.slots[pos&r.mask]
		seq := slot.seq.Load()
		switch {
		case seq == pos:
			if r.tail.CompareAndSwap(pos, pos+1) {
				slot.ev = ev
				slot.seq.Store(pos + 1)
				return true
			}
		case seq < pos:
			return false
		}
		// Another producer claimed the slot first; retry at the new tail.
	}
}

// pop dequeues the oldest event, reporting false when the ring is empty.
func (r *eventRing) pop() (Event, bool) {
	for {
		pos := r.head.Load()
		slot := &r.slots[pos&r.mask]
		seq := slot.seq.Load()
		switch {
		case seq == pos+1:
			if r.head.CompareAndSwap(pos, pos+1) {
				ev := slot.ev
				slot.ev = Event{}
				slot.seq.Store(pos + r.mask + 1)
				return ev, true
			}
		case seq < pos+1:
			return Event{}, false
		}
	}
}

// Events is a bounded queue with a single dispatch worker. Publish never
// blocks and takes no locks: when the ring is full the oldest event is
// discarded and a counter incremented.
type Events struct {
	ring    *eventRing
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Int64

	cbMu sync.RWMutex
	cbs  Callbacks
}

// NewEvents creates the queue and starts its dispatch worker.
func NewEvents() *Events {
	e := &Events{
		ring: newEventRing(defaultEventCap),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go e.dispatch()
	return e
}

// SetCallbacks replaces the registered observers.
func (e *Events) SetCallbacks(cbs Callbacks) {
	e.cbMu.Lock()
	e.cbs = cbs
	e.cbMu.Unlock()
}

// Publish enqueues ev without blocking or locking. Oldest-first drop on
// overflow. Safe from the audio callback and any control goroutine.
func (e *Events) Publish(ev Event) {
	for !e.ring.push(ev) {
		if _, ok := e.ring.pop(); ok {
			e.dropped.Inc()
		}
	}

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Dropped returns how many events were discarded on overflow.
func (e *Events) Dropped() int64 { return e.dropped.Load() }

// Close stops the dispatch worker after draining the queue.
func (e *Events) Close() {
	close(e.stop)
	<-e.done
}

func (e *Events) dispatch() {
	defer close(e.done)
	for {
		select {
		case <-e.stop:
			e.drain()
			return
		case <-e.wake:
			e.drain()
		}
	}
}

func (e *Events) drain() {
	for {
		ev, ok := e.ring.pop()
		if !ok {
			return
		}
		e.deliver(ev)
	}
}

func (e *Events) deliver(ev Event) {
	e.cbMu.RLock()
	cbs := e.cbs
	e.cbMu.RUnlock()

	switch ev.Kind {
	case EventTrackLoaded:
		if cbs.OnTrackLoaded != nil {
			cbs.OnTrackLoaded(ev.Deck, ev.Track)
		}
	case EventTrackEnded:
		if cbs.OnTrackEnded != nil {
			cbs.OnTrackEnded(ev.Deck)
		}
	case EventBeat:
		if cbs.OnBeat != nil {
			cbs.OnBeat(ev.Deck, ev.Beat)
		}
	case EventStreamStatus:
		if cbs.OnStreamStatus != nil {
			cbs.OnStreamStatus(ev.Status, ev.Message)
		}
	case EventDeviceFallback:
		if cbs.OnDeviceError != nil {
			cbs.OnDeviceError(ev.Message)
		} else {
			log.Printf("engine: %s", ev.Message)
		}
	}
}
