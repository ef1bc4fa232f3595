package backend

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ecocampus/ecocampus-server/internal/domain"
)

// Subscription is a live change stream. Close is safe to call more than once.
type Subscription struct {
	C <-chan domain.ChangeEvent

	Table  string
	Column string
	Value  string

	closeOnce sync.Once
	closeFn   func()
}

// Close stops delivery and releases the subscription.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.closeFn)
}

type subscriber struct {
	table, column, value string

	mu     sync.Mutex
	queue  []domain.ChangeEvent
	wake   chan struct{}
	out    chan domain.ChangeEvent
	done   chan struct{}
	exited chan struct{}

	stopOnce sync.Once
}

// Feed fans row changes out to subscribers. Each subscriber has an unbounded
// queue so a slow consumer never blocks a writer and never loses an event.
type Feed struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
	logger *slog.Logger
}

// NewFeed creates an empty feed.
func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		subs:   make(map[uint64]*subscriber),
		logger: logger,
	}
}

// Subscribe registers interest in rows of table whose column equals value.
func (f *Feed) Subscribe(table, column, value string) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fmt.Errorf("feed closed")
	}

	s := &subscriber{
		table:  table,
		column: column,
		value:  value,
		wake:   make(chan struct{}, 1),
		out:    make(chan domain.ChangeEvent),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	subID := f.nextID
	f.nextID++
	f.subs[subID] = s

	go s.pump()

	return &Subscription{
		C:      s.out,
		Table:  table,
		Column: column,
		Value:  value,
		closeFn: func() {
			f.mu.Lock()
			delete(f.subs, subID)
			f.mu.Unlock()
			s.stop()
		},
	}, nil
}

// Publish queues evt for every matching subscriber.
func (f *Feed) Publish(evt domain.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for _, s := range f.subs {
		if !s.matches(evt) {
			continue
		}
		s.enqueue(evt)
		delivered++
	}

	if f.logger != nil {
		f.logger.Debug("change published",
			"table", evt.Table,
			"event", evt.Event,
			"subscribers", delivered,
		)
	}
}

// SubscriberCount returns the number of open subscriptions.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[uint64]*subscriber)
	f.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.exited
}

func (s *subscriber) matches(evt domain.ChangeEvent) bool {
	if evt.Table != s.table {
		return false
	}
	if s.column == "" {
		return true
	}
	row := evt.New
	if evt.Event == domain.ChangeDelete {
		row = evt.Old
	}
	v, ok := row[s.column]
	return ok && fmt.Sprint(v) == s.value
}

func (s *subscriber) enqueue(evt domain.ChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, evt)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump moves queued events to the consumer channel, closing it on shutdown.
func (s *subscriber) pump() {
	defer close(s.exited)
	defer close(s.out)

	for {
		s.mu.Lock()
		var next *domain.ChangeEvent
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue = s.queue[1:]
			next = &evt
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- *next:
		case <-s.done:
			return
		}
	}
}
