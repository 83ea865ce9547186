package events

import "sync"

// Event is one traversal progress notification.
type Event struct {
	Event  string `json:"event"`
	NodeID string `json:"node_id,omitempty"`
	Level  int    `json:"level"`
	Source string `json:"source,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Traversal event names.
const (
	EventNodeEvaluated   = "node_evaluated"
	EventNodeSelected    = "node_selected"
	EventAnswerGenerated = "answer_generated"
)

const defaultBufferSize = 2000

// Subscription is one subscriber's bounded mailbox. Read events from C.
type Subscription struct {
	C chan Event
}

// Bus is an in-process pub/sub for traversal events. Publishers never
// block: when a subscriber's mailbox is full, the oldest queued event is
// dropped to make room, favoring recency over completeness.
type Bus struct {
	mu         sync.Mutex
	subs       map[*Subscription]struct{}
	bufferSize int
}

// NewBus creates a Bus whose subscriber mailboxes hold bufferSize events
// (defaults to 2000).
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		subs:       make(map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new mailbox.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan Event, b.bufferSize)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a mailbox. Pending events are discarded.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers ev to every subscriber without blocking the caller.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.C <- ev:
		default:
			// Mailbox full: drop the oldest queued event, then retry once.
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- ev:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
