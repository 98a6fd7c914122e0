package session

import "sync"

// Kind is the type of a Message.
type Kind int

const (
	// Save carries the full serialized buffer.
	Save Kind = iota
	// Exit ends the session.
	Exit
)

// String returns the message kind name.
func (k Kind) String() string {
	switch k {
	case Save:
		return "save"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Message is one editor to worker message.
type Message struct {
	Kind Kind
	Text []byte
}

// SaveMessage returns a Save message holding a copy of text.
func SaveMessage(text []byte) Message {
	return Message{Kind: Save, Text: append([]byte(nil), text...)}
}

// ExitMessage returns an Exit message.
func ExitMessage() Message {
	return Message{Kind: Exit}
}

// Sender accepts messages without blocking.
type Sender interface {
	Send(Message)
}

// Queue is an unbounded FIFO of messages for one producer and one consumer.
// Send never blocks; Receive blocks until a message is available or the
// queue is closed.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Message
	closed bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends m. Messages sent after Close are dropped.
func (q *Queue) Send(m Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, m)
	q.cond.Signal()
}

// Receive removes and returns the oldest message. ok is false once the queue
// is closed and empty.
func (q *Queue) Receive() (m Message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Message{}, false
	}
	m = q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	return m, true
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting messages. Pending messages stay receivable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Discard closes the queue and returns the pending messages it dropped.
func (q *Queue) Discard() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := q.items
	q.items = nil
	q.closed = true
	q.cond.Broadcast()
	return dropped
}
