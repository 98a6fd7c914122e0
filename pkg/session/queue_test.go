package session

import (
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 1000; i++ {
		q.Send(SaveMessage([]byte{byte(i)}))
	}
	if q.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", q.Len())
	}
	for i := 0; i < 1000; i++ {
		m, ok := q.Receive()
		if !ok || m.Text[0] != byte(i) {
			t.Fatalf("Receive() #%d = %v, %v", i, m.Text, ok)
		}
	}
}

func TestQueueReceiveBlocksUntilSend(t *testing.T) {
	q := NewQueue()
	got := make(chan Message)
	go func() {
		m, _ := q.Receive()
		got <- m
	}()

	select {
	case <-got:
		t.Fatal("Receive() returned before Send")
	case <-time.After(20 * time.Millisecond):
	}

	q.Send(ExitMessage())
	select {
	case m := <-got:
		if m.Kind != Exit {
			t.Errorf("Receive() kind = %v, want %v", m.Kind, Exit)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive() did not wake up")
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()
	q.Send(SaveMessage([]byte("a")))
	q.Close()
	q.Send(SaveMessage([]byte("b")))

	if m, ok := q.Receive(); !ok || string(m.Text) != "a" {
		t.Errorf("Receive() = %q, %v; want pending message", m.Text, ok)
	}
	if _, ok := q.Receive(); ok {
		t.Error("Receive() on closed empty queue should report !ok")
	}
}

func TestQueueDiscard(t *testing.T) {
	q := NewQueue()
	q.Send(SaveMessage([]byte("a")))
	q.Send(ExitMessage())

	dropped := q.Discard()
	if len(dropped) != 2 {
		t.Errorf("Discard() dropped %d, want 2", len(dropped))
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Discard = %d", q.Len())
	}
}

func TestQueueConcurrentProducer(t *testing.T) {
	q := NewQueue()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Send(Message{Kind: Save, Text: []byte{byte(i % 256)}})
		}
		q.Send(ExitMessage())
	}()

	count := 0
	for {
		m, ok := q.Receive()
		if !ok || m.Kind == Exit {
			break
		}
		if m.Text[0] != byte(count%256) {
			t.Fatalf("message %d out of order", count)
		}
		count++
	}
	wg.Wait()
	if count != n {
		t.Errorf("received %d, want %d", count, n)
	}
}

func TestSaveMessageCopiesText(t *testing.T) {
	buf := []byte("abc")
	m := SaveMessage(buf)
	buf[0] = 'x'
	if string(m.Text) != "abc" {
		t.Errorf("SaveMessage() text = %q, want %q", m.Text, "abc")
	}
	if Save.String() != "save" || Exit.String() != "exit" || Kind(9).String() != "unknown" {
		t.Error("Kind.String() mismatch")
	}
}
