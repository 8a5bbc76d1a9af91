package notify

import (
	"errors"
	"sync/atomic"
	"testing"

	logx "listingd/pkg/logx"
)

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{}, logx.Nop()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled: got %v", err)
	}
	if _, err := New(Config{Enabled: true, ChatID: 1}, logx.Nop()); err == nil {
		t.Fatalf("missing token should error")
	}
	if _, err := New(Config{Enabled: true, Token: "t"}, logx.Nop()); err == nil {
		t.Fatalf("missing chat_id should error")
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	s := &Service{queue: make(chan string, 2)}

	for i := 0; i < 5; i++ {
		s.Enqueue("msg")
	}

	if len(s.queue) != 2 {
		t.Fatalf("queue length = %d, want 2", len(s.queue))
	}
	if got := atomic.LoadUint64(&s.dropped); got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}
}
