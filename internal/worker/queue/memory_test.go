package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Push(ctx, id); err != nil {
			t.Fatalf("Push(%s): %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if got != want {
			t.Errorf("Pop = %q, want %q", got, want)
		}
	}
}

func TestMemoryQueuePopBlocksUntilPush(t *testing.T) {
	q := NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan string, 1)
	go func() {
		id, err := q.Pop(ctx)
		if err != nil {
			t.Errorf("Pop: %v", err)
			return
		}
		got <- id
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Push(ctx, "late"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case id := <-got:
		if id != "late" {
			t.Errorf("Pop = %q, want %q", id, "late")
		}
	case <-ctx.Done():
		t.Fatal("Pop never returned")
	}
}

func TestMemoryQueuePopHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); err == nil {
		t.Fatal("Pop on empty queue returned without error")
	}
}

func TestMemoryQueuePushFailsWhenFullAndCancelled(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	if err := q.Push(ctx, "one"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Push(cctx, "two"); err == nil {
		t.Fatal("Push on full queue returned without error")
	}
}
