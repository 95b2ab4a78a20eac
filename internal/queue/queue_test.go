package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestUnbounded_FIFO(t *testing.T) {
	q := NewUnbounded[int]()
	for i := 0; i < 200; i++ {
		if !q.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	for i := 0; i < 200; i++ {
		got, ok := q.TryRecv()
		if !ok {
			t.Fatalf("TryRecv() empty at %d", i)
		}
		if got != i {
			t.Fatalf("TryRecv() = %d, want %d", got, i)
		}
	}

	if _, ok := q.TryRecv(); ok {
		t.Error("queue should be empty")
	}
}

func TestUnbounded_SendNeverBlocks(t *testing.T) {
	q := NewUnbounded[int]()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100000; i++ {
			q.Send(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked without a consumer")
	}
	if q.Len() != 100000 {
		t.Errorf("Len() = %d, want 100000", q.Len())
	}
}

func TestUnbounded_Drain(t *testing.T) {
	q := NewUnbounded[string]()
	q.Send("a")
	q.Send("b")
	q.Send("c")

	got := q.Drain()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Drain() = %v", got)
	}
	if q.Drain() != nil {
		t.Error("second Drain() should be nil")
	}
}

func TestUnbounded_RecvWaitsForSend(t *testing.T) {
	q := NewUnbounded[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Send(7)
	}()

	got, err := q.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if got != 7 {
		t.Errorf("Recv() = %d, want 7", got)
	}
}

func TestUnbounded_RecvContextCancel(t *testing.T) {
	q := NewUnbounded[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Recv() error = %v, want context.Canceled", err)
	}
}

func TestUnbounded_CloseDrainsThenErrors(t *testing.T) {
	q := NewUnbounded[int]()
	q.Send(1)
	q.Close()

	if q.Send(2) {
		t.Error("Send after Close should return false")
	}

	ctx := context.Background()
	got, err := q.Recv(ctx)
	if err != nil || got != 1 {
		t.Fatalf("Recv() = %d, %v; want 1, nil", got, err)
	}
	if _, err := q.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv() error = %v, want ErrClosed", err)
	}
}

func TestUnbounded_ProducersKeepPerProducerOrder(t *testing.T) {
	q := NewUnbounded[[2]int]()
	const producers, perProducer = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Send([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for _, item := range q.Drain() {
		if item[1] != last[item[0]]+1 {
			t.Fatalf("producer %d: got %d after %d", item[0], item[1], last[item[0]])
		}
		last[item[0]] = item[1]
	}
	for p, l := range last {
		if l != perProducer-1 {
			t.Errorf("producer %d: last = %d", p, l)
		}
	}
}

func TestUnbounded_MultipleConsumers(t *testing.T) {
	q := NewUnbounded[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const total = 1000
	var mu sync.Mutex
	seen := make(map[int]bool)

	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := q.Recv(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < total; i++ {
		q.Send(i)
	}
	q.Close()
	wg.Wait()

	if len(seen) != total {
		t.Errorf("consumed %d distinct items, want %d", len(seen), total)
	}
}
