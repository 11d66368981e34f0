package asyncx

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapKeepsOrderAndLimit(t *testing.T) {
	var inflight, peak int32
	items := []int{1, 2, 3, 4, 5, 6}
	out, err := Map(context.Background(), items, 2, func(ctx context.Context, i int, n int) (int, error) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return n * 10, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != items[i]*10 {
			t.Fatalf("out[%d] = %d", i, v)
		}
	}
	if peak > 2 {
		t.Fatalf("limit exceeded: %d in flight", peak)
	}
}

func TestAsyncAllReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := AsyncAll(context.Background(), []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPoolExclusiveOwnership(t *testing.T) {
	p := NewPool("gpu0", "gpu1")
	ctx := context.Background()
	a, _ := p.Acquire(ctx)
	b, _ := p.Acquire(ctx)
	if a == b {
		t.Fatalf("same resource handed out twice")
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline with empty pool, got %v", err)
	}

	p.Release(a)
	if c, _ := p.Acquire(ctx); c != a {
		t.Fatalf("expected released resource back, got %s", c)
	}

	closed := 0
	p.Close(func(string) error { closed++; return nil })
	p.Close(func(string) error { closed++; return nil })
	if closed != 2 {
		t.Fatalf("expected each resource closed once, got %d", closed)
	}
}
