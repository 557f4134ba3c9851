package streams

import (
	"sync"
	"testing"
	"time"
)

func TestStream_WriteThenNonBlockingRead_PreservesOrder(t *testing.T) {
	s := New()

	for _, obj := range []interface{}{1, 2, 3} {
		if err := s.Write(obj); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	got := s.NonBlockingRead()
	want := []interface{}{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d objects, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("object %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	// Buffer was drained; a second read with no new writes is empty.
	if again := s.NonBlockingRead(); len(again) != 0 {
		t.Errorf("expected empty second read, got %v", again)
	}
}

func TestStream_BlockingRead_WaitsForWrite(t *testing.T) {
	s := New()

	done := make(chan []interface{}, 1)
	go func() {
		done <- s.BlockingRead()
	}()

	// Give the reader time to block before producing.
	time.Sleep(10 * time.Millisecond)
	if err := s.Write("hello"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case got := <-done:
		if len(got) != 1 || got[0] != "hello" {
			t.Errorf("expected [hello], got %v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for BlockingRead to return")
	}
}

func TestStream_BlockingRead_ClosedEmptyReturnsImmediately(t *testing.T) {
	s := New()
	s.Close()

	done := make(chan []interface{}, 1)
	go func() {
		done <- s.BlockingRead()
	}()

	select {
	case got := <-done:
		if len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("BlockingRead hung on closed empty stream")
	}
}

func TestStream_Close(t *testing.T) {
	s := New()
	_ = s.Write("a")

	s.Close()
	s.Close() // idempotent

	if !s.Closed() {
		t.Error("expected Closed() true after Close")
	}

	// Buffered objects survive Close.
	if got := s.BlockingRead(); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected buffered object after close, got %v", got)
	}

	// Writes after Close are rejected.
	if err := s.Write("b"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestStream_Ready_CoalescesAndNeverBlocksProducer(t *testing.T) {
	s := New()

	// Several writes with no consumer must not block even though the ready
	// channel has capacity one.
	for i := 0; i < 10; i++ {
		if err := s.Write(i); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	select {
	case <-s.Ready():
	default:
		t.Fatal("expected a pending ready token")
	}

	if got := s.NonBlockingRead(); len(got) != 10 {
		t.Fatalf("expected 10 objects, got %d", len(got))
	}
}

func TestStream_Ready_SignalsOnClose(t *testing.T) {
	s := New()
	s.Close()

	select {
	case <-s.Ready():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected ready token after Close")
	}
}

func TestStream_ConcurrentProducerConsumer(t *testing.T) {
	s := New()
	const n = 1000

	go func() {
		for i := 0; i < n; i++ {
			_ = s.Write(i)
		}
		s.Close()
	}()

	var got []interface{}
	for {
		batch := s.BlockingRead()
		if len(batch) == 0 {
			break
		}
		got = append(got, batch...)
	}

	if len(got) != n {
		t.Fatalf("expected %d objects, got %d", n, len(got))
	}
	for i, obj := range got {
		if obj != i {
			t.Fatalf("object %d out of order: got %v", i, obj)
		}
	}
}

func TestStream_LenTracksBuffer(t *testing.T) {
	s := New()
	if s.Len() != 0 {
		t.Errorf("expected empty stream, got len %d", s.Len())
	}
	_ = s.Write("x")
	_ = s.Write("y")
	if s.Len() != 2 {
		t.Errorf("expected len 2, got %d", s.Len())
	}
	_ = s.NonBlockingRead()
	if s.Len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", s.Len())
	}
}

func TestStream_ParallelWritersAllDelivered(t *testing.T) {
	s := New()
	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.Write(i)
			}
		}()
	}
	wg.Wait()
	s.Close()

	if got := s.NonBlockingRead(); len(got) != writers*perWriter {
		t.Fatalf("expected %d objects, got %d", writers*perWriter, len(got))
	}
}
