package llm

import (
	"sync"
	"testing"
	"time"
)

func TestHistory_AppendOnlyOrder(t *testing.T) {
	h := &history{}

	for i := 0; i < 5; i++ {
		h.append(CallRecord{ID: string(rune('a' + i)), Timestamp: time.Now()})
	}

	snap := h.snapshot()
	if len(snap) != 5 {
		t.Fatalf("snapshot length = %d, want 5", len(snap))
	}
	for i, rec := range snap {
		if rec.ID != string(rune('a'+i)) {
			t.Errorf("record %d = %q, out of append order", i, rec.ID)
		}
	}
}

func TestHistory_ConcurrentAppend(t *testing.T) {
	h := &history{}

	var wg sync.WaitGroup
	const writers = 10
	const perWriter = 50

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				h.append(CallRecord{Model: ModelChat})
			}
		}()
	}
	wg.Wait()

	if got := h.len(); got != writers*perWriter {
		t.Errorf("len = %d, want %d", got, writers*perWriter)
	}
}
