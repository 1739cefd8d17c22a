package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryDropsOldest(t *testing.T) {
	m := NewMemory(3)
	for i := 0; i < 5; i++ {
		m.Store(fmt.Sprintf("step %d", i))
	}
	if diff := cmp.Diff([]string{"step 2", "step 3", "step 4"}, m.All()); diff != "" {
		t.Fatalf("All (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"step 3", "step 4"}, m.Recent(2)); diff != "" {
		t.Fatalf("Recent (-want +got):\n%s", diff)
	}
	if got := m.Recent(10); len(got) != 3 {
		t.Fatalf("Recent(10): got %d entries, want 3", len(got))
	}
	if got := m.Recent(0); got != nil {
		t.Fatalf("Recent(0): got %v", got)
	}
}

func TestMemoryReset(t *testing.T) {
	m := NewMemory(2)
	m.Store("a")
	m.Reset()
	if m.Len() != 0 {
		t.Fatalf("Len after Reset: got %d", m.Len())
	}
	m.Store("b")
	if diff := cmp.Diff([]string{"b"}, m.All()); diff != "" {
		t.Fatalf("All (-want +got):\n%s", diff)
	}
}

func TestMemoryConcurrentStore(t *testing.T) {
	m := NewMemory(50)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Store(fmt.Sprintf("%d-%d", i, j))
			}
		}(i)
	}
	wg.Wait()
	if m.Len() != 50 {
		t.Fatalf("Len: got %d, want 50", m.Len())
	}
}
