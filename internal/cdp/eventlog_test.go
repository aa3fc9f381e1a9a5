package cdp

import (
	"sync"
	"testing"
)

func TestEventLog_Basic(t *testing.T) {
	log := NewEventLog[int]()

	if log.Len() != 0 {
		t.Errorf("expected len 0, got %d", log.Len())
	}
	if items := log.All(); items != nil {
		t.Errorf("expected nil for empty log, got %v", items)
	}

	log.Append(1)
	log.Append(2)
	log.Append(3)

	items := log.All()
	expected := []int{1, 2, 3}
	if len(items) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, items)
	}
	for i := range expected {
		if items[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, items)
		}
	}
}

func TestEventLog_AllReturnsCopy(t *testing.T) {
	log := NewEventLog[int]()
	log.Append(1)

	items := log.All()
	items[0] = 99
	log.Append(2)

	got := log.All()
	if got[0] != 1 {
		t.Errorf("log was mutated through All(): %v", got)
	}
	if len(items) != 1 {
		t.Errorf("earlier snapshot grew: %v", items)
	}
}

func TestEventLog_ConcurrentAppend(t *testing.T) {
	log := NewEventLog[int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				log.Append(n*100 + j)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = log.All()
				_ = log.Len()
			}
		}()
	}

	wg.Wait()

	if log.Len() != 1000 {
		t.Errorf("expected 1000 entries, got %d", log.Len())
	}
}
