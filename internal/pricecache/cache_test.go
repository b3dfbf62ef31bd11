package pricecache

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetMissing(t *testing.T) {
	c := New()
	if _, ok := c.Get("nope"); ok {
		t.Fatal("Get returned ok for missing product")
	}
}

func TestUpsertLowestNeverIncreases(t *testing.T) {
	c := New()

	s := c.Upsert("p1", 50000, false)
	if s.LowestPrice != 50000 {
		t.Fatalf("lowest = %d, want 50000", s.LowestPrice)
	}

	s = c.Upsert("p1", 45000, false)
	if s.Price != 45000 || s.LowestPrice != 45000 {
		t.Fatalf("after drop: %+v", s)
	}

	// A later rise keeps the historical minimum.
	s = c.Upsert("p1", 60000, false)
	if s.Price != 60000 {
		t.Fatalf("price = %d, want 60000", s.Price)
	}
	if s.LowestPrice != 45000 {
		t.Fatalf("lowest = %d, want 45000", s.LowestPrice)
	}

	s = c.Upsert("p1", 60000, true)
	if !s.IsSoldOut || s.LowestPrice != 45000 {
		t.Fatalf("after sold out: %+v", s)
	}
}

func TestRestoreMatchesIncrementalUpserts(t *testing.T) {
	// Replaying a price series through Upsert must land on the same state as
	// a bootstrap Restore built from that series' last and minimum values.
	series := []int{52000, 48000, 51000, 43000, 47000}

	incremental := New()
	for _, price := range series {
		incremental.Upsert("p1", price, false)
	}

	last, min := series[len(series)-1], series[0]
	for _, price := range series {
		if price < min {
			min = price
		}
	}
	restored := New()
	restored.Restore("p1", last, false, min)

	a, _ := incremental.Get("p1")
	b, _ := restored.Get("p1")
	if a != b {
		t.Fatalf("incremental %+v != restored %+v", a, b)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", n%4)
			for j := 0; j < 100; j++ {
				c.Upsert(id, 1000+j, j%2 == 0)
				c.Get(id)
				c.Len()
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 4 {
		t.Fatalf("len = %d, want 4", c.Len())
	}
	for n := 0; n < 4; n++ {
		s, ok := c.Get(fmt.Sprintf("p%d", n))
		if !ok {
			t.Fatalf("p%d missing", n)
		}
		if s.LowestPrice != 1000 {
			t.Fatalf("p%d lowest = %d, want 1000", n, s.LowestPrice)
		}
	}
}
