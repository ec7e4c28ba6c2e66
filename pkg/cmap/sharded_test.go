package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d", tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	if v, ok := m.Get("a"); !ok || v != 3 {
		t.Errorf("Get(a) = (%d, %v), want (3, true)", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) found a value")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("a")
	m.Delete("missing")
	if m.Has("a") || !m.Has("b") {
		t.Error("Delete removed the wrong key")
	}
}

type grant struct {
	user    string
	revoked bool
}

func TestStructKeysAndValues(t *testing.T) {
	type key struct {
		coll string
		id   int
	}
	m := New[key, grant]()
	m.Set(key{"courses", 1}, grant{user: "u-1"})

	if g, ok := m.Get(key{"courses", 1}); !ok || g.user != "u-1" {
		t.Errorf("Get() = %+v, %v", g, ok)
	}
	if m.Has(key{"courses", 2}) {
		t.Error("Has() matched a different key")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := g*1000 + i
				m.Set(k, i)
				m.Get(k)
				if i%2 == 0 {
					m.Delete(k)
				}
			}
		}(g)
	}
	wg.Wait()

	if m.Count() != 8*250 {
		t.Errorf("Count() = %d, want %d", m.Count(), 8*250)
	}
}
