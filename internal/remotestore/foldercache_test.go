package remotestore

import (
	"fmt"
	"sync"
	"testing"
)

func TestFolderCachePutGet(t *testing.T) {
	c := NewFolderCache()

	if _, ok := c.Get("root", "CityA"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Put("root", "CityA", "id-1")
	id, ok := c.Get("root", "CityA")
	if !ok || id != "id-1" {
		t.Fatalf("expected id-1, got %q (ok=%v)", id, ok)
	}

	// Same name under a different parent is a different key.
	if _, ok := c.Get("other", "CityA"); ok {
		t.Fatal("different parent should miss")
	}

	c.Put("root", "CityA", "id-2")
	if id, _ := c.Get("root", "CityA"); id != "id-2" {
		t.Fatalf("put should overwrite, got %q", id)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}

func TestFolderCacheClear(t *testing.T) {
	c := NewFolderCache()
	c.Put("root", "a", "1")
	c.Put("root", "b", "2")

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after clear, got %d", c.Len())
	}
	if _, ok := c.Get("root", "a"); ok {
		t.Fatal("cleared entry should miss")
	}
}

func TestFolderCacheConcurrentAccess(t *testing.T) {
	c := NewFolderCache()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("folder-%d", n%10)
			c.Put("root", name, fmt.Sprintf("id-%d", n))
			c.Get("root", name)
			c.Len()
		}(i)
	}
	wg.Wait()

	if c.Len() != 10 {
		t.Fatalf("expected 10 entries, got %d", c.Len())
	}
}

func TestFolderCacheLockKeySerializes(t *testing.T) {
	c := NewFolderCache()

	unlock := c.LockKey("root", "a")

	acquired := make(chan struct{})
	go func() {
		u := c.LockKey("root", "a")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second LockKey should block while first is held")
	default:
	}

	unlock()
	<-acquired
}

func TestFolderCacheLockKeyIndependentKeys(t *testing.T) {
	c := NewFolderCache()

	unlock := c.LockKey("root", "a")
	defer unlock()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		u := c.LockKey("root", "b")
		u()
		close(done)
	}()
	<-done
}
