package cache

import (
	"testing"
	"time"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(2, 0, nil)
	fp := normalize.Fingerprint("fp1")
	c.Set(fp, []byte("body"), 200, nil, time.Minute)

	got, ok := c.Get(fp)
	if !ok || string(got.Response) != "body" || got.StatusCode != 200 {
		t.Fatalf("expected cached entry, got %+v ok=%v", got, ok)
	}
}

func TestGetMissOnUnknownKey(t *testing.T) {
	c := New(2, 0, nil)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss on unknown key")
	}
}

func TestExpiredEntryEvictedOnAccess(t *testing.T) {
	c := New(2, 0, nil)
	fp := normalize.Fingerprint("fp1")
	c.Set(fp, []byte("body"), 200, nil, -time.Second)

	if _, ok := c.Get(fp); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Stats().Items != 0 {
		t.Fatal("expected expired entry to be evicted from the index")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 0, nil)
	c.Set("a", []byte("a"), 200, nil, time.Minute)
	c.Set("b", []byte("b"), 200, nil, time.Minute)

	// touch "a" so "b" becomes the least-recently-used entry.
	c.Get("a")
	c.Set("c", []byte("c"), 200, nil, time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted as least-recently-used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to survive (recently touched)")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected c to be present")
	}
}

func TestZeroMaxItemsDisablesCache(t *testing.T) {
	c := New(0, 0, nil)
	c.Set("a", []byte("a"), 200, nil, time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected disabled cache to never store entries")
	}
}

func TestMaxBytesEvictsLRUEvenUnderEntryLimit(t *testing.T) {
	c := New(10, 12, nil)
	c.Set("a", []byte("12345"), 200, nil, time.Minute)
	c.Set("b", []byte("12345"), 200, nil, time.Minute)

	// "a"+"b" already total 10 bytes; adding "c" pushes the total to 15,
	// over the 12-byte ceiling, so "a" (least-recently-used) is evicted
	// even though the entry count (2, now 3) never approached maxItems.
	c.Set("c", []byte("12345"), 200, nil, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a evicted once the byte ceiling was exceeded")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("expected b to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected c to be present")
	}
	if stats := c.Stats(); stats.Bytes > 12 {
		t.Fatalf("expected total bytes to respect the ceiling, got %d", stats.Bytes)
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New(2, 0, nil)
	c.Set("a", []byte("a"), 200, nil, time.Minute)
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected invalidated entry to miss")
	}

	c.Set("b", []byte("b"), 200, nil, time.Minute)
	c.Clear()
	if c.Stats().Items != 0 {
		t.Fatal("expected cache empty after Clear")
	}
}
