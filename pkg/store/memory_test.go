package store

import (
	"context"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if err := ms.Set(ctx, "last_btc_price", "85000.5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := ms.Get(ctx, "last_btc_price")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "85000.5" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	ms := NewMemoryStore()
	if _, err := ms.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLPushOrdering(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	for _, v := range []string{"1", "2", "3"} {
		if err := ms.LPush(ctx, "hist", v); err != nil {
			t.Fatalf("lpush: %v", err)
		}
	}
	got, err := ms.LRange(ctx, "hist", 0, -1)
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	want := []string{"3", "2", "1"}
	if len(got) != len(want) {
		t.Fatalf("len %d != %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at %d: %q != %q", i, got[i], want[i])
		}
	}
}

func TestLTrimBounds(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		_ = ms.LPush(ctx, "hist", "x")
		_ = ms.LTrim(ctx, "hist", 0, 99)
	}
	got, _ := ms.LRange(ctx, "hist", 0, -1)
	if len(got) != 100 {
		t.Fatalf("expected 100 entries after trim, got %d", len(got))
	}
}

func TestLTrimNegativeIndices(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_ = ms.LPush(ctx, "l", "d", "c", "b", "a") // head: a b c d
	if err := ms.LTrim(ctx, "l", -2, -1); err != nil {
		t.Fatalf("ltrim: %v", err)
	}
	got, _ := ms.LRange(ctx, "l", 0, -1)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Fatalf("unexpected tail slice: %v", got)
	}
}

func TestLRangeEmptyKey(t *testing.T) {
	ms := NewMemoryStore()
	got, err := ms.LRange(context.Background(), "absent", 0, -1)
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestZSetOps(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_ = ms.ZAdd(ctx, "q", 100, "a")
	_ = ms.ZAdd(ctx, "q", 200, "b")
	_ = ms.ZAdd(ctx, "q", 300, "c")

	n, err := ms.ZCard(ctx, "q")
	if err != nil || n != 3 {
		t.Fatalf("zcard: %d %v", n, err)
	}

	got, err := ms.ZRangeByScore(ctx, "q", 150, 300)
	if err != nil {
		t.Fatalf("zrangebyscore: %v", err)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected range: %v", got)
	}
}

func TestZRemRangeByRank(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = ms.ZAdd(ctx, "q", float64(i), string(rune('a'+i)))
	}
	// drop the two oldest (lowest scores)
	if err := ms.ZRemRangeByRank(ctx, "q", 0, 1); err != nil {
		t.Fatalf("zremrangebyrank: %v", err)
	}
	n, _ := ms.ZCard(ctx, "q")
	if n != 3 {
		t.Fatalf("expected 3 left, got %d", n)
	}
	got, _ := ms.ZRangeByScore(ctx, "q", 0, 100)
	if got[0] != "c" {
		t.Fatalf("expected oldest remaining to be c, got %v", got)
	}
}

func TestZAddUpdatesScore(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_ = ms.ZAdd(ctx, "q", 1, "a")
	_ = ms.ZAdd(ctx, "q", 10, "a")
	n, _ := ms.ZCard(ctx, "q")
	if n != 1 {
		t.Fatalf("expected single member, got %d", n)
	}
	got, _ := ms.ZRangeByScore(ctx, "q", 5, 20)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("score not updated: %v", got)
	}
}
