package embedding

import "testing"

func TestCache_GetSet(t *testing.T) {
	c := newCache(2)
	if _, ok := c.get("a"); ok {
		t.Error("empty cache should miss")
	}
	c.set("a", []float32{1})
	if v, ok := c.get("a"); !ok || v[0] != 1 {
		t.Error("expected hit for a")
	}
}

func TestCache_RotationKeepsRecent(t *testing.T) {
	c := newCache(2)
	c.set("a", []float32{1})
	c.set("b", []float32{2})
	c.set("c", []float32{3}) // rotates; a and b move to previous generation
	if _, ok := c.get("a"); !ok {
		t.Error("a should survive one rotation")
	}
	c.set("d", []float32{4})
	c.set("e", []float32{5}) // second rotation; b was never touched again
	if _, ok := c.get("b"); ok {
		t.Error("b should have been evicted after two rotations")
	}
}
