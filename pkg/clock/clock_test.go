package clock

import "testing"

func TestTickStartsFromOne(t *testing.T) {
	c := New()
	if v := c.Peek(); v != 1 {
		t.Fatalf("new counter: Peek = %d, want 1", v)
	}
	if v := c.Tick(); v != 1 {
		t.Fatalf("first Tick: got %d, want 1", v)
	}
	if v := c.Issued(); v != 1 {
		t.Fatalf("Issued after one Tick: got %d, want 1", v)
	}
}

func TestTickIsGapFree(t *testing.T) {
	c := New()
	for want := int64(1); want <= 100; want++ {
		if got := c.Tick(); got != want {
			t.Fatalf("Tick: got %d, want %d", got, want)
		}
	}
	if v := c.Issued(); v != 100 {
		t.Fatalf("Issued: got %d, want 100", v)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	c := New()
	c.Tick()
	if c.Peek() != c.Peek() {
		t.Fatal("Peek advanced the counter")
	}
	if v := c.Tick(); v != 2 {
		t.Fatalf("Tick after Peek: got %d, want 2", v)
	}
}
