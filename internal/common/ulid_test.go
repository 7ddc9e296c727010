package common

import "testing"

func TestNewULID_Monotonic(t *testing.T) {
	prev := ""
	for i := 0; i < 1000; i++ {
		id := NewULID()
		if len(id) != 26 {
			t.Fatalf("unexpected ulid length %d", len(id))
		}
		if id <= prev {
			t.Fatalf("ulid not increasing: %s <= %s", id, prev)
		}
		prev = id
	}
}
