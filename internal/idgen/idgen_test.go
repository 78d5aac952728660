package idgen

import (
	"bytes"
	"strings"
	"testing"
)

func never(string) (bool, error) { return false, nil }

func TestNextShape(t *testing.T) {
	g := New("wf")
	id, err := g.Next(never)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !strings.HasPrefix(id, "wf-") {
		t.Errorf("id %q missing prefix", id)
	}
	suffix := strings.TrimPrefix(id, "wf-")
	if len(suffix) != 8 {
		t.Errorf("suffix %q has length %d, want 8", suffix, len(suffix))
	}
	for _, r := range suffix {
		if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyz234567", r) {
			t.Errorf("suffix %q contains %q outside the base32 alphabet", suffix, r)
		}
	}
}

func TestNextDeterministicFromSource(t *testing.T) {
	src := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff})
	g := NewWithSource("wf", src)

	id1, err := g.Next(never)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if id1 != "wf-aaaaaaaa" {
		t.Errorf("all-zero payload encoded to %q, want wf-aaaaaaaa", id1)
	}
	id2, err := g.Next(never)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if id2 != "wf-77777777" {
		t.Errorf("all-ones payload encoded to %q, want wf-77777777", id2)
	}
}

func TestNextRetriesOnCollision(t *testing.T) {
	src := bytes.NewReader([]byte{
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,
		9, 9, 9, 9, 9,
	})
	g := NewWithSource("wf", src)

	seen := map[string]bool{}
	// First draw is "taken", later ones are not.
	calls := 0
	exists := func(id string) (bool, error) {
		calls++
		return calls == 1, nil
	}

	id, err := g.Next(exists)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 existence probes, got %d", calls)
	}
	if seen[id] {
		t.Errorf("id %q repeated", id)
	}
}

func TestNextGivesUpAfterMaxAttempts(t *testing.T) {
	g := New("wf")
	always := func(string) (bool, error) { return true, nil }
	if _, err := g.Next(always); err == nil {
		t.Fatal("expected an error when every id collides")
	}
}
