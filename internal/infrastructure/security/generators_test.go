package security

import (
	"strings"
	"testing"
)

func TestGenerateULIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateULID()
		if len(id) != 26 {
			t.Fatalf("ulid %q has length %d, want 26", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate ulid %q", id)
		}
		seen[id] = true
	}
}

func TestRandomBase36(t *testing.T) {
	for _, length := range []int{1, 6, 8, 16} {
		got := RandomBase36(length)
		if len(got) != length {
			t.Errorf("RandomBase36(%d) returned %d chars", length, len(got))
		}
		for _, c := range got {
			if !strings.ContainsRune(base36Alphabet, c) {
				t.Errorf("RandomBase36(%d) produced out-of-alphabet char %q", length, c)
			}
		}
	}
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken() failed: %v", err)
	}
	b, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken() failed: %v", err)
	}
	if a == b {
		t.Error("two tokens are identical")
	}
}
