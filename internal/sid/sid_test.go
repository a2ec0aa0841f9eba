package sid

import "testing"

func TestNewIDsAreUniqueAndValid(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := New()
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		s := id.String()
		if seen[s] {
			t.Fatalf("duplicate id after %d draws", i)
		}
		seen[s] = true
		if !Valid(s) {
			t.Fatalf("generated id failed validation: %q", s)
		}
	}
}

func TestParseRoundtrip(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"short",
		"not*base64url*at*all!",
		"AAAA", // valid base64url, wrong size
	} {
		if Valid(bad) {
			t.Fatalf("accepted malformed id %q", bad)
		}
	}
}
