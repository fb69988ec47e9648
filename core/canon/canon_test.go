package canon

import "testing"

func TestCanonicalizeJSON(t *testing.T) {
	in := []byte(`{ "b":2, "a":1 }`)
	want := `{"a":1,"b":2}`
	out, err := CanonicalizeJSON(in)
	if err != nil {
		t.Fatalf("canonicalize error: %v", err)
	}
	if string(out) != want {
		t.Fatalf("unexpected canonical form: %s", string(out))
	}
}

func TestDigestJCSSaltedIgnoresFormatting(t *testing.T) {
	compact := []byte(`[{"a":1,"b":2}]`)
	spaced := []byte("[ {\n  \"b\": 2,\n  \"a\": 1\n} ]")

	first, err := DigestJCSSalted(compact, "session-1")
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	second, err := DigestJCSSalted(spaced, "session-1")
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical digests for equivalent JSON")
	}
}

func TestDigestJCSSaltedSaltSensitive(t *testing.T) {
	payload := []byte(`[]`)
	first, err := DigestJCSSalted(payload, "session-1")
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	second, err := DigestJCSSalted(payload, "session-2")
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	if first == second {
		t.Fatalf("expected different digests for different salts")
	}
}

func TestSHA256Hex(t *testing.T) {
	// sha256 of the empty input, a fixed vector.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex(nil); got != want {
		t.Fatalf("unexpected digest %s", got)
	}
	if SHA256Hex([]byte("a")) == SHA256Hex([]byte("b")) {
		t.Fatalf("different inputs must digest differently")
	}
}

func TestDigestJCSSaltedHexLength(t *testing.T) {
	digest, err := DigestJCSSalted([]byte(`{}`), "salt")
	if err != nil {
		t.Fatalf("digest error: %v", err)
	}
	if len(digest) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(digest))
	}
}
