package store

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte(`{"verified":true,"confidence":92.4}`)

	sealed, err := seal(plaintext, "secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("verified")) {
		t.Error("sealed payload leaks plaintext")
	}

	opened, err := open(sealed, "secret")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip mismatch: got %q", opened)
	}
}

func TestOpenWrongSecretFails(t *testing.T) {
	sealed, err := seal([]byte("payload"), "secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := open(sealed, "other"); err == nil {
		t.Error("expected error opening with wrong secret")
	}
}

func TestOpenTamperedPayloadFails(t *testing.T) {
	sealed, err := seal([]byte("payload"), "secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := open(sealed, "secret"); err == nil {
		t.Error("expected error opening tampered payload")
	}
}

func TestOpenTruncatedPayloadFails(t *testing.T) {
	if _, err := open([]byte("short"), "secret"); err == nil {
		t.Error("expected error opening truncated payload")
	}
}
