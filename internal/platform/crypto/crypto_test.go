package crypto

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	svc, err := New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !svc.Configured() {
		t.Fatal("expected configured service")
	}
	sealed, err := svc.SealString("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("JBSWY3DPEHPK3PXP")) {
		t.Fatal("expected ciphertext not to contain plaintext")
	}
	plain, err := svc.OpenString(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected round trip, got %q", plain)
	}
}

func TestUnconfiguredPassThrough(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if svc.Configured() {
		t.Fatal("expected unconfigured service")
	}
	sealed, err := svc.Seal([]byte("evidence"))
	if err != nil || string(sealed) != "evidence" {
		t.Fatalf("expected passthrough, got %q %v", sealed, err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New("too-short"); err == nil {
		t.Fatal("expected key length error")
	}
}

func TestHexKey(t *testing.T) {
	key := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	svc, err := New(key)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !svc.Configured() {
		t.Fatal("expected configured service")
	}
}

func TestOpenTooShort(t *testing.T) {
	svc, _ := New("0123456789abcdef0123456789abcdef")
	if _, err := svc.Open([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short ciphertext")
	}
}
