package auth

import (
	"errors"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if err := ComparePassword(hash, "s3cret-pass"); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := ComparePassword("not-a-bcrypt-hash", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for broken hash, got %v", err)
	}
}

func TestCompareTokenHash(t *testing.T) {
	hash := HashToken("refresh-token")
	if len(hash) != 64 {
		t.Fatalf("expected hex sha256, got %q", hash)
	}
	if !CompareTokenHash(hash, "refresh-token") {
		t.Fatal("expected hash to match")
	}
	if CompareTokenHash(hash, "other-token") {
		t.Fatal("expected hash mismatch")
	}
}
