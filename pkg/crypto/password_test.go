package crypto

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "hunter2"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := ComparePassword(hash, "hunter3"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestHashIsSalted(t *testing.T) {
	a, err := HashPassword("same", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := HashPassword("same", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if string(a) == string(b) {
		t.Fatalf("expected different hashes for the same password")
	}
}

func TestHashFallsBackToDefaultCost(t *testing.T) {
	hash, err := HashPassword("pw", 0)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost(hash)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost %d, got %d", bcrypt.DefaultCost, cost)
	}
}

func TestHashRejectsPasswordsOverLimit(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("p", MaxPasswordBytes), bcrypt.MinCost); err != nil {
		t.Fatalf("expected %d byte password to hash: %v", MaxPasswordBytes, err)
	}
	_, err := HashPassword(strings.Repeat("p", MaxPasswordBytes+1), bcrypt.MinCost)
	if !errors.Is(err, bcrypt.ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}
