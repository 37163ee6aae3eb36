package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/credauth/credauth"
	"golang.org/x/crypto/bcrypt"
)

func newFastProvider() *Provider {
	return New(WithBcryptCost(bcrypt.MinCost))
}

func TestCreateAndVerify(t *testing.T) {
	p := newFastProvider()
	ctx := context.Background()

	created, err := p.Create(ctx, "Alice@Example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated subject id")
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("expected normalized identifier, got %q", created.Email)
	}

	verified, err := p.VerifyCredentials(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("VerifyCredentials failed: %v", err)
	}
	if verified == nil || verified.ID != created.ID {
		t.Fatalf("expected subject %s, got %+v", created.ID, verified)
	}
}

func TestVerifyRejectsWrongSecretAndUnknownIdentifier(t *testing.T) {
	p := newFastProvider()
	ctx := context.Background()

	if _, err := p.Create(ctx, "alice@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for name, args := range map[string][2]string{
		"wrong secret":       {"alice@example.com", "wrong"},
		"unknown identifier": {"mallory@example.com", "correct-horse-battery"},
	} {
		subject, err := p.VerifyCredentials(ctx, args[0], args[1])
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if subject != nil {
			t.Fatalf("%s: expected no match", name)
		}
	}
}

func TestCreateDuplicateIdentifier(t *testing.T) {
	p := newFastProvider()
	ctx := context.Background()

	if _, err := p.Create(ctx, "alice@example.com", "secret-one"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := p.Create(ctx, "ALICE@example.com", "secret-two")
	if !errors.Is(err, credauth.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestFindByID(t *testing.T) {
	p := newFastProvider()
	ctx := context.Background()

	created, err := p.Create(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := p.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found == nil || found.Email != "alice@example.com" {
		t.Fatalf("unexpected subject %+v", found)
	}

	missing, err := p.FindByID(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown id")
	}
}

func TestSecretsAreHashed(t *testing.T) {
	p := newFastProvider()
	ctx := context.Background()

	created, err := p.Create(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	p.mu.RLock()
	entry := p.byID[created.ID]
	p.mu.RUnlock()

	if string(entry.hash) == "correct-horse-battery" {
		t.Fatal("secret stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword(entry.hash, []byte("correct-horse-battery")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}
