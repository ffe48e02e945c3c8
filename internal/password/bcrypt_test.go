package password_test

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/ErlanBelekov/account-service/internal/password"
)

func TestBcrypt_HashAndVerify(t *testing.T) {
	h := password.NewBcrypt(bcrypt.MinCost)

	hash, err := h.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "" || hash == "s3cret-pass" {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("hash %q is not bcrypt", hash)
	}
	if !h.Verify("s3cret-pass", hash) {
		t.Error("expected correct password to verify")
	}
	if h.Verify("wrong-pass", hash) {
		t.Error("expected wrong password to fail")
	}
}

func TestBcrypt_EmptyPassword(t *testing.T) {
	h := password.NewBcrypt(bcrypt.MinCost)
	if _, err := h.Hash(""); !errors.Is(err, password.ErrEmpty) {
		t.Errorf("want ErrEmpty, got %v", err)
	}
}

func TestBcrypt_MalformedHash(t *testing.T) {
	h := password.NewBcrypt(bcrypt.MinCost)
	if h.Verify("anything", "not-a-hash") {
		t.Error("malformed hash must not verify")
	}
}

func TestBcrypt_CostOutOfRangeFallsBack(t *testing.T) {
	h := password.NewBcrypt(99)
	hash, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}
}
