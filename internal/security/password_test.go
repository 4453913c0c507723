package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("test!1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash == "test!1234" {
		t.Fatal("hash must not equal plaintext")
	}

	if err := h.Compare(hash, "test!1234"); err != nil {
		t.Errorf("Compare(correct) = %v, want nil", err)
	}
	if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Compare(wrong) = %v, want ErrPasswordMismatch", err)
	}
}

// 不正なハッシュ文字列は不一致ではなくエラーとして返す。
func TestBcryptHasher_CompareMalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	err := h.Compare("not-a-hash", "pw")
	if err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Compare(malformed) = %v, want non-mismatch error", err)
	}
}

func TestNewBcryptHasher_OutOfRangeCostUsesDefault(t *testing.T) {
	if h := NewBcryptHasher(0); h.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.DefaultCost)
	}
	if h := NewBcryptHasher(bcrypt.MaxCost + 1); h.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.DefaultCost)
	}
}
