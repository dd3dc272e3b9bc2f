package auth

import (
	"errors"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("changeme123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyPassword("changeme123", hash) {
		t.Fatalf("expected password verification to succeed")
	}
	if VerifyPassword("wrong-password", hash) {
		t.Fatalf("did not expect wrong password to verify")
	}
}

func TestHashPasswordRejectsShortPassword(t *testing.T) {
	t.Parallel()

	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("HashPassword() error = %v, want ErrWeakPassword", err)
	}
	if _, err := HashPassword("   "); err == nil {
		t.Fatalf("expected blank password to fail")
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: " Alice@Example.COM ", want: "alice@example.com"},
		{raw: "bob@example.org", want: "bob@example.org"},
		{raw: "", wantErr: true},
		{raw: "not-an-address", wantErr: true},
		{raw: "Alice <alice@example.com>", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeEmail(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidEmail) {
				t.Fatalf("NormalizeEmail(%q) error = %v, want ErrInvalidEmail", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeEmail(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
