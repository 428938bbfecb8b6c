package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	token, exp, err := tm.GenerateToken("profile-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(exp) <= 29*time.Minute {
		t.Fatalf("expiry too early: %v", exp)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ProfileID != "profile-1" || claims.Subject != "profile-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret", 30).GenerateToken("profile-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("other", 30).ParseToken(token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestTokenExpires(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }
	token, _, err := tm.GenerateToken("profile-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	tm.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := tm.ParseToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cases := []struct {
		name   string
		hash   string
		plain  string
		want   bool
		errors bool
	}{
		{name: "match", hash: hash, plain: "correct horse", want: true},
		{name: "mismatch", hash: hash, plain: "wrong"},
		{name: "malformed hash", hash: "not-bcrypt", plain: "correct horse", errors: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := CheckPassword(tc.hash, tc.plain)
			if (err != nil) != tc.errors {
				t.Fatalf("err = %v, want error %t", err, tc.errors)
			}
			if ok != tc.want {
				t.Fatalf("ok = %t, want %t", ok, tc.want)
			}
		})
	}
}

func TestHashPasswordRejectsTruncatedInput(t *testing.T) {
	long := make([]byte, MaxPasswordBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := HashPassword(string(long), 4); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("err = %v, want ErrPasswordTooLong", err)
	}
}
