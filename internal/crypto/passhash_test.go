package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestHashPassword_SaltedAndVerifiable(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if h1 == h2 {
		t.Fatalf("same password hashed twice must differ by salt")
	}
	if !strings.HasPrefix(h1, "argon2id$v=19$m=65536,t=3,p=1$") {
		t.Fatalf("unexpected encoding: %s", h1)
	}

	for _, h := range []string{h1, h2} {
		ok, err := VerifyPassword("p@ssw0rd", h)
		if err != nil || !ok {
			t.Fatalf("verify correct password: ok=%v err=%v", ok, err)
		}
	}
	ok, err := VerifyPassword("wrong", h1)
	if err != nil || ok {
		t.Fatalf("verify wrong password: ok=%v err=%v", ok, err)
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"plain",
		"bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5",
		"argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"argon2id$v=19$m=1,t=1,p=1$!!$a2V5",
		"argon2id$v=19$m=1,t=1,p=1$c2FsdA$",
	}
	for _, c := range cases {
		if _, err := VerifyPassword("x", c); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: want ErrMalformedHash, got %v", c, err)
		}
	}
}
