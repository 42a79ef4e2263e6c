package adminkey

import (
	"errors"
	"strings"
	"testing"
)

var fastParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHashVerifyRoundTrip(t *testing.T) {
	encoded, err := Hash("s3cret", fastParams)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("encoded = %s", encoded)
	}
	ok, err := Verify("s3cret", encoded)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = Verify("s3cret!", encoded)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	a, _ := Hash("k", fastParams)
	b, _ := Hash("k", fastParams)
	if a == b {
		t.Fatal("two hashes of the same key are identical")
	}
}

func TestMalformedHashes(t *testing.T) {
	for _, h := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$aGFzaA",
	} {
		if _, err := Verify("k", h); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("Verify(%q) err = %v", h, err)
		}
		if Validate(h) == nil {
			t.Errorf("Validate(%q) accepted", h)
		}
	}
	if _, err := Hash("", fastParams); err == nil {
		t.Fatal("empty key hashed")
	}
}
