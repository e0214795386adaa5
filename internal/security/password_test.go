package security

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "testPassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash == "" {
		t.Fatal("HashPassword() returned empty string")
	}
	if hash == password {
		t.Error("HashPassword() returned the plaintext")
	}

	keyHex, salt, ok := strings.Cut(hash, ".")
	if !ok {
		t.Fatalf("digest %q has no separator", hash)
	}
	if len(keyHex) != scryptKeyLen*2 {
		t.Errorf("key hex length = %d, want %d", len(keyHex), scryptKeyLen*2)
	}
	if len(salt) != saltBytes*2 {
		t.Errorf("salt hex length = %d, want %d", len(salt), saltBytes*2)
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := HashPassword("same-password")
	if err != nil {
		t.Fatal(err)
	}
	second, err := HashPassword("same-password")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("hashing the same password twice produced identical digests")
	}
	if !CheckPassword("same-password", first) || !CheckPassword("same-password", second) {
		t.Error("both digests should verify")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	keyHex, salt, _ := strings.Cut(hash, ".")

	tests := []struct {
		name     string
		password string
		digest   string
		want     bool
	}{
		{"correct password", "correct horse", hash, true},
		{"wrong password", "correct horsE", hash, false},
		{"empty password", "", hash, false},
		{"missing separator", "correct horse", keyHex + salt, false},
		{"empty digest", "correct horse", "", false},
		{"empty salt", "correct horse", keyHex + ".", false},
		{"extra separator", "correct horse", hash + ".00", false},
		{"non-hex key", "correct horse", strings.Repeat("z", len(keyHex)) + "." + salt, false},
		{"truncated key", "correct horse", keyHex[:20] + "." + salt, false},
		{"other salt", "correct horse", keyHex + "." + strings.Repeat("0", len(salt)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.digest); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScryptHasherSatisfiesInterface(t *testing.T) {
	var h PasswordHasher = NewScryptHasher()
	digest, err := h.Hash("pw-123456")
	if err != nil {
		t.Fatal(err)
	}
	if !h.Verify("pw-123456", digest) {
		t.Error("Verify() = false for freshly hashed password")
	}
}
