package crypto

import (
	"bytes"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	masterKey := []byte("test-master-key-32-bytes-long!!")
	salt := []byte("test-salt")

	tests := []struct {
		name   string
		info   string
		keyLen int
	}{
		{"32-byte key", "purpose1", 32},
		{"16-byte key", "purpose2", 16},
		{"64-byte key", "purpose3", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveKey(masterKey, salt, tt.info, tt.keyLen)
			if err != nil {
				t.Fatalf("DeriveKey() error = %v", err)
			}
			if len(key) != tt.keyLen {
				t.Errorf("DeriveKey() key length = %d, want %d", len(key), tt.keyLen)
			}
		})
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	masterKey := []byte("test-master-key-32-bytes-long!!")
	salt := []byte("test-salt")
	info := "test-purpose"

	key1, err := DeriveKey(masterKey, salt, info, 32)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}

	key2, err := DeriveKey(masterKey, salt, info, 32)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}

	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey() should be deterministic for same inputs")
	}
}

func TestDeriveKeyDifferentPurposes(t *testing.T) {
	masterKey := []byte("test-master-key-32-bytes-long!!")
	salt := []byte("test-salt")

	key1, _ := DeriveKey(masterKey, salt, "purpose1", 32)
	key2, _ := DeriveKey(masterKey, salt, "purpose2", 32)

	if bytes.Equal(key1, key2) {
		t.Error("DeriveKey() should produce different keys for different purposes")
	}
}

func TestGenerateRandomBytes(t *testing.T) {
	for _, n := range []int{16, 32, 64} {
		b, err := GenerateRandomBytes(n)
		if err != nil {
			t.Fatalf("GenerateRandomBytes() error = %v", err)
		}
		if len(b) != n {
			t.Errorf("GenerateRandomBytes() length = %d, want %d", len(b), n)
		}
	}
}

func TestGenerateRandomBytesUnique(t *testing.T) {
	b1, _ := GenerateRandomBytes(32)
	b2, _ := GenerateRandomBytes(32)

	if bytes.Equal(b1, b2) {
		t.Error("GenerateRandomBytes() should produce unique values")
	}
}

func TestHMACSignVerify(t *testing.T) {
	key := []byte("hmac-key")
	data := []byte("hello")

	sig := HMACSign(key, data)
	if !HMACVerify(key, data, sig) {
		t.Error("HMACVerify() should accept a signature produced by HMACSign")
	}
	if HMACVerify([]byte("wrong-key"), data, sig) {
		t.Error("HMACVerify() should reject a signature with the wrong key")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, 32)
	copy(key, []byte("test-encryption-key-32-bytes!!!"))

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"short message", []byte("Hello")},
		{"medium message", []byte("Hello, World! This is a test message.")},
		{"empty message", []byte{}},
		{"binary data", []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(key, tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			decrypted, err := Decrypt(key, ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("Decrypt() = %v, want %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptProducesUniqueCiphertext(t *testing.T) {
	key := make([]byte, 32)
	copy(key, []byte("test-encryption-key-32-bytes!!!"))
	plaintext := []byte("Hello, World!")

	c1, _ := Encrypt(key, plaintext)
	c2, _ := Encrypt(key, plaintext)

	if bytes.Equal(c1, c2) {
		t.Error("Encrypt() should produce unique ciphertext due to random nonce")
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key1 := make([]byte, 32)
	key2 := make([]byte, 32)
	copy(key1, []byte("test-encryption-key-32-bytes!!!"))
	copy(key2, []byte("wrong-encryption-key-32-bytes!!"))

	plaintext := []byte("Hello, World!")
	ciphertext, _ := Encrypt(key1, plaintext)

	if _, err := Decrypt(key2, ciphertext); err == nil {
		t.Error("Decrypt() should fail with wrong key")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	copy(key, []byte("test-encryption-key-32-bytes!!!"))

	plaintext := []byte("Hello, World!")
	ciphertext, _ := Encrypt(key, plaintext)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := Decrypt(key, ciphertext); err == nil {
		t.Error("Decrypt() should fail with tampered ciphertext")
	}
}

func TestDecryptShortCiphertext(t *testing.T) {
	key := make([]byte, 32)
	copy(key, []byte("test-encryption-key-32-bytes!!!"))

	if _, err := Decrypt(key, []byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("Decrypt() should fail with short ciphertext")
	}
}

func TestEncryptWithInvalidKeySize(t *testing.T) {
	key := []byte("short-key")
	plaintext := []byte("Hello")

	if _, err := Encrypt(key, plaintext); err == nil {
		t.Error("Encrypt() should fail with invalid key size")
	}
}

func TestDecryptWithInvalidKeySize(t *testing.T) {
	key := []byte("short-key")
	ciphertext := make([]byte, 32)

	if _, err := Decrypt(key, ciphertext); err == nil {
		t.Error("Decrypt() should fail with invalid key size")
	}
}

func TestHash256(t *testing.T) {
	data := []byte("test data")
	hash := Hash256(data)

	if len(hash) != 32 {
		t.Errorf("Hash256() length = %d, want 32", len(hash))
	}
	if !bytes.Equal(hash, Hash256(data)) {
		t.Error("Hash256() should be deterministic")
	}
	if bytes.Equal(hash, Hash256([]byte("different data"))) {
		t.Error("Hash256() should produce different hashes for different data")
	}
}

func TestZeroBytes(t *testing.T) {
	data := []byte("sensitive data")
	ZeroBytes(data)

	for i, b := range data {
		if b != 0 {
			t.Errorf("ZeroBytes() byte at index %d = %d, want 0", i, b)
		}
	}
}

func TestZeroBytesEmpty(t *testing.T) {
	data := []byte{}
	ZeroBytes(data)
}

func BenchmarkDeriveKey(b *testing.B) {
	masterKey := []byte("test-master-key-32-bytes-long!!")
	salt := []byte("test-salt")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DeriveKey(masterKey, salt, "benchmark", 32)
	}
}

func BenchmarkEncrypt(b *testing.B) {
	key := make([]byte, 32)
	copy(key, []byte("benchmark-key-32-bytes-long!!!!"))
	plaintext := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Encrypt(key, plaintext)
	}
}

func BenchmarkDecrypt(b *testing.B) {
	key := make([]byte, 32)
	copy(key, []byte("benchmark-key-32-bytes-long!!!!"))
	plaintext := make([]byte, 1024)
	ciphertext, _ := Encrypt(key, plaintext)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decrypt(key, ciphertext)
	}
}

func BenchmarkHash256(b *testing.B) {
	data := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Hash256(data)
	}
}
