package credential

import (
	"errors"
	"strings"
	"testing"
)

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name      string
		masterKey string
		wantErr   error
	}{
		{name: "valid key", masterKey: "a-sufficiently-random-master-key", wantErr: nil},
		{name: "empty key", masterKey: "", wantErr: ErrEmptyMasterKey},
		{name: "short key", masterKey: "x", wantErr: nil},
		{name: "long key", masterKey: strings.Repeat("a", 1000), wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncryptor(tt.masterKey)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewEncryptor() error = %v, wantErr %v", err, tt.wantErr)
				}
				if enc != nil {
					t.Error("NewEncryptor() returned encryptor on error")
				}
				return
			}
			if err != nil {
				t.Errorf("NewEncryptor() unexpected error = %v", err)
			}
			if enc == nil {
				t.Fatal("NewEncryptor() returned nil encryptor")
			}
			if err := enc.SelfTest(); err != nil {
				t.Errorf("SelfTest() failed: %v", err)
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor("master-key-for-roundtrip-test")
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	plaintexts := []string{
		"s3cret-xtream-password",
		strings.Repeat("x", 512),
		"unicode-café-密码",
	}

	for _, pt := range plaintexts {
		handle, err := enc.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", pt, err)
		}
		if handle == pt {
			t.Fatalf("Encrypt(%q) returned plaintext unchanged", pt)
		}

		got, err := enc.Decrypt(handle)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if got != pt {
			t.Fatalf("Decrypt() = %q, want %q", got, pt)
		}
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	enc, _ := NewEncryptor("master-key")
	if _, err := enc.Encrypt(""); !errors.Is(err, ErrEmptyPlaintext) {
		t.Errorf("Encrypt(\"\") error = %v, want ErrEmptyPlaintext", err)
	}
}

func TestDecryptInvalidHandle(t *testing.T) {
	enc, _ := NewEncryptor("master-key")

	if _, err := enc.Decrypt(""); !errors.Is(err, ErrEmptyCiphertext) {
		t.Errorf("Decrypt(\"\") error = %v, want ErrEmptyCiphertext", err)
	}
	if _, err := enc.Decrypt("not-valid-base64!!!"); err == nil {
		t.Error("Decrypt() on malformed base64 expected an error")
	}
	if _, err := enc.Decrypt("dG9vc2hvcnQ="); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("Decrypt() on short ciphertext error = %v, want ErrCiphertextTooShort", err)
	}
}

func TestDecryptTamperedHandle(t *testing.T) {
	enc, _ := NewEncryptor("master-key")
	handle, err := enc.Encrypt("xtream-password")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := []byte(handle)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := enc.Decrypt(string(tampered)); err == nil {
		t.Error("Decrypt() on tampered ciphertext expected an error")
	}
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "****"},
		{"abcdef1234", "****...1234"},
	}
	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDifferentMasterKeysProduceIncompatibleHandles(t *testing.T) {
	encA, _ := NewEncryptor("master-key-a")
	encB, _ := NewEncryptor("master-key-b")

	handle, err := encA.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := encB.Decrypt(handle); err == nil {
		t.Error("Decrypt() with wrong master key expected an error")
	}
}
