package utils

import (
	"errors"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" || hash == "admin123" {
		t.Errorf("HashPassword() returned %q", hash)
	}

	again, _ := HashPassword("admin123")
	if hash == again {
		t.Error("hashes should be salted")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, _ := HashPassword("correct-horse")

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{"correct password", "correct-horse", hash, true},
		{"wrong password", "battery-staple", hash, false},
		{"empty password", "", hash, false},
		{"case sensitive", "Correct-horse", hash, false},
		{"invalid hash", "correct-horse", "not-a-hash", false},
		{"empty hash", "correct-horse", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.expected {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, got, tt.expected)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"12345", true},
		{"123456", false},
		{"密码密码密码", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
	if !errors.Is(ValidatePassword("abc"), ErrPasswordTooShort) {
		t.Error("short password should wrap ErrPasswordTooShort")
	}
}
