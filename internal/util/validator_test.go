package util

import "testing"

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); err == nil {
		t.Fatal("expected error for short password")
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("   ", "nome"); err == nil {
		t.Fatal("expected error for blank value")
	}
	if err := RequireString("valor", "nome"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
