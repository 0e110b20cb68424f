package secrets

import (
	"context"
	"errors"
	"testing"
)

func TestInMemorySecretStore_SetAndGet(t *testing.T) {
	store := NewInMemorySecretStore()
	ctx := context.Background()

	store.SetSecret("openai-key", "sk-test-123")

	value, err := store.GetSecret(ctx, "openai-key")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if value != "sk-test-123" {
		t.Errorf("GetSecret() = %v, want sk-test-123", value)
	}
}

func TestInMemorySecretStore_GetNotFound(t *testing.T) {
	store := NewInMemorySecretStore()

	_, err := store.GetSecret(context.Background(), "nonexistent")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("GetSecret() error = %v, want ErrSecretNotFound", err)
	}
}

func TestInMemorySecretStore_Delete(t *testing.T) {
	store := NewInMemorySecretStore()
	ctx := context.Background()

	store.SetSecret("openai-key", "sk-test-123")
	store.DeleteSecret("openai-key")

	if _, err := store.GetSecret(ctx, "openai-key"); err == nil {
		t.Error("GetSecret() should return error after delete")
	}
}

func TestInMemorySecretStore_FieldReference(t *testing.T) {
	store := NewInMemorySecretStore()
	ctx := context.Background()
	store.SetSecret("solmate/prod", `{"OPENAI_API_KEY": "sk-json", "enabled": true}`)

	value, err := store.GetSecret(ctx, "solmate/prod#OPENAI_API_KEY")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if value != "sk-json" {
		t.Errorf("GetSecret() = %q, want sk-json", value)
	}

	if _, err := store.GetSecret(ctx, "solmate/prod#enabled"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("non-string field error = %v, want ErrSecretNotFound", err)
	}
	if _, err := store.GetSecret(ctx, "solmate/prod#missing"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("missing field error = %v, want ErrSecretNotFound", err)
	}
}

func TestInMemorySecretStore_FieldReferenceInvalidJSON(t *testing.T) {
	store := NewInMemorySecretStore()
	store.SetSecret("plain", "not json")

	if _, err := store.GetSecret(context.Background(), "plain#key"); err == nil {
		t.Error("GetSecret() should fail when secret is not JSON")
	}
}

func TestSplitRef(t *testing.T) {
	tests := []struct {
		ref   string
		name  string
		field string
	}{
		{"plain", "plain", ""},
		{"a/b#KEY", "a/b", "KEY"},
		{"x#", "x", ""},
	}

	for _, tt := range tests {
		name, field := SplitRef(tt.ref)
		if name != tt.name || field != tt.field {
			t.Errorf("SplitRef(%q) = (%q, %q), want (%q, %q)", tt.ref, name, field, tt.name, tt.field)
		}
	}
}
