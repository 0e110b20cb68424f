// Package secrets resolves upstream credentials that are not handed to the
// process as plain environment variables.
//
// A reference is either a bare secret name or "name#field", in which case the
// secret is a JSON object and field selects one of its string members.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var ErrSecretNotFound = errors.New("secret not found")

type SecretStore interface {
	GetSecret(ctx context.Context, ref string) (string, error)
}

// SplitRef separates "name#field" into its parts. field is empty for bare names.
func SplitRef(ref string) (name, field string) {
	name, field, _ = strings.Cut(ref, "#")
	return name, field
}

// extractField returns raw as-is for an empty field, otherwise the named string
// member of the JSON object in raw.
func extractField(raw, ref, field string) (string, error) {
	if field == "" {
		return raw, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", ref, err)
	}

	v, ok := obj[field].(string)
	if !ok {
		return "", fmt.Errorf("secret %s: %w", ref, ErrSecretNotFound)
	}
	return v, nil
}

type AWSSecretsManager struct {
	client *secretsmanager.Client
	cache  map[string]*cachedSecret
	mu     sync.RWMutex
	ttl    time.Duration
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func NewAWSSecretsManager(ctx context.Context, region string) (*AWSSecretsManager, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewAWSSecretsManagerWithConfig(cfg), nil
}

func NewAWSSecretsManagerWithConfig(cfg aws.Config) *AWSSecretsManager {
	return &AWSSecretsManager{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]*cachedSecret),
		ttl:    5 * time.Minute,
	}
}

func (s *AWSSecretsManager) GetSecret(ctx context.Context, ref string) (string, error) {
	name, field := SplitRef(ref)

	raw, err := s.fetch(ctx, name)
	if err != nil {
		return "", err
	}
	return extractField(raw, ref, field)
}

func (s *AWSSecretsManager) fetch(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if cached, ok := s.cache[name]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return cached.value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value: %w", name, ErrSecretNotFound)
	}

	s.mu.Lock()
	s.cache[name] = &cachedSecret{
		value:     *result.SecretString,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return *result.SecretString, nil
}

func (s *AWSSecretsManager) SetCacheTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
}

// InMemorySecretStore backs tests and local runs.
type InMemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewInMemorySecretStore() *InMemorySecretStore {
	return &InMemorySecretStore{
		secrets: make(map[string]string),
	}
}

func (s *InMemorySecretStore) GetSecret(ctx context.Context, ref string) (string, error) {
	name, field := SplitRef(ref)

	s.mu.RLock()
	raw, ok := s.secrets[name]
	s.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("secret %s: %w", name, ErrSecretNotFound)
	}
	return extractField(raw, ref, field)
}

func (s *InMemorySecretStore) SetSecret(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}

func (s *InMemorySecretStore) DeleteSecret(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, name)
}
