// Package secrets reads JSON secrets from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var (
	ErrSecretEmpty = errors.New("secret has no string value")
	ErrKeyMissing  = errors.New("secret is missing required key")
)

// Fetcher returns a secret decoded as a JSON object.
type Fetcher interface {
	FetchJSON(ctx context.Context, name string) (map[string]string, error)
}

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Manager is a Fetcher backed by AWS Secrets Manager.
type Manager struct {
	api secretsManagerAPI
}

var _ Fetcher = (*Manager)(nil)

func NewManager(cfg aws.Config) *Manager {
	return &Manager{api: secretsmanager.NewFromConfig(cfg)}
}

func (m *Manager) FetchJSON(ctx context.Context, name string) (map[string]string, error) {
	raw, err := m.fetchString(ctx, name)
	if err != nil {
		return nil, err
	}

	return decodeObject(name, raw)
}

// decodeObject decodes a JSON object secret. Non-string values keep their
// JSON text.
func decodeObject(name, raw string) (map[string]string, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("decode secret %s: %w", name, err)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("decode secret %s key %s: %w", name, k, err)
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

func (m *Manager) fetchString(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secret name is empty")
	}
	resp, err := m.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	value := strings.TrimSpace(aws.ToString(resp.SecretString))
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretEmpty, name)
	}
	return value, nil
}

// RequireKey returns the first non-empty value among keys.
func RequireKey(secret map[string]string, name string, keys ...string) (string, error) {
	for _, k := range keys {
		if v := strings.TrimSpace(secret[k]); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s needs one of %s", ErrKeyMissing, name, strings.Join(keys, ","))
}

// APIKeyResolver resolves an API key once per process. A non-empty static key
// wins; otherwise the secret is read and may be a JSON object or a bare string.
type APIKeyResolver struct {
	resolve func(ctx context.Context) (string, error)

	once sync.Once
	key  string
	err  error
}

func NewAPIKeyResolver(staticKey string, m *Manager, secretID string) *APIKeyResolver {
	staticKey = strings.TrimSpace(staticKey)
	return &APIKeyResolver{
		resolve: func(ctx context.Context) (string, error) {
			if staticKey != "" {
				return staticKey, nil
			}
			if m == nil || strings.TrimSpace(secretID) == "" {
				return "", errors.New("no api key and no secret id configured")
			}
			raw, err := m.fetchString(ctx, secretID)
			if err != nil {
				return "", err
			}
			return apiKeyFromSecret(secretID, raw)
		},
	}
}

// Key returns the cached key, resolving it on first use.
func (r *APIKeyResolver) Key(ctx context.Context) (string, error) {
	r.once.Do(func() {
		r.key, r.err = r.resolve(ctx)
	})
	return r.key, r.err
}

// apiKeyFromSecret reads the key from a JSON object secret, or takes a
// non-JSON secret as the key itself.
func apiKeyFromSecret(secretID, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	obj, err := decodeObject(secretID, raw)
	if err != nil {
		return "", err
	}
	return RequireKey(obj, secretID, "OPENAI_API_KEY", "api_key")
}
