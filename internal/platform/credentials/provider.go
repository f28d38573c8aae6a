// Package credentials supplies the access token used for transfers.
package credentials

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/domain/errors"
)

// StaticTokenProvider serves a token fixed at startup, usually from ACCESS_TOKEN
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider for token. An empty token means
// no credential is stored.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: strings.TrimSpace(token)}
}

func (p *StaticTokenProvider) Token(ctx context.Context) (string, bool, error) {
	return p.token, p.token != "", nil
}

// SecretsManagerAPI is the Secrets Manager call used to read the token
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type secretReader interface {
	read(ctx context.Context, secretID string) (string, error)
}

type directReader struct {
	api SecretsManagerAPI
}

func (r directReader) read(ctx context.Context, secretID string) (string, error) {
	result, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(result.SecretString), nil
}

type cachedReader struct {
	cache *secretcache.Cache
}

func (r cachedReader) read(ctx context.Context, secretID string) (string, error) {
	return r.cache.GetSecretString(secretID)
}

// SecretsManagerTokenProvider reads the token from a secret on every call, so
// a deleted or rotated secret is observed at transfer time. The secret is
// either the raw token or a JSON object with an accessToken field.
type SecretsManagerTokenProvider struct {
	reader   secretReader
	secretID string
	logger   *zap.Logger
}

// NewSecretsManagerTokenProvider creates a provider that calls api directly
func NewSecretsManagerTokenProvider(api SecretsManagerAPI, secretID string, logger *zap.Logger) *SecretsManagerTokenProvider {
	return newSecretsManagerTokenProvider(directReader{api: api}, secretID, logger)
}

// NewCachedSecretsManagerTokenProvider creates a provider that reads through
// the Secrets Manager client-side cache
func NewCachedSecretsManagerTokenProvider(client *secretsmanager.Client, secretID string, logger *zap.Logger) (*SecretsManagerTokenProvider, error) {
	cache, err := secretcache.New(func(c *secretcache.Cache) {
		c.Client = client
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to initialize secret cache", err)
	}
	return newSecretsManagerTokenProvider(cachedReader{cache: cache}, secretID, logger), nil
}

func newSecretsManagerTokenProvider(reader secretReader, secretID string, logger *zap.Logger) *SecretsManagerTokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecretsManagerTokenProvider{
		reader:   reader,
		secretID: secretID,
		logger:   logger.Named("credentials"),
	}
}

// NewSecretsManagerClient loads the AWS configuration for region
func NewSecretsManagerClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.NewInternalError("failed to load AWS configuration", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

func (p *SecretsManagerTokenProvider) Token(ctx context.Context) (string, bool, error) {
	secret, err := p.reader.read(ctx, p.secretID)
	if err != nil {
		if isSecretNotFound(err) {
			p.logger.Info("access token secret not found", zap.String("secret_id", p.secretID))
			return "", false, nil
		}
		return "", false, errors.NewInternalError("failed to read access token", err)
	}

	token := parseSecret(secret)
	return token, token != "", nil
}

func parseSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if strings.HasPrefix(secret, "{") {
		var body struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.Unmarshal([]byte(secret), &body); err == nil {
			return strings.TrimSpace(body.AccessToken)
		}
	}
	return secret
}

func isSecretNotFound(err error) bool {
	var notFound *smtypes.ResourceNotFoundException
	return stderrors.As(err, &notFound) || strings.Contains(err.Error(), "ResourceNotFoundException")
}

// TokenSource is implemented by every provider in this package
type TokenSource interface {
	Token(ctx context.Context) (string, bool, error)
}

// ExpiryCheckingProvider reports JWT access tokens past their exp claim as
// missing. Tokens that are not JWTs, or carry no exp, pass through.
type ExpiryCheckingProvider struct {
	next   TokenSource
	now    func() time.Time
	leeway time.Duration
	logger *zap.Logger
}

// WithExpiryCheck wraps next with an expiry check
func WithExpiryCheck(next TokenSource, leeway time.Duration, logger *zap.Logger) *ExpiryCheckingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryCheckingProvider{
		next:   next,
		now:    time.Now,
		leeway: leeway,
		logger: logger.Named("credentials"),
	}
}

func (p *ExpiryCheckingProvider) Token(ctx context.Context) (string, bool, error) {
	token, ok, err := p.next.Token(ctx)
	if err != nil || !ok {
		return token, ok, err
	}

	// the signature is verified by the API, only the expiry is read here
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return token, true, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, true, nil
	}
	if !p.now().Before(exp.Time.Add(p.leeway)) {
		p.logger.Warn("access token expired", zap.Time("expired_at", exp.Time))
		return "", false, nil
	}
	return token, true, nil
}
