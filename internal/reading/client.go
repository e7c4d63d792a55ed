package reading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/patrickmn/go-cache"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/secrets"
)

// Credential names looked up in the secret source.
const (
	SecretAccessKeyID     = "AWS_ACCESS_KEY_ID"
	SecretSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
)

// ClientSource hands out query clients per region.
type ClientSource interface {
	Client(ctx context.Context, region string) (dynamodb.QueryAPIClient, error)
}

// ClientProvider builds DynamoDB clients and keeps each one for a fixed TTL.
// Once an entry expires the next caller rebuilds it, picking up rotated
// credentials. Concurrent callers of an expired region wait for one build.
type ClientProvider struct {
	credentials secrets.Source // nil uses the default AWS credential chain
	endpoint    string
	ttl         time.Duration
	onBuild     func()

	mu      sync.Mutex
	clients *cache.Cache
	log     logger.Logger
}

// ProviderOption configures a ClientProvider.
type ProviderOption func(*ClientProvider)

// WithEndpoint points clients at a non-AWS endpoint such as DynamoDB Local.
func WithEndpoint(endpoint string) ProviderOption {
	return func(p *ClientProvider) { p.endpoint = endpoint }
}

// WithBuildHook is called every time a client is constructed.
func WithBuildHook(fn func()) ProviderOption {
	return func(p *ClientProvider) { p.onBuild = fn }
}

// NewClientProvider returns a provider whose clients live for ttl.
func NewClientProvider(creds secrets.Source, ttl time.Duration, opts ...ProviderOption) *ClientProvider {
	p := &ClientProvider{
		credentials: creds,
		ttl:         ttl,
		clients:     cache.New(ttl, ttl),
		log:         logger.Global().Module(componentReading),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Client returns the cached client for region, building it when absent or expired.
func (p *ClientProvider) Client(ctx context.Context, region string) (dynamodb.QueryAPIClient, error) {
	if c, ok := p.clients.Get(region); ok {
		return c.(*dynamodb.Client), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients.Get(region); ok {
		return c.(*dynamodb.Client), nil
	}

	client, err := p.build(ctx, region)
	if err != nil {
		return nil, err
	}
	p.clients.SetDefault(region, client)
	if p.onBuild != nil {
		p.onBuild()
	}
	p.log.Debug("store client built",
		logger.String("region", region),
		logger.Duration("ttl", p.ttl))
	return client, nil
}

// Invalidate drops every cached client.
func (p *ClientProvider) Invalidate() {
	p.clients.Flush()
}

func (p *ClientProvider) build(ctx context.Context, region string) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	if p.credentials != nil {
		provider, err := p.staticCredentials(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrConfigMissing, err)).
			Component(componentReading).
			Context("region", region).
			Build()
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if p.endpoint != "" {
			o.BaseEndpoint = aws.String(p.endpoint)
		}
	}), nil
}

func (p *ClientProvider) staticCredentials(ctx context.Context) (aws.CredentialsProvider, error) {
	keyID, err := p.credentials.Lookup(ctx, SecretAccessKeyID)
	if err != nil {
		return nil, credentialError(SecretAccessKeyID, err)
	}
	secret, err := p.credentials.Lookup(ctx, SecretSecretAccessKey)
	if err != nil {
		return nil, credentialError(SecretSecretAccessKey, err)
	}
	return credentials.NewStaticCredentialsProvider(keyID, secret, ""), nil
}

func credentialError(name string, err error) error {
	if errors.Is(err, secrets.ErrNotSet) {
		return errors.New(ErrConfigMissing).
			Component(componentReading).
			Context("secret", name).
			Build()
	}
	return errors.New(fmt.Errorf("%w: %w", ErrStoreUnavailable, err)).
		Component(componentReading).
		Context("secret", name).
		Build()
}
