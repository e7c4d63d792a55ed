package reading

import (
	"fmt"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
	"github.com/firewatch-dev/firewatch/internal/secrets"
)

// Credentials selects the secret source for AWS keys according to
// reading.credential_source:
//
//	config  keys from the config file (or *_file paths); nil when both are
//	        empty, leaving the default AWS chain in charge
//	remote  the get-secret endpoint, cached for secrets.cache_ttl
//	chain   config, then the environment, then the remote endpoint
func Credentials(settings *conf.Settings) (secrets.Source, error) {
	r := &settings.Reading
	keyID, err := secrets.Resolve(r.AccessKeyIDFile, r.AccessKeyID)
	if err != nil {
		return nil, fmt.Errorf("reading.access_key_id: %w", err)
	}
	secret, err := secrets.Resolve(r.SecretAccessKeyFile, r.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("reading.secret_access_key: %w", err)
	}
	static := secrets.StaticSource{SecretAccessKeyID: keyID, SecretSecretAccessKey: secret}

	remote := func() secrets.Source {
		s := settings.Secrets
		return secrets.NewCachedSource(secrets.NewRemoteSource(s.RemoteURL, s.APIKey, conf.DefaultRemoteTimeout), s.CacheTTL)
	}

	switch r.CredentialSource {
	case "remote":
		return remote(), nil
	case "chain":
		return secrets.Chain{static, secrets.EnvSource{}, remote()}, nil
	default:
		if keyID == "" && secret == "" {
			return nil, nil
		}
		return static, nil
	}
}

// Open builds the configured Store.
func Open(settings *conf.Settings, recorder *metrics.ReadingMetrics) (Store, error) {
	switch settings.Reading.Backend {
	case "memory":
		store := NewMemoryStore()
		if path := settings.Reading.DemoData; path != "" {
			if err := store.LoadFile(path); err != nil {
				return nil, err
			}
		}
		return store, nil
	case "dynamodb", "":
		creds, err := Credentials(settings)
		if err != nil {
			return nil, err
		}
		var opts []ProviderOption
		if settings.Reading.Endpoint != "" {
			opts = append(opts, WithEndpoint(settings.Reading.Endpoint))
		}
		var rec metrics.Recorder = metrics.NopRecorder{}
		if recorder != nil {
			opts = append(opts, WithBuildHook(recorder.RecordClientBuild))
			rec = recorder
		}
		clients := NewClientProvider(creds, settings.Reading.ClientTTL, opts...)
		return NewDynamoStore(clients, &settings.Reading, rec), nil
	default:
		return nil, fmt.Errorf("unknown reading backend %q", settings.Reading.Backend)
	}
}
