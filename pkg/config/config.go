/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the provider configuration from a TOML file overlaid with PROVIDER_* environment
// variables.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. PROVIDER_CHAIN_RPC_URL.
const EnvPrefix = "PROVIDER"

// Nonce backends.
const (
	NonceBackendMemory   = "memory"
	NonceBackendPostgres = "postgres"
	NonceBackendRedis    = "redis"
)

// Config is the provider configuration.
type Config struct {
	HTTP        HTTP
	Chain       Chain
	Metadata    Metadata
	Provider    Provider
	Database    Database
	Redis       Redis
	Nonce       Nonce
	Eligibility Eligibility
	Auth        Auth
	Registry    Registry
	Compute     Compute
	Log         Log
}

// HTTP is the REST listener.
type HTTP struct {
	ListenAddress string `envconfig:"LISTEN_ADDRESS"`
}

// Chain is the ledger node.
type Chain struct {
	RPCURL         string        `toml:"RPCURL" envconfig:"RPC_URL"`
	ChainID        int64         `envconfig:"CHAIN_ID"`
	ReceiptTimeout time.Duration `envconfig:"RECEIPT_TIMEOUT"`
}

// Metadata is the metadata cache (Aquarius).
type Metadata struct {
	URL string
}

// Provider holds the provider identity.
type Provider struct {
	// PrivateKey is the hex encoded secp256k1 key used to decrypt files.
	PrivateKey string `envconfig:"PRIVATE_KEY"`
	// AuthorizedDecrypters may decrypt metadata documents. Empty allows any address.
	AuthorizedDecrypters []string `envconfig:"AUTHORIZED_DECRYPTERS"`
}

// Database is the postgres store.
type Database struct {
	DSN string
}

// Redis is the optional nonce store.
type Redis struct {
	Address  string
	Password string
	DB       int
}

// Nonce selects the nonce backend.
type Nonce struct {
	Backend string
}

// Eligibility configures consumability checks.
type Eligibility struct {
	PolicyFile    string `envconfig:"POLICY_FILE"`
	RBACServerURL string `toml:"RBACServerURL" envconfig:"RBAC_SERVER_URL"`
}

// Auth configures auth tokens.
type Auth struct {
	TokenSecret string `envconfig:"TOKEN_SECRET"`
}

// Registry is the image registry used to validate algorithm containers. Empty disables validation.
type Registry struct {
	URL string
}

// Compute is the stage shape of compute jobs.
type Compute struct {
	Namespace string
	MaxTime   int `envconfig:"MAX_TIME"`
}

// Log configures logging.
type Log struct {
	// Spec is a log level spec, e.g. "provider-chain=debug:info".
	Spec string
	// File enables rotated file output.
	File string
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		HTTP:     HTTP{ListenAddress: "0.0.0.0:8030"},
		Chain:    Chain{RPCURL: "http://127.0.0.1:8545", ChainID: 8996, ReceiptTimeout: 120 * time.Second},
		Metadata: Metadata{URL: "http://127.0.0.1:5000"},
		Nonce:    Nonce{Backend: NonceBackendMemory},
		Compute:  Compute{Namespace: "ocean-compute", MaxTime: 3600},
		Log:      Log{Spec: "info"},
	}
}

// FromFile loads the configuration at path over the defaults. An empty path only applies environment
// overrides.
func FromFile(path string) (*Config, error) {
	if path == "" {
		return FromReader(bytes.NewReader(nil))
	}

	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}

	defer f.Close() //nolint:errcheck

	return FromReader(f)
}

// FromReader loads the configuration from reader over the defaults.
func FromReader(reader io.Reader) (*Config, error) {
	cfg := Default()

	if _, err := toml.NewDecoder(reader).Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "processing env vars overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Nonce.Backend {
	case NonceBackendMemory:
	case NonceBackendPostgres:
		if c.Database.DSN == "" {
			return errors.New("postgres nonce backend requires a database DSN")
		}
	case NonceBackendRedis:
		if c.Redis.Address == "" {
			return errors.New("redis nonce backend requires a redis address")
		}
	default:
		return errors.Errorf("unknown nonce backend: %s", c.Nonce.Backend)
	}

	if c.Chain.RPCURL == "" {
		return errors.New("chain RPC URL is required")
	}

	if c.Metadata.URL == "" {
		return errors.New("metadata URL is required")
	}

	return nil
}

// Bytes encodes the configuration as TOML.
func Bytes(cfg *Config) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}

	return buf.Bytes(), nil
}
