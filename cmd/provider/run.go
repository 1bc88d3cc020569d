/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/trustbloc/datatoken-provider-go/pkg/authtoken"
	"github.com/trustbloc/datatoken-provider-go/pkg/chain"
	"github.com/trustbloc/datatoken-provider-go/pkg/config"
	"github.com/trustbloc/datatoken-provider-go/pkg/eligibility"
	"github.com/trustbloc/datatoken-provider-go/pkg/files"
	"github.com/trustbloc/datatoken-provider-go/pkg/images"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/ledger"
	providerlog "github.com/trustbloc/datatoken-provider-go/pkg/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/metadata"
	"github.com/trustbloc/datatoken-provider-go/pkg/metrics"
	"github.com/trustbloc/datatoken-provider-go/pkg/nonce"
	"github.com/trustbloc/datatoken-provider-go/pkg/orderverifier"
	"github.com/trustbloc/datatoken-provider-go/pkg/policy"
	"github.com/trustbloc/datatoken-provider-go/pkg/restapi/common"
	"github.com/trustbloc/datatoken-provider-go/pkg/restapi/services"
	"github.com/trustbloc/datatoken-provider-go/pkg/signature"
	"github.com/trustbloc/datatoken-provider-go/pkg/store"
	"github.com/trustbloc/datatoken-provider-go/pkg/workflow"
)

const shutdownTimeout = 10 * time.Second

type consumptionLedger interface {
	Consume(ctx context.Context, did, serviceID, txID, consumer, datatoken string) (*ledger.Record, error)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start the provider",
	Action: func(c *cli.Context) error {
		cfg, err := config.FromFile(c.String(flagConfig))
		if err != nil {
			return err
		}

		err = providerlog.Initialize(providerlog.Options{
			Spec:       cfg.Log.Spec,
			FilePath:   cfg.Log.File,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		handler, err := newProvider(ctx, cfg)
		if err != nil {
			return err
		}

		return serve(ctx, cfg.HTTP.ListenAddress, handler)
	},
}

// newProvider wires the provider components and returns the HTTP handler.
func newProvider(ctx context.Context, cfg *config.Config) (http.Handler, error) {
	m := metrics.New()

	var db *gorm.DB

	if cfg.Database.DSN != "" {
		var err error

		db, err = store.Open(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}

		if err := store.Migrate(db); err != nil {
			return nil, err
		}
	}

	nonces, err := newNonceStore(cfg, db)
	if err != nil {
		return nil, err
	}

	reader, err := chain.Dial(ctx, cfg.Chain.RPCURL,
		chain.WithReceiptTimeout(cfg.Chain.ReceiptTimeout),
		chain.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	checkChainID(ctx, reader, cfg.Chain.ChainID)

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Provider.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid provider private key")
	}

	eligible, err := newEligibility(ctx, cfg)
	if err != nil {
		return nil, err
	}

	metadataStore := metadata.New(cfg.Metadata.URL)

	var consumptions consumptionLedger = ledger.NewMemLedger(ledger.WithMetrics(m))

	if db != nil {
		consumptions = ledger.NewDBLedger(db, ledger.WithMetrics(m))
	}

	opts := []workflow.Option{
		workflow.WithMetrics(m),
		workflow.WithCompute(cfg.Compute.Namespace, cfg.Compute.MaxTime),
	}

	if cfg.Registry.URL != "" {
		opts = append(opts, workflow.WithContainerValidator(images.New(cfg.Registry.URL)))
	}

	resolver := files.New(key)

	validator := workflow.New(&workflow.Providers{
		Metadata:    metadataStore,
		Eligibility: eligible,
		Files:       resolver,
		Orders:      orderverifier.New(reader, orderverifier.WithMetrics(m)),
		Ledger:      consumptions,
		Policy:      policy.New(metadataStore),
	}, opts...)

	providers := &services.Providers{
		Signatures: signature.New(nonces, signature.WithMetrics(m)),
		Nonces:     nonces,
		Workflows:  validator,
		Documents:  resolver,
		ChainID:    cfg.Chain.ChainID,
		Decrypters: cfg.Provider.AuthorizedDecrypters,
		Metrics:    m.Handler(),
	}

	if cfg.Auth.TokenSecret != "" {
		var revocations authtoken.RevocationStore = authtoken.NewMemRevocations()
		if db != nil {
			revocations = authtoken.NewDBRevocations(db)
		}

		tokens, err := authtoken.New([]byte(cfg.Auth.TokenSecret), revocations)
		if err != nil {
			return nil, err
		}

		providers.Tokens = tokens
	}

	return common.NewRouter(services.New(providers).Handlers()...), nil
}

func newNonceStore(cfg *config.Config, db *gorm.DB) (nonce.Store, error) {
	switch cfg.Nonce.Backend {
	case config.NonceBackendPostgres:
		return nonce.NewDBStore(db), nil
	case config.NonceBackendRedis:
		client, err := nonce.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}

		return nonce.NewRedisStore(client), nil
	default:
		return nonce.NewMemStore(), nil
	}
}

func newEligibility(ctx context.Context, cfg *config.Config) (eligibility.Chain, error) {
	engine, err := eligibility.NewPolicyEngine(ctx, cfg.Eligibility.PolicyFile)
	if err != nil {
		return nil, err
	}

	checkers := eligibility.Chain{engine}

	if cfg.Eligibility.RBACServerURL != "" {
		checkers = append(checkers, eligibility.NewRBACClient(cfg.Eligibility.RBACServerURL, nil))
	}

	return checkers, nil
}

func checkChainID(ctx context.Context, reader *chain.Reader, expected int64) {
	id, err := reader.ChainID(ctx)
	if err != nil {
		logger.Warn("unable to read chain id", logfields.WithError(err))

		return
	}

	if expected != 0 && id.Int64() != expected {
		logger.Warnf("node reports chain id %d, configured %d", id.Int64(), expected)
	}
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Infof("listening on %s", addr)

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Infof("shutting down")

	return srv.Shutdown(shutdownCtx)
}
