// Package app builds the backend client, credential store and resource
// services from configuration. Every binary starts from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/auth"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/resource"
	"github.com/dvloznov/finance-dashboard/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Services are the long-lived clients shared by a process.
type Services struct {
	Config       *config.Config
	Credentials  *auth.CredentialStore
	Client       *apiclient.Client
	Auth         *auth.Service
	Goals        *resource.GoalService
	Transactions *resource.TransactionService

	log     zerolog.Logger
	closers []func() error
}

// New connects the credential store and creates the API client and services.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...apiclient.Option) (*Services, error) {
	s := &Services{Config: cfg, log: log}

	kv, err := s.credentialKV(ctx)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	s.Credentials = auth.NewCredentialStore(kv)

	opts = append([]apiclient.Option{apiclient.WithLogger(log)}, opts...)
	client, err := apiclient.New(apiclient.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	}, s.Credentials, opts...)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	s.Client = client

	s.Auth = auth.NewService(client, s.Credentials, log)
	s.Goals = resource.NewGoalService(client, log)
	s.Transactions = resource.NewTransactionService(client, log)
	return s, nil
}

// credentialKV picks Redis when an address is configured, else the local file.
func (s *Services) credentialKV(ctx context.Context) (auth.KV, error) {
	cfg := s.Config.Auth
	if cfg.RedisAddr == "" {
		return auth.NewFileKV(cfg.CredentialsPath), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	s.closers = append(s.closers, rdb.Close)
	s.log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis credential store")
	return auth.NewRedisKV(rdb, cfg.RedisKeyPrefix), nil
}

// NewStore creates the shared data store over the resource services.
func (s *Services) NewStore(bus *events.Bus, opts ...store.Option) *store.Store {
	opts = append([]store.Option{
		store.WithInterval(s.Config.Store.RefreshInterval),
		store.WithLogger(s.log),
	}, opts...)
	return store.New(s.Goals, s.Transactions, bus, opts...)
}

// Close releases connections opened by New.
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
