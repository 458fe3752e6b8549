package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certledger/internal/address"
	addresshandler "certledger/internal/address/handler"
	addressmetrics "certledger/internal/address/metrics"
	"certledger/internal/audit"
	auditkafka "certledger/internal/audit/store/kafka"
	"certledger/internal/audit/store/logstore"
	certhandler "certledger/internal/certificate/handler"
	certmetrics "certledger/internal/certificate/metrics"
	certservice "certledger/internal/certificate/service"
	certstore "certledger/internal/certificate/store/certificate"
	verificationstore "certledger/internal/certificate/store/verification"
	jwttoken "certledger/internal/jwt_token"
	"certledger/internal/ledger"
	"certledger/internal/ledger/horizon"
	"certledger/internal/platform/config"
	"certledger/internal/platform/kafka"
	"certledger/internal/platform/postgres"
	"certledger/internal/platform/redis"
	"certledger/internal/platform/ttlcache"
	"certledger/internal/stats"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/platform/middleware/auth"
	"certledger/pkg/platform/middleware/metadata"
	"certledger/pkg/platform/middleware/request"
	"certledger/pkg/platform/middleware/requesttime"
)

type certificateStore interface {
	certservice.CertificateStore
	stats.CertificateCounter
}

type verificationStore interface {
	certservice.VerificationStore
	stats.VerificationCounter
}

type application struct {
	router        http.Handler
	issuerAddress string
	closers       []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger, reg *prometheus.Registry) (*application, error) {
	app := &application{}
	var health []func(context.Context) error

	network, err := ledger.ParseNetwork(cfg.Stellar.Network)
	if err != nil {
		return nil, err
	}
	policy, err := certservice.ParseExpiryPolicy(cfg.ExpiryPolicy)
	if err != nil {
		return nil, err
	}

	gateway, err := horizon.New(horizon.Config{
		Network:      network,
		PublicURL:    cfg.Stellar.PublicURL,
		TestnetURL:   cfg.Stellar.TestnetURL,
		IssuerSecret: cfg.Stellar.IssuerSecret,
		Timeout:      cfg.Stellar.Timeout,
		BaseFee:      cfg.Stellar.BaseFee,
		AnchorAmount: cfg.Stellar.AnchorAmount,
	},
		horizon.WithLogger(log),
		horizon.WithMetrics(horizon.NewMetrics(reg)),
	)
	if err != nil {
		return nil, fmt.Errorf("horizon gateway: %w", err)
	}
	app.issuerAddress = gateway.IssuerAddress()

	var certificates certificateStore
	var verifications verificationStore
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory certificate stores")
		certificates = certstore.NewInMemory()
		verifications = verificationstore.NewInMemory()
	} else {
		db, err := postgres.Open(ctx, postgres.Config{URL: cfg.DatabaseURL, MaxOpenConns: 20, MaxIdleConns: 5})
		if err != nil {
			app.close()
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			app.close()
			return nil, err
		}
		certificates = certstore.NewPostgres(db)
		verifications = verificationstore.NewPostgres(db)
		health = append(health, pingDB(db))
	}

	auditStore, err := buildAuditStore(ctx, cfg.Kafka, log, app)
	if err != nil {
		app.close()
		return nil, err
	}
	publisher := audit.NewPublisher(auditStore)

	validationCache, err := ttlcache.New[address.CacheKey, address.Result](cfg.Validation.CacheMaxSize, cfg.Validation.CacheTTL)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("validation cache: %w", err)
	}
	addresses, err := address.New(gateway, validationCache,
		address.NewRateLimiter(cfg.Validation.RateLimitRPS, cfg.Validation.RateLimitBurst),
		address.WithLogger(log),
		address.WithMetrics(addressmetrics.New(reg)),
		address.WithDefaultNetwork(network),
		address.WithAuditPublisher(publisher),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	certificatesSvc, err := certservice.New(certificates, verifications, gateway,
		certservice.WithLogger(log),
		certservice.WithMetrics(certmetrics.New(reg)),
		certservice.WithAuditPublisher(publisher),
		certservice.WithAddressValidator(addresses),
		certservice.WithNetwork(network),
		certservice.WithExpiryPolicy(policy),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	var snapshotCache stats.SnapshotCache
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		app.close()
		return nil, err
	}
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		snapshotCache = stats.NewRedisCache(redisClient.Client, cfg.Stats.CacheTTL)
		health = append(health, redisClient.Health)
	} else {
		memCache, err := stats.NewMemoryCache(cfg.Stats.CacheTTL)
		if err != nil {
			app.close()
			return nil, err
		}
		snapshotCache = memCache
	}
	aggregator, err := stats.New(certificates, verifications, snapshotCache, stats.WithLogger(log))
	if err != nil {
		app.close()
		return nil, err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	requireAuth := auth.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", healthHandler(health))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	certhandler.New(certificatesSvc, aggregator, log).Register(r, requireAuth)
	addresshandler.New(addresses, log).Register(r, requireAuth)

	app.router = r
	return app, nil
}

func buildAuditStore(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, app *application) (audit.Store, error) {
	if len(cfg.Brokers) == 0 {
		log.Info("KAFKA_BROKERS not set, audit events go to the log")
		return logstore.New(log), nil
	}
	client, err := kafka.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client.Close)
	if err := kafka.EnsureTopic(ctx, kafka.NewAdmin(client), cfg.AuditTopic); err != nil {
		return nil, err
	}
	return auditkafka.New(client, cfg.AuditTopic), nil
}

func pingDB(db *sql.DB) func(context.Context) error {
	return db.PingContext
}

func healthHandler(checks []func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
