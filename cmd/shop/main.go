package main

import (
	"context"
	"database/sql"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"PocketBazaar/internal/catalog"
	"PocketBazaar/internal/kv"
	"PocketBazaar/internal/shop"
	"PocketBazaar/pkg/kit"
)

func main() {
	service := "shop"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8080")
	catalogURL := getenv("CATALOG_URL", catalog.DefaultBaseURL)

	ctx := context.Background()

	store, closeStore := openStore(ctx, log)
	defer closeStore()

	reg := prometheus.NewRegistry()
	metrics := kit.NewMetrics(reg)

	sess := shop.NewSession(ctx, shop.SessionDeps{
		KV:      store,
		Catalog: catalog.NewClient(catalogURL),
		Log:     log,
		Metrics: metrics,
	})

	h := shop.NewHandler(&shop.Server{Session: sess}, shop.HTTPDeps{
		Log:          log,
		Service:      service,
		Registry:     reg,
		MetricsToken: os.Getenv("METRICS_TOKEN"),
	})

	if err := kit.RunHTTPServer(":"+port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

// openStore picks the key-value backend from KV_BACKEND.
func openStore(ctx context.Context, log *zap.Logger) (kv.Store, func()) {
	prefix := getenv("KV_PREFIX", "bazaar:")
	backend := getenv("KV_BACKEND", "memory")

	switch backend {
	case "redis":
		db, err := strconv.Atoi(getenv("REDIS_DB", "0"))
		if err != nil {
			log.Fatal("invalid REDIS_DB", zap.Error(err))
		}
		client := redis.NewClient(&redis.Options{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		})
		s := kv.NewRedisStore(client, prefix)
		if err := s.Ping(ctx); err != nil {
			log.Warn("redis not reachable yet", zap.Error(err))
		}
		return s, func() { _ = client.Close() }

	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatal("DATABASE_URL is required for the postgres backend")
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			log.Fatal("open database failed", zap.Error(err))
		}
		s := kv.NewPostgresStore(db, prefix)
		if err := s.Migrate(ctx); err != nil {
			log.Fatal("migrate kv table failed", zap.Error(err))
		}
		return s, func() { _ = db.Close() }

	case "memory":
		log.Warn("using in-memory store, cart and orders are lost on exit")
		return kv.NewMemStore(), func() {}

	default:
		log.Fatal("unknown KV_BACKEND", zap.String("backend", backend))
		return nil, nil
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
