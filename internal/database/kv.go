package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/kv"
)

// QuotaMemoryBytes caps the in-memory store at the size of a typical browser
// storage origin.
const QuotaMemoryBytes = 5 << 20

// OpenKV opens the attempt backend selected by cfg.StoreDriver. The returned
// closer releases the underlying connection.
func OpenKV(ctx context.Context, cfg *config.Config, log zerolog.Logger) (kv.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		log.Warn().Msg("Using in-memory attempt store; history is lost on restart")
		return kv.NewMemoryStore(QuotaMemoryBytes), func() {}, nil

	case config.StoreRedis:
		rdb, err := NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedisStore(rdb), func() { rdb.Close() }, nil

	case config.StorePostgres:
		pool, err := NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewPostgresStore(pool), pool.Close, nil

	case config.StoreSQLite:
		db, err := NewSQLiteDB(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		store, err := kv.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	case config.StoreMongo:
		client, err := NewMongoClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewMongoStore(client.Database(cfg.MongoDB)), func() {
			client.Disconnect(context.Background())
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
