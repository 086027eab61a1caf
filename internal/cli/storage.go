package cli

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/storage"
)

const (
	StorageFile  = "file"
	StorageRedis = "redis"
	StorageMongo = "mongo"
)

var ErrUnknownStorage = errors.New("unknown storage backend")

// OpenStorage returns the cart storage selected by cfg and a func releasing it.
func OpenStorage(ctx context.Context, cfg *config.ShopConfig) (storage.Storage, func() error, error) {
	switch cfg.Storage {
	case "", StorageFile:
		st, err := storage.NewFile(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		return st, func() error { return nil }, nil

	case StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, errors.Wrapf(err, "connect to redis at %s", cfg.RedisAddr)
		}
		return storage.NewRedis(rdb), rdb.Close, nil

	case StorageMongo:
		db, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewMongo(db), func() error {
			return db.Client().Disconnect(context.Background())
		}, nil
	}

	return nil, nil, errors.Wrap(ErrUnknownStorage, cfg.Storage)
}
