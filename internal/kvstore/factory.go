package kvstore

import (
	"context"
	"fmt"

	"github.com/timmy/coursegen/internal/config"
)

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg *config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "dynamodb":
		return NewDynamoStore(ctx, &DynamoConfig{
			Table:    cfg.DynamoDB.Table,
			Index:    cfg.DynamoDB.Index,
			Region:   cfg.DynamoDB.Region,
			Endpoint: cfg.DynamoDB.Endpoint,
		})
	case "sql":
		db, err := OpenSQL(&cfg.SQL)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db, cfg.SQL.AutoMigrate)
	case "redis":
		return NewRedisStore(ctx, &RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
