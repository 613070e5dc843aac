package kvstore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// casRetries bounds how often ConditionalUpdate re-reads a row whose version
// moved underneath it before giving up.
const casRetries = 5

// attrMap stores item attributes as a JSON column.
type attrMap map[string]string

func (m attrMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *attrMap) Scan(value interface{}) error {
	if value == nil {
		*m = attrMap{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan attrMap")
	}
	return json.Unmarshal(raw, m)
}

// kvRow is one item. The index attributes are duplicated into their own
// columns so the queue scan can use an index.
type kvRow struct {
	Owner     string  `gorm:"type:varchar(191);primaryKey"`
	Entity    string  `gorm:"type:varchar(191);primaryKey"`
	IndexPK   string  `gorm:"column:gsi1pk;type:varchar(64);index:idx_kv_gsi1,priority:1"`
	IndexSK   string  `gorm:"column:gsi1sk;type:varchar(255);index:idx_kv_gsi1,priority:2"`
	Attrs     attrMap `gorm:"type:text"`
	Version   int64   `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (kvRow) TableName() string {
	return "kv_items"
}

// SQLStore implements Store on a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQL connects to the configured driver and tunes the pool.
func OpenSQL(cfg *config.SQLConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	var (
		db  *gorm.DB
		err error
	)
	logger.Info("[kvstore] opening SQL store with driver %q", cfg.Driver)

	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.ConnString(),
			PreferSimpleProtocol: true,
		}), gormConfig)
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.ConnString()), gormConfig)
	case "sqlite", "":
		if cfg.Path != "" && cfg.DSN == "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.ConnString()), gormConfig)
		if err == nil {
			db.Exec("PRAGMA journal_mode=WAL")
		}
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// NewSQLStore wraps db, creating the kv_items table when migrate is set.
func NewSQLStore(db *gorm.DB, migrate bool) (*SQLStore, error) {
	if migrate {
		if err := db.AutoMigrate(&kvRow{}); err != nil {
			return nil, fmt.Errorf("failed to migrate kv_items: %w", err)
		}
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key Key) (*Item, error) {
	var row kvRow
	err := s.db.WithContext(ctx).
		Where("owner = ? AND entity = ?", key.Owner, key.Entity).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return row.item(), nil
}

func (s *SQLStore) Put(ctx context.Context, item *Item) error {
	attrs := apply(nil, item.Attrs)
	row := kvRow{
		Owner:     item.Owner,
		Entity:    item.Entity,
		IndexPK:   attrs[AttrIndexPK],
		IndexSK:   attrs[AttrIndexSK],
		Attrs:     attrs,
		UpdatedAt: time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner"}, {Name: "entity"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"gsi1pk":     row.IndexPK,
			"gsi1sk":     row.IndexSK,
			"attrs":      row.Attrs,
			"version":    gorm.Expr("kv_items.version + 1"),
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// ConditionalUpdate evaluates cond against the current row and writes with a
// version guard, so a concurrent writer makes the UPDATE affect zero rows.
// The row is then re-read and cond evaluated again.
func (s *SQLStore) ConditionalUpdate(ctx context.Context, key Key, set, cond map[string]string) error {
	for i := 0; i < casRetries; i++ {
		var row kvRow
		err := s.db.WithContext(ctx).
			Where("owner = ? AND entity = ?", key.Owner, key.Entity).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConditionFailed
		}
		if err != nil {
			return fmt.Errorf("failed to read item: %w", err)
		}
		if !matches(row.Attrs, cond) {
			return ErrConditionFailed
		}

		next := attrMap(apply(row.Attrs, set))
		res := s.db.WithContext(ctx).Model(&kvRow{}).
			Where("owner = ? AND entity = ? AND version = ?", key.Owner, key.Entity, row.Version).
			Updates(map[string]interface{}{
				"gsi1pk":     next[AttrIndexPK],
				"gsi1sk":     next[AttrIndexSK],
				"attrs":      next,
				"version":    row.Version + 1,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update item: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}
	}
	return ErrConditionFailed
}

func (s *SQLStore) Query(ctx context.Context, q QueryInput) ([]Item, error) {
	order := "gsi1sk ASC"
	if !q.Ascending {
		order = "gsi1sk DESC"
	}

	var rows []kvRow
	err := s.db.WithContext(ctx).
		Where("gsi1pk = ? AND gsi1sk LIKE ? ESCAPE '!'", q.Partition, escapeLike(q.SortPrefix)+"%").
		Order(order).
		Limit(limitOrDefault(q.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	items := make([]Item, 0, len(rows))
	for i := range rows {
		items = append(items, *rows[i].item())
	}
	return items, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *kvRow) item() *Item {
	return &Item{
		Key:   Key{Owner: r.Owner, Entity: r.Entity},
		Attrs: copyAttrs(r.Attrs),
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
