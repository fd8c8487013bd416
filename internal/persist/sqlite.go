package persist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/pkg/config"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
)

type cartSlot struct {
	Slot      string `gorm:"primaryKey;size:64"`
	Payload   []byte
	UpdatedAt time.Time
}

func (cartSlot) TableName() string { return "cart_slots" }

// SQLiteStore keeps the cart in a local SQLite file, one row per slot.
type SQLiteStore struct {
	conn *gorm.DB
	slot string
}

// NewSQLiteStore opens (and migrates) the SQLite-backed slot store.
func NewSQLiteStore(ctx context.Context, cfg config.PersistConfig, logg *logger.Logger) (*SQLiteStore, error) {
	if cfg.SQLitePath == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sqlite path is required")
	}
	if cfg.Slot == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "persist slot name is required")
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "opening sqlite database")
	}
	if err := conn.WithContext(ctx).AutoMigrate(&cartSlot{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "migrating cart slot table")
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "path", cfg.SQLitePath)
		logg.Info(ctx, "sqlite cart storage ready")
	}
	return &SQLiteStore{conn: conn, slot: cfg.Slot}, nil
}

// SaveLines replaces the slot's payload with the full line list.
func (s *SQLiteStore) SaveLines(ctx context.Context, lines []cart.Line) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart lines")
	}
	row := cartSlot{Slot: s.slot, Payload: payload, UpdatedAt: time.Now().UTC()}
	err = s.conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing cart slot")
	}
	return nil
}

// LoadLines returns the stored line list; a missing slot is an empty
// cart, not an error.
func (s *SQLiteStore) LoadLines(ctx context.Context) ([]cart.Line, error) {
	var row cartSlot
	err := s.conn.WithContext(ctx).First(&row, "slot = ?", s.slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart slot")
	}
	if len(row.Payload) == 0 {
		return nil, nil
	}
	var lines []cart.Line
	if err := json.Unmarshal(row.Payload, &lines); err != nil {
		// A corrupt payload should not brick the cart on startup.
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding cart lines")
	}
	return lines, nil
}

// ClearLines drops the slot row.
func (s *SQLiteStore) ClearLines(ctx context.Context) error {
	err := s.conn.WithContext(ctx).Delete(&cartSlot{}, "slot = ?", s.slot).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing cart slot")
	}
	return nil
}

// Close shuts down the pooled connections.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
