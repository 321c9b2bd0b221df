package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/cartstore/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL stores values as rows of the cart_snapshots table.
type SQL struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var row models.CartSnapshot
	err := s.db.WithContext(ctx).Where("cart_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load snapshot %q: %w", key, err)
	}
	return row.Payload, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	row := models.CartSnapshot{Key: key, Payload: value, UpdatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert snapshot %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("cart_key = ?", key).Delete(&models.CartSnapshot{}).Error
	if err != nil {
		return fmt.Errorf("delete snapshot %q: %w", key, err)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
