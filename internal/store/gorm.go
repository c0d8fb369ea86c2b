package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"streamhub/internal/manager"
)

// ConsumerModel is the durable row for one consumer record.
type ConsumerModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	BrokerAddr    string
	Topic         string
	ConsumerGroup string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ConsumerModel) TableName() string { return "consumers" }

// SinkModel is the durable row for one sink definition.
type SinkModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	ConsumerID string `gorm:"index;size:36"`
	Kind       string
	Config     string `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (SinkModel) TableName() string { return "downstream_sinks" }

// Gorm is the relational implementation of manager.Store.
type Gorm struct {
	db *gorm.DB
}

func Open(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.AutoMigrate(&ConsumerModel{}, &SinkModel{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PersistCreate and PersistUpdate share the same shape: upsert the consumer
// row and replace its sink rows wholesale, mirroring the in-memory model.
// Upserting on create keeps a re-driven journal batch idempotent.
func (g *Gorm) PersistCreate(ctx context.Context, rec manager.ConsumerRecord, defs []manager.SinkDef) error {
	return g.apply(ctx, rec, defs)
}

func (g *Gorm) PersistUpdate(ctx context.Context, _ string, rec manager.ConsumerRecord, defs []manager.SinkDef) error {
	return g.apply(ctx, rec, defs)
}

func (g *Gorm) PersistDelete(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("consumer_id = ?", id).Delete(&SinkModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ConsumerModel{ID: id}).Error
	})
}

func (g *Gorm) apply(ctx context.Context, rec manager.ConsumerRecord, defs []manager.SinkDef) error {
	row := ConsumerModel{
		ID:            rec.ID,
		BrokerAddr:    rec.BrokerAddr,
		Topic:         rec.Topic,
		ConsumerGroup: rec.Group,
		Status:        string(rec.Status),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	sinkRows := make([]SinkModel, 0, len(defs))
	for _, d := range defs {
		cfg, err := json.Marshal(d.Config)
		if err != nil {
			return fmt.Errorf("store: encode sink %s config: %w", d.ID, err)
		}
		sinkRows = append(sinkRows, SinkModel{
			ID:         d.ID,
			ConsumerID: rec.ID,
			Kind:       d.Kind,
			Config:     string(cfg),
			CreatedAt:  d.CreatedAt,
			UpdatedAt:  d.UpdatedAt,
		})
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("consumer_id = ?", rec.ID).Delete(&SinkModel{}).Error; err != nil {
			return err
		}
		if len(sinkRows) == 0 {
			return nil
		}
		return tx.Create(&sinkRows).Error
	})
}
