// Package database upserts decoded message payloads into a relational table.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"streamhub/internal/broker"
	"streamhub/sink"
)

const Kind = "database_sync"

const defaultTable = "stream_records"

type record struct {
	Key       string `gorm:"primaryKey;size:512"`
	Topic     string
	Partition int32
	Offset    int64
	Payload   []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

type driver struct {
	db    *gorm.DB
	table string
}

func New(cfg sink.Config) (sink.Sink, error) {
	dsn, err := sink.Required(Kind, cfg, "db_dsn")
	if err != nil {
		return nil, err
	}
	table := cfg["table"]
	if table == "" {
		table = defaultTable
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("database-sync: open: %w", err)
	}
	if err := db.Table(table).AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("database-sync: migrate %s: %w", table, err)
	}
	return &driver{db: db, table: table}, nil
}

func (d *driver) Process(ctx context.Context, msg *broker.Message) error {
	if !json.Valid(msg.Value) {
		return fmt.Errorf("database-sync: payload at %s[%d]@%d is not valid JSON", msg.Topic, msg.Partition, msg.Offset)
	}
	key := string(msg.Key)
	if key == "" {
		key = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
	}
	row := record{
		Key:       key,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Payload:   msg.Value,
		UpdatedAt: time.Now().UTC(),
	}
	return d.db.WithContext(ctx).Table(d.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"topic", "partition", "offset", "payload", "updated_at"}),
	}).Create(&row).Error
}

func (d *driver) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func init() {
	sink.Register(Kind, New)
}
