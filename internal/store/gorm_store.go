package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/metrics"
	"loan-desk-backend/internal/model"
)

// GormStore keeps documents in a database table. The last good payload of
// each key is held in memory and served stale when the database fails.
type GormStore struct {
	db       *gorm.DB
	fallback *cache.Cache
	recorder metrics.Recorder
	now      func() time.Time
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, rec metrics.Recorder) *GormStore {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &GormStore{
		db:       db,
		fallback: cache.New(cache.NoExpiration, 0),
		recorder: rec,
		now:      time.Now,
	}
}

func (s *GormStore) Read(ctx context.Context, key string) ([]byte, Meta) {
	var doc model.Document
	err := s.db.WithContext(ctx).Where("doc_key = ?", key).First(&doc).Error
	switch {
	case err == nil:
		s.fallback.Set(key, doc.Payload, cache.NoExpiration)
		s.recorder.IncStoreRead(key, string(SourceNetwork))
		return doc.Payload, Meta{Source: SourceNetwork, ReadAt: s.now()}
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.recorder.IncStoreRead(key, string(SourceNetwork))
		return nil, Meta{Source: SourceNetwork, ReadAt: s.now()}
	}

	slog.Debug("Database read failed, using in-memory copy", logfields.Resource(key), logfields.Error(err))
	s.recorder.IncStoreRead(key, string(SourceCache))
	var data []byte
	if v, ok := s.fallback.Get(key); ok {
		data = v.([]byte)
	}
	return data, Meta{Source: SourceCache, Stale: true, ReadAt: s.now()}
}

func (s *GormStore) Write(ctx context.Context, key string, data []byte) error {
	s.fallback.Set(key, data, cache.NoExpiration)
	doc := model.Document{Key: key, Payload: data, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		s.recorder.IncStoreWriteFailure(key)
		return fmt.Errorf("%w: write %s: %v", ErrNetworkUnavailable, key, err)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	return nil
}
