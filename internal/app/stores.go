// Package app opens the stores and services shared by the bot and the admin CLI.
package app

import (
	"context"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/storage"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Stores are the persisted state of the process.
type Stores struct {
	Cases       storage.CaseLedger
	Watchlist   storage.SetStore
	Blacklist   storage.SetStore
	Ignored     storage.SetStore
	Suggestions storage.SetStore
	Messages    *storage.MessageLog

	// Redis is nil unless REDIS_ADDR is set.
	Redis *redis.Client
	// DB is nil unless the postgres ledger is selected.
	DB    *gorm.DB
}

// OpenStores builds the ledger and the sets. Sets live in Redis when it is configured,
// otherwise in JSON files under DATA_DIR. Close releases the connections.
func OpenStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Stores, error) {
	s := &Stores{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	if cfg.RedisAddr != "" {
		s.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Redis.Ping(pingCtx).Err(); err != nil {
			return nil, errors.Wrapf(err, "connect redis %s", cfg.RedisAddr)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("Redis connection established")
	}

	if err := s.openLedger(cfg, logger); err != nil {
		return nil, err
	}
	s.openSets(cfg, logger)

	messages, err := storage.NewMessageLog(filepath.Join(cfg.DataDir, config.LogsDir), logger)
	if err != nil {
		return nil, err
	}
	s.Messages = messages

	ok = true
	return s, nil
}

func (s *Stores) openLedger(cfg *config.Config, logger *logrus.Logger) error {
	if cfg.LedgerBackend == "postgres" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return errors.Wrap(err, "connect postgres")
		}
		s.DB = db
		ledger, err := storage.NewGormCaseLedger(db, logger)
		if err != nil {
			return err
		}
		s.Cases = ledger
		logger.Info("Case ledger backed by PostgreSQL")
		return nil
	}

	ledger, err := storage.NewFileCaseLedger(
		filepath.Join(cfg.DataDir, config.CasesDir),
		filepath.Join(cfg.DataDir, config.ArchiveDir),
		logger,
	)
	if err != nil {
		return err
	}
	s.Cases = ledger
	logger.WithField("dir", cfg.DataDir).Info("Case ledger backed by JSON files")
	return nil
}

func (s *Stores) openSets(cfg *config.Config, logger *logrus.Logger) {
	if s.Redis != nil {
		key := func(name string) string { return cfg.AlertChannelPrefix + ":" + name }
		s.Watchlist = storage.NewRedisSetStore(s.Redis, key("watchlist"), storage.IDSet)
		s.Blacklist = storage.NewRedisSetStore(s.Redis, key("blacklist"), storage.PhraseSet)
		s.Ignored = storage.NewRedisSetStore(s.Redis, key("ignored"), storage.IDSet)
		s.Suggestions = storage.NewRedisSetStore(s.Redis, key("suggested_keywords"), storage.PhraseSet)
		return
	}
	file := func(name string) string { return filepath.Join(cfg.DataDir, name) }
	s.Watchlist = storage.NewFileSetStore(file(config.WatchlistFile), storage.IDSet, logger)
	s.Blacklist = storage.NewFileSetStore(file(config.BlacklistFile), storage.PhraseSet, logger)
	s.Ignored = storage.NewFileSetStore(file(config.IgnoredFile), storage.IDSet, logger)
	s.Suggestions = storage.NewFileSetStore(file(config.SuggestedKeywords), storage.PhraseSet, logger)
}

// Close releases Redis and the database pool.
func (s *Stores) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
