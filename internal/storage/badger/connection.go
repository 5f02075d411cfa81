package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figmaqa/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// valueLogGCRatio is the discard ratio used when compacting the value log on close
const valueLogGCRatio = 0.5

// BadgerDB owns the badgerhold store holding analyses and their cases
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	path   string
}

// NewBadgerDB opens (creating when needed) the database at config.Path.
// Values are stored as JSON so free-form test data survives round trips.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	path := filepath.Clean(config.Path)

	if config.ResetOnStartup {
		resetDirectory(logger, path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	store, err := badgerhold.Open(options)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to open analysis database")
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	lsm, vlog := store.Badger().Size()
	logger.Debug().
		Str("path", path).
		Int64("lsm_bytes", lsm).
		Int64("vlog_bytes", vlog).
		Msg("Analysis database opened")

	return &BadgerDB{store: store, logger: logger, path: path}, nil
}

func resetDirectory(logger arbor.ILogger, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	logger.Debug().Str("path", path).Msg("Deleting existing database (reset_on_startup=true)")
	if err := os.RemoveAll(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to delete database directory")
	}
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close compacts the value log once and closes the store
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	if err := b.store.Badger().RunValueLogGC(valueLogGCRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		b.logger.Debug().Err(err).Str("path", b.path).Msg("Value log GC skipped")
	}
	err := b.store.Close()
	b.store = nil
	return err
}
