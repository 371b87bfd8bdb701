package metrics

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const maxBufferedBatches = 4

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []*Snapshot
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	return newRepository(cfg, log)
}

func newRepository(cfg Config, log logger.Logger) (*repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := ValidateAndUpdateSchema(db, cfg.DBPath, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Msg("Metrics repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]*Snapshot, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) Record(snapshot *Snapshot) error {
	if snapshot == nil {
		return errors.New().New(ErrInvalidMetrics)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, snapshot)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

func (r *repository) Close() error {
	var closeErr error

	r.closeOnce.Do(func() {
		close(r.shutdownChan)

		if r.flushTicker != nil {
			r.flushTicker.Stop()
		}

		// Wait for the flusher to finish its final flush
		<-r.flushDoneChan

		// Without a flusher pending samples are written here
		r.mu.Lock()
		if err := r.flush(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to flush pending samples")
		}
		r.mu.Unlock()

		if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			closeErr = errors.New().Wrap(ErrStorageClose, err)
			r.db.Close()
			return
		}

		if err := r.db.Close(); err != nil {
			closeErr = errors.New().Wrap(ErrStorageClose, err)
			return
		}

		r.logger.Info().Msg("Metrics repository closed gracefully")
	})

	return closeErr
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Error().Err(err).Msg("Periodic flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// maxBuffered is the number of snapshots kept while the database rejects
// writes. Older snapshots are dropped first.
func (r *repository) maxBuffered() int {
	return max(r.cfg.BatchSize, 1) * maxBufferedBatches
}

func (r *repository) flush() error {
	err := r.write()
	if err == nil {
		return nil
	}

	if excess := len(r.buffer) - r.maxBuffered(); excess > 0 {
		r.buffer = append(r.buffer[:0], r.buffer[excess:]...)
		r.logger.Warn().
			Int("dropped", excess).
			Int("buffered", len(r.buffer)).
			Msg("Dropped oldest metrics snapshots after failed flush")
	}

	return err
}

func (r *repository) write() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	rollback := func(cause error) error {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, cause)
	}

	fanStmt, err := tx.Prepare(insertFanSampleSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		return rollback(err)
	}
	defer fanStmt.Close()

	channelStmt, err := tx.Prepare(insertChannelSampleSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		return rollback(err)
	}
	defer channelStmt.Close()

	rows := 0
	for _, snapshot := range r.buffer {
		ts := snapshot.Timestamp.UnixMilli()
		for i := range snapshot.Fans {
			sample := &snapshot.Fans[i]
			mode := sample.Mode
			if mode == "" {
				mode = "unknown"
			}

			if _, err := fanStmt.Exec(ts, sample.Name, int64(sample.Temperature), sample.SpeedLevel, mode); err != nil {
				r.logger.Error().Err(err).Str("fan", sample.Name).Msg("Failed to execute insert")
				return rollback(err)
			}

			for channel, raw := range sample.Speeds {
				if _, err := channelStmt.Exec(ts, sample.Name, int64(channel), int64(raw)); err != nil {
					r.logger.Error().Err(err).Str("fan", sample.Name).Msg("Failed to execute insert")
					return rollback(err)
				}
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().
		Int("snapshots", len(r.buffer)).
		Int("rows", rows).
		Msg("Flushed metrics to database")
	r.buffer = r.buffer[:0]

	return nil
}
