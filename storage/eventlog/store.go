package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"stableledger/core/events"
	"stableledger/core/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultQueryLimit bounds Query when the filter sets no limit.
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

var ErrUnsupportedDriver = errors.New("eventlog: unsupported driver")

// Recorder is notified of every journal write.
type Recorder interface {
	RecordEventPersisted(err error)
}

// Store is the relational journal of committed ledger events. It also keeps
// the API's idempotency records.
type Store struct {
	db       *gorm.DB
	logger   *slog.Logger
	recorder Recorder
}

// Open connects to the journal database and migrates its tables.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an open gorm handle and migrates the journal tables.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("eventlog: nil database")
	}
	if err := db.AutoMigrate(autoMigrateModels()...); err != nil {
		return nil, fmt.Errorf("migrate event log: %w", err)
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
}

func (s *Store) SetRecorder(recorder Recorder) { s.recorder = recorder }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. The ledger state is already committed when
// Emit runs, so a failed write is logged and counted rather than returned.
func (s *Store) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	err := s.Append(context.Background(), payload)
	if s.recorder != nil {
		s.recorder.RecordEventPersisted(err)
	}
	if err != nil {
		s.logger.Error("persist ledger event",
			slog.String("type", payload.Type),
			slog.Uint64("sequence", payload.Sequence),
			slog.Any("error", err))
	}
}

// Append stores evt. Re-appending a sequence that is already stored is a
// no-op.
func (s *Store) Append(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return fmt.Errorf("eventlog: nil event")
	}
	if evt.Sequence == 0 {
		return fmt.Errorf("eventlog: event %q has no sequence", evt.Type)
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	rec := Record{
		Sequence:   evt.Sequence,
		Type:       evt.Type,
		Attributes: string(attrs),
		Timestamp:  evt.Timestamp,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

// Filter narrows Query results.
type Filter struct {
	// Type matches exactly, or as a prefix when it ends in '*'.
	Type  string
	After uint64
	Limit int
}

// Query returns events in sequence order.
func (s *Store) Query(ctx context.Context, filter Filter) ([]*types.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	q := s.db.WithContext(ctx).Model(&Record{}).Where("sequence > ?", filter.After)
	if kind := strings.TrimSpace(filter.Type); kind != "" {
		if prefix, ok := strings.CutSuffix(kind, "*"); ok {
			q = q.Where("type LIKE ?", prefix+"%")
		} else {
			q = q.Where("type = ?", kind)
		}
	}
	var rows []Record
	if err := q.Order("sequence ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Event, 0, len(rows))
	for _, row := range rows {
		evt := &types.Event{Type: row.Type, Sequence: row.Sequence, Timestamp: row.Timestamp}
		if err := json.Unmarshal([]byte(row.Attributes), &evt.Attributes); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", row.Sequence, err)
		}
		out = append(out, evt)
	}
	return out, nil
}

// LastSequence returns the highest stored sequence, or zero when empty.
func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	var last *uint64
	if err := s.db.WithContext(ctx).Model(&Record{}).Select("MAX(sequence)").Scan(&last).Error; err != nil {
		return 0, err
	}
	if last == nil {
		return 0, nil
	}
	return *last, nil
}

// FindResponse returns the stored response for key and caller.
func (s *Store) FindResponse(ctx context.Context, key, caller string) (*IdempotencyKey, bool, error) {
	var rec IdempotencyKey
	err := s.db.WithContext(ctx).Where("key = ? AND caller = ?", key, caller).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// SaveResponse records a response. The first write for a key wins.
func (s *Store) SaveResponse(ctx context.Context, rec *IdempotencyKey) error {
	if rec == nil || rec.Key == "" {
		return fmt.Errorf("eventlog: idempotency key required")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error
}
