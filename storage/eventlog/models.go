package eventlog

import "time"

// Record is one committed ledger event. Sequence is assigned by the ledger and
// is unique across the journal.
type Record struct {
	Sequence   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type       string `gorm:"index;not null"`
	Attributes string `gorm:"type:text;not null"`
	Timestamp  int64  `gorm:"index;not null"`
	CreatedAt  time.Time
}

// TableName pins the table name independent of the struct name.
func (Record) TableName() string { return "ledger_events" }

// IdempotencyKey stores the response of a mutating API call so a retry with
// the same key replays it instead of executing twice.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey"`
	Caller    string `gorm:"primaryKey"`
	RequestID string
	Method    string
	Path      string
	Status    int    `gorm:"not null"`
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

func (IdempotencyKey) TableName() string { return "idempotency_keys" }

func autoMigrateModels() []any {
	return []any{&Record{}, &IdempotencyKey{}}
}
