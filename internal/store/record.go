package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/record"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// RecordRepository persists the immutable, periodically re-indexed Record
// aggregate.
type RecordRepository interface {
	Get(ctx context.Context, exec outbox.Executor, recordSRN srn.SRN) (*record.Record, error)
	Save(ctx context.Context, exec outbox.Executor, r record.Record) error
}

// PostgresRecordRepository implements RecordRepository.
type PostgresRecordRepository struct {
	db *sql.DB
}

// NewPostgresRecordRepository wraps an already-migrated database handle.
func NewPostgresRecordRepository(db *sql.DB) *PostgresRecordRepository {
	return &PostgresRecordRepository{db: db}
}

var _ RecordRepository = (*PostgresRecordRepository)(nil)

func (r *PostgresRecordRepository) Get(ctx context.Context, exec outbox.Executor, recordSRN srn.SRN) (*record.Record, error) {
	if exec == nil {
		exec = r.db
	}
	row := exec.QueryRowContext(ctx, `
		SELECT srn, deposition_srn, metadata, indexes, published_at
		FROM records WHERE srn = $1
	`, recordSRN.String())

	var srnStr, depositionSRNStr string
	var metadata, indexesJSON []byte
	var publishedAt time.Time
	if err := row.Scan(&srnStr, &depositionSRNStr, &metadata, &indexesJSON, &publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get record: %w", err)
	}

	parsedSRN, err := srn.ParseAs(srnStr, srn.TypeRecord)
	if err != nil {
		return nil, fmt.Errorf("store: parse record srn: %w", err)
	}
	depositionSRN, err := srn.ParseAs(depositionSRNStr, srn.TypeDeposition)
	if err != nil {
		return nil, fmt.Errorf("store: parse deposition srn: %w", err)
	}

	rec := record.New(parsedSRN, depositionSRN, json.RawMessage(metadata), publishedAt)
	if len(indexesJSON) > 0 {
		if err := json.Unmarshal(indexesJSON, &rec.Indexes); err != nil {
			return nil, fmt.Errorf("store: decode indexes: %w", err)
		}
	}
	return &rec, nil
}

func (r *PostgresRecordRepository) Save(ctx context.Context, exec outbox.Executor, rec record.Record) error {
	if exec == nil {
		exec = r.db
	}
	indexesJSON, err := json.Marshal(rec.Indexes)
	if err != nil {
		return fmt.Errorf("store: marshal indexes: %w", err)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO records (srn, deposition_srn, metadata, indexes, published_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (srn) DO UPDATE SET indexes = EXCLUDED.indexes
	`, rec.SRN.String(), rec.DepositionSRN.String(), []byte(rec.Metadata), indexesJSON, rec.PublishedAt)
	if err != nil {
		return fmt.Errorf("store: save record: %w", err)
	}
	return nil
}
