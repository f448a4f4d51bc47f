// Package store persists the deposition/convention/record aggregates
// against Postgres, following the same Executor-accepting shape as
// internal/outbox.Repository so a handler's aggregate writes join the same
// transaction as its event emission.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/deposition"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// ErrNotFound is returned when a Get call finds no matching row.
var ErrNotFound = errors.New("store: not found")

// DepositionRepository persists the Deposition aggregate.
type DepositionRepository interface {
	Get(ctx context.Context, exec outbox.Executor, depositionSRN srn.SRN) (*deposition.Deposition, error)
	Save(ctx context.Context, exec outbox.Executor, d *deposition.Deposition) error
}

// PostgresDepositionRepository implements DepositionRepository over
// database/sql.
type PostgresDepositionRepository struct {
	db *sql.DB
}

// NewPostgresDepositionRepository wraps an already-migrated database handle.
func NewPostgresDepositionRepository(db *sql.DB) *PostgresDepositionRepository {
	return &PostgresDepositionRepository{db: db}
}

var _ DepositionRepository = (*PostgresDepositionRepository)(nil)

func (r *PostgresDepositionRepository) Get(ctx context.Context, exec outbox.Executor, depositionSRN srn.SRN) (*deposition.Deposition, error) {
	if exec == nil {
		exec = r.db
	}
	row := exec.QueryRowContext(ctx, `
		SELECT srn, status, metadata, files, provenance, record_srn, owner_id, convention_srn, created_at, updated_at
		FROM depositions WHERE srn = $1
	`, depositionSRN.String())

	var (
		srnStr, conventionSRNStr, ownerID string
		status                            string
		metadata, files, provenance       []byte
		recordSRN                         sql.NullString
		createdAt, updatedAt              time.Time
	)
	if err := row.Scan(&srnStr, &status, &metadata, &files, &provenance, &recordSRN, &ownerID, &conventionSRNStr, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get deposition: %w", err)
	}

	parsedSRN, err := srn.ParseAs(srnStr, srn.TypeDeposition)
	if err != nil {
		return nil, fmt.Errorf("store: parse deposition srn: %w", err)
	}
	conventionSRN, err := srn.ParseAs(conventionSRNStr, srn.TypeConvention)
	if err != nil {
		return nil, fmt.Errorf("store: parse convention srn: %w", err)
	}

	d := &deposition.Deposition{
		SRN:           parsedSRN,
		Status:        deposition.Status(status),
		Metadata:      json.RawMessage(metadata),
		ConventionSRN: conventionSRN,
		OwnerID:       ownerID,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &d.Files); err != nil {
			return nil, fmt.Errorf("store: decode files: %w", err)
		}
	}
	if len(provenance) > 0 {
		d.Provenance = json.RawMessage(provenance)
	}
	if recordSRN.Valid {
		parsed, err := srn.ParseAs(recordSRN.String, srn.TypeRecord)
		if err != nil {
			return nil, fmt.Errorf("store: parse record srn: %w", err)
		}
		d.RecordSRN = &parsed
	}
	return d, nil
}

func (r *PostgresDepositionRepository) Save(ctx context.Context, exec outbox.Executor, d *deposition.Deposition) error {
	if exec == nil {
		exec = r.db
	}
	filesJSON, err := json.Marshal(d.Files)
	if err != nil {
		return fmt.Errorf("store: marshal files: %w", err)
	}
	var recordSRN *string
	if d.RecordSRN != nil {
		s := d.RecordSRN.String()
		recordSRN = &s
	}
	var provenance []byte
	if len(d.Provenance) > 0 {
		provenance = d.Provenance
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO depositions (srn, status, metadata, files, provenance, record_srn, owner_id, convention_srn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (srn) DO UPDATE SET
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			files = EXCLUDED.files,
			provenance = EXCLUDED.provenance,
			record_srn = EXCLUDED.record_srn,
			updated_at = EXCLUDED.updated_at
	`, d.SRN.String(), string(d.Status), []byte(d.Metadata), filesJSON, provenance, recordSRN, d.OwnerID, d.ConventionSRN.String(), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save deposition: %w", err)
	}
	return nil
}
