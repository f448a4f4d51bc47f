package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensciencearchive/server-sub000/internal/domain/convention"
	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/domain/source"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// ConventionRepository persists the immutable Convention template.
type ConventionRepository interface {
	Get(ctx context.Context, exec outbox.Executor, conventionSRN srn.SRN) (*convention.Convention, error)
	Save(ctx context.Context, exec outbox.Executor, c convention.Convention) error
	// ListWithActiveSources returns every convention whose source declares a
	// cron schedule, for wiring into the worker pool's scheduler at startup.
	ListWithActiveSources(ctx context.Context, exec outbox.Executor) ([]convention.Convention, error)
}

// PostgresConventionRepository implements ConventionRepository.
type PostgresConventionRepository struct {
	db *sql.DB
}

// NewPostgresConventionRepository wraps an already-migrated database handle.
func NewPostgresConventionRepository(db *sql.DB) *PostgresConventionRepository {
	return &PostgresConventionRepository{db: db}
}

var _ ConventionRepository = (*PostgresConventionRepository)(nil)

func (r *PostgresConventionRepository) Get(ctx context.Context, exec outbox.Executor, conventionSRN srn.SRN) (*convention.Convention, error) {
	if exec == nil {
		exec = r.db
	}
	row := exec.QueryRowContext(ctx, `
		SELECT srn, title, schema_srn, file_requirements, hooks, source, created_at
		FROM conventions WHERE srn = $1
	`, conventionSRN.String())

	var srnStr, schemaSRNStr, title string
	var reqsJSON, hooksJSON, sourceJSON []byte
	var createdAt time.Time
	if err := row.Scan(&srnStr, &title, &schemaSRNStr, &reqsJSON, &hooksJSON, &sourceJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get convention: %w", err)
	}

	parsedSRN, err := srn.ParseAs(srnStr, srn.TypeConvention)
	if err != nil {
		return nil, fmt.Errorf("store: parse convention srn: %w", err)
	}
	schemaSRN, err := srn.ParseAs(schemaSRNStr, srn.TypeSchema)
	if err != nil {
		return nil, fmt.Errorf("store: parse schema srn: %w", err)
	}
	var reqs convention.FileRequirements
	if err := json.Unmarshal(reqsJSON, &reqs); err != nil {
		return nil, fmt.Errorf("store: decode file requirements: %w", err)
	}
	var hooks []hook.Definition
	if len(hooksJSON) > 0 {
		if err := json.Unmarshal(hooksJSON, &hooks); err != nil {
			return nil, fmt.Errorf("store: decode hooks: %w", err)
		}
	}
	var src *source.Definition
	if len(sourceJSON) > 0 {
		src = &source.Definition{}
		if err := json.Unmarshal(sourceJSON, src); err != nil {
			return nil, fmt.Errorf("store: decode source: %w", err)
		}
	}

	c := convention.New(parsedSRN, schemaSRN, title, reqs, hooks, src, createdAt)
	return &c, nil
}

func (r *PostgresConventionRepository) Save(ctx context.Context, exec outbox.Executor, c convention.Convention) error {
	if exec == nil {
		exec = r.db
	}
	reqsJSON, err := json.Marshal(c.FileRequirements)
	if err != nil {
		return fmt.Errorf("store: marshal file requirements: %w", err)
	}
	hooksJSON, err := json.Marshal(c.Hooks)
	if err != nil {
		return fmt.Errorf("store: marshal hooks: %w", err)
	}
	var sourceJSON []byte
	if c.Source != nil {
		sourceJSON, err = json.Marshal(c.Source)
		if err != nil {
			return fmt.Errorf("store: marshal source: %w", err)
		}
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO conventions (srn, title, schema_srn, file_requirements, hooks, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (srn) DO NOTHING
	`, c.SRN.String(), c.Title, c.SchemaSRN.String(), reqsJSON, hooksJSON, sourceJSON, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: save convention: %w", err)
	}
	return nil
}

func (r *PostgresConventionRepository) ListWithActiveSources(ctx context.Context, exec outbox.Executor) ([]convention.Convention, error) {
	if exec == nil {
		exec = r.db
	}
	rows, err := exec.QueryContext(ctx, `
		SELECT srn, title, schema_srn, file_requirements, hooks, source, created_at
		FROM conventions WHERE source IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list conventions with sources: %w", err)
	}
	defer rows.Close()

	out := make([]convention.Convention, 0)
	for rows.Next() {
		var srnStr, schemaSRNStr, title string
		var reqsJSON, hooksJSON, sourceJSON []byte
		var createdAt time.Time
		if err := rows.Scan(&srnStr, &title, &schemaSRNStr, &reqsJSON, &hooksJSON, &sourceJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan convention: %w", err)
		}

		parsedSRN, err := srn.ParseAs(srnStr, srn.TypeConvention)
		if err != nil {
			return nil, fmt.Errorf("store: parse convention srn: %w", err)
		}
		schemaSRN, err := srn.ParseAs(schemaSRNStr, srn.TypeSchema)
		if err != nil {
			return nil, fmt.Errorf("store: parse schema srn: %w", err)
		}
		var reqs convention.FileRequirements
		if err := json.Unmarshal(reqsJSON, &reqs); err != nil {
			return nil, fmt.Errorf("store: decode file requirements: %w", err)
		}
		var hooks []hook.Definition
		if len(hooksJSON) > 0 {
			if err := json.Unmarshal(hooksJSON, &hooks); err != nil {
				return nil, fmt.Errorf("store: decode hooks: %w", err)
			}
		}
		var src *source.Definition
		if len(sourceJSON) > 0 {
			src = &source.Definition{}
			if err := json.Unmarshal(sourceJSON, src); err != nil {
				return nil, fmt.Errorf("store: decode source: %w", err)
			}
		}
		if src == nil || !src.HasSchedule() {
			continue
		}

		out = append(out, convention.New(parsedSRN, schemaSRN, title, reqs, hooks, src, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list conventions with sources: %w", err)
	}
	return out, nil
}
