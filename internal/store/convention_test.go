package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/opensciencearchive/server-sub000/internal/domain/convention"
	"github.com/opensciencearchive/server-sub000/internal/domain/source"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

func mustSRN(t *testing.T, typ srn.Type, localID string) srn.SRN {
	t.Helper()
	s, err := srn.New("n1.example.org", typ, localID, "1.0.0")
	if err != nil {
		t.Fatalf("srn.New(%s): %v", localID, err)
	}
	return s
}

func TestPostgresConventionRepositorySaveAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo := NewPostgresConventionRepository(db)
	conventionSRN := mustSRN(t, srn.TypeConvention, "conv00000000000001")
	schemaSRN := mustSRN(t, srn.TypeSchema, "schema0000000001")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := convention.New(conventionSRN, schemaSRN, "Test convention", convention.FileRequirements{MinCount: 1, MaxCount: 10}, nil, nil, now)

	mock.ExpectExec("INSERT INTO conventions").WillReturnResult(sqlmock.NewResult(1, 1))
	if err := repo.Save(context.Background(), nil, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows := sqlmock.NewRows([]string{"srn", "title", "schema_srn", "file_requirements", "hooks", "source", "created_at"}).
		AddRow(conventionSRN.String(), "Test convention", schemaSRN.String(), []byte(`{"min_count":1,"max_count":10}`), []byte(`[]`), nil, now)
	mock.ExpectQuery("SELECT srn, title, schema_srn, file_requirements, hooks, source, created_at").WillReturnRows(rows)

	got, err := repo.Get(context.Background(), nil, conventionSRN)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Test convention" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	if got.Source != nil {
		t.Fatalf("expected no source, got %+v", got.Source)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresConventionRepositoryListWithActiveSources(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo := NewPostgresConventionRepository(db)
	scheduledSRN := mustSRN(t, srn.TypeConvention, "conv00000000000001")
	unscheduledSRN := mustSRN(t, srn.TypeConvention, "conv00000000000002")
	schemaSRN := mustSRN(t, srn.TypeSchema, "schema0000000001")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"srn", "title", "schema_srn", "file_requirements", "hooks", "source", "created_at"}).
		AddRow(scheduledSRN.String(), "Scheduled", schemaSRN.String(), []byte(`{"min_count":1,"max_count":1}`), []byte(`[]`), []byte(`{"image":"img","digest":"sha256:abc","cron_schedule":"*/5 * * * *"}`), now).
		AddRow(unscheduledSRN.String(), "No schedule", schemaSRN.String(), []byte(`{"min_count":1,"max_count":1}`), []byte(`[]`), []byte(`{"image":"img","digest":"sha256:abc"}`), now)
	mock.ExpectQuery("SELECT srn, title, schema_srn, file_requirements, hooks, source, created_at").WillReturnRows(rows)

	got, err := repo.ListWithActiveSources(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 convention with an active source, got %d", len(got))
	}
	if got[0].SRN.String() != scheduledSRN.String() {
		t.Fatalf("unexpected convention returned: %s", got[0].SRN.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMemoryConventionRepositoryListWithActiveSources(t *testing.T) {
	repo := NewMemoryConventionRepository()
	scheduledSRN := mustSRN(t, srn.TypeConvention, "conv00000000000001")
	unscheduledSRN := mustSRN(t, srn.TypeConvention, "conv00000000000002")
	schemaSRN := mustSRN(t, srn.TypeSchema, "schema0000000001")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	scheduled := convention.New(scheduledSRN, schemaSRN, "Scheduled", convention.FileRequirements{MinCount: 1, MaxCount: 1}, nil,
		&source.Definition{Image: "img", Digest: "sha256:abc", CronSchedule: "*/5 * * * *"}, now)
	unscheduled := convention.New(unscheduledSRN, schemaSRN, "No schedule", convention.FileRequirements{MinCount: 1, MaxCount: 1}, nil, nil, now)

	if err := repo.Save(context.Background(), nil, scheduled); err != nil {
		t.Fatalf("save scheduled: %v", err)
	}
	if err := repo.Save(context.Background(), nil, unscheduled); err != nil {
		t.Fatalf("save unscheduled: %v", err)
	}

	got, err := repo.ListWithActiveSources(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].SRN.String() != scheduledSRN.String() {
		t.Fatalf("expected only the scheduled convention, got %+v", got)
	}
}
