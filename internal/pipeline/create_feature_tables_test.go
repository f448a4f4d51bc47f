package pipeline

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/domain/convention"
	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
	"github.com/opensciencearchive/server-sub000/internal/store"
)

// dbScope is a handlers.Scope whose Exec() is a real *sql.DB under sqlmock,
// for handlers that issue raw DDL/DML directly against the transaction
// rather than through an internal/store repository.
type dbScope struct {
	fakeScope
	db *sql.DB
}

func (s dbScope) Exec() outbox.Executor { return s.db }

func newDBScope(t *testing.T, reg *outbox.Registry) (dbScope, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	box := outbox.New(outbox.NewMemoryRepository(), reg)
	return dbScope{fakeScope: fakeScope{box: box}, db: db}, mock
}

func TestCreateFeatureTablesCreatesTableAndEmitsReady(t *testing.T) {
	reg := outbox.NewRegistry()
	reg.Subscribe(EventConventionReady, "TriggerInitialSourceRun")
	scope, mock := newDBScope(t, reg)

	convSRN := testConventionSRN(t)
	schemaSRN, err := srn.New("n1.example.org", srn.TypeSchema, "schema0000000001", "1.0.0")
	require.NoError(t, err)
	hooks := []hook.Definition{{
		Image:  "img",
		Digest: "sha256:abc",
		Manifest: hook.Manifest{
			Name: "schema-check",
			FeatureSchema: hook.FeatureSchema{
				Columns: []hook.Column{{Name: "score", Type: "float"}},
			},
		},
	}}
	conv := convention.New(convSRN, schemaSRN, "Test", convention.FileRequirements{MinCount: 1}, hooks, nil, time.Now())
	conventions := store.NewMemoryConventionRepository()
	require.NoError(t, conventions.Save(context.Background(), nil, conv))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS hook_features_schema_check").WillReturnResult(sqlmock.NewResult(0, 0))

	deps := Dependencies{Conventions: conventions}
	h := createFeatureTablesRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventConventionRegistered, ConventionRegisteredPayload{ConventionSRN: convSRN.String()})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	require.Equal(t, 0, int(outcome.Kind))
	require.NoError(t, mock.ExpectationsWereMet())

	count, err := scope.Outbox().Count(context.Background(), []string{EventConventionReady})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateFeatureTablesFailsOnDDLError(t *testing.T) {
	scope, mock := newDBScope(t, outbox.NewRegistry())
	convSRN := testConventionSRN(t)
	schemaSRN, err := srn.New("n1.example.org", srn.TypeSchema, "schema0000000001", "1.0.0")
	require.NoError(t, err)
	hooks := []hook.Definition{{
		Manifest: hook.Manifest{
			Name:          "schema-check",
			FeatureSchema: hook.FeatureSchema{Columns: []hook.Column{{Name: "score", Type: "float"}}},
		},
	}}
	conv := convention.New(convSRN, schemaSRN, "Test", convention.FileRequirements{MinCount: 1}, hooks, nil, time.Now())
	conventions := store.NewMemoryConventionRepository()
	require.NoError(t, conventions.Save(context.Background(), nil, conv))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnError(errBoom)

	deps := Dependencies{Conventions: conventions}
	h := createFeatureTablesRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventConventionRegistered, ConventionRegisteredPayload{ConventionSRN: convSRN.String()})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	assert.Equal(t, 2, int(outcome.Kind))
}
