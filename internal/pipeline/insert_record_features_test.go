package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/domain/hook"
	"github.com/opensciencearchive/server-sub000/internal/outbox"
	"github.com/opensciencearchive/server-sub000/internal/srn"
)

// fixedHookFeaturesStorage extends fakeFileStorage so HookFeaturesPath points
// at a real temp file the test writes feature JSON into.
type fixedHookFeaturesStorage struct {
	fakeFileStorage
	dir string
}

func (f *fixedHookFeaturesStorage) HookFeaturesPath(_ srn.SRN, hookName string) string {
	return filepath.Join(f.dir, hookName+".json")
}

func TestInsertRecordFeaturesInsertsRowWhenFeatureFileExists(t *testing.T) {
	reg := outbox.NewRegistry()
	scope, mock := newDBScope(t, reg)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema-check.json"), []byte(`{"score": 0.9}`), 0o600))

	mock.ExpectExec("INSERT INTO hook_features_schema_check").WillReturnResult(sqlmock.NewResult(1, 1))

	deps := Dependencies{Files: &fixedHookFeaturesStorage{dir: dir}}
	h := insertRecordFeaturesRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventRecordPublished, RecordPublishedPayload{
		RecordSRN:     "urn:osa:n1.example.org:rec:dep000000000000001@1",
		DepositionSRN: "urn:osa:n1.example.org:dep:dep000000000000001",
		Hooks: []hook.Snapshot{{
			Name:          "schema-check",
			FeatureSchema: hook.FeatureSchema{Columns: []hook.Column{{Name: "score", Type: "float"}}},
		}},
	})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	require.Equal(t, 0, int(outcome.Kind))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecordFeaturesSkipsMissingFeatureFile(t *testing.T) {
	reg := outbox.NewRegistry()
	scope, _ := newDBScope(t, reg)

	deps := Dependencies{Files: &fixedHookFeaturesStorage{dir: t.TempDir()}}
	h := insertRecordFeaturesRegistration(deps).New(scope)

	ev, err := outbox.NewEvent(EventRecordPublished, RecordPublishedPayload{
		RecordSRN:     "urn:osa:n1.example.org:rec:dep000000000000001@1",
		DepositionSRN: "urn:osa:n1.example.org:dep:dep000000000000001",
		Hooks: []hook.Snapshot{{
			Name:          "schema-check",
			FeatureSchema: hook.FeatureSchema{Columns: []hook.Column{{Name: "score", Type: "float"}}},
		}},
	})
	require.NoError(t, err)

	outcome := h.Handle(context.Background(), ev)
	assert.Equal(t, 0, int(outcome.Kind))
}
