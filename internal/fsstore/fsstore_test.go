package fsstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/srn"
)

func testDepositionSRN(t *testing.T) srn.SRN {
	t.Helper()
	s, err := srn.New("n1.example.org", srn.TypeDeposition, "dep000000000000001", "")
	require.NoError(t, err)
	return s
}

func TestSaveAndGetFileRoundTrips(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	depSRN := testDepositionSRN(t)
	content := []byte("hello world")
	meta, err := store.SaveFile(context.Background(), depSRN, "data.csv", bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), meta.Size)
	assert.NotEmpty(t, meta.SHA256)

	rc, err := store.GetFile(context.Background(), depSRN, "data.csv")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSaveFileRejectsPathTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	depSRN := testDepositionSRN(t)
	_, err = store.SaveFile(context.Background(), depSRN, "../../etc/passwd", bytes.NewReader(nil), 0)
	assert.Error(t, err)

	_, err = store.SaveFile(context.Background(), depSRN, "/etc/passwd", bytes.NewReader(nil), 0)
	assert.Error(t, err)
}

func TestDeleteMissingFileIsNotAnError(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	depSRN := testDepositionSRN(t)
	assert.NoError(t, store.DeleteFile(context.Background(), depSRN, "nope.csv"))
}
