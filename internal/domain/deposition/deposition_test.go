package deposition

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensciencearchive/server-sub000/internal/srn"
)

func testSRNs(t *testing.T) (depSRN, convSRN srn.SRN) {
	t.Helper()
	depSRN, err := srn.New("n1.example.org", srn.TypeDeposition, "dep000000000000001", "")
	require.NoError(t, err)
	convSRN, err = srn.New("n1.example.org", srn.TypeConvention, "conv00000000000001", "1.0.0")
	require.NoError(t, err)
	return depSRN, convSRN
}

func TestSubmitRequiresMinimumFiles(t *testing.T) {
	dep, conv := testSRNs(t)
	d := New(dep, conv, "owner-1", time.Now())

	err := d.Submit(1, time.Now())
	assert.ErrorIs(t, err, ErrInsufficientFiles)

	require.NoError(t, d.AddFile(File{Name: "a.csv"}, time.Now()))
	require.NoError(t, d.Submit(1, time.Now()))
	assert.Equal(t, StatusInValidation, d.Status)
}

func TestFileMutationOnlyAllowedInDraft(t *testing.T) {
	dep, conv := testSRNs(t)
	d := New(dep, conv, "owner-1", time.Now())
	require.NoError(t, d.AddFile(File{Name: "a.csv"}, time.Now()))
	require.NoError(t, d.Submit(1, time.Now()))

	err := d.AddFile(File{Name: "b.csv"}, time.Now())
	assert.ErrorIs(t, err, ErrNotDraft)

	err = d.SetMetadata(json.RawMessage(`{}`), time.Now())
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestReturnToDraftRequiresInValidation(t *testing.T) {
	dep, conv := testSRNs(t)
	d := New(dep, conv, "owner-1", time.Now())

	err := d.ReturnToDraft(time.Now())
	assert.ErrorIs(t, err, ErrNotInValidation)

	require.NoError(t, d.AddFile(File{Name: "a.csv"}, time.Now()))
	require.NoError(t, d.Submit(1, time.Now()))
	require.NoError(t, d.ReturnToDraft(time.Now()))
	assert.Equal(t, StatusDraft, d.Status)
}

func TestAcceptSetsRecordSRN(t *testing.T) {
	dep, conv := testSRNs(t)
	d := New(dep, conv, "owner-1", time.Now())
	require.NoError(t, d.AddFile(File{Name: "a.csv"}, time.Now()))
	require.NoError(t, d.Submit(1, time.Now()))

	recSRN, err := srn.New("n1.example.org", srn.TypeRecord, "rec00000000000001", "1")
	require.NoError(t, err)
	require.NoError(t, d.Accept(recSRN, time.Now()))
	assert.Equal(t, StatusAccepted, d.Status)
	require.NotNil(t, d.RecordSRN)
	assert.Equal(t, recSRN.String(), d.RecordSRN.String())
}
