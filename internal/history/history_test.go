package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAssignsUUIDWhenAbsent(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Record(DecodeRun{
		StartedAt:   time.Unix(0, 0),
		DecoderKind: "fano",
		Success:     true,
		Score:       -12.5,
		NodeCount:   42,
		MaxDepth:    7,
		NbMoves:     50,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, id, 36)
}

func TestRecordPreservesExplicitID(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Record(DecodeRun{ID: "fixed-id", StartedAt: time.Unix(0, 0), DecoderKind: "stack"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Record(DecodeRun{StartedAt: time.Unix(100, 0), DecoderKind: "fano", Success: true})
	require.NoError(t, err)
	_, err = s.Record(DecodeRun{StartedAt: time.Unix(200, 0), DecoderKind: "stack", Success: false, FailureReason: "node limit exhausted"})
	require.NoError(t, err)

	runs, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "stack", runs[0].DecoderKind)
	assert.Equal(t, "fano", runs[1].DecoderKind)
}

func TestRecentRespectsLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.Record(DecodeRun{StartedAt: time.Unix(int64(i), 0), DecoderKind: "fano"})
		require.NoError(t, err)
	}

	runs, err := s.Recent(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
