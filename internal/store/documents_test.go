package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	s := NewDocumentStore(NewStaticEmbedder())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedDocuments(t *testing.T, s *DocumentStore) {
	t.Helper()
	err := s.Upsert(context.Background(), []Document{
		{
			ID:   FileID("auth/login.py"),
			Text: "def authenticate_user(username, password): check_password_hash(password)",
			Meta: map[string]string{"path": "auth/login.py", "type": "file"},
		},
		{
			ID:   SymbolID("auth/login.py", "authenticate_user"),
			Text: "def authenticate_user(username, password): ...",
			Meta: map[string]string{"path": "auth/login.py", "type": "symbol", "name": "authenticate_user"},
		},
		{
			ID:   FileID("render/canvas.py"),
			Text: "def draw_circle(radius): compute_area(radius)",
			Meta: map[string]string{"path": "render/canvas.py", "type": "file"},
		},
	})
	require.NoError(t, err)
}

func TestUpsertAndCount(t *testing.T) {
	s := newTestStore(t)
	seedDocuments(t, s)

	assert.Equal(t, 3, s.Count())
	assert.True(t, s.Contains(FileID("auth/login.py")))
	assert.False(t, s.Contains(FileID("missing.py")))
}

func TestQuery_RelevantDocumentRanksFirst(t *testing.T) {
	s := newTestStore(t)
	seedDocuments(t, s)

	results, err := s.Query(context.Background(), "authenticate user password", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "auth/login.py", results[0].Meta["path"])
	// Distances are non-decreasing.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}
}

func TestQuery_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	s := newTestStore(t)
	seedDocuments(t, s)

	err := s.Upsert(context.Background(), []Document{{
		ID:   FileID("auth/login.py"),
		Text: "def verify_token(token): decode_jwt(token)",
		Meta: map[string]string{"path": "auth/login.py", "type": "file"},
	}})
	require.NoError(t, err)

	// Count is unchanged and queries see the new text.
	assert.Equal(t, 3, s.Count())

	results, err := s.Query(context.Background(), "verify token jwt", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, FileID("auth/login.py"), results[0].ID)
	assert.Contains(t, results[0].Text, "verify_token")
}

func TestDeleteByIDs(t *testing.T) {
	s := newTestStore(t)
	seedDocuments(t, s)

	s.DeleteByIDs([]string{FileID("render/canvas.py"), "nonexistent"})

	assert.Equal(t, 2, s.Count())
	assert.False(t, s.Contains(FileID("render/canvas.py")))

	// Lazy-deleted nodes never surface in queries.
	results, err := s.Query(context.Background(), "draw circle radius", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, FileID("render/canvas.py"), r.ID)
	}
}

func TestDeleteByPath(t *testing.T) {
	s := newTestStore(t)
	seedDocuments(t, s)

	removed := s.DeleteByPath("auth/login.py")

	// Both the file document and the symbol document go.
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Count())
	assert.False(t, s.Contains(SymbolID("auth/login.py", "authenticate_user")))
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.hnsw")

	s := newTestStore(t)
	seedDocuments(t, s)
	require.NoError(t, s.Save(path))

	loaded := NewDocumentStore(NewStaticEmbedder())
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 3, loaded.Count())

	results, err := loaded.Query(context.Background(), "authenticate user password", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth/login.py", results[0].Meta["path"])
}

func TestSave_CompactsOrphanedNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.hnsw")

	s := newTestStore(t)
	seedDocuments(t, s)

	// Repeated re-upserts of the same IDs orphan one graph node each.
	for i := 0; i < 10; i++ {
		seedDocuments(t, s)
	}
	require.Greater(t, s.graph.Len(), s.Count())

	require.NoError(t, s.Save(path))
	assert.Equal(t, s.Count(), s.graph.Len())

	// With orphans gone, a query for k documents yields k results
	// instead of nearest orphans crowding live ones out.
	results, err := s.Query(context.Background(), "draw circle radius", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	loaded := NewDocumentStore(NewStaticEmbedder())
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 3, loaded.Count())
	assert.Equal(t, 3, loaded.graph.Len())

	results, err = loaded.Query(context.Background(), "authenticate user password", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "auth/login.py", results[0].Meta["path"])
}

func TestLoad_MissingFilesStartFresh(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "absent.hnsw")))
	assert.Equal(t, 0, s.Count())
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := NewDocumentStore(NewStaticEmbedder())
	require.NoError(t, s.Close())

	err := s.Upsert(context.Background(), []Document{{ID: "x", Text: "y"}})
	assert.Error(t, err)

	_, err = s.Query(context.Background(), "y", 1)
	assert.Error(t, err)
}
