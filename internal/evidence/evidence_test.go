package evidence

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

var ts = time.Date(2024, 3, 1, 23, 30, 5, 0, time.UTC)

func newPersister(t *testing.T) *Persister {
	t.Helper()
	p, err := NewPersister(t.TempDir(), "jpg", time.UTC, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestPersist_Name(t *testing.T) {
	p := newPersister(t)

	path, err := p.Persist([]byte("frame"), ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Dir(), "detection_20240301_233005.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame"), data)
}

func TestPersist_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	p, err := NewPersister(t.TempDir(), ".png", loc, zap.NewNop())
	require.NoError(t, err)

	path, err := p.Persist([]byte("frame"), ts)
	require.NoError(t, err)
	assert.Equal(t, "detection_20240302_013005.png", filepath.Base(path))
}

func TestPersist_CollisionGetsSuffix(t *testing.T) {
	p := newPersister(t)

	first, err := p.Persist([]byte("one"), ts)
	require.NoError(t, err)
	second, err := p.Persist([]byte("two"), ts)
	require.NoError(t, err)
	third, err := p.Persist([]byte("three"), ts.Add(500*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, "detection_20240301_233005.jpg", filepath.Base(first))
	assert.Equal(t, "detection_20240301_233005_1.jpg", filepath.Base(second))
	assert.Equal(t, "detection_20240301_233005_2.jpg", filepath.Base(third))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data, "earlier evidence must not be overwritten")

	entries, err := os.ReadDir(p.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPersist_UnwritableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	p := newPersister(t)
	require.NoError(t, os.Chmod(p.Dir(), 0o500))
	t.Cleanup(func() { _ = os.Chmod(p.Dir(), 0o755) })

	_, err := p.Persist([]byte("frame"), ts)
	var serr *models.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Contains(t, serr.Path, "detection_20240301_233005.jpg")
}

func TestPersist_DirectoryRemoved(t *testing.T) {
	p := newPersister(t)
	require.NoError(t, os.RemoveAll(p.Dir()))

	_, err := p.Persist([]byte("frame"), ts)
	var serr *models.StorageError
	require.ErrorAs(t, err, &serr)
}

func TestNewPersister_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "detections")
	_, err := NewPersister(dir, "jpg", nil, zap.NewNop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewPersister_PathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewPersister(file, "jpg", nil, zap.NewNop())
	var serr *models.StorageError
	require.ErrorAs(t, err, &serr)
}
