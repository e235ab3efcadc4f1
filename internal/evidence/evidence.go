package evidence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

const maxSuffix = 1000

// Persister writes triggering frames into a flat, append-only directory.
// Files are named detection_YYYYMMDD_HHMMSS.<ext>; a second frame in the
// same second gets detection_YYYYMMDD_HHMMSS_<n>.<ext>. Existing files are
// never overwritten.
type Persister struct {
	dir    string
	ext    string
	loc    *time.Location
	logger *zap.Logger
}

func NewPersister(dir, ext string, loc *time.Location, logger *zap.Logger) (*Persister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &models.StorageError{Path: dir, Err: err}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Persister{
		dir:    dir,
		ext:    strings.TrimPrefix(ext, "."),
		loc:    loc,
		logger: logger.Named("evidence"),
	}, nil
}

func (p *Persister) Dir() string { return p.dir }

// Persist stores data and returns the path it was written to
func (p *Persister) Persist(data []byte, ts time.Time) (string, error) {
	base := "detection_" + ts.In(p.loc).Format("20060102_150405")

	for n := 0; n < maxSuffix; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		path := filepath.Join(p.dir, name+"."+p.ext)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", &models.StorageError{Path: path, Err: err}
		}

		if err := write(f, data); err != nil {
			// leave no truncated evidence behind
			_ = os.Remove(path)
			return "", &models.StorageError{Path: path, Err: err}
		}

		p.logger.Info("evidence saved", zap.String("path", path), zap.Int("bytes", len(data)))
		return path, nil
	}

	return "", &models.StorageError{
		Path: filepath.Join(p.dir, base+"."+p.ext),
		Err:  fmt.Errorf("more than %d frames in one second", maxSuffix),
	}
}

func write(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
