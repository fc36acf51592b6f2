package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// unsafeNameChars matches characters replaced when deriving a temp filename from a bucket path.
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// maxNameStem bounds the path-derived part of a temp filename.
const maxNameStem = 80

// TempStore hands out short-lived local files used to stage exports before upload.
type TempStore struct {
	dir    string
	remove func(string) error
	logger zerolog.Logger
}

// NewTempStore creates a TempStore rooted at dir. An empty dir uses os.TempDir().
func NewTempStore(dir string, logger zerolog.Logger) *TempStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TempStore{
		dir:    dir,
		remove: os.Remove,
		logger: logger.With().Str("component", "temp_store").Logger(),
	}
}

// Dir returns the directory artifacts are created in.
func (s *TempStore) Dir() string {
	return s.dir
}

// Acquire reserves a unique artifact path for the given destination path.
// The file itself is created by the exporter. Callers must defer Release.
func (s *TempStore) Acquire(destinationPath string) (*Artifact, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", nameStem(destinationPath), uuid.NewString())
	return &Artifact{
		Path:   filepath.Join(s.dir, name),
		remove: s.remove,
		logger: s.logger,
	}, nil
}

// nameStem turns a bucket object path into a filesystem-safe filename prefix.
func nameStem(destinationPath string) string {
	base := strings.TrimSuffix(filepath.Base(destinationPath), filepath.Ext(destinationPath))
	stem := strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if stem == "" {
		stem = "export"
	}
	if len(stem) > maxNameStem {
		stem = stem[:maxNameStem]
	}
	return stem
}

// Artifact is one staged export file. Release deletes it exactly once.
type Artifact struct {
	Path string

	remove func(string) error
	logger zerolog.Logger
	once   sync.Once
	err    error
}

// Release deletes the artifact. It is safe to call any number of times; only the
// first call touches the filesystem. A file that was never written is not an error.
func (a *Artifact) Release() error {
	a.once.Do(func() {
		err := a.remove(a.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.err = fmt.Errorf("remove artifact: %w", err)
			a.logger.Warn().Err(err).Str("path", a.Path).Msg("failed to remove temporary artifact")
			return
		}
		a.logger.Debug().Str("path", a.Path).Msg("temporary artifact released")
	})
	return a.err
}
