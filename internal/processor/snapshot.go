package processor

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/adverant/nexus/cardsort-worker/internal/logging"
)

// SnapshotWriter persists intermediate images for tuning ROI and lighting.
// Writes are best-effort: failures are logged and never returned.
type SnapshotWriter struct {
	dir     string
	enabled bool
	logger  *logging.Logger
}

// NewSnapshotWriter creates a writer; a disabled writer does nothing
func NewSnapshotWriter(dir string, enabled bool, logger *logging.Logger) *SnapshotWriter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SnapshotWriter{dir: dir, enabled: enabled, logger: logger}
}

// Enabled reports whether snapshots are written
func (s *SnapshotWriter) Enabled() bool {
	return s != nil && s.enabled
}

// Write stores img as <dir>/<runID>-<stage>.png
func (s *SnapshotWriter) Write(runID, stage string, img image.Image) {
	if !s.Enabled() || img == nil {
		return
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.png", runID, stage))
	if err := writePNG(s.dir, path, img); err != nil {
		s.logger.Warn("Failed to write debug snapshot", "path", path, "error", err)
		return
	}
	s.logger.Debug("Debug snapshot written", "path", path)
}

func writePNG(dir, path string, img image.Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return f.Close()
}
