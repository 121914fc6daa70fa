package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"kitchen-worker-go/internal/config"
	"kitchen-worker-go/internal/helpers"
	"kitchen-worker-go/internal/models"
)

// Service writes violation snapshots to the media directory. Filenames are
// unique per (channel, kind, timestamp) so the store's media_path constraint
// holds.
type Service struct {
	cfg *config.Config
	loc *time.Location
}

func NewService(cfg *config.Config) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir %q: %w", cfg.MediaDir, err)
	}

	return &Service{cfg: cfg, loc: loc}, nil
}

// Location is the timezone applied to persisted timestamps.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Save encodes the annotated frame as JPEG and writes it under the media
// directory. Returns the relative path of the written file.
func (s *Service) Save(frame gocv.Mat, channelID string, kind models.ViolationKind, at time.Time) (string, error) {
	buf, err := helpers.EncodeJPEG(frame, s.cfg.MediaQuality)
	if err != nil {
		return "", fmt.Errorf("encode evidence frame: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.jpg", channelID, kind, at.In(s.loc).Format("20060102_150405.000"))
	path := filepath.Join(s.cfg.MediaDir, name)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("write evidence file: %w", err)
	}

	return path, nil
}
