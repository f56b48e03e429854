// Package gdrive mirrors the daily call archive into a Google Drive folder.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const docMimeType = "application/vnd.google-apps.document"

// Files is the slice of the Drive API the syncer uses.
type Files interface {
	Create(name, folderID string, media io.Reader) (string, error)
	Update(fileID string, media io.Reader) error
}

// Archive locates the archive file for a day.
type Archive interface {
	PathFor(day time.Time) string
}

type Syncer struct {
	files    Files
	archive  Archive
	folderID string
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	fileIDs map[string]string
	synced  map[string]time.Time
}

func NewSyncer(files Files, archive Archive, folderID string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		files:    files,
		archive:  archive,
		folderID: folderID,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		fileIDs:  make(map[string]string),
		synced:   make(map[string]time.Time),
	}
}

// NewDriveFiles builds a Drive client from a service account key file.
func NewDriveFiles(ctx context.Context, credPath string) (Files, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &driveFiles{svc: svc}, nil
}

type driveFiles struct {
	svc *drive.Service
}

func (d *driveFiles) Create(name, folderID string, media io.Reader) (string, error) {
	f, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: docMimeType,
		Parents:  []string{folderID},
	}).Media(media).Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}
	return f.Id, nil
}

func (d *driveFiles) Update(fileID string, media io.Reader) error {
	if _, err := d.svc.Files.Update(fileID, &drive.File{}).Media(media).Do(); err != nil {
		return fmt.Errorf("drive update: %w", err)
	}
	return nil
}

// SyncDay uploads the archive for day, creating the Drive document on first
// upload. Unchanged files are skipped.
func (s *Syncer) SyncDay(day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.archive.PathFor(day)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	date := day.UTC().Format("2006-01-02")
	if last, ok := s.synced[date]; ok && !info.ModTime().After(last) {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if id, ok := s.fileIDs[date]; ok {
		if err := s.files.Update(id, f); err != nil {
			return err
		}
	} else {
		name := "roomline-" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		id, err := s.files.Create(name, s.folderID, f)
		if err != nil {
			return err
		}
		s.fileIDs[date] = id
	}
	s.synced[date] = info.ModTime()
	s.logger.Info("gdrive: archive synced", "date", date)
	return nil
}

// Run syncs today's archive every interval until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncDay(s.now()); err != nil {
				s.logger.Warn("gdrive: sync failed", "error", err)
			}
		}
	}
}
