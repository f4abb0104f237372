package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const snapshotPrefix = "tasks/"

// TaskArchive reads and replaces the whole task store.
type TaskArchive interface {
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (int, error)
}

// ObjectStore is where snapshots are kept.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
}

// BackupService copies the task store to and from object storage.
type BackupService struct {
	tasks   TaskArchive
	objects ObjectStore
	log     *slog.Logger
	now     func() time.Time
}

func NewBackupService(tasks TaskArchive, objects ObjectStore, log *slog.Logger) *BackupService {
	return &BackupService{tasks: tasks, objects: objects, log: log, now: time.Now}
}

// Backup uploads a consistent snapshot of the task store and returns its key.
func (s *BackupService) Backup(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := s.tasks.Export(ctx, &buf); err != nil {
		return "", fmt.Errorf("export tasks: %w", err)
	}

	if err := s.objects.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", s.objects.Bucket(), err)
	}

	key := snapshotPrefix + s.now().UTC().Format("20060102T150405Z") + ".csv"
	size := int64(buf.Len())
	if err := s.objects.Put(ctx, key, &buf, size, "text/csv"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	s.log.InfoContext(ctx, "task snapshot uploaded", "bucket", s.objects.Bucket(), "key", key, "bytes", size)
	return key, nil
}

// Restore replaces the task store with the snapshot stored under key and
// returns the number of tasks loaded.
func (s *BackupService) Restore(ctx context.Context, key string) (int, error) {
	rc, err := s.objects.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	n, err := s.tasks.Import(ctx, rc)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", key, err)
	}

	s.log.InfoContext(ctx, "task snapshot restored", "bucket", s.objects.Bucket(), "key", key, "tasks", n)
	return n, nil
}
