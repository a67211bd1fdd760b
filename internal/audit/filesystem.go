package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FilesystemRecorder appends events as JSON lines to one file per day under
// a base directory.
type FilesystemRecorder struct {
	basePath string
	mu       sync.Mutex
}

func NewFilesystemRecorder(basePath string) (*FilesystemRecorder, error) {
	eventsPath := filepath.Join(basePath, "events")
	if err := os.MkdirAll(eventsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create events path: %w", err)
	}

	return &FilesystemRecorder{
		basePath: basePath,
	}, nil
}

func (f *FilesystemRecorder) Record(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	name := fmt.Sprintf("events-%s.log", event.Time.UTC().Format("2006-01-02"))
	path := filepath.Join(f.basePath, "events", name)

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}
