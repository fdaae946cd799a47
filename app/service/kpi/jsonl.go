package kpi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLRecorder appends every event to <dir>/<kind>.jsonl.
type JSONLRecorder struct {
	dir string
	mu  sync.Mutex
}

func NewJSONLRecorder(dir string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create kpi directory: %w", err)
	}

	return &JSONLRecorder{dir: dir}, nil
}

func (r *JSONLRecorder) Record(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(r.dir, string(event.Kind)+".jsonl"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open kpi log: %w", err)
	}
	defer file.Close()

	if _, err = file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write kpi event: %w", err)
	}

	return nil
}
