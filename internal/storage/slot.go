package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// StorageKey names the single durable slot holding the serialized collection.
const StorageKey = "promptlab_data_v1"

// ErrSlotEmpty is returned by Slot.Read when nothing has been stored yet.
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is the durable storage port: one named blob that is read once at
// startup and rewritten in full after every mutation.
type Slot interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Clear() error
}

// ClosableSlot is a Slot holding resources that must be released.
type ClosableSlot interface {
	Slot
	Close() error
}

// FileSlot stores the blob as <dir>/promptlab_data_v1.json.
type FileSlot struct {
	path string
}

// NewFileSlot creates a FileSlot under dir. The directory is created lazily
// on first write.
func NewFileSlot(dir string) *FileSlot {
	return &FileSlot{path: filepath.Join(dir, StorageKey+".json")}
}

// Path returns the backing file path.
func (f *FileSlot) Path() string {
	return f.path
}

func (f *FileSlot) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSlotEmpty
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrSlotEmpty
	}
	return data, nil
}

// Write replaces the file atomically via a temp file and rename.
func (f *FileSlot) Write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, StorageKey+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

func (f *FileSlot) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileSlot) Close() error {
	return nil
}

var _ ClosableSlot = (*FileSlot)(nil)
