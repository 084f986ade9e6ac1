package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"petling/internal/pet"
)

// ErrCorruptDocument is returned when persisted content cannot be parsed.
// There is no recovery path at this layer; callers abort or start empty.
var ErrCorruptDocument = errors.New("corrupt document")

// FileStore keeps the whole document in a single JSON file. A missing file
// reads as an empty document. Both daemons point at the same file, so every
// View/Update takes an OS-level lock on a sidecar lock file; the flock, not
// any in-process mutex, is the serialization point for the read-modify-write.
// Saves go through a temp file and rename so no reader ever sees a torn
// document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// lock takes a flock on <path>.lock and returns the release func. The lock
// file is separate from the data file because rename on save would otherwise
// swap the locked inode out from under a waiting process.
func (s *FileStore) lock(how int) (func(), error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock document: %w", err)
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

// View runs fn against a snapshot under a shared lock.
func (s *FileStore) View(_ context.Context, fn func(doc *pet.Document) error) error {
	unlock, err := s.lock(unix.LOCK_SH)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(&doc)
}

// Update holds the exclusive lock across load, fn and save, so concurrent
// updates from any process are applied one after the other. A failed fn
// leaves the file untouched.
func (s *FileStore) Update(_ context.Context, fn func(doc *pet.Document) error) error {
	unlock, err := s.lock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *FileStore) load() (pet.Document, error) {
	var doc pet.Document
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			doc.Normalize()
			return doc, nil
		}
		return doc, fmt.Errorf("read document: %w", err)
	}
	if len(raw) == 0 {
		doc.Normalize()
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return pet.Document{}, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, s.path, err)
	}
	doc.Normalize()
	return doc, nil
}

// save writes the document to a temp file in the same directory and renames
// it over the data file, so the file is replaced atomically.
func (s *FileStore) save(doc pet.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".data-*.json")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// Snapshot copies the current file into dir with a timestamped name and
// returns the snapshot path. Nothing to snapshot is not an error.
func (s *FileStore) Snapshot(dir string) (string, error) {
	unlock, err := s.lock(unix.LOCK_SH)
	if err != nil {
		return "", err
	}
	defer unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	name := fmt.Sprintf("data-%s.json", time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
