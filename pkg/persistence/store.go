package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// RecordSize is the width of one slot record: the longest name plus a terminator.
const RecordSize = ident.MaxNameLen + 1

// DigestSize is the size of the trailing record digest.
const DigestSize = blake2b.Size256

// Store errors.
var (
	ErrCorrupt      = errors.New("persistent record layout corrupt")
	ErrSlotRange    = errors.New("slot out of range")
	ErrInvalidValue = errors.New("invalid record value")
)

// MemoryStore keeps records in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	records [][RecordSize]byte
}

// NewMemoryStore creates a store with the given number of slots.
func NewMemoryStore(slots int) *MemoryStore {
	return &MemoryStore{records: make([][RecordSize]byte, slots)}
}

// LoadString returns the value stored for slot.
func (s *MemoryStore) LoadString(slot int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= len(s.records) {
		return "", ErrSlotRange
	}
	return decodeRecord(s.records[slot][:])
}

// SaveString stores value for slot.
func (s *MemoryStore) SaveString(slot int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= len(s.records) {
		return ErrSlotRange
	}
	rec, err := encodeRecord(value)
	if err != nil {
		return err
	}
	s.records[slot] = rec
	return nil
}

// FileStore keeps records in a single file.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records [][RecordSize]byte
	loaded  bool
	loadErr error
}

// NewFileStore creates a store backed by path with the given number of slots.
// The file is read lazily on first access.
func NewFileStore(path string, slots int) *FileStore {
	return &FileStore{
		path:    path,
		records: make([][RecordSize]byte, slots),
	}
}

// LoadString returns the value stored for slot.
// A missing file reads as all slots free.
func (s *FileStore) LoadString(slot int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	if slot < 0 || slot >= len(s.records) {
		return "", ErrSlotRange
	}
	return decodeRecord(s.records[slot][:])
}

// SaveString stores value for slot and rewrites the file.
func (s *FileStore) SaveString(slot int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= len(s.records) {
		return ErrSlotRange
	}
	rec, err := encodeRecord(value)
	if err != nil {
		return err
	}
	if err := s.ensureLoaded(); err != nil {
		// Overwrite a corrupt file with a fresh, empty table.
		s.records = make([][RecordSize]byte, len(s.records))
		s.loadErr = nil
	}
	s.records[slot] = rec
	return s.write()
}

// Clear removes the backing file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([][RecordSize]byte, len(s.records))
	s.loaded = true
	s.loadErr = nil

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) ensureLoaded() error {
	if s.loaded {
		return s.loadErr
	}
	s.loaded = true
	s.loadErr = s.read()
	return s.loadErr
}

func (s *FileStore) read() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	want := len(s.records)*RecordSize + DigestSize
	if len(data) != want {
		return fmt.Errorf("%w: file is %d bytes, want %d", ErrCorrupt, len(data), want)
	}
	body := data[:len(data)-DigestSize]
	sum := blake2b.Sum256(body)
	if !bytes.Equal(sum[:], data[len(data)-DigestSize:]) {
		return fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	for i := range s.records {
		copy(s.records[i][:], body[i*RecordSize:(i+1)*RecordSize])
	}
	return nil
}

func (s *FileStore) write() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	body := make([]byte, 0, len(s.records)*RecordSize+DigestSize)
	for i := range s.records {
		body = append(body, s.records[i][:]...)
	}
	sum := blake2b.Sum256(body)
	body = append(body, sum[:]...)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func encodeRecord(value string) ([RecordSize]byte, error) {
	var rec [RecordSize]byte
	if len(value) > ident.MaxNameLen {
		return rec, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidValue, ident.MaxNameLen)
	}
	if bytes.IndexByte([]byte(value), 0) >= 0 {
		return rec, fmt.Errorf("%w: contains NUL", ErrInvalidValue)
	}
	copy(rec[:], value)
	return rec, nil
}

// decodeRecord returns the NUL-terminated value of a record. A record with
// bytes after its terminator is corrupt.
func decodeRecord(rec []byte) (string, error) {
	end := bytes.IndexByte(rec, 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated record", ErrCorrupt)
	}
	for _, b := range rec[end:] {
		if b != 0 {
			return "", fmt.Errorf("%w: garbage after terminator", ErrCorrupt)
		}
	}
	return string(rec[:end]), nil
}
