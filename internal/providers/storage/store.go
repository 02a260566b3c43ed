package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/output"
	"github.com/GriffinCanCode/builderbridge/internal/shared/id"
)

const ext = ".json.gz"

// ErrNotFound is returned when a session has no saved document.
var ErrNotFound = errors.New("no saved document")

// Record is one saved builder document.
type Record struct {
	ID        string        `json:"id"`
	SessionID id.SessionID  `json:"session_id"`
	SavedAt   time.Time     `json:"saved_at"`
	Output    output.Output `json:"output"`
}

// Store keeps saved documents as gzip-compressed JSON, one directory per
// session.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates dir if needed and returns a store rooted there.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.Named("storage")}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Save writes out for a session and returns the stored record.
func (s *Store) Save(sessionID id.SessionID, out output.Output) (Record, error) {
	rec := Record{
		ID:        id.Default().GenerateString(),
		SessionID: sessionID,
		SavedAt:   time.Now().UTC(),
		Output:    out,
	}

	dir := filepath.Join(s.dir, sessionID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Record{}, fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".save-*")
	if err != nil {
		return Record{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRecord(tmp, rec); err != nil {
		tmp.Close()
		return Record{}, err
	}
	if err := tmp.Close(); err != nil {
		return Record{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, rec.ID+ext)); err != nil {
		return Record{}, fmt.Errorf("commit document: %w", err)
	}

	s.logger.Debug("Saved builder document",
		zap.String("session_id", sessionID.String()),
		zap.String("record", rec.ID),
		zap.Int("html_bytes", len(out.HTML)),
	)
	return rec, nil
}

func writeRecord(w io.Writer, rec Record) error {
	zw := gzip.NewWriter(w)
	if err := sonic.ConfigStd.NewEncoder(zw).Encode(rec); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress document: %w", err)
	}
	return nil
}

// List returns the record ids of a session, oldest first.
func (s *Store) List(sessionID id.SessionID) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, sessionID.String()))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ext); ok && !e.IsDir() {
			ids = append(ids, name)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Load reads one record.
func (s *Store) Load(sessionID id.SessionID, recordID string) (Record, error) {
	if !id.IsValid(recordID) {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, recordID)
	}
	f, err := os.Open(filepath.Join(s.dir, sessionID.String(), recordID+ext))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return Record{}, fmt.Errorf("decompress document: %w", err)
	}
	defer zr.Close()

	var rec Record
	if err := sonic.ConfigStd.NewDecoder(zr).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode document: %w", err)
	}
	return rec, nil
}

// Latest reads the most recent record of a session.
func (s *Store) Latest(sessionID id.SessionID) (Record, error) {
	ids, err := s.List(sessionID)
	if err != nil {
		return Record{}, err
	}
	if len(ids) == 0 {
		return Record{}, ErrNotFound
	}
	return s.Load(sessionID, ids[len(ids)-1])
}
