// Package persistence writes subsystem snapshots as JSON documents with
// write-then-replace semantics and a backup restore path on load.
package persistence

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Outcome describes how a Load ended.
type Outcome int

const (
	OutcomeLoaded Outcome = iota
	OutcomeFresh
	OutcomeRecovered
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFresh:
		return "fresh"
	case OutcomeRecovered:
		return "recovered"
	default:
		return "empty"
	}
}

// Store is one document on disk.
type Store struct {
	path string
	now  func() time.Time
}

func NewStore(dir, name string) *Store {
	return &Store{path: filepath.Join(dir, name), now: time.Now}
}

func (s *Store) Path() string       { return s.path }
func (s *Store) backupPath() string { return s.path + ".bak" }
func (s *Store) tmpPath() string    { return s.path + ".tmp" }

// Save replaces the document atomically. The previous version is kept as
// the backup. The temp file never survives a failed save.
func (s *Store) Save(v interface{}) (err error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(s.path), err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if _, statErr := os.Stat(s.path); statErr == nil {
		if err := copyFile(s.path, s.backupPath()); err != nil {
			return fmt.Errorf("backup %s: %w", filepath.Base(s.path), err)
		}
	}

	tmp := s.tmpPath()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open temp: %w", err)
	}
	if _, err = f.Write(raw); err != nil {
		f.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(s.path), err)
	}
	return nil
}

// Load decodes the document into v. A missing file is a fresh start. A
// corrupt file falls back to the backup; when that fails too, the corrupt
// file is set aside, v is left untouched and the returned error describes
// the failure.
func (s *Store) Load(v interface{}) (Outcome, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return OutcomeFresh, nil
	}
	if err == nil {
		if err = decode(raw, v); err == nil {
			return OutcomeLoaded, nil
		}
	}
	primaryErr := err

	if braw, berr := os.ReadFile(s.backupPath()); berr == nil {
		if berr = decode(braw, v); berr == nil {
			return OutcomeRecovered, nil
		}
	}

	corrupt := s.path + ".CORRUPT_" + strconv.FormatInt(s.now().Unix(), 10)
	if cerr := copyFile(s.path, corrupt); cerr != nil && !errors.Is(cerr, os.ErrNotExist) {
		primaryErr = fmt.Errorf("%w (preserve corrupt copy: %v)", primaryErr, cerr)
	}
	return OutcomeEmpty, fmt.Errorf("load %s: %w", filepath.Base(s.path), primaryErr)
}

// decode fills v only when raw decodes completely, so a document that
// fails halfway leaves none of its fields behind.
func decode(raw []byte, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("decode into %T: not a pointer", v)
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
