package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by a Store when no record exists for an identifier.
var ErrNotFound = errors.New("cache record not found")

// Store persists opaque records by identifier. Implementations must make Save
// an atomic replace: a concurrent Load observes either the old or the new
// record, never a mix.
type Store interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte) error
}

// FileStore keeps one JSON file per record in a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a store rooted at dir on the given filesystem.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

// NewOSFileStore creates a store on the local disk.
func NewOSFileStore(dir string) *FileStore {
	return NewFileStore(afero.NewOsFs(), dir)
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads the record file for id.
func (s *FileStore) Load(_ context.Context, id string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading cache record %s: %w", id, err)
	}
	return data, nil
}

// Save writes to a temporary file and renames it over the record file.
func (s *FileStore) Save(_ context.Context, id string, data []byte) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("closing temp record: %w", err)
	}

	if err := s.fs.Rename(tmpName, s.path(id)); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replacing cache record %s: %w", id, err)
	}
	return nil
}

// DatastoreStore keeps records in a go-datastore backend.
type DatastoreStore struct {
	ds ds.Datastore
}

// NewDatastoreStore wraps an existing datastore.
func NewDatastoreStore(d ds.Datastore) *DatastoreStore {
	return &DatastoreStore{ds: d}
}

// NewMemoryStore returns a process-local store backed by a synchronized map datastore.
func NewMemoryStore() *DatastoreStore {
	return NewDatastoreStore(dssync.MutexWrap(ds.NewMapDatastore()))
}

// Load fetches the record for id.
func (s *DatastoreStore) Load(ctx context.Context, id string) ([]byte, error) {
	data, err := s.ds.Get(ctx, ds.NewKey(id))
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save replaces the record for id.
func (s *DatastoreStore) Save(ctx context.Context, id string, data []byte) error {
	// datastores may retain the slice
	buf := make([]byte, len(data))
	copy(buf, data)
	return s.ds.Put(ctx, ds.NewKey(id), buf)
}
