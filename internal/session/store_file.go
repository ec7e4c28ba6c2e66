package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/pkg/crypto/sealer"
)

// FileStore keeps the record in a single file with mode 0600.
type FileStore struct {
	path   string
	key    string
	sealer *sealer.Sealer
}

var _ Store = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithSealer encrypts the record at rest.
func WithSealer(s *sealer.Sealer) FileStoreOption {
	return func(f *FileStore) {
		f.sealer = s
	}
}

// WithStorageKey sets the storage key bound into sealed records.
func WithStorageKey(key string) FileStoreOption {
	return func(f *FileStore) {
		f.key = key
	}
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	f := &FileStore{path: path, key: domain.DefaultStorageKey}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the session file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load implements Store. A plaintext record is accepted even when a sealer
// is configured, so enabling encryption does not log the user out.
func (f *FileStore) Load(ctx context.Context) (*domain.PersistedRecord, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	if sealer.IsSealed(data) {
		if f.sealer == nil {
			return nil, domain.ErrCorruptRecord.WithDetails("record is sealed but no key is configured")
		}
		data, err = f.sealer.Open(data, []byte(f.key))
		if err != nil {
			return nil, domain.ErrCorruptRecord.WithCause(err)
		}
	}
	return domain.UnmarshalRecord(data)
}

// Save implements Store. The file is replaced atomically.
func (f *FileStore) Save(ctx context.Context, rec *domain.PersistedRecord) error {
	data, err := domain.MarshalRecord(rec)
	if err != nil {
		return err
	}
	if f.sealer != nil {
		if data, err = f.sealer.Seal(data, []byte(f.key)); err != nil {
			return fmt.Errorf("seal session record: %w", err)
		}
	}
	return writeFileAtomic(f.path, data, 0o600)
}

// Delete implements Store.
func (f *FileStore) Delete(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}
