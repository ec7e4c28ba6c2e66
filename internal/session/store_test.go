package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/storage"
	"github.com/yndnr/unitrack-go/pkg/crypto/sealer"
)

func testRecord() *domain.PersistedRecord {
	return &domain.PersistedRecord{
		Data:         testUser(),
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestSealer(t *testing.T) *sealer.Sealer {
	t.Helper()

	s, err := sealer.NewFromSecret([]byte("correct horse battery staple"), "session", "")
	if err != nil {
		t.Fatalf("NewFromSecret() error = %v", err)
	}
	return s
}

// TestStores_Contract runs the same round trip against every store.
func TestStores_Contract(t *testing.T) {
	_, rdb := newTestRedis(t)

	kv, err := storage.NewBadgerEngine(storage.KVConfig{InMemory: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "session.json")),
		"sealed": NewFileStore(filepath.Join(t.TempDir(), "session.bin"), WithSealer(newTestSealer(t))),
		"badger": NewBadgerStore(kv, ""),
		"redis":  NewRedisStore(rdb, "", ""),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec, err := store.Load(ctx)
			if err != nil || rec != nil {
				t.Fatalf("Load() on empty store = %v, %v; want nil, nil", rec, err)
			}

			if err := store.Save(ctx, testRecord()); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			rec, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if rec.AccessToken != "access-1" || rec.RefreshToken != "refresh-1" ||
				rec.Data == nil || rec.Data.ID != "u-1" || rec.Data.Role != "teacher" {
				t.Errorf("round trip mismatch: %+v", rec)
			}

			if err := store.Delete(ctx); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if rec, _ := store.Load(ctx); rec != nil {
				t.Errorf("Load() after Delete = %+v, want nil", rec)
			}
			if err := store.Delete(ctx); err != nil {
				t.Errorf("second Delete() error = %v", err)
			}
		})
	}
}

func TestFileStore_LayoutAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	if err := store.Save(context.Background(), testRecord()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	data, _ := os.ReadFile(path)
	rec, err := domain.UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("file is not a plain record: %v", err)
	}
	if rec.Data.Email != "asha@unitrack.test" {
		t.Errorf("data.email = %q", rec.Data.Email)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileStore_Sealed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.bin")
	ctx := context.Background()
	s := newTestSealer(t)

	if err := NewFileStore(path, WithSealer(s)).Save(ctx, testRecord()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !sealer.IsSealed(data) {
		t.Fatal("record was not sealed")
	}

	t.Run("no key", func(t *testing.T) {
		_, err := NewFileStore(path).Load(ctx)
		if !errors.Is(err, domain.ErrCorruptRecord) {
			t.Errorf("Load() without sealer error = %v, want ErrCorruptRecord", err)
		}
	})

	t.Run("different storage key", func(t *testing.T) {
		_, err := NewFileStore(path, WithSealer(s), WithStorageKey("other.session")).Load(ctx)
		if !errors.Is(err, domain.ErrCorruptRecord) {
			t.Errorf("Load() with other key error = %v, want ErrCorruptRecord", err)
		}
	})

	t.Run("plaintext accepted", func(t *testing.T) {
		plain := filepath.Join(dir, "plain.json")
		if err := NewFileStore(plain).Save(ctx, testRecord()); err != nil {
			t.Fatal(err)
		}
		rec, err := NewFileStore(plain, WithSealer(s)).Load(ctx)
		if err != nil || rec == nil || rec.AccessToken != "access-1" {
			t.Errorf("Load() plaintext with sealer = %+v, %v", rec, err)
		}
	})
}

func TestFileStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	rec, err := NewFileStore(path).Load(context.Background())
	if err != nil || rec != nil {
		t.Errorf("Load() of empty file = %v, %v; want nil, nil", rec, err)
	}
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	store := NewRedisStore(rdb, "campus", "unitrack.session", WithTTL(time.Hour))
	if store.Key() != "campus:unitrack.session" {
		t.Fatalf("Key() = %q", store.Key())
	}
	if err := store.Save(ctx, testRecord()); err != nil {
		t.Fatal(err)
	}

	if !mr.Exists("campus:unitrack.session") {
		t.Fatal("record not written under the prefixed key")
	}
	if ttl := mr.TTL("campus:unitrack.session"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if rec, err := store.Load(ctx); err != nil || rec != nil {
		t.Errorf("Load() after expiry = %v, %v", rec, err)
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	m := NewManager(NewRedisStore(rdb, "", ""))
	err := m.Hydrate(context.Background())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("Hydrate() with Redis down error = %v, want ErrStoreUnavailable", err)
	}
}
