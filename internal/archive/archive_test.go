package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Shivansh-2508/AI-DB/internal/storage"
)

func TestEncodeDecodeKeepsColumnsAndRows(t *testing.T) {
	data, err := Encode([]string{"month", "count", "note"}, [][]any{
		{"Jan", 5, nil},
		{"Feb", 7.5, "late"},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty parquet payload")
	}

	table, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if strings.Join(table.Columns, ",") != "month,count,note" {
		t.Fatalf("Columns = %#v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Rows = %#v", table.Rows)
	}
	if table.Rows[0][0] != "Jan" || table.Rows[0][1] != json.Number("5") || table.Rows[0][2] != nil {
		t.Fatalf("Rows[0] = %#v", table.Rows[0])
	}
	if table.Rows[1][1] != json.Number("7.5") || table.Rows[1][2] != "late" {
		t.Fatalf("Rows[1] = %#v", table.Rows[1])
	}
}

func TestEncodeDecodeEmptyResultKeepsColumns(t *testing.T) {
	data, err := Encode([]string{"id"}, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	table, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(table.Columns) != 1 || table.Columns[0] != "id" || len(table.Rows) != 0 {
		t.Fatalf("Decode() = %#v", table)
	}
}

func TestEncodeRejectsRaggedRows(t *testing.T) {
	if _, err := Encode([]string{"a", "b"}, [][]any{{1}}); err == nil {
		t.Fatal("expected ragged row error")
	}
	if _, err := Encode(nil, nil); err == nil {
		t.Fatal("expected missing columns error")
	}
}

func TestSaveAndLoadForOwner(t *testing.T) {
	store := newMemoryStore()
	archive := New(store, nil)
	archive.newID = func() string { return "fixed" }

	key, err := archive.Save(context.Background(), "alice", []string{"id"}, [][]any{{1}, {2}})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	want, err := storage.BuildArchivePath("alice", "fixed")
	if err != nil {
		t.Fatalf("BuildArchivePath() error = %v", err)
	}
	if key != want {
		t.Fatalf("Save() key = %q, want %q", key, want)
	}
	if store.contentTypes[key] != "application/vnd.apache.parquet" {
		t.Fatalf("content type = %q", store.contentTypes[key])
	}

	table, err := archive.Load(context.Background(), "alice", key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[1][0] != json.Number("2") {
		t.Fatalf("Load() rows = %#v", table.Rows)
	}
}

func TestLoadRejectsOtherIdentity(t *testing.T) {
	store := newMemoryStore()
	archive := New(store, nil)

	key, err := archive.Save(context.Background(), "alice", []string{"id"}, [][]any{{1}})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := archive.Load(context.Background(), "bob", key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
	if err := archive.Discard(context.Background(), "bob", key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Discard() error = %v, want ErrNotFound", err)
	}
}

func TestLoadMissingObject(t *testing.T) {
	archive := New(newMemoryStore(), nil)
	key, err := storage.BuildArchivePath("alice", "nope")
	if err != nil {
		t.Fatalf("BuildArchivePath() error = %v", err)
	}
	if _, err := archive.Load(context.Background(), "alice", key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestDiscardRemovesObject(t *testing.T) {
	store := newMemoryStore()
	archive := New(store, nil)
	key, err := archive.Save(context.Background(), "alice", []string{"id"}, [][]any{{1}})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := archive.Discard(context.Background(), "alice", key); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, ok := store.objects[key]; ok {
		t.Fatal("object still present after Discard()")
	}
}

func TestSaveSurfacesStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("bucket unavailable")
	archive := New(store, nil)
	if _, err := archive.Save(context.Background(), "alice", []string{"id"}, [][]any{{1}}); err == nil {
		t.Fatal("expected Save() error")
	}
}

type memoryStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	m.contentTypes[key] = opts.ContentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Now().UTC()}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}
