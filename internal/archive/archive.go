package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/storage"
)

var ErrNotFound = errors.New("archived result not found")

// Archive stores read results in object storage, one Parquet object per
// result under the owning identity's directory.
type Archive struct {
	store  storage.ObjectStore
	logger *slog.Logger
	newID  func() string
}

func New(store storage.ObjectStore, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		store:  store,
		logger: logger,
		newID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Save encodes the result set and returns the object key it was written to.
func (a *Archive) Save(ctx context.Context, identity string, columns []string, rows [][]any) (key string, err error) {
	defer func() { observability.ObserveArchiveWrite(err) }()

	key, err = storage.BuildArchivePath(identity, a.newID())
	if err != nil {
		return "", err
	}
	data, err := Encode(columns, rows)
	if err != nil {
		return "", err
	}
	if _, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: storage.ParquetContentType}); err != nil {
		return "", fmt.Errorf("store archived result: %w", err)
	}
	a.logger.Debug("result archived", slog.String("identity", identity), slog.String("key", key), slog.Int("rows", len(rows)))
	return key, nil
}

// Load restores an archived result. Keys outside the identity's directory
// report ErrNotFound.
func (a *Archive) Load(ctx context.Context, identity, key string) (Table, error) {
	if !storage.ArchivePathOwnedBy(key, identity) {
		return Table{}, ErrNotFound
	}
	info, err := a.store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Table{}, ErrNotFound
		}
		return Table{}, fmt.Errorf("stat archived result: %w", err)
	}
	if info.Size > storage.MaxArchiveObjectBytes {
		return Table{}, fmt.Errorf("archived result is %d bytes, limit is %d", info.Size, storage.MaxArchiveObjectBytes)
	}

	reader, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Table{}, ErrNotFound
		}
		return Table{}, fmt.Errorf("get archived result: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(io.LimitReader(reader, storage.MaxArchiveObjectBytes+1))
	if err != nil {
		return Table{}, fmt.Errorf("read archived result: %w", err)
	}
	return Decode(data)
}

// Discard removes an archived result; used when the turn referencing it
// could not be recorded.
func (a *Archive) Discard(ctx context.Context, identity, key string) error {
	if !storage.ArchivePathOwnedBy(key, identity) {
		return ErrNotFound
	}
	return a.store.Delete(ctx, key)
}
