package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
)

const ArchiveRoot = "results"

const (
	ownerDigestBytes = 12
	maxOwnerLabel    = 64
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	unsafeRunePattern    = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// BuildArchivePath returns results/<identity>/<objectID>.parquet. The identity
// is reduced to a safe path component; objectID must already be one.
func BuildArchivePath(identity, objectID string) (string, error) {
	owner, err := ArchiveOwnerComponent(identity)
	if err != nil {
		return "", err
	}
	if err := validatePathComponent(objectID, "object id"); err != nil {
		return "", err
	}
	return path.Join(ArchiveRoot, owner, objectID+".parquet"), nil
}

// ArchiveOwnerComponent maps an identity onto the directory that holds its
// archived results: a readable label followed by a digest of the exact identity,
// so identities that reduce to the same label still get separate directories.
func ArchiveOwnerComponent(identity string) (string, error) {
	trimmed := strings.TrimSpace(identity)
	if trimmed == "" {
		return "", fmt.Errorf("invalid identity: %q", identity)
	}
	sum := sha256.Sum256([]byte(trimmed))
	digest := hex.EncodeToString(sum[:ownerDigestBytes])

	label := strings.Trim(unsafeRunePattern.ReplaceAllString(trimmed, "_"), "._-")
	if len(label) > maxOwnerLabel {
		label = label[:maxOwnerLabel]
	}
	owner := digest
	if label != "" {
		owner = label + "-" + digest
	}
	if err := validatePathComponent(owner, "identity"); err != nil {
		return "", err
	}
	return owner, nil
}

// ArchivePathOwnedBy reports whether key lives under the identity's archive
// directory.
func ArchivePathOwnedBy(key, identity string) bool {
	owner, err := ArchiveOwnerComponent(identity)
	if err != nil {
		return false
	}
	cleaned := path.Clean(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	dir, file := path.Split(cleaned)
	return dir == ArchiveRoot+"/"+owner+"/" && strings.HasSuffix(file, ".parquet")
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
