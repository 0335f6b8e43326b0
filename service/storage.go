package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const canonicalExt = ".mp3"

// Suffix appended to uploads whose name already carries the canonical
// extension, so the raw file never occupies the transcode target path
const rawSuffix = ".raw"

// Storage maps owners and filenames to locations under the uploads
// root. All paths it hands out are deterministic, so the same owner
// and filename always resolve to the same place
type Storage struct {
	Root string
}

func NewStorage(root string) *Storage {
	return &Storage{Root: root}
}

// OwnerDir returns the owner's directory, creating it if needed.
// An already existing directory is fine
func (s *Storage) OwnerDir(ownerID string) (string, error) {
	dir := filepath.Join(s.Root, ownerID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner directory, %w", err)
	}

	return dir, nil
}

// RawPath is where the uploaded bytes land before transcoding
func (s *Storage) RawPath(ownerID, filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), canonicalExt) {
		base += rawSuffix
	}

	return filepath.Join(s.Root, ownerID, base)
}

// CanonicalPath is the final location of the transcoded file, the raw
// path with its extension swapped for the canonical one
func (s *Storage) CanonicalPath(ownerID, filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + canonicalExt

	return filepath.Join(s.Root, ownerID, base)
}

// DisplayName turns a storage path back into a name safe to show to
// users, relative to the uploads root
func (s *Storage) DisplayName(storagePath string) string {
	rel, err := filepath.Rel(s.Root, storagePath)
	if err != nil {
		return filepath.Base(storagePath)
	}

	return filepath.ToSlash(rel)
}
