package service

import (
	"bitwise74/audio-api/model"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Files younger than this are never swept. An ingest that has
// transcoded but not yet indexed owns exactly such a file, and the
// sweep must not pull it out from under the Create that follows
const sweepGrace = 15 * time.Minute

// StorageSweep periodically walks the uploads root and removes
// canonical files that no index record references anymore. Deletes
// drop the record before the file, so a crash in between can only
// leave files behind, which is exactly what this collects
func StorageSweep(t time.Duration, db *gorm.DB, storage *Storage) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Storage sweep attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			SweepOnce(db, storage)
		}
	}()
}

// SweepOnce runs a single reconciliation pass
func SweepOnce(db *gorm.DB, storage *Storage) {
	var indexed []string

	err := db.
		Model(model.Asset{}).
		Pluck("storage_path", &indexed).
		Error
	if err != nil {
		zap.L().Error("Failed to query db for indexed paths", zap.Error(err))
		return
	}

	removed := 0

	err = filepath.WalkDir(storage.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		// Raw files that never finished transcoding are kept for
		// inspection, only canonical files are reconciled
		if !strings.HasSuffix(path, canonicalExt) {
			return nil
		}

		if slices.Contains(indexed, path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		// Too fresh, may belong to an ingest racing this tick
		if time.Since(info.ModTime()) < sweepGrace {
			return nil
		}

		if err := os.Remove(path); err != nil {
			zap.L().Error("Failed to remove orphaned file",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil
		}

		removed++
		return nil
	})
	if err != nil {
		zap.L().Error("Storage sweep failed", zap.Error(err))
		return
	}

	if removed > 0 {
		zap.L().Info("Storage sweep removed orphaned files", zap.Int("count", removed))
	}
}
