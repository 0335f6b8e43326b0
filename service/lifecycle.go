package service

import (
	"bitwise74/audio-api/model"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Manager drives an asset through its whole life: ingest, link
// resolution, listing and deletion. It is the only code that touches
// the filesystem and the index together
type Manager struct {
	Storage    *Storage
	Transcoder Transcoder
	Index      *Index

	// Serializes ingests and deletes per owner. The duplicate check
	// and the write that follows it are not atomic on their own, two
	// concurrent uploads of the same filename could both pass the
	// check and clobber each other without this
	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

func NewManager(storage *Storage, transcoder Transcoder, index *Index) *Manager {
	return &Manager{
		Storage:    storage,
		Transcoder: transcoder,
		Index:      index,
		owners:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) ownerLock(ownerID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.owners[ownerID]
	if !ok {
		l = &sync.Mutex{}
		m.owners[ownerID] = l
	}

	return l
}

// Ingest stores the uploaded bytes, transcodes them, indexes the
// result and returns a record link for it. Nothing is indexed until
// the canonical file exists, so a failure at any earlier step never
// leaves a record pointing at nothing
func (m *Manager) Ingest(ctx context.Context, ownerID, filename string, r io.Reader, host string) (string, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	canonical := m.Storage.CanonicalPath(ownerID, filename)

	links, err := m.Index.ListLinksForOwner(ownerID)
	if err != nil {
		return "", fmt.Errorf("failed to list owner links, %w", err)
	}

	if slices.Contains(links, canonical) {
		return "", ErrDuplicateAsset
	}

	if _, err := m.Storage.OwnerDir(ownerID); err != nil {
		return "", err
	}

	rawPath := m.Storage.RawPath(ownerID, filename)

	if err := writeFile(rawPath, r); err != nil {
		return "", err
	}

	outPath, err := m.Transcoder.Transcode(ctx, rawPath)
	if err != nil {
		// Raw file stays on disk for inspection or a retry
		return "", err
	}

	asset, err := m.Index.Create(ownerID, outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create asset record, %w", err)
	}

	zap.L().Debug("Asset ingested",
		zap.String("id", asset.ID),
		zap.String("owner_id", ownerID),
		zap.String("path", outPath),
	)

	return EncodeRecordURL(asset.ID, ownerID, host), nil
}

// ResolveLink decodes a record link and returns the backing file path
// together with a display name. A malformed link, a missing record and
// a record owned by someone else all come back as ErrNotFound
func (m *Manager) ResolveLink(link string) (path, displayName string, err error) {
	assetID, ownerID, err := DecodeRecordURL(link)
	if err != nil {
		return "", "", ErrNotFound
	}

	asset, err := m.Index.FindByOwnerAndID(ownerID, assetID)
	if err != nil {
		return "", "", fmt.Errorf("failed to look up asset, %w", err)
	}

	if asset == nil {
		return "", "", ErrNotFound
	}

	return asset.StoragePath, m.Storage.DisplayName(asset.StoragePath), nil
}

// RecordURL pairs a display name with its link
type RecordURL struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// ListAllWithLinks returns a record link for every asset in the index
func (m *Manager) ListAllWithLinks(host string) ([]RecordURL, error) {
	assets, err := m.Index.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list assets, %w", err)
	}

	urls := make([]RecordURL, 0, len(assets))
	for _, a := range assets {
		urls = append(urls, RecordURL{
			Name: m.Storage.DisplayName(a.StoragePath),
			Link: EncodeRecordURL(a.ID, a.OwnerID, host),
		})
	}

	return urls, nil
}

// DeleteAsAdmin removes any asset by id, record first and file second.
// A crash in between leaves an orphaned file which the sweep collects,
// never an index row pointing at a missing file
func (m *Manager) DeleteAsAdmin(assetID string) ([]model.Asset, error) {
	asset, err := m.Index.FindByID(assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up asset, %w", err)
	}

	if asset == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, assetID)
	}

	return m.removeAsset(asset, func() ([]model.Asset, error) {
		return m.Index.DeleteByID(assetID)
	})
}

// DeleteAsOwner removes an asset only if the owner actually owns it.
// Someone else's asset id behaves like an absent one
func (m *Manager) DeleteAsOwner(assetID, ownerID string) ([]model.Asset, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	asset, err := m.Index.FindByOwnerAndID(ownerID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up asset, %w", err)
	}

	if asset == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, assetID)
	}

	return m.removeAsset(asset, func() ([]model.Asset, error) {
		return m.Index.DeleteByOwnerAndID(ownerID, assetID)
	})
}

func (m *Manager) removeAsset(asset *model.Asset, del func() ([]model.Asset, error)) ([]model.Asset, error) {
	deleted, err := del()
	if err != nil {
		return nil, fmt.Errorf("failed to delete asset record, %w", err)
	}

	if err := os.Remove(asset.StoragePath); err != nil && !os.IsNotExist(err) {
		// Not fatal, the reconciliation sweep will pick the file up
		zap.L().Warn("Failed to remove asset file",
			zap.String("id", asset.ID),
			zap.String("path", asset.StoragePath),
			zap.Error(err),
		)
	}

	return deleted, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create raw file, %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write raw file, %w", err)
	}

	return f.Close()
}
