package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vboughner/brain-lambda/internal/memory"
)

const (
	memoriesDir    = "memories"
	reportsDir     = "reports"
	identitiesFile = "identities.json"
)

// FileStorage implements Driver with one JSON file per owner
type FileStorage struct {
	baseDir string
	mu      sync.RWMutex
	Now     Clock
}

type identityLink struct {
	OwnerID  string `json:"ownerId"`
	DeviceID string `json:"deviceId"`
	LinkedAt int64  `json:"linkedAt"`
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		baseDir = "./data"
	}
	for _, dir := range []string{baseDir, filepath.Join(baseDir, memoriesDir), filepath.Join(baseDir, reportsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &FileStorage{
		baseDir: baseDir,
		Now:     time.Now,
	}, nil
}

func (fs *FileStorage) Load(ctx context.Context, ownerID string) ([]memory.Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.readOwner(ownerID)
}

func (fs *FileStorage) Store(ctx context.Context, rec memory.Record) (memory.Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	records, err := fs.readOwner(rec.OwnerID)
	if err != nil {
		return memory.Record{}, err
	}
	var latest int64
	if len(records) > 0 {
		latest = records[len(records)-1].StoredAt
	}
	rec.StoredAt = nextStoredAt(fs.Now(), latest)
	records = append(records, rec)

	if err := fs.writeOwner(rec.OwnerID, records); err != nil {
		return memory.Record{}, err
	}
	return rec, nil
}

func (fs *FileStorage) UpdateText(ctx context.Context, ownerID string, storedAt int64, text string) (memory.Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	records, err := fs.readOwner(ownerID)
	if err != nil {
		return memory.Record{}, err
	}
	for i := range records {
		if records[i].StoredAt == storedAt {
			records[i].Text = text
			if err := fs.writeOwner(ownerID, records); err != nil {
				return memory.Record{}, err
			}
			return records[i], nil
		}
	}
	return memory.Record{}, ErrNotFound
}

func (fs *FileStorage) EraseOne(ctx context.Context, ownerID string, storedAt int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	records, err := fs.readOwner(ownerID)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].StoredAt == storedAt {
			return fs.writeOwner(ownerID, append(records[:i], records[i+1:]...))
		}
	}
	return ErrNotFound
}

func (fs *FileStorage) EraseAll(ctx context.Context, ownerID string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	records, err := fs.readOwner(ownerID)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(fs.ownerPath(ownerID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("failed to remove memories: %w", err)
	}
	return len(records), nil
}

func (fs *FileStorage) LoadEverything(ctx context.Context) ([]memory.Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	files, err := os.ReadDir(filepath.Join(fs.baseDir, memoriesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	var everything []memory.Record
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var records []memory.Record
		if err := readJSON(filepath.Join(fs.baseDir, memoriesDir, file.Name()), &records); err != nil {
			return nil, err
		}
		everything = append(everything, records...)
	}
	return everything, nil
}

func (fs *FileStorage) LinkedOwner(ctx context.Context, userID string) (string, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	links, err := fs.readIdentities()
	if err != nil {
		return "", false, err
	}
	link, ok := links[userID]
	return link.OwnerID, ok, nil
}

func (fs *FileStorage) Link(ctx context.Context, userID, ownerID, deviceID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	links, err := fs.readIdentities()
	if err != nil {
		return err
	}
	links[userID] = identityLink{OwnerID: ownerID, DeviceID: deviceID, LinkedAt: fs.Now().UnixMilli()}
	return writeJSON(filepath.Join(fs.baseDir, identitiesFile), links)
}

func (fs *FileStorage) StoreReport(ctx context.Context, entry ReportEntry) (ReportEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry.StoredAt = fs.Now().UnixMilli()
	name := fmt.Sprintf("%d_%s", entry.StoredAt, safeFilename(entry.OwnerID))
	if err := writeJSON(filepath.Join(fs.baseDir, reportsDir, name), entry); err != nil {
		return ReportEntry{}, err
	}
	return entry, nil
}

func (fs *FileStorage) LoadReports(ctx context.Context) ([]ReportEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	files, err := os.ReadDir(filepath.Join(fs.baseDir, reportsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	var entries []ReportEntry
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var entry ReportEntry
		if err := readJSON(filepath.Join(fs.baseDir, reportsDir, file.Name()), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StoredAt < entries[j].StoredAt
	})
	return entries, nil
}

// Close is a no-op for file storage
func (fs *FileStorage) Close() error {
	return nil
}

func (fs *FileStorage) ownerPath(ownerID string) string {
	return filepath.Join(fs.baseDir, memoriesDir, safeFilename(ownerID))
}

func (fs *FileStorage) readOwner(ownerID string) ([]memory.Record, error) {
	var records []memory.Record
	err := readJSON(fs.ownerPath(ownerID), &records)
	if errors.Is(err, os.ErrNotExist) {
		return []memory.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StoredAt < records[j].StoredAt
	})
	return records, nil
}

func (fs *FileStorage) writeOwner(ownerID string, records []memory.Record) error {
	if len(records) == 0 {
		if err := os.Remove(fs.ownerPath(ownerID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove memories: %w", err)
		}
		return nil
	}
	return writeJSON(fs.ownerPath(ownerID), records)
}

func (fs *FileStorage) readIdentities() (map[string]identityLink, error) {
	links := make(map[string]identityLink)
	err := readJSON(filepath.Join(fs.baseDir, identitiesFile), &links)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return links, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// safeFilename keeps alphanumerics readable and appends a hash so that
// different ids never share a file
func safeFilename(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return fmt.Sprintf("%s-%08x.json", b.String(), h.Sum32())
}
