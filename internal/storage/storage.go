package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vboughner/brain-lambda/internal/memory"
	"github.com/vboughner/brain-lambda/internal/report"
)

// ErrNotFound is returned for missing memories
var ErrNotFound = memory.ErrNotFound

// MemoryStore persists memories per owner
type MemoryStore interface {
	// Load returns the owner's memories, oldest first
	Load(ctx context.Context, ownerID string) ([]memory.Record, error)
	// Store saves rec with a fresh StoredAt, strictly greater than any earlier one for the owner
	Store(ctx context.Context, rec memory.Record) (memory.Record, error)
	UpdateText(ctx context.Context, ownerID string, storedAt int64, text string) (memory.Record, error)
	EraseOne(ctx context.Context, ownerID string, storedAt int64) error
	// EraseAll deletes every memory of the owner and returns how many were removed
	EraseAll(ctx context.Context, ownerID string) (int, error)
	LoadEverything(ctx context.Context) ([]memory.Record, error)
}

// IdentityStore links user ids issued by different assistants to one owner
type IdentityStore interface {
	// LinkedOwner returns the owner id linked to userID, if any
	LinkedOwner(ctx context.Context, userID string) (string, bool, error)
	Link(ctx context.Context, userID, ownerID, deviceID string) error
}

// ReportEntry is a compiled report kept for later reference
type ReportEntry struct {
	OwnerID       string        `json:"userId"`
	DeviceID      string        `json:"deviceId"`
	StoredAt      int64         `json:"whenStored"`
	ServerVersion string        `json:"serverVersion"`
	Report        report.Report `json:"report"`
}

type ReportStore interface {
	StoreReport(ctx context.Context, entry ReportEntry) (ReportEntry, error)
	LoadReports(ctx context.Context) ([]ReportEntry, error)
}

// Driver is everything the engine needs from persistence
type Driver interface {
	MemoryStore
	IdentityStore
	ReportStore
	Close() error
}

// Clock returns the current time
type Clock func() time.Time

// Options selects and configures a driver
type Options struct {
	Driver string // file, sqlite or postgres
	Dir    string
	DSN    string
	Clock  Clock
}

// Open creates the driver named in opts
func Open(opts Options) (Driver, error) {
	switch opts.Driver {
	case "", "file":
		fs, err := NewFileStorage(opts.Dir)
		if err != nil {
			return nil, err
		}
		if opts.Clock != nil {
			fs.Now = opts.Clock
		}
		return fs, nil
	case "sqlite":
		path := opts.DSN
		if path == "" && opts.Dir != "" {
			path = filepath.Join(opts.Dir, "brain.db")
		}
		return NewSQLite(path, opts.Clock)
	case "postgres":
		return NewPostgres(opts.DSN, opts.Clock)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// nextStoredAt keeps StoredAt unique and increasing within an owner
func nextStoredAt(now time.Time, latest int64) int64 {
	ms := now.UnixMilli()
	if ms <= latest {
		return latest + 1
	}
	return ms
}
