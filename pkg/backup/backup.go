// Package backup writes versioned, gzip compressed JSON snapshots to a
// pluggable Storage and manages their lifetime.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

const (
	timeLayout = "20060102-150405"
	extension  = ".json.gz"
)

// Snapshot is the envelope stored for every backup
type Snapshot struct {
	Version   string            `json:"version"`
	Kind      string            `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
}

// Decode unmarshals the payload into v
func (s *Snapshot) Decode(v any) error {
	return json.Unmarshal(s.Payload, v)
}

// Storage defines interface for backup storage
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Service handles backup operations
type Service struct {
	storage Storage
	version string
	now     func() time.Time
}

// NewService creates a new backup service
func NewService(storage Storage, version string) *Service {
	return &Service{
		storage: storage,
		version: version,
		now:     time.Now,
	}
}

// Name returns the object name for a snapshot of kind taken at ts
func Name(kind string, ts time.Time) string {
	return fmt.Sprintf("%s-%s%s", kind, ts.UTC().Format(timeLayout), extension)
}

// ParseName extracts kind and timestamp from a name produced by Name
func ParseName(name string) (string, time.Time, error) {
	base, ok := strings.CutSuffix(name, extension)
	if !ok || len(base) < len(timeLayout)+2 {
		return "", time.Time{}, fmt.Errorf("not a backup name: %q", name)
	}
	cut := len(base) - len(timeLayout)
	if base[cut-1] != '-' {
		return "", time.Time{}, fmt.Errorf("not a backup name: %q", name)
	}
	ts, err := time.Parse(timeLayout, base[cut:])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("bad timestamp in %q: %w", name, err)
	}
	return base[:cut-1], ts, nil
}

// Create stores payload as a new snapshot of kind and returns its name
func (s *Service) Create(ctx context.Context, kind string, payload any, metadata map[string]string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	snap := Snapshot{
		Version:   s.version,
		Kind:      kind,
		Timestamp: s.now().UTC(),
		Metadata:  metadata,
		Payload:   raw,
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress snapshot: %w", err)
	}

	name := Name(kind, snap.Timestamp)
	if err := s.storage.Save(ctx, name, &buf); err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}
	return name, nil
}

// Restore loads the snapshot stored under name
func (s *Service) Restore(ctx context.Context, name string) (*Snapshot, error) {
	r, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup: %w", err)
	}
	defer r.Close()

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup %s: %w", name, err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode backup %s: %w", name, err)
	}
	if snap.Version == "" {
		return nil, fmt.Errorf("invalid backup %s: missing version", name)
	}
	return &snap, nil
}

// List returns the snapshots of kind, oldest first
func (s *Service) List(ctx context.Context, kind string) ([]string, error) {
	names, err := s.storage.List(ctx, kind+"-")
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if k, _, err := ParseName(n); err == nil && k == kind {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the newest snapshot name of kind, or "" when there is none
func (s *Service) Latest(ctx context.Context, kind string) (string, error) {
	names, err := s.List(ctx, kind)
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[len(names)-1], nil
}

// DeleteBefore removes snapshots of kind taken before cutoff and returns
// their names.
func (s *Service) DeleteBefore(ctx context.Context, kind string, cutoff time.Time) ([]string, error) {
	names, err := s.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var deleted []string
	for _, n := range names {
		_, ts, err := ParseName(n)
		if err != nil || !ts.Before(cutoff) {
			continue
		}
		if err := s.storage.Delete(ctx, n); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", n, err)
		}
		deleted = append(deleted, n)
	}
	return deleted, nil
}
