package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/be-registry/interfaces"
)

// MultiStorageBackend implements interfaces.StorageBackend by replicating
// snapshots to several backends.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Load reads every available backend and returns the snapshot with the
// highest generation. Backends that are reachable but hold an older snapshot,
// or none, are brought up to date with it. Returns ErrSnapshotNotFound only if
// every reachable backend reports no snapshot.
func (m *MultiStorageBackend) Load(ctx context.Context) (*interfaces.Snapshot, error) {
	start := time.Now()
	var errs []error

	type loaded struct {
		backend  interfaces.StorageBackend
		snapshot *interfaces.Snapshot
	}
	var results []loaded
	best := -1

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		snapshot, err := backend.Load(ctx)
		if errors.Is(err, interfaces.ErrSnapshotNotFound) {
			m.log.Debug("No snapshot in backend", slog.String("backend_name", backend.Name()))
			results = append(results, loaded{backend: backend})
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to load from backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		results = append(results, loaded{backend: backend, snapshot: snapshot})
		if best < 0 || newer(snapshot, results[best].snapshot) {
			best = len(results) - 1
		}
	}

	if best < 0 {
		if len(errs) == 0 {
			return nil, interfaces.ErrSnapshotNotFound
		}
		m.log.Error("No backend could load a snapshot",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("all backends failed to load snapshot: %w", errors.Join(errs...))
	}

	bestBackend, bestSnapshot := results[best].backend, results[best].snapshot
	digest, err := bestSnapshot.Digest()
	if err != nil {
		return nil, err
	}

	if len(errs) > 0 {
		m.log.Warn("Loaded snapshot without consulting every backend",
			slog.Int("failed_backends", len(errs)),
			"err", errors.Join(errs...))
	}

	for _, r := range results {
		if r.backend == bestBackend {
			continue
		}
		if r.snapshot != nil && r.snapshot.Generation == bestSnapshot.Generation {
			if other, err := r.snapshot.Digest(); err == nil && other != digest {
				m.log.Warn("Backends hold different snapshots of the same generation",
					slog.String("backend_name", r.backend.Name()),
					slog.String("digest", other.Hex()),
					slog.String("selected_backend", bestBackend.Name()),
					slog.String("selected_digest", digest.Hex()))
			}
			continue
		}

		if err := r.backend.Save(ctx, bestSnapshot); err != nil {
			m.log.Warn("Failed to bring backend up to date",
				slog.String("backend_name", r.backend.Name()),
				"err", err)
			continue
		}
		m.log.Info("Brought backend up to date",
			slog.String("backend_name", r.backend.Name()),
			slog.Uint64("generation", bestSnapshot.Generation))
	}

	m.log.Info("Loaded snapshot",
		slog.String("backend_name", bestBackend.Name()),
		slog.Uint64("generation", bestSnapshot.Generation),
		slog.String("digest", digest.Hex()),
		slog.Int("entities", len(bestSnapshot.Entities)),
		slog.Duration("duration", time.Since(start)))

	return bestSnapshot, nil
}

// newer reports whether a was taken after b.
func newer(a, b *interfaces.Snapshot) bool {
	if a.Generation != b.Generation {
		return a.Generation > b.Generation
	}
	return a.Nonce > b.Nonce
}

// Save writes the snapshot to all available backends.
// It fails only if no backend accepted the snapshot.
func (m *MultiStorageBackend) Save(ctx context.Context, snapshot *interfaces.Snapshot) error {
	start := time.Now()
	var saved int
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		if err := backend.Save(ctx, snapshot); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to save to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		saved++
	}

	if saved == 0 {
		m.log.Error("All backends failed to save snapshot",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("all backends failed to save snapshot: %w", errors.Join(errs...))
	}

	m.log.Debug("Saved snapshot",
		slog.Int("backends", saved),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the combined URIs of the wrapped backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
