// Package discovery implements the front-end's session enumeration
// and repair pass described in spec §4.4: scan on-disk metadata,
// probe sockets for live hosts, and reconcile records that no longer
// match reality.
package discovery

import (
	"context"
	"net"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/metadata"
	"github.com/artpar/sesh/internal/paths"
)

var log = logging.WithComponent("discovery")

// staleExitedAge is how long an exited session's metadata is kept
// around for display before housekeeping deletes it (spec §3: "≥ 1
// hour post-exit").
const staleExitedAge = time.Hour

// probeTimeout bounds how long a liveness probe connection may take.
const probeTimeout = 300 * time.Millisecond

// Session is one reconciled session record ready for display.
type Session struct {
	Metadata *metadata.Metadata
}

// Scan loads every session record, probes the ones claiming to be
// running, and repairs metadata/sockets that have drifted from
// reality. It returns the reconciled set, newest first order not
// guaranteed.
func Scan(ctx context.Context) ([]Session, error) {
	store, err := metadata.NewStore(paths.SessionsDir())
	if err != nil {
		return nil, err
	}

	entries, err := store.LoadAll()
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(entries))
	var toProbe []*metadata.Metadata

	for _, e := range entries {
		if e.Err != nil {
			log.Warn("dropping corrupt metadata", logging.F("id", e.ID, "error", e.Err.Error()))
			store.Remove(e.ID)
			continue
		}
		m := e.Metadata

		if m.Status == metadata.StatusExited {
			if isStale(m) {
				store.Remove(m.ID)
				continue
			}
			sessions = append(sessions, Session{Metadata: m})
			continue
		}

		toProbe = append(toProbe, m)
	}

	probed, err := probeAll(ctx, store, toProbe)
	if err != nil {
		return nil, err
	}
	sessions = append(sessions, probed...)
	return sessions, nil
}

func isStale(m *metadata.Metadata) bool {
	if m.ExitedAt == nil {
		return false
	}
	exitedAt := time.UnixMilli(*m.ExitedAt)
	return time.Since(exitedAt) >= staleExitedAge
}

// probeAll concurrently probes every candidate "running" session and
// repairs metadata for any that turn out to be dead.
func probeAll(ctx context.Context, store *metadata.Store, candidates []*metadata.Metadata) ([]Session, error) {
	results := make([]Session, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range candidates {
		i, m := i, m
		g.Go(func() error {
			results[i] = Session{Metadata: probeOne(ctx, store, m)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// probeOne reconciles a single "running" record against the socket
// file, PID liveness, and an actual connect probe, rewriting metadata
// to exited(-1) whenever reality disagrees, per spec §4.4.
func probeOne(ctx context.Context, store *metadata.Store, m *metadata.Metadata) *metadata.Metadata {
	sockPath := paths.SocketPath(m.ID)

	if m.PID > 0 && !processAlive(m.PID) {
		return markDead(store, m, sockPath)
	}

	if _, err := os.Stat(sockPath); err != nil {
		return markDead(store, m, sockPath)
	}

	d := net.Dialer{Timeout: probeTimeout}
	conn, err := d.DialContext(ctx, "unix", sockPath)
	if err != nil {
		return markDead(store, m, sockPath)
	}

	mon := ensureMonitor(store, m.ID, conn)
	mon.snapshot(m)
	return m
}

// markDead rewrites m to exited(-1) and removes a stray socket file,
// the crash-recovery policy of spec §7.
func markDead(store *metadata.Store, m *metadata.Metadata, sockPath string) *metadata.Metadata {
	os.Remove(sockPath)

	now := time.Now().UnixMilli()
	code := -1
	m.Status = metadata.StatusExited
	m.ExitCode = &code
	m.ExitedAt = &now
	if err := store.SaveBestEffort(m); err != nil {
		log.Warn("failed to persist crash recovery", logging.F("id", m.ID, "error", err.Error()))
	}
	return m
}
