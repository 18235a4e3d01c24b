//go:build !windows

package discovery

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/artpar/sesh/internal/metadata"
	"github.com/artpar/sesh/internal/paths"
)

func withStateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := os.Getenv("SESH_STATE_DIR")
	os.Setenv("SESH_STATE_DIR", dir)
	t.Cleanup(func() { os.Setenv("SESH_STATE_DIR", old) })
	return dir
}

func TestScanDropsCorruptMetadata(t *testing.T) {
	withStateDir(t)
	store, err := metadata.NewStore(paths.SessionsDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	os.WriteFile(store.Dir()+"/bad.json", []byte("{not json"), 0600)

	sessions, err := Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected corrupt record dropped, got %d sessions", len(sessions))
	}
	if _, err := os.Stat(store.Dir() + "/bad.json"); !os.IsNotExist(err) {
		t.Fatal("expected corrupt file to be removed")
	}
}

func TestScanMarksDeadWhenSocketAbsent(t *testing.T) {
	withStateDir(t)
	store, _ := metadata.NewStore(paths.SessionsDir())
	store.Save(&metadata.Metadata{ID: "abcd1234", Status: metadata.StatusRunning, PID: os.Getpid()})

	sessions, err := Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Metadata.Status != metadata.StatusExited {
		t.Fatalf("expected status exited, got %v", sessions[0].Metadata.Status)
	}
	if sessions[0].Metadata.ExitCode == nil || *sessions[0].Metadata.ExitCode != -1 {
		t.Fatalf("expected exit code -1, got %v", sessions[0].Metadata.ExitCode)
	}
}

func TestScanKeepsRunningWhenSocketLive(t *testing.T) {
	dir := withStateDir(t)
	store, _ := metadata.NewStore(paths.SessionsDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	sockPath := paths.SocketPath("abcd1234")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	store.Save(&metadata.Metadata{ID: "abcd1234", Status: metadata.StatusRunning, PID: os.Getpid()})

	sessions, err := Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Metadata.Status != metadata.StatusRunning {
		t.Fatalf("expected session to remain running, got %+v", sessions)
	}
	_ = dir
}

func TestScanDeletesStaleExited(t *testing.T) {
	withStateDir(t)
	store, _ := metadata.NewStore(paths.SessionsDir())
	oldExit := time.Now().Add(-2 * time.Hour).UnixMilli()
	code := 0
	store.Save(&metadata.Metadata{ID: "abcd1234", Status: metadata.StatusExited, ExitCode: &code, ExitedAt: &oldExit})

	sessions, err := Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected stale exited record purged, got %d", len(sessions))
	}
	if _, err := store.Load("abcd1234"); err == nil {
		t.Fatal("expected metadata file removed")
	}
}
