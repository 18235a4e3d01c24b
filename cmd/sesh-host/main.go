// Command sesh-host is the per-session host process spawned by
// `sesh start`. It is not meant to be invoked directly: the spawn
// supervisor launches it detached, and it exits once its PTY exits and
// its grace period elapses.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/artpar/sesh/internal/config"
	"github.com/artpar/sesh/internal/host"
	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/paths"
	"github.com/artpar/sesh/internal/recording"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses `sesh-host <id> <cols> <rows> <cwd> <command> [args...]`
// per spec §6 and drives the host to completion.
func run(args []string) int {
	log := logging.WithComponent("sesh-host")

	if len(args) < 5 {
		fmt.Fprintln(os.Stderr, "usage: sesh-host <id> <cols> <rows> <cwd> <command> [args...]")
		return 2
	}

	id := args[0]
	cols, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sesh-host: invalid cols %q: %v\n", args[1], err)
		return 2
	}
	rows, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sesh-host: invalid rows %q: %v\n", args[2], err)
		return 2
	}
	cwd := args[3]
	command := args[4]
	cmdArgs := args[5:]

	if err := paths.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "sesh-host: prepare state dirs: %v\n", err)
		return 1
	}

	var recordPath string
	if os.Getenv("SESH_RECORD") != "" {
		recordPath = recording.GenerateRecordingPath(id)
	}

	opts := host.Options{
		ID:          id,
		Command:     command,
		Args:        cmdArgs,
		Cwd:         cwd,
		Cols:        uint16(cols),
		Rows:        uint16(rows),
		SocketPath:  paths.SocketPath(id),
		MetadataDir: paths.SessionsDir(),
		Config:      config.FromEnv(),
		RecordPath:  recordPath,
	}

	h, err := host.New(opts)
	if err != nil {
		log.Error("failed to construct host", logging.F("id", id, "error", err.Error()))
		return 1
	}

	return h.Run()
}
