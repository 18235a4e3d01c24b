// Command sesh is the user-facing CLI: it spawns session hosts,
// attaches to them, lists and reconciles them, and mints share links.
package main

import (
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/artpar/sesh/internal/bridge"
	"github.com/artpar/sesh/internal/config"
	"github.com/artpar/sesh/internal/discovery"
	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/metadata"
	"github.com/artpar/sesh/internal/paths"
	"github.com/artpar/sesh/internal/recording"
	"github.com/artpar/sesh/internal/spawn"
	"github.com/artpar/sesh/internal/token"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sesh",
	Short: "Persistent, multiplexed terminal sessions",
	Long: `sesh runs terminal sessions in a detached host process that outlives
the attaching client, and lets any number of viewers attach, detach, and
reattach without losing output.

Example:
  sesh start bash         # spawn and attach to a new session
  sesh list               # list known sessions
  sesh attach <id>        # reattach to a running session
  sesh share <id>         # print a read-only share link + QR code
  sesh stop <id>          # terminate a session`,
	Version: version,
}

var (
	detach    bool
	record    bool
	watch     bool
	ttl       time.Duration
	addr      string
	playSpeed float64
)

var startCmd = &cobra.Command{
	Use:   "start <command> [args...]",
	Short: "Spawn a new session and attach to it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStart,
}

var attachCmd = &cobra.Command{
	Use:   "attach <id>",
	Short: "Attach to a running session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttach,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	RunE:  runList,
}

var stopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Terminate a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

var shareCmd = &cobra.Command{
	Use:   "share <id>",
	Short: "Print a signed, read-only share link for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runShare,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Force a discovery/recovery pass over on-disk session state",
	RunE:  runDoctor,
}

var playCmd = &cobra.Command{
	Use:   "play <recording>",
	Short: "Play back a recorded session",
	Long: `Play back a session recorded with "sesh start --record".

Recordings are stored in asciicast v2 format under the recordings
directory and can be played back with this command or with asciinema.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "List recorded sessions",
	RunE:  runRecordings,
}

func init() {
	rootCmd.AddCommand(startCmd, attachCmd, listCmd, stopCmd, shareCmd, doctorCmd, playCmd, recordingsCmd)

	startCmd.Flags().BoolVarP(&detach, "detach", "d", false, "spawn the session without attaching")
	startCmd.Flags().BoolVar(&record, "record", false, "record the session as an asciicast v2 file")

	listCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing updates as sessions change")

	shareCmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "how long the share token remains valid")
	shareCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "address the share bridge listens on")

	playCmd.Flags().Float64Var(&playSpeed, "speed", 1.0, "playback speed multiplier")
}

func runStart(cmd *cobra.Command, args []string) error {
	cols, rows := terminalSize()

	if record {
		os.Setenv("SESH_RECORD", "1")
	}

	res, err := spawn.Spawn(spawn.Options{
		Command:      args[0],
		Args:         args[1:],
		Cols:         cols,
		Rows:         rows,
		PollDeadline: config.FromEnv().SpawnPollDeadline,
	})
	if err != nil {
		return fmt.Errorf("sesh: spawn session: %w", err)
	}

	fmt.Fprintf(os.Stderr, "session %s started\n", res.ID)
	if detach {
		return nil
	}

	code, err := bridge.NewCLI(res.SocketPath, true).Run()
	if err != nil {
		return fmt.Errorf("sesh: attach: %w", err)
	}
	if code > 0 {
		os.Exit(code)
	}
	return nil
}

func runAttach(cmd *cobra.Command, args []string) error {
	id := args[0]
	m, err := loadSession(id)
	if err != nil {
		return err
	}
	if m.Status != metadata.StatusRunning {
		return fmt.Errorf("sesh: session %s is not running", id)
	}

	code, err := bridge.NewCLI(paths.SocketPath(id), true).Run()
	if err != nil {
		return fmt.Errorf("sesh: attach: %w", err)
	}
	if code > 0 {
		os.Exit(code)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if !watch {
		sessions, err := discovery.Scan(cmd.Context())
		if err != nil {
			return err
		}
		printSessions(sessions)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return discovery.Watch(ctx, printSessions)
}

func printSessions(sessions []discovery.Session) {
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMAND\tSTATUS\tPID\tCREATED")
	for _, s := range sessions {
		m := s.Metadata
		created := time.UnixMilli(m.CreatedAt).Format(time.RFC3339)
		cmdLine := strings.TrimSpace(m.Command + " " + strings.Join(m.Args, " "))
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.ID, cmdLine, m.Status, m.PID, created)
	}
	w.Flush()
}

func runStop(cmd *cobra.Command, args []string) error {
	id := args[0]
	m, err := loadSession(id)
	if err != nil {
		return err
	}
	if m.Status != metadata.StatusRunning {
		fmt.Printf("session %s is already %s\n", id, m.Status)
		return nil
	}
	if err := terminateHost(m.PID); err != nil {
		return fmt.Errorf("sesh: stop %s: %w", id, err)
	}
	fmt.Printf("session %s stopping\n", id)
	return nil
}

func runShare(cmd *cobra.Command, args []string) error {
	id := args[0]
	m, err := loadSession(id)
	if err != nil {
		return err
	}
	if m.Status != metadata.StatusRunning {
		return fmt.Errorf("sesh: session %s is not running", id)
	}

	secret, err := loadOrCreateShareSecret()
	if err != nil {
		return err
	}
	signer, err := token.NewSigner(secret)
	if err != nil {
		return err
	}
	raw, err := signer.Issue(id, ttl)
	if err != nil {
		return fmt.Errorf("sesh: issue share token: %w", err)
	}

	ln, err := newShareListener(addr)
	if err != nil {
		return fmt.Errorf("sesh: listen: %w", err)
	}
	defer ln.Close()

	shareURL := fmt.Sprintf("ws://%s/ws?token=%s", ln.Addr().String(), raw)
	fmt.Printf("share link (valid %s): %s\n", ttl, shareURL)
	if qr, err := qrcode.New(shareURL, qrcode.Low); err == nil && qr != nil {
		fmt.Print(qr.ToSmallString(false))
	}

	nb := bridge.NewNetwork()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		sid, err := signer.Verify(r.URL.Query().Get("token"))
		if err != nil || sid != id {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		nb.Serve(w, r, paths.SocketPath(id), false)
	})
	srv := &http.Server{Handler: mux}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	fmt.Println("serving share link, press Ctrl+C to stop")
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	log := logging.WithComponent("doctor")
	sessions, err := discovery.Scan(cmd.Context())
	if err != nil {
		return err
	}
	running, exited := 0, 0
	for _, s := range sessions {
		if s.Metadata.Status == metadata.StatusRunning {
			running++
		} else {
			exited++
		}
	}
	log.Info("discovery pass complete", logging.F(
		"running", fmt.Sprint(running),
		"exited", fmt.Sprint(exited),
	))
	fmt.Printf("%d running, %d exited (stale records reconciled)\n", running, exited)
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	path := args[0]
	rec, err := recording.LoadRecording(path)
	if err != nil {
		return fmt.Errorf("sesh: load recording: %w", err)
	}

	fmt.Printf("Playing: %s\n", path)
	fmt.Printf("Size: %dx%d, Duration: %v, Events: %d\n",
		rec.Header.Width, rec.Header.Height, rec.Duration().Round(time.Second), rec.EventCount())
	fmt.Printf("Speed: %.1fx\n\n", playSpeed)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	player := recording.NewPlayer(rec, os.Stdout)
	player.SetSpeed(playSpeed)

	done := make(chan error, 1)
	go func() { done <- player.Play() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sesh: playback: %w", err)
		}
	case <-sigCh:
		player.Stop()
		fmt.Println("\nplayback stopped")
		return nil
	}

	fmt.Println("\nplayback complete")
	return nil
}

func runRecordings(cmd *cobra.Command, args []string) error {
	recordings, err := recording.ListRecordings()
	if err != nil {
		return fmt.Errorf("sesh: list recordings: %w", err)
	}
	if len(recordings) == 0 {
		fmt.Printf("no recordings in %s\n", recording.GetRecordingsDir())
		fmt.Println("record a session with: sesh start --record <command>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tDURATION\tCREATED")
	for _, r := range recordings {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Name, r.Size, r.Duration.Round(time.Second), r.ModTime.Format(time.RFC3339))
	}
	w.Flush()
	return nil
}

func loadSession(id string) (*metadata.Metadata, error) {
	store, err := metadata.NewStore(paths.SessionsDir())
	if err != nil {
		return nil, err
	}
	m, err := store.Load(id)
	if err != nil {
		return nil, fmt.Errorf("sesh: unknown session %s", id)
	}
	return m, nil
}

func terminalSize() (cols, rows uint16) {
	if c, r, err := term.GetSize(int(os.Stdout.Fd())); err == nil && c > 0 && r > 0 {
		return uint16(c), uint16(r)
	}
	return 80, 24
}

func newShareListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func loadOrCreateShareSecret() ([]byte, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	path := paths.StateDir() + "/share.secret"
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return data, nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("sesh: generate share secret: %w", err)
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("sesh: persist share secret: %w", err)
	}
	return secret, nil
}
