package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"claude-ptyhost/app"
	"claude-ptyhost/config"
	"claude-ptyhost/host"
	"claude-ptyhost/log"
	"claude-ptyhost/session"
	"claude-ptyhost/ui"
)

var (
	version = "0.3.0"

	programFlag  string
	resumeFlag   string
	latestFlag   bool
	newFlag      bool
	emulatorFlag string
	dirFlag      string
	addrFlag     string
	sessionFlag  string

	rootCmd = &cobra.Command{
		Use:           "claude-ptyhost [flags] [-- args...]",
		SilenceErrors: true,
		Short:         "claude-ptyhost - Run Claude in a hosted PTY with a resume that recovers from missing conversations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return withLogging(false, func() error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				cfg := config.LoadConfig()
				sess, err := buildSession(cfg, args)
				if err != nil {
					return err
				}
				if !sess.IsNewSession && sess.SessionID != "" {
					log.InfoLog.Printf("resuming session %s in %s", sess.SessionID, sess.WorkingDirectory)
				}

				opts, err := terminalOptions(cfg)
				if err != nil {
					return err
				}
				status, err := app.Run(ctx, sess, opts)
				if err != nil {
					return err
				}
				if code := status.ShellCode(); code != 0 {
					return &exitCodeError{code: code}
				}
				return nil
			})
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve PTY sessions over websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return withLogging(true, func() error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				cfg := config.LoadConfig()
				opts, err := terminalOptions(cfg)
				if err != nil {
					return err
				}
				command, baseArgs := programArgs(cfg)
				addr := cfg.GetListenAddr()
				if addrFlag != "" {
					addr = addrFlag
				}
				srv := host.NewServer(host.Options{
					Command:  command,
					Args:     append(baseArgs, args...),
					Dir:      dirFlag,
					Terminal: opts,
				})
				fmt.Printf("listening on %s\n", addr)
				return srv.ListenAndServe(ctx, addr)
			})
		},
	}

	markerCmd = &cobra.Command{
		Use:   "marker",
		Short: "Inspect the session-update marker written when a resume is restarted",
	}

	markerShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the marker without consuming it",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.LoadConfig().GetMarkerPath()
			if err != nil {
				return err
			}
			u, err := session.ReadMarker(path)
			if err != nil {
				return err
			}
			return printUpdate(u)
		},
	}

	markerConsumeCmd = &cobra.Command{
		Use:   "consume",
		Short: "Consume the marker for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			path, err := cfg.GetMarkerPath()
			if err != nil {
				return err
			}
			u, err := session.ConsumeMarker(path, sessionFlag, cfg.MarkerMaxAge(), time.Now())
			if err != nil {
				return err
			}
			return printUpdate(u)
		},
	}

	markerWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Wait for markers for a session and print each one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.LoadConfig()
			path, err := cfg.GetMarkerPath()
			if err != nil {
				return err
			}
			err = session.WatchMarker(ctx, path, sessionFlag, cfg.MarkerMaxAge(), func(u session.SessionUpdate) {
				_ = printUpdate(&u)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "Print debug information like config paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			cfg := config.LoadConfig()

			configDir, err := config.GetConfigDir()
			if err != nil {
				return fmt.Errorf("failed to get config directory: %w", err)
			}
			configJson, _ := json.MarshalIndent(cfg, "", "  ")
			fmt.Printf("Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJson)

			if path, err := cfg.GetMarkerPath(); err == nil {
				fmt.Printf("Marker: %s\n", path)
			}
			fmt.Printf("Log: %s\n", filepath.Join(os.TempDir(), "claude-ptyhost.log"))
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of claude-ptyhost",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("claude-ptyhost version %s\n", version)
		},
	}
)

// withLogging runs fn with the log file and, when CLAUDE_PTYHOST_DEBUG=1, the
// debug log and render profiler. Both are closed before it returns.
func withLogging(daemon bool, fn func() error) error {
	log.Initialize(daemon)
	defer log.Close()
	log.InitDebug()
	defer log.CloseDebug()
	return fn()
}

// exitCodeError carries the child's exit status out of the root command so
// deferred cleanup runs before the process exits.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// programArgs splits the configured or --program command line.
func programArgs(cfg *config.Config) (string, []string) {
	if fields := strings.Fields(programFlag); len(fields) > 0 {
		return fields[0], fields[1:]
	}
	return cfg.DefaultProgram, append([]string(nil), cfg.DefaultArgs...)
}

func buildSession(cfg *config.Config, extra []string) (session.Session, error) {
	dir := dirFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return session.Session{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return session.Session{}, err
	}

	command, args := programArgs(cfg)
	columns, rows := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 1 {
		columns, rows = w, h
	}
	sess := session.Session{
		Command:          command,
		Args:             append(args, extra...),
		WorkingDirectory: dir,
		Columns:          columns,
		// The pane keeps one row for its status bar.
		Rows: max(rows-1, 1),
	}

	switch {
	case newFlag:
		sess.SessionID = uuid.NewString()
		sess.IsNewSession = true
	case resumeFlag != "":
		sess.SessionID = resumeFlag
	case latestFlag:
		id, err := session.ExtractClaudeSessionID(dir)
		if err != nil {
			return sess, fmt.Errorf("no session to resume in %s: %w", dir, err)
		}
		sess.SessionID = id
	}
	return sess, nil
}

func terminalOptions(cfg *config.Config) (session.TerminalOptions, error) {
	path, err := cfg.GetMarkerPath()
	if err != nil {
		return session.TerminalOptions{}, err
	}
	emulator := cfg.GetEmulator()
	if emulatorFlag != "" {
		emulator = emulatorFlag
	}
	return session.TerminalOptions{
		Emulator: emulator,
		Debounce: cfg.RenderDebounce(),
		Supervisor: session.Options{
			Flags: session.Flags{
				Resume:    cfg.GetResumeFlag(),
				SessionID: cfg.GetSessionIDFlag(),
			},
			DetectWindow: cfg.ResumeDetectWindow(),
			GracePeriod:  cfg.StopGracePeriod(),
			WriteMarker:  session.FileMarker(path),
		},
	}, nil
}

func printUpdate(u *session.SessionUpdate) error {
	if u == nil {
		fmt.Println("no session update")
		return nil
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	fmt.Printf("written %s\n", ui.FormatRelativeTime(u.Time(), time.Now()))
	return nil
}

func init() {
	rootCmd.Flags().StringVarP(&programFlag, "program", "p", "",
		"Program to run (e.g. 'claude --model opus'); defaults to the configured program")
	rootCmd.Flags().StringVarP(&resumeFlag, "resume", "r", "", "Resume the conversation with this session id")
	rootCmd.Flags().BoolVarP(&latestFlag, "latest", "l", false, "Resume the most recent conversation in the directory")
	rootCmd.Flags().BoolVarP(&newFlag, "new", "n", false, "Start a new conversation with a fresh session id")
	rootCmd.Flags().StringVarP(&emulatorFlag, "emulator", "e", "", "Terminal core: vt10x or vt100")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Working directory for the session")
	rootCmd.MarkFlagsMutuallyExclusive("resume", "latest", "new")

	serveCmd.Flags().StringVarP(&programFlag, "program", "p", "", "Program every connection runs")
	serveCmd.Flags().StringVarP(&emulatorFlag, "emulator", "e", "", "Terminal core: vt10x or vt100")
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (defaults to listen_addr in the config)")

	for _, c := range []*cobra.Command{markerConsumeCmd, markerWatchCmd} {
		c.Flags().StringVarP(&sessionFlag, "session", "s", "", "Session id the marker must name as old")
		if err := c.MarkFlagRequired("session"); err != nil {
			panic(err)
		}
	}
	markerCmd.AddCommand(markerShowCmd, markerConsumeCmd, markerWatchCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(markerCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	os.Exit(run(rootCmd))
}

// run executes cmd and turns its error into the process exit code.
func run(cmd *cobra.Command) int {
	err := cmd.Execute()
	var exitErr *exitCodeError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.code
	}
	fmt.Println(err)
	return 1
}
