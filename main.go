package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var version = "dev"

type cliOptions struct {
	configPath string
	host       string
	port       string
	cellSize   string
	cellWidth  float64
	cellHeight float64
	offsetX    float64
	offsetY    float64
	record     string
	headless   bool
	linger     time.Duration
	logFile    string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, ErrInvalidAddress) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "remote-term-bridge [host] [port]",
		Short: "Attach this terminal to a remote terminal server over WebSocket",
		Long: "Connects to ws://<host>:<port>/ws, announces the terminal size and relays\n" +
			"keystrokes and output. Press Ctrl-] to disconnect.",
		Version:       version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			return runBridge(cmd.Context(), cfg, opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (default ~/.remote-term-bridge/config.json)")
	f.StringVar(&opts.host, "host", "", "terminal server host")
	f.StringVar(&opts.port, "port", "", "terminal server port")
	f.StringVar(&opts.cellSize, "cell-size", "", "cell size strategy: measured or fixed")
	f.Float64Var(&opts.cellWidth, "cell-width", 0, "fixed cell width in pixels (default 10)")
	f.Float64Var(&opts.cellHeight, "cell-height", 0, "fixed cell height in pixels (default 17)")
	f.Float64Var(&opts.offsetX, "offset-x", 0, "horizontal padding subtracted from the window width")
	f.Float64Var(&opts.offsetY, "offset-y", 0, "vertical offset subtracted from the window height")
	f.StringVar(&opts.record, "record", "", "record the session to an asciinema v2 file")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "read input lines from stdin and print the final screen")
	cmd.Flags().DurationVar(&opts.linger, "linger", time.Second, "with --headless, how long to keep receiving output after stdin ends")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "append logs to this file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "V", false, "log to stderr, including state transitions")

	cmd.AddCommand(newVersionCmd(), newConfigCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "remote-term-bridge v%s\n", version)
		},
	}
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save connection defaults",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts, nil)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save [host] [port]",
		Short: "Save the effective configuration as the new defaults",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			if _, err := cfg.cellSizer(); err != nil {
				return err
			}
			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", getConfigPath())
			return nil
		},
	})
	return cmd
}

// resolveConfig layers the config file, then explicitly set flags, then
// positional host/port.
func resolveConfig(cmd *cobra.Command, opts *cliOptions, args []string) (*Config, error) {
	if opts.configPath != "" {
		configPathOverride = opts.configPath
	}

	cfg, err := loadConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("cell-size") {
		cfg.CellSize = opts.cellSize
	}
	if flags.Changed("cell-width") {
		cfg.CellWidth = opts.cellWidth
	}
	if flags.Changed("cell-height") {
		cfg.CellHeight = opts.cellHeight
	}
	if flags.Changed("offset-x") {
		cfg.OffsetX = opts.offsetX
	}
	if flags.Changed("offset-y") {
		cfg.OffsetY = opts.offsetY
	}
	if flags.Changed("record") {
		cfg.RecordPath = opts.record
	}

	if len(args) > 0 {
		cfg.Host = args[0]
	}
	if len(args) > 1 {
		cfg.Port = args[1]
	}
	return cfg, nil
}

func runBridge(ctx context.Context, cfg *Config, opts *cliOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Raw-mode output and log lines don't mix; stay quiet unless asked.
	switch {
	case opts.logFile != "":
		logFile, err := os.OpenFile(opts.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	case !opts.verbose:
		log.SetOutput(io.Discard)
	}

	cells, err := cfg.cellSizer()
	if err != nil {
		return err
	}

	var bridge *TerminalBridge
	var console *ConsoleWidget
	newWidget := func(g Geometry) Widget {
		if opts.headless {
			return NewHeadlessWidget(g, os.Stdin, func() { lingerThenDisconnect(bridge, opts.linger) })
		}
		console = NewConsoleWidget(os.Stdin, func() { bridge.Disconnect() })
		return console
	}

	var record func() (*Recorder, error)
	if cfg.RecordPath != "" {
		path := cfg.RecordPath
		record = func() (*Recorder, error) { return NewRecorder(path) }
	}

	bridge = NewTerminalBridge(BridgeOptions{
		Dialer: NewWebSocketDialer(),
		Geometry: &GeometryCalculator{
			Display: NewConsoleDisplay(os.Stdout),
			Cells:   cells,
			Offsets: cfg.offsets(),
		},
		NewWidget: newWidget,
		Mount:     os.Stdout,
		Notifier:  NewConsoleNotifier(os.Stderr),
		Record:    record,
		Verbose:   opts.verbose,
	})

	session, err := bridge.Connect(ctx, cfg.Host, cfg.Port)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-session.Done():
	case <-sigChan:
		bridge.Disconnect()
		<-session.Done()
	}

	if console != nil {
		select {
		case <-console.ReadDone():
		case <-time.After(time.Second):
		}
	}
	return nil
}

// lingerThenDisconnect gives the server time to answer the last input line
// before a headless session is closed. A session that ends on its own
// meanwhile is left alone.
func lingerThenDisconnect(bridge *TerminalBridge, linger time.Duration) {
	s := bridge.Session()
	if s == nil {
		return
	}
	select {
	case <-s.Done():
	case <-time.After(linger):
		bridge.Disconnect()
	}
}
