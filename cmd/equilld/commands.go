package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Hirshol/equill-core-apps-sub000/internal/app"
	"github.com/Hirshol/equill-core-apps-sub000/internal/camera"
	"github.com/Hirshol/equill-core-apps-sub000/internal/channel"
	"github.com/Hirshol/equill-core-apps-sub000/internal/config"
	"github.com/Hirshol/equill-core-apps-sub000/internal/logging"
	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Verbose    bool
}

// load reads the configuration named by --config, applying --verbose.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func (o *rootOptions) logger(cfg *config.Config) *logging.Logger {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel()
	return logging.New(lc)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "equilld",
		Short: "equill document-display control plane",
		Long: `equilld talks to the display server over its command and event
sockets, owns the current document and its lock, and drives the idle,
sleep and shutdown sequences.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a .toml or .yaml configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newCheckConfigCommand(opts))
	cmd.AddCommand(newCameraCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var open string
	var page uint32

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, opts, open, page)
		},
	}
	cmd.Flags().StringVar(&open, "open", "", "document to open on start")
	cmd.Flags().Uint32Var(&page, "page", 0, "start page for --open")
	return cmd
}

func runDaemon(ctx context.Context, cfg *config.Config, opts *rootOptions, open string, page uint32) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger(cfg)

	a, err := app.New(cfg, app.Options{ConfigPath: opts.ConfigPath, Logger: logger})
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		a.Shutdown(context.Background()) //nolint:errcheck
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if open != "" {
		res, err := a.OpenDocument(ctx, open, page)
		switch {
		case err != nil:
			logger.Error("open %s: %v", open, err)
		default:
			logger.Info("open %s: %s", open, res)
		}
	}

	<-ctx.Done()
	logger.Info("signal received, shutting down")
	return a.Shutdown(context.Background())
}

func newCheckConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the effective values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: %s\n", cfg)
			fmt.Fprintf(out, "environment overrides: %s\n", strings.Join(config.EnvVars(), " "))
			return nil
		},
	}
}

func newCameraCommand(opts *rootOptions) *cobra.Command {
	var flags string
	var width, height uint32

	capture := &cobra.Command{
		Use:   "capture <output-path>",
		Short: "Take one still image through the camera server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			family := wire.CameraFamily(cfg.Channel.CameraMagic)
			camOpts, err := family.Options.Parse(splitFlags(flags)...)
			if err != nil {
				return err
			}

			sender, err := channel.DialUnixgram(cfg.Channel.CameraSocket)
			if err != nil {
				return err
			}
			out := channel.NewOutbound(wire.NewCodec(family, cfg.ByteOrderValue()), sender, cfg.Channel.CameraSocket)
			defer out.Close()

			cam := camera.NewClient(out, opts.logger(cfg))
			if err := cam.Start(camOpts); err != nil {
				return err
			}
			defer cam.Stop() //nolint:errcheck
			if width > 0 && height > 0 {
				if err := cam.SetResolution(camera.Resolution{Width: width, Height: height}); err != nil {
					return err
				}
			}
			if err := cam.Capture(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "capture requested: %s\n", args[0])
			return nil
		},
	}
	capture.Flags().StringVar(&flags, "options", "", "comma-separated camera options (preview, autofocus, torch)")
	capture.Flags().Uint32Var(&width, "width", 0, "capture width in pixels")
	capture.Flags().Uint32Var(&height, "height", 0, "capture height in pixels")

	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Camera server commands",
	}
	cmd.AddCommand(capture)
	return cmd
}

func splitFlags(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "equilld %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

