package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"segtile/internal/config"
	"segtile/internal/server"
	"segtile/internal/storage"
)

// Version is stamped at build time.
var Version = "dev"

// NewRootCmd creates the root Cobra command.
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store) *cobra.Command {
	root := NewRoot(cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "segtile",
		Short: "segtile extracts raster tiles and prepares them for segmentation",
		Long: `Segtile reads rectangular windows from multi-channel, multi-z raster
imagery, runs per-channel preprocessing, validates that every prepared image
lands at the same spatial scale, and writes the result for segmentation.`,
	}

	rootCmd.AddCommand(newExtractCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newExtractCmd(root *Root) *cobra.Command {
	var (
		output   string
		parallel int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "extract <manifest>",
		Short: "Extract and prepare every window declared in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if output == "" {
				output = root.Config.Paths.OutputDir
			}
			return root.runManifest(ctx, args[0], output, parallel, dryRun)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default from config)")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "windows extracted concurrently (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and record scales without writing planes")

	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		spool  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the spool directory and extract manifests as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if spool == "" {
				spool = root.Config.Paths.SpoolDir
			}
			if output == "" {
				output = root.Config.Paths.OutputDir
			}

			pipe, cleanup := root.newPipeline(ctx, 0, false)
			defer cleanup()

			return root.watchSpool(ctx, pipe, spool, output)
		},
	}

	cmd.Flags().StringVar(&spool, "spool", "", "spool directory (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default from config)")

	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction ledger and stream live results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			pipe, cleanup := root.newPipeline(ctx, 0, false)
			defer cleanup()

			// Spooled manifests keep feeding the pipeline while serving.
			go func() {
				if err := root.watchSpool(ctx, pipe, root.Config.Paths.SpoolDir, root.Config.Paths.OutputDir); err != nil {
					root.Log.Error("spool watcher stopped", "error", err)
				}
			}()

			return server.NewServer(addr, root.Store, pipe, root.Log).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8590", "listen address")

	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(root.Config, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the segtile version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "segtile", Version)
		},
	}
}
