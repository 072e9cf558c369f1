package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"visionary/internal/blobstore"
	"visionary/internal/config"
	"visionary/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
	addr    string
)

var rootCmd = &cobra.Command{
	Use:   "transcript-api",
	Short: "Visionary transcript persistence service",
	Long:  `transcript-api accepts finished session transcripts over HTTP and writes them to a blob store.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "transcript-api v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/visionary/visionary.yaml)")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, nil)
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := blobstore.New(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	return serve(ctx, newServer(cfg.Server, store))
}
