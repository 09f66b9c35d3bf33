package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/h4x3rotab/repoview/internal/gitinfo"
	"github.com/h4x3rotab/repoview/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve [repo]",
	Aliases: []string{"s"},
	Short:   "Serve a repository with live reload",
	Long: `Serve a repository over HTTP. Directories are listed with their README,
markdown files are rendered, other files are highlighted, and every page
reloads when the repository changes. A background scan keeps the
broken-link report at /broken-links current.

Examples:
  repoview serve                      # Serve the current directory
  repoview serve ../docs --port 8080  # Serve another directory
  repoview serve --no-watch           # Disable live reload`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open the browser after starting")
	serveCmd.Flags().Bool("no-watch", false, "Disable file watching and live reload")
	serveCmd.Flags().Duration("debounce", 0, "Quiet period before a change triggers a reload")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))

	AddFlagValidation(serveCmd, "port", ValidatePort)
}

func runServe(cmd *cobra.Command, args []string) error {
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		viper.Set("watch.enabled", false)
	}
	if cmd.Flags().Changed("debounce") {
		d, _ := cmd.Flags().GetDuration("debounce")
		viper.Set("watch.debounce", d)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Config:   cfg,
		Sandbox:  a.sandbox,
		Renderer: a.renderer,
		Markdown: a.markdown,
		Scanner:  a.scanner,
		Ignore:   a.ignore,
		Git:      gitinfo.Lookup(ctx, a.sandbox.Root()),
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "repoview: %s\nlistening: http://%s\n", a.sandbox.Root(), cfg.Server.Addr())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
