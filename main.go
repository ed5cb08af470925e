package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pagebuilder/internal/app"
	"pagebuilder/internal/config"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

var configPath string

func main() {
	// stdout belongs to the MCP protocol in `pagebuilder mcp`
	log.SetOutput(os.Stderr)
	gin.SetMode(gin.ReleaseMode)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// openStores opens only the storage backend, for commands that do not
// edit pages.
func openStores(ctx context.Context) (*storage.Stores, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	stores, err := storage.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	return stores, cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:          "pagebuilder",
	Short:        "Section-based page builder with live collaboration",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		cfg := config.Default(dataDir)
		if err := config.Init(configPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", configPath)
		fmt.Printf("Data Dir: %s\n", cfg.DataDir)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := &config.Manager{}
		return m.Write(cmd.OutOrStdout(), cfg)
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the editing backend and the realtime gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		a, err := app.New(ctx, cfg, nil)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		runErr := a.Run(ctx, true)

		closeCtx, closeCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer closeCancel()
		if err := a.Close(closeCtx); err != nil {
			log.Printf("[APP] shutdown: %v", err)
		}
		return runErr
	},
}

// mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the page tools to an AI agent over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		return app.ServeMCP(ctx, cfg)
	},
}

// pages command
var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Inspect stored pages",
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured user's pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stores, cfg, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		pages, err := stores.Pages.ListPagesByUser(ctx, cfg.UserID, domain.ListOptions{Limit: limit})
		if err != nil {
			return fmt.Errorf("listing pages: %w", err)
		}
		if len(pages) == 0 {
			fmt.Println("No pages.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tVERSION\tSECTIONS\tUPDATED")
		for _, p := range pages {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				p.ID, p.Title, p.Status, p.Version, len(p.Sections), p.UpdatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

// approvals command
var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Answer destructive actions requested by an MCP agent",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending approvals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stores, _, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()

		pending, err := stores.Approvals.ListPendingApprovals(ctx)
		if err != nil {
			return fmt.Errorf("listing approvals: %w", err)
		}
		if len(pending) == 0 {
			fmt.Println("No pending approvals.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOOL\tREQUESTED\tDESCRIPTION")
		for _, a := range pending {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Tool, a.CreatedAt.Local().Format(time.DateTime), a.Description)
		}
		return w.Flush()
	},
}

func resolveApprovalCmd(use, short string, approved bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stores, _, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer stores.Close()

			if err := stores.Approvals.ResolveApproval(ctx, args[0], approved); err != nil {
				return fmt.Errorf("resolving approval %s: %w", args[0], err)
			}
			fmt.Printf("Approval %s %sd\n", args[0], use)
			return nil
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to the config file")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("data-dir", config.DefaultDataDir(), "Directory for the database and templates")
	configCmd.AddCommand(configShowCmd)

	// pages subcommands
	pagesCmd.AddCommand(pagesListCmd)
	pagesListCmd.Flags().IntP("limit", "n", 50, "Maximum number of pages to show")

	// approvals subcommands
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(resolveApprovalCmd("approve", "Allow a pending action", true))
	approvalsCmd.AddCommand(resolveApprovalCmd("reject", "Refuse a pending action", false))

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(approvalsCmd)
}
