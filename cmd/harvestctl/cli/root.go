package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/harvest-erp/harvest/internal/app"
	"github.com/harvest-erp/harvest/internal/invoicing"
	"github.com/harvest-erp/harvest/internal/platform/cache"
	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/internal/users"
	"github.com/harvest-erp/harvest/migrations"
)

// AdminEnsurer creates or promotes an administrator account.
type AdminEnsurer interface {
	EnsureAdmin(ctx context.Context, name, email, password string) (*users.User, error)
}

// InvoiceRunner previews and issues monthly invoices.
type InvoiceRunner interface {
	Summarize(ctx context.Context, year, month int, customerID int64) (invoicing.Summary, error)
	GenerateInvoice(ctx context.Context, req invoicing.GenerateRequest) (invoicing.Invoice, error)
}

// Deps are the collaborators commands run against.
type Deps struct {
	Users    AdminEnsurer
	Invoices InvoiceRunner
	Jobs     *JobsCLI
	// Migrate applies pending schema migrations and returns their versions.
	Migrate func(ctx context.Context) ([]string, error)
}

// Opener connects Deps lazily so that --help never touches the network. The
// returned func releases whatever was opened.
type Opener func(ctx context.Context) (*Deps, func(), error)

// NewRootCommand builds the harvestctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	var envFiles []string
	root := &cobra.Command{
		Use:           "harvestctl",
		Short:         "Operate a Harvest deployment from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.LoadEnvFiles(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load before reading configuration (default .env)")

	root.AddCommand(newDBCommand(open))
	root.AddCommand(newUsersCommand(open))
	root.AddCommand(newInvoicesCommand(open))
	root.AddCommand(newJobsCommand(open))
	return root
}

// Execute runs the command tree against the configured database and Redis.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand(openRuntime).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "harvestctl:", err)
		stop()
		os.Exit(1)
	}
}

func openRuntime(ctx context.Context) (*Deps, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "harvestctl"))

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	services, err := app.NewContainer(ctx, cfg, pool, redisClient, logger, nil)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, nil, err
	}
	jobsCLI := NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})

	closeAll := func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
		pool.Close()
	}
	migrate := func(ctx context.Context) ([]string, error) {
		return db.Migrate(ctx, pool, migrations.FS)
	}
	return &Deps{Users: services.Users, Invoices: services.Invoicing, Jobs: jobsCLI, Migrate: migrate}, closeAll, nil
}

func withDeps(cmd *cobra.Command, open Opener, fn func(*Deps) error) error {
	deps, closeFn, err := open(cmd.Context())
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(deps)
}
