package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/config"
	"github.com/mikepea/yatube/pkg/yatube/database"
	"github.com/mikepea/yatube/pkg/yatube/groups"
	"github.com/mikepea/yatube/pkg/yatube/logging"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/mikepea/yatube/pkg/yatube/server"
	"github.com/mikepea/yatube/pkg/yatube/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command of the server binary
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "yatube-server",
		Short:         "Yatube blogging API",
		Long:          "Serves the Yatube REST API and manages its database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewGroupCommand(opts))

	return cmd
}

// runtime is what every command needs before doing its work
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

// bootstrap loads config, builds the logger and opens a migrated database
func bootstrap(opts *RootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed", zap.String("driver", cfg.Database.Driver))

	return &runtime{cfg: cfg, logger: logger, db: db}, nil
}

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()

			if rt.cfg.UsesDevSecret() {
				rt.logger.Warn("using the built-in development JWT secret; set YATUBE_AUTH_JWT_SECRET in production")
			}

			store, err := storage.New(rt.cfg.Media)
			if err != nil {
				return fmt.Errorf("open media storage: %w", err)
			}

			gin.SetMode(rt.cfg.Server.Mode)
			r := server.New(server.Deps{Config: rt.cfg, DB: rt.db, Store: store, Logger: rt.logger})

			rt.logger.Info("starting yatube server",
				zap.String("addr", rt.cfg.Server.Addr),
				zap.Strings("tls_domains", rt.cfg.Server.TLSDomains),
				zap.String("media_backend", rt.cfg.Media.Backend))
			return server.Run(r, rt.cfg.Server)
		},
	}
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

// NewGroupCommand creates the group command. Groups have no write endpoints,
// so they are managed from here.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage community groups",
	}
	cmd.AddCommand(newGroupCreateCommand(rootOpts))
	return cmd
}

func newGroupCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var req groups.CreateGroupRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.logger.Sync() }()
			return createGroup(cmd.Context(), rt.db, req, cmd)
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "group title")
	cmd.Flags().StringVar(&req.Slug, "slug", "", "URL slug: letters, digits, - and _")
	cmd.Flags().StringVar(&req.Description, "description", "", "group description")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func createGroup(ctx context.Context, db *gorm.DB, req groups.CreateGroupRequest, cmd *cobra.Command) error {
	group, err := groups.Create(ctx, db, req)
	if err != nil {
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
			return fmt.Errorf("%s %s", apiErr.Message, formatFields(apiErr.Fields))
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created group %d (%s)\n", group.ID, group.Slug)
	return nil
}

// formatFields renders validation messages as "field: msg; field: msg" in field order
func formatFields(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(fields[name], " "))
	}
	return strings.Join(parts, "; ")
}
