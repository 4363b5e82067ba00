package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tordrt/fkschema"
	"github.com/tordrt/fkschema/internal/config"
	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/migrate"
)

// cli holds the flag values of one command tree.
type cli struct {
	envFile      string
	dbURL        string
	schemaName   string
	sqliteDriver string
	verbose      bool

	outputFile string
	outputDir  string
	tables     string
	exclude    string
	format     string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "fkschema",
		Short: "Dump and change foreign key constraints",
		Long: `fkschema dumps database schemas with their foreign keys in an order that reloads cleanly,
breaking reference cycles with standalone add_foreign_key statements, and adds, removes or
renames constraints on PostgreSQL, MySQL and SQLite.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		RunE:              c.runDump,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.envFile, "env-file", ".env", "Environment file with FKSCHEMA_* settings")
	pf.StringVarP(&c.dbURL, "url", "u", "", "Database URL: postgres://, mysql://, sqlite:// or yaml://")
	pf.StringVarP(&c.schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
	pf.StringVar(&c.sqliteDriver, "sqlite-driver", "", "SQLite driver: sqlite3 (cgo) or sqlite (pure Go)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Log debug output to stderr")

	f := rootCmd.Flags()
	f.StringVarP(&c.outputFile, "output", "o", "", "Output file (default: stdout)")
	f.StringVarP(&c.outputDir, "output-dir", "d", "", "Output directory for multi-file output")
	f.StringVarP(&c.tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	f.StringVarP(&c.exclude, "exclude", "x", "", "Tables to leave out (comma-separated, optional)")
	f.StringVarP(&c.format, "format", "f", "", "Output format: script, text or markdown (default: script)")

	rootCmd.AddCommand(
		c.addForeignKeyCmd(),
		c.removeForeignKeyCmd(),
		c.renameTableCmd(),
		c.applyCmd(),
	)
	return rootCmd
}

// setup loads the configuration and lets explicitly set flags win.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	flags := cmd.Flags()
	override := func(name string, dst *string, value string) {
		if !flags.Changed(name) {
			*dst = value
		}
	}
	override("url", &c.dbURL, cfg.DatabaseURL)
	override("schema", &c.schemaName, cfg.Schema)
	override("sqlite-driver", &c.sqliteDriver, cfg.SQLiteDriver)
	if flags.Lookup("format") != nil {
		override("format", &c.format, cfg.Format)
	}

	c.logger = newLogger(cmd.ErrOrStderr(), c.verbose)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (c *cli) options() (*fkschema.Options, error) {
	if c.dbURL == "" {
		return nil, fmt.Errorf("--url or FKSCHEMA_DATABASE_URL must be specified")
	}
	return &fkschema.Options{
		Tables:        parseTableList(c.tables),
		ExcludeTables: parseTableList(c.exclude),
		SchemaName:    c.schemaName,
		SQLiteDriver:  c.sqliteDriver,
	}, nil
}

func (c *cli) runDump(cmd *cobra.Command, _ []string) error {
	if c.outputDir != "" && c.outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	opts, err := c.options()
	if err != nil {
		return err
	}

	outOpts := &fkschema.OutputOptions{
		Writer:    cmd.OutOrStdout(),
		OutputDir: c.outputDir,
		Format:    c.format,
		Logger:    c.logger,
	}
	if c.outputFile != "" {
		f, err := os.Create(c.outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		outOpts.Writer = f
	}

	if err := fkschema.ExtractAndDump(cmd.Context(), c.dbURL, opts, outOpts); err != nil {
		return fmt.Errorf("failed to dump schema: %w", err)
	}
	return nil
}

// withMigrator opens the database and runs fn with a migrator seeded from
// its current constraints.
func (c *cli) withMigrator(ctx context.Context, fn func(*migrate.Migrator) error) error {
	opts, err := c.options()
	if err != nil {
		return err
	}
	mcfg, err := c.cfg.Migrate()
	if err != nil {
		return err
	}

	database, err := fkschema.Open(ctx, c.dbURL, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close database connection: %v\n", err)
		}
	}()

	m, err := database.Migrator(ctx, mcfg, c.logger)
	if err != nil {
		return err
	}
	return fn(m)
}

func (c *cli) addForeignKeyCmd() *cobra.Command {
	var (
		columns, primaryKey string
		name                string
		onUpdate, onDelete  string
		deferrable          string
	)
	cmd := &cobra.Command{
		Use:   "add-fk FROM_TABLE TO_TABLE",
		Short: "Add a foreign key constraint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := fk.Options{
				Columns:    parseTableList(columns),
				PrimaryKey: parseTableList(primaryKey),
				Name:       name,
			}
			var err error
			if opts.OnUpdate, err = fk.ParseAction(onUpdate); err != nil {
				return err
			}
			if opts.OnDelete, err = fk.ParseAction(onDelete); err != nil {
				return err
			}
			if opts.Deferrable, err = fk.ParseDeferrable(deferrable); err != nil {
				return err
			}

			return c.withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				added, err := m.AddForeignKey(cmd.Context(), args[0], args[1], opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), added.DumpStatement())
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&columns, "column", "", "Referencing column(s), comma-separated (default: <to_table singular>_id)")
	f.StringVar(&primaryKey, "primary-key", "", "Referenced column(s), comma-separated (default: id)")
	f.StringVar(&name, "name", "", "Constraint name (default: fk_<table>_<columns>)")
	f.StringVar(&onUpdate, "on-update", "", "cascade, restrict, nullify or set_default")
	f.StringVar(&onDelete, "on-delete", "", "cascade, restrict, nullify or set_default")
	f.StringVar(&deferrable, "deferrable", "", "true, false or initially_deferred")
	return cmd
}

func (c *cli) removeForeignKeyCmd() *cobra.Command {
	var (
		columns, name string
		ifExists      bool
	)
	cmd := &cobra.Command{
		Use:   "remove-fk TABLE [TO_TABLE]",
		Short: "Remove a foreign key constraint",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := fk.Spec{Columns: parseTableList(columns), Name: name}
			if len(args) == 2 {
				spec.ToTable = args[1]
			}
			return c.withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				lookup, err := m.RemoveForeignKey(cmd.Context(), args[0], spec, ifExists)
				if err != nil {
					return err
				}
				if lookup.Status == fk.LookupFound {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", lookup.ForeignKey.Name)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&columns, "column", "", "Referencing column(s), comma-separated (default with TO_TABLE: <to_table singular>_id)")
	f.StringVar(&name, "name", "", "Constraint name")
	f.BoolVar(&ifExists, "if-exists", false, "Do nothing when no constraint matches")
	return cmd
}

func (c *cli) renameTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-table OLD_NAME NEW_NAME",
		Short: "Rename a table and the constraints named after it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				renamed, err := m.RenameTable(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				for _, r := range renamed {
					fmt.Fprintln(cmd.OutOrStdout(), r.DumpStatement())
				}
				return nil
			})
		},
	}
}

func (c *cli) applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [FILE]",
		Short: "Apply add_foreign_key, remove_foreign_key and rename_table statements",
		Long:  `apply reads one statement per line from FILE, or from stdin when FILE is omitted or "-".`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open statements file: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			return c.withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				n, err := m.ApplyScript(cmd.Context(), in)
				c.logger.Info("applied statements", slog.Int("count", n))
				return err
			})
		},
	}
}

// parseTableList splits a comma-separated flag value
func parseTableList(s string) []string {
	if s == "" {
		return nil
	}
	list := strings.Split(s, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
