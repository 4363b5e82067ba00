// Package migrate adds, removes and renames foreign key constraints on a
// live database while keeping a registry snapshot of them in step.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tordrt/fkschema/internal/fk"
)

// Execer runs a statement. *sql.DB and the db package clients satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Config holds the defaults applied to new constraints.
type Config struct {
	// OnUpdate and OnDelete apply when a request leaves the action unset.
	OnUpdate fk.Action
	OnDelete fk.Action
	// AutoCreate adds a constraint for every column named like "<x>_id"
	// in CreateTable unless the column opts out.
	AutoCreate bool
}

// Migrator applies constraint changes. Without an Execer it only updates
// the registry, which is how the dump side replays statements.
type Migrator struct {
	registry  *fk.Registry
	dialect   fk.Dialect
	config    Config
	overrides map[string]Config
	exec      Execer
	logger    *slog.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithExecer sets the connection statements run on.
func WithExecer(e Execer) Option {
	return func(m *Migrator) { m.exec = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTableConfig replaces cfg for constraints owned by table.
func WithTableConfig(table string, cfg Config) Option {
	return func(m *Migrator) { m.overrides[table] = cfg }
}

// New returns a Migrator over registry. A nil registry starts empty.
func New(d fk.Dialect, registry *fk.Registry, cfg Config, opts ...Option) *Migrator {
	if registry == nil {
		registry = fk.NewRegistry()
	}
	m := &Migrator{
		registry:  registry,
		dialect:   d,
		config:    cfg,
		overrides: make(map[string]Config),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the constraint snapshot.
func (m *Migrator) Registry() *fk.Registry {
	return m.registry
}

// Dialect returns the engine dialect.
func (m *Migrator) Dialect() fk.Dialect {
	return m.dialect
}

// ForeignKeys returns the constraints owned by table.
func (m *Migrator) ForeignKeys(table string) []*fk.ForeignKey {
	return m.registry.ForeignKeys(table)
}

// ReverseForeignKeys returns the constraints referencing table.
func (m *Migrator) ReverseForeignKeys(table string) []*fk.ForeignKey {
	return m.registry.ReverseForeignKeys(table)
}

func (m *Migrator) configFor(table string) Config {
	if cfg, ok := m.overrides[table]; ok {
		return cfg
	}
	return m.config
}

// build applies the default column, the table's default actions and
// name, then validates.
func (m *Migrator) build(from, to string, opts fk.Options) (*fk.ForeignKey, error) {
	if len(opts.Columns) == 0 && to != "" {
		opts.Columns = []string{ForeignKeyColumn(to)}
	}
	cfg := m.configFor(from)
	if opts.OnUpdate == fk.ActionNone {
		opts.OnUpdate = cfg.OnUpdate
	}
	if opts.OnDelete == fk.ActionNone {
		opts.OnDelete = cfg.OnDelete
	}
	c, err := fk.New(m.dialect, from, to, opts)
	if err != nil {
		return nil, err
	}
	if c.Name == "" {
		c.Name = fk.DefaultName(m.dialect, c.FromTable, c.Columns)
	}
	return c, nil
}

// AddForeignKey validates and adds one constraint. On any error neither
// the registry nor the database is changed.
func (m *Migrator) AddForeignKey(ctx context.Context, from, to string, opts fk.Options) (*fk.ForeignKey, error) {
	c, err := m.build(from, to, opts)
	if err != nil {
		return nil, err
	}
	if !m.dialect.SupportsAlterForeignKeys() {
		return nil, &fk.UnsupportedError{Dialect: m.dialect.Name(), Feature: "adding foreign keys to an existing table"}
	}

	if err := m.registry.Add(c); err != nil {
		return nil, err
	}
	if err := m.run(ctx, m.addSQL(c)); err != nil {
		m.registry.Remove(c)
		return nil, fmt.Errorf("failed to add foreign key %s: %w", c.Name, err)
	}
	return c, nil
}

func (m *Migrator) addSQL(c *fk.ForeignKey) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", m.dialect.Quote(c.FromTable), c.SQL(m.dialect))
}

// RemoveForeignKey drops the first constraint of table matching spec.
// With ifExists a missing constraint is not an error. A spec naming only
// the referenced table matches on its default column, unless the table
// argument is really a constraint name.
func (m *Migrator) RemoveForeignKey(ctx context.Context, table string, spec fk.Spec, ifExists bool) (fk.Lookup, error) {
	if spec.Name == "" && spec.ToTable != "" && len(spec.Columns) == 0 {
		if l := m.registry.FindForRemoval(table, spec, true); !l.Deprecated {
			spec.Columns = []string{ForeignKeyColumn(spec.ToTable)}
		}
	}
	lookup := m.registry.FindForRemoval(table, spec, ifExists)
	switch lookup.Status {
	case fk.LookupMissing:
		return lookup, lookup.Err()
	case fk.LookupIgnored:
		m.logger.Debug("no foreign key to remove", slog.String("table", table), slog.String("spec", lookup.Spec.String()))
		return lookup, nil
	}

	if lookup.Deprecated {
		m.logger.Warn("passing a constraint name as the referenced table is deprecated, use name instead",
			slog.String("table", table),
			slog.String("name", lookup.ForeignKey.Name),
		)
	}
	if err := m.drop(ctx, lookup.ForeignKey, ifExists); err != nil {
		return lookup, err
	}
	m.registry.Remove(lookup.ForeignKey)
	return lookup, nil
}

func (m *Migrator) drop(ctx context.Context, c *fk.ForeignKey, ifExists bool) error {
	if !m.dialect.SupportsAlterForeignKeys() {
		return &fk.UnsupportedError{Dialect: m.dialect.Name(), Feature: "removing foreign keys from an existing table"}
	}
	if c.Name == "" {
		return &fk.ValidationError{Table: c.FromTable, Field: "name", Message: "cannot drop an unnamed constraint"}
	}
	if err := m.run(ctx, m.dialect.DropForeignKeySQL(c.FromTable, c.Name, ifExists)); err != nil {
		return fmt.Errorf("failed to remove foreign key %s: %w", c.Name, err)
	}
	return nil
}

// RenameTable renames a table, then renames its constraints whose names
// contain the old table name. Engines without ALTER support keep the old
// constraint names in the database. When a constraint rename fails, the
// registry keeps the names the database has: the old name if the drop
// failed, no entry if only the re-add failed.
func (m *Migrator) RenameTable(ctx context.Context, oldName, newName string) ([]*fk.ForeignKey, error) {
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", m.dialect.Quote(oldName), m.dialect.Quote(newName))
	if err := m.run(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to rename table %s: %w", oldName, err)
	}

	before := make(map[*fk.ForeignKey]string)
	for _, c := range m.registry.ForeignKeys(oldName) {
		before[c] = c.Name
	}
	renamed := m.registry.RenameTable(oldName, newName)
	restore := func(rest []*fk.ForeignKey) {
		for _, c := range rest {
			c.Name = before[c]
		}
	}

	for i, c := range renamed {
		oldFKName := before[c]
		if oldFKName == c.Name {
			continue
		}

		old := *c
		old.Name = oldFKName
		if err := m.drop(ctx, &old, false); err != nil {
			if fk.IsUnsupported(err) {
				m.logger.Warn("foreign key keeps its old name in the database",
					slog.String("dialect", m.dialect.Name()),
					slog.String("table", newName),
					slog.String("name", oldFKName),
				)
				continue
			}
			restore(renamed[i:])
			return renamed, fmt.Errorf("failed to rename foreign key %s: %w", oldFKName, err)
		}

		if err := m.run(ctx, m.addSQL(c)); err != nil {
			m.registry.Remove(c)
			restore(renamed[i+1:])
			m.logger.Error("foreign key was dropped and not re-added",
				slog.String("table", newName),
				slog.String("name", oldFKName),
			)
			return renamed, fmt.Errorf("failed to rename foreign key %s: %w", oldFKName, err)
		}
	}
	return renamed, nil
}

func (m *Migrator) run(ctx context.Context, stmt string) error {
	if m.exec == nil {
		m.logger.Debug("recorded statement", slog.String("sql", stmt))
		return nil
	}
	m.logger.Info("executing statement", slog.String("sql", stmt))
	_, err := m.exec.ExecContext(ctx, stmt)
	return err
}
