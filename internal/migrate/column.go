package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tordrt/fkschema/internal/fk"
)

// AddColumn adds a column to an existing table, with the constraint its
// options ask for. Engines that cannot alter constraints get it declared
// on the column itself.
func (m *Migrator) AddColumn(ctx context.Context, table string, col ColumnDefinition) (*fk.ForeignKey, error) {
	c, err := m.columnForeignKey(table, col, m.configFor(table))
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", m.dialect.Quote(table), m.columnSQL(col))
	inline := c != nil && !m.dialect.SupportsAlterForeignKeys()
	if c != nil {
		if err := m.registry.Add(c); err != nil {
			return nil, err
		}
		if inline {
			stmt += " " + c.ColumnSQL(m.dialect)
			if enable := m.dialect.EnableStatement(); enable != "" {
				if err := m.run(ctx, enable); err != nil {
					m.registry.Remove(c)
					return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
				}
			}
		}
	}

	if err := m.run(ctx, stmt); err != nil {
		if c != nil {
			m.registry.Remove(c)
		}
		return nil, fmt.Errorf("failed to add column %s: %w", col.Name, err)
	}
	if c == nil || inline {
		return c, nil
	}

	if err := m.run(ctx, m.addSQL(c)); err != nil {
		m.registry.Remove(c)
		return nil, fmt.Errorf("failed to add foreign key %s: %w", c.Name, err)
	}
	return c, nil
}

// ChangeColumn replaces a column's single-column constraint when the
// options mention one, and changes its type when Type is set. The old
// constraint is removed before the type changes. ForeignKeyOff only
// removes it. Other column options are not applied.
func (m *Migrator) ChangeColumn(ctx context.Context, table string, col ColumnDefinition) (*fk.ForeignKey, error) {
	c, err := m.columnForeignKey(table, col, m.configFor(table))
	if err != nil {
		return nil, err
	}
	if c != nil && !m.dialect.SupportsAlterForeignKeys() {
		return nil, &fk.UnsupportedError{Dialect: m.dialect.Name(), Feature: "adding foreign keys to an existing table"}
	}

	if c != nil || col.Options.ForeignKey == ForeignKeyOff {
		if _, err := m.RemoveForeignKey(ctx, table, fk.Spec{Columns: []string{col.Name}}, true); err != nil {
			return nil, err
		}
	}

	if col.Type != "" {
		stmt := m.dialect.AlterColumnTypeSQL(table, col.Name, col.Type)
		if stmt == "" {
			return nil, &fk.UnsupportedError{Dialect: m.dialect.Name(), Feature: "changing a column type"}
		}
		if err := m.run(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to change column %s: %w", col.Name, err)
		}
	}
	if c == nil {
		return nil, nil
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

// RemoveColumn drops a column along with the constraints of table that
// include it. They are dropped first where the engine allows it, since
// MySQL refuses to drop a column a constraint still uses.
func (m *Migrator) RemoveColumn(ctx context.Context, table, column string) ([]*fk.ForeignKey, error) {
	var dropped []*fk.ForeignKey
	if m.dialect.SupportsAlterForeignKeys() {
		for _, c := range m.registry.ForeignKeys(table) {
			if !slices.Contains(c.Columns, column) {
				continue
			}
			if err := m.drop(ctx, c, false); err != nil {
				return dropped, err
			}
			m.registry.Remove(c)
			dropped = append(dropped, c)
		}
	}

	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", m.dialect.Quote(table), m.dialect.Quote(column))
	if err := m.run(ctx, stmt); err != nil {
		return dropped, fmt.Errorf("failed to remove column %s: %w", column, err)
	}
	return append(dropped, m.registry.DropColumn(table, column)...), nil
}

// DropTable drops a table. Constraints on other tables referencing it are
// dropped first where the engine allows it; the registry forgets both
// the table's own constraints and those.
func (m *Migrator) DropTable(ctx context.Context, table string) error {
	if m.dialect.SupportsAlterForeignKeys() {
		for _, c := range m.registry.ReverseForeignKeys(table) {
			if err := m.drop(ctx, c, false); err != nil {
				return err
			}
			m.registry.Remove(c)
			m.logger.Debug("dropped referencing foreign key",
				slog.String("table", c.FromTable),
				slog.String("name", c.Name),
			)
		}
	}

	if err := m.run(ctx, fmt.Sprintf("DROP TABLE %s", m.dialect.Quote(table))); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	m.registry.DropTable(table)
	return nil
}
