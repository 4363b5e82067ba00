package fk

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Registry holds the constraints of a schema snapshot keyed by owning
// table, in declaration order. It is not safe for concurrent mutation.
type Registry struct {
	byTable map[string][]*ForeignKey
}

// NewRegistry returns a registry holding fks.
func NewRegistry(fks ...*ForeignKey) *Registry {
	r := &Registry{byTable: make(map[string][]*ForeignKey)}
	for _, f := range fks {
		r.byTable[f.FromTable] = append(r.byTable[f.FromTable], f)
	}
	return r
}

// Add registers f. A second constraint with the same name on the same
// table is rejected.
func (r *Registry) Add(f *ForeignKey) error {
	if f.Name != "" {
		for _, existing := range r.byTable[f.FromTable] {
			if existing.Name == f.Name {
				return &ValidationError{
					Table:   f.FromTable,
					Field:   "name",
					Message: fmt.Sprintf("constraint %q already exists", f.Name),
				}
			}
		}
	}
	r.byTable[f.FromTable] = append(r.byTable[f.FromTable], f)
	return nil
}

// Remove unregisters f. It reports whether f was present.
func (r *Registry) Remove(f *ForeignKey) bool {
	fks := r.byTable[f.FromTable]
	i := slices.Index(fks, f)
	if i < 0 {
		return false
	}
	r.byTable[f.FromTable] = slices.Delete(fks, i, i+1)
	if len(r.byTable[f.FromTable]) == 0 {
		delete(r.byTable, f.FromTable)
	}
	return true
}

// Tables returns the names of all tables owning constraints, sorted.
func (r *Registry) Tables() []string {
	tables := make([]string, 0, len(r.byTable))
	for t := range r.byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// All returns every constraint, grouped by owning table in name order.
func (r *Registry) All() []*ForeignKey {
	var all []*ForeignKey
	for _, t := range r.Tables() {
		all = append(all, r.byTable[t]...)
	}
	return all
}

// ForeignKeys returns the constraints owned by table.
func (r *Registry) ForeignKeys(table string) []*ForeignKey {
	return slices.Clone(r.byTable[table])
}

// ReverseForeignKeys returns the constraints on other tables that
// reference table.
func (r *Registry) ReverseForeignKeys(table string) []*ForeignKey {
	var out []*ForeignKey
	for _, t := range r.Tables() {
		if t == table {
			continue
		}
		for _, f := range r.byTable[t] {
			if f.ToTable == table {
				out = append(out, f)
			}
		}
	}
	return out
}

// LookupStatus is the outcome of FindForRemoval.
type LookupStatus int

// Lookup outcomes.
const (
	LookupFound LookupStatus = iota
	// LookupIgnored means nothing matched and the caller asked for that
	// to be a no-op.
	LookupIgnored
	LookupMissing
)

// Lookup is the result of FindForRemoval.
type Lookup struct {
	Status     LookupStatus
	ForeignKey *ForeignKey
	Table      string
	Spec       Spec
	// Deprecated is set when the match used the legacy form where the
	// constraint name was passed in place of the referenced table.
	Deprecated bool
}

// Err returns a NotFoundError for LookupMissing and nil otherwise.
func (l Lookup) Err() error {
	if l.Status != LookupMissing {
		return nil
	}
	return &NotFoundError{Table: l.Table, Spec: l.Spec}
}

// FindForRemoval returns the first constraint on table, in declaration
// order, that matches spec.
func (r *Registry) FindForRemoval(table string, spec Spec, ifExists bool) Lookup {
	spec.FromTable = table
	result := Lookup{Table: table, Spec: spec}

	fks := r.byTable[table]
	if spec.Name == "" && spec.ToTable != "" && len(spec.Columns) == 0 {
		for _, f := range fks {
			if f.Name == spec.ToTable {
				result.Status = LookupFound
				result.ForeignKey = f
				result.Deprecated = true
				return result
			}
		}
	}

	for _, f := range fks {
		if f.Match(spec) {
			result.Status = LookupFound
			result.ForeignKey = f
			return result
		}
	}

	if ifExists {
		result.Status = LookupIgnored
	} else {
		result.Status = LookupMissing
	}
	return result
}

// RenameTable moves the constraints owned by oldName to newName. A
// constraint name containing oldName has its first occurrence replaced.
// Constraints on other tables pointing at oldName are repointed. It
// returns the constraints that were owned by oldName.
func (r *Registry) RenameTable(oldName, newName string) []*ForeignKey {
	owned := r.byTable[oldName]
	delete(r.byTable, oldName)
	for _, f := range owned {
		f.FromTable = newName
		if f.ToTable == oldName {
			f.ToTable = newName
		}
		if oldName != "" && strings.Contains(f.Name, oldName) {
			f.Name = strings.Replace(f.Name, oldName, newName, 1)
		}
	}
	if len(owned) > 0 {
		r.byTable[newName] = append(r.byTable[newName], owned...)
	}

	for t, fks := range r.byTable {
		if t == newName {
			continue
		}
		for _, f := range fks {
			if f.ToTable == oldName {
				f.ToTable = newName
			}
		}
	}
	return slices.Clone(owned)
}

// DropTable removes every constraint owned by or referencing table.
func (r *Registry) DropTable(table string) {
	delete(r.byTable, table)
	for t, fks := range r.byTable {
		kept := slices.DeleteFunc(fks, func(f *ForeignKey) bool { return f.ToTable == table })
		if len(kept) == 0 {
			delete(r.byTable, t)
		} else {
			r.byTable[t] = kept
		}
	}
}

// DropColumn removes the constraints of table that include column.
func (r *Registry) DropColumn(table, column string) []*ForeignKey {
	var dropped []*ForeignKey
	kept := slices.DeleteFunc(r.byTable[table], func(f *ForeignKey) bool {
		if slices.Contains(f.Columns, column) {
			dropped = append(dropped, f)
			return true
		}
		return false
	})
	if len(kept) == 0 {
		delete(r.byTable, table)
	} else {
		r.byTable[table] = kept
	}
	return dropped
}
