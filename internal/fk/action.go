package fk

import (
	"fmt"
	"strings"
)

// Action is a referential action keyword. The zero value means unset,
// which leaves the choice to the engine.
type Action string

// Referential actions.
const (
	ActionNone       Action = ""
	ActionCascade    Action = "cascade"
	ActionRestrict   Action = "restrict"
	ActionNullify    Action = "nullify"
	ActionSetDefault Action = "set_default"
	ActionNoAction   Action = "no_action"
)

// legacySetNull is accepted as an alias for ActionNullify.
const legacySetNull = "set_null"

var actionSQL = map[Action]string{
	ActionCascade:    "CASCADE",
	ActionRestrict:   "RESTRICT",
	ActionNullify:    "SET NULL",
	ActionSetDefault: "SET DEFAULT",
	ActionNoAction:   "NO ACTION",
}

// Valid reports whether a is unset or a known action.
func (a Action) Valid() bool {
	if a == ActionNone {
		return true
	}
	_, ok := actionSQL[a]
	return ok
}

// SQL returns the keyword used in ON UPDATE / ON DELETE clauses.
func (a Action) SQL() string {
	return actionSQL[a]
}

// ParseAction parses a keyword such as "cascade" or ":nullify".
// The deprecated "set_null" is normalized to ActionNullify.
func ParseAction(s string) (Action, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ":")
	if s == "" {
		return ActionNone, nil
	}
	if s == legacySetNull {
		return ActionNullify, nil
	}
	a := Action(s)
	if !a.Valid() {
		return ActionNone, fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// IsDeprecatedAction reports whether s is a keyword kept only for
// backwards compatibility.
func IsDeprecatedAction(s string) bool {
	return strings.TrimPrefix(strings.TrimSpace(s), ":") == legacySetNull
}

// ActionFromSQL maps a rule reported by an engine catalog
// (information_schema, PRAGMA foreign_key_list) back to an Action.
// The engine default NO ACTION maps to unset.
func ActionFromSQL(rule string) Action {
	switch strings.ToUpper(strings.TrimSpace(rule)) {
	case "CASCADE":
		return ActionCascade
	case "RESTRICT":
		return ActionRestrict
	case "SET NULL":
		return ActionNullify
	case "SET DEFAULT":
		return ActionSetDefault
	default:
		return ActionNone
	}
}

// Deferrable is the deferral mode of a constraint.
type Deferrable int

// Deferral modes.
const (
	NotDeferrable Deferrable = iota
	DeferrableImmediate
	InitiallyDeferred
)

// ParseDeferrable parses "false", "true" or "initially_deferred".
func ParseDeferrable(s string) (Deferrable, error) {
	switch strings.TrimPrefix(strings.TrimSpace(s), ":") {
	case "", "false", "nil":
		return NotDeferrable, nil
	case "true":
		return DeferrableImmediate, nil
	case "initially_deferred":
		return InitiallyDeferred, nil
	default:
		return NotDeferrable, fmt.Errorf("unknown deferrable value %q", s)
	}
}

func (d Deferrable) String() string {
	switch d {
	case DeferrableImmediate:
		return "true"
	case InitiallyDeferred:
		return "initially_deferred"
	default:
		return "false"
	}
}
