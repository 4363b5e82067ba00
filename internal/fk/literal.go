package fk

import (
	"fmt"
	"strconv"
	"strings"
)

// Option is one key/value pair of a dumped options literal. Value holds
// a string, []string, Action, Deferrable or bool.
type Option struct {
	Key   string
	Value any
}

// FormatOptions renders pairs as `key: value, key: value` in the given
// order.
func FormatOptions(opts []Option) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, o.Key+": "+FormatValue(o.Value))
	}
	return strings.Join(parts, ", ")
}

// FormatValue renders a single literal value.
func FormatValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case []string:
		if len(v) == 1 {
			return strconv.Quote(v[0])
		}
		return quoteList(v)
	case Action:
		return ":" + string(v)
	case Deferrable:
		if v == InitiallyDeferred {
			return ":initially_deferred"
		}
		return strconv.FormatBool(v != NotDeferrable)
	case bool:
		return strconv.FormatBool(v)
	case []Option:
		return "{" + FormatOptions(v) + "}"
	default:
		return fmt.Sprint(v)
	}
}
