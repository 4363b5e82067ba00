package migrate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/tordrt/fkschema/internal/fk"
)

// Statement calls understood by Apply.
const (
	CallAddForeignKey    = "add_foreign_key"
	CallRemoveForeignKey = "remove_foreign_key"
	CallRenameTable      = "rename_table"
	CallDropTable        = "drop_table"
	CallRemoveColumn     = "remove_column"
)

// Symbol is a :keyword option value.
type Symbol string

// Statement is one parsed call line such as
//
//	add_foreign_key "comments", "posts", column: "post_id", on_delete: :cascade
//
// Option values are string, []string, Symbol or bool.
type Statement struct {
	Call    string
	Args    []string
	Options map[string]any
	// Keys keeps the options in source order.
	Keys []string
}

// ParseStatement parses one call line.
func ParseStatement(line string) (*Statement, error) {
	p := newParser(line)
	st, err := p.statement()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", strings.TrimSpace(line), err)
	}
	return st, nil
}

type parser struct {
	s   scanner.Scanner
	tok rune
	err error
}

func newParser(src string) *parser {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanInts
	p.s.Error = func(_ *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = fmt.Errorf("%s", msg)
		}
	}
	p.next()
	return p
}

func (p *parser) next() {
	p.tok = p.s.Scan()
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		return p.unexpected()
	}
	p.next()
	return nil
}

func (p *parser) unexpected() error {
	if p.err != nil {
		return p.err
	}
	if p.tok == scanner.EOF {
		return fmt.Errorf("unexpected end of statement")
	}
	return fmt.Errorf("unexpected %q at column %d", p.s.TokenText(), p.s.Position.Column)
}

func (p *parser) statement() (*Statement, error) {
	if p.tok != scanner.Ident {
		return nil, p.unexpected()
	}
	st := &Statement{Call: p.s.TokenText(), Options: make(map[string]any)}
	p.next()

	paren := p.tok == '('
	if paren {
		p.next()
	}

	for p.tok != scanner.EOF && p.tok != ')' {
		switch p.tok {
		case scanner.String:
			if len(st.Keys) > 0 {
				return nil, fmt.Errorf("positional argument after options")
			}
			s, err := strconv.Unquote(p.s.TokenText())
			if err != nil {
				return nil, err
			}
			st.Args = append(st.Args, s)
			p.next()
		case scanner.Ident:
			key := p.s.TokenText()
			p.next()
			if err := p.expect(':'); err != nil {
				return nil, err
			}
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			if _, dup := st.Options[key]; dup {
				return nil, fmt.Errorf("duplicate option %s", key)
			}
			st.Options[key] = v
			st.Keys = append(st.Keys, key)
		default:
			return nil, p.unexpected()
		}

		if p.tok == ',' {
			p.next()
			continue
		}
		if p.tok != scanner.EOF && p.tok != ')' {
			return nil, p.unexpected()
		}
	}

	if paren {
		if err := p.expect(')'); err != nil {
			return nil, err
		}
	}
	if p.tok != scanner.EOF {
		return nil, p.unexpected()
	}
	return st, p.err
}

func (p *parser) value() (any, error) {
	switch p.tok {
	case scanner.String:
		s, err := strconv.Unquote(p.s.TokenText())
		if err != nil {
			return nil, err
		}
		p.next()
		return s, nil
	case ':':
		p.next()
		if p.tok != scanner.Ident {
			return nil, p.unexpected()
		}
		sym := Symbol(p.s.TokenText())
		p.next()
		return sym, nil
	case scanner.Ident:
		text := p.s.TokenText()
		p.next()
		switch text {
		case "true":
			return true, nil
		case "false", "nil":
			return false, nil
		}
		return nil, fmt.Errorf("unexpected %q", text)
	case '[':
		p.next()
		var items []string
		for p.tok != ']' {
			if p.tok != scanner.String {
				return nil, p.unexpected()
			}
			s, err := strconv.Unquote(p.s.TokenText())
			if err != nil {
				return nil, err
			}
			items = append(items, s)
			p.next()
			if p.tok == ',' {
				p.next()
			} else if p.tok != ']' {
				return nil, p.unexpected()
			}
		}
		p.next()
		return items, nil
	default:
		return nil, p.unexpected()
	}
}

func (st *Statement) arity(want string, ok bool) error {
	if ok {
		return nil
	}
	return &fk.ArityError{Call: st.Call, Want: want, Got: len(st.Args)}
}

func (st *Statement) invalid(key, msg string) error {
	table := ""
	if len(st.Args) > 0 {
		table = st.Args[0]
	}
	return &fk.ValidationError{Table: table, Field: key, Message: msg}
}

func (st *Statement) stringList(key string) ([]string, error) {
	switch v := st.Options[key].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	default:
		return nil, st.invalid(key, fmt.Sprintf("expected a string or a list, got %v", v))
	}
}

func (st *Statement) str(key string) (string, error) {
	switch v := st.Options[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", st.invalid(key, fmt.Sprintf("expected a string, got %v", v))
	}
}

func keyword(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", true
	case Symbol:
		return string(v), true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// allow rejects any option not in keys.
func (st *Statement) allow(keys ...string) error {
	for _, key := range st.Keys {
		if !slices.Contains(keys, key) {
			return st.invalid(key, "unknown option")
		}
	}
	return nil
}

// AddOptions converts an add_foreign_key statement to constraint options.
// deprecated lists legacy keywords that were accepted.
func (st *Statement) AddOptions() (from, to string, opts fk.Options, deprecated []string, err error) {
	if st.Call != CallAddForeignKey {
		return "", "", opts, nil, fmt.Errorf("not an %s statement: %s", CallAddForeignKey, st.Call)
	}
	if err := st.arity("2", len(st.Args) == 2); err != nil {
		return "", "", opts, nil, err
	}
	from, to = st.Args[0], st.Args[1]

	if err := st.allow("column", "primary_key", "name", "on_update", "on_delete", "deferrable"); err != nil {
		return "", "", opts, nil, err
	}

	if opts.Columns, err = st.stringList("column"); err != nil {
		return
	}
	if opts.PrimaryKey, err = st.stringList("primary_key"); err != nil {
		return
	}
	if opts.Name, err = st.str("name"); err != nil {
		return
	}

	for _, key := range []string{"on_update", "on_delete"} {
		kw, ok := keyword(st.Options[key])
		if !ok {
			return "", "", opts, nil, st.invalid(key, "expected a :symbol")
		}
		a, perr := fk.ParseAction(kw)
		if perr != nil {
			return "", "", opts, nil, st.invalid(key, perr.Error())
		}
		if fk.IsDeprecatedAction(kw) {
			deprecated = append(deprecated, key+": :"+kw)
		}
		if key == "on_update" {
			opts.OnUpdate = a
		} else {
			opts.OnDelete = a
		}
	}

	kw, ok := keyword(st.Options["deferrable"])
	if !ok {
		return "", "", opts, nil, st.invalid("deferrable", "expected true, false or :initially_deferred")
	}
	if opts.Deferrable, err = fk.ParseDeferrable(kw); err != nil {
		return "", "", opts, nil, st.invalid("deferrable", err.Error())
	}
	return from, to, opts, deprecated, nil
}

// Apply parses one statement line and runs it.
func (m *Migrator) Apply(ctx context.Context, line string) error {
	st, err := ParseStatement(line)
	if err != nil {
		return err
	}

	switch st.Call {
	case CallAddForeignKey:
		from, to, opts, deprecated, err := st.AddOptions()
		if err != nil {
			return err
		}
		for _, d := range deprecated {
			m.logger.Warn("deprecated action keyword, use :nullify", slog.String("option", d))
		}
		_, err = m.AddForeignKey(ctx, from, to, opts)
		return err

	case CallRemoveForeignKey:
		if err := st.arity("1 or 2", len(st.Args) == 1 || len(st.Args) == 2); err != nil {
			return err
		}
		if err := st.allow("column", "name", "if_exists"); err != nil {
			return err
		}
		spec := fk.Spec{}
		if len(st.Args) == 2 {
			spec.ToTable = st.Args[1]
		}
		if spec.Columns, err = st.stringList("column"); err != nil {
			return err
		}
		if spec.Name, err = st.str("name"); err != nil {
			return err
		}
		ifExists, ok := st.Options["if_exists"].(bool)
		if _, set := st.Options["if_exists"]; set && !ok {
			return st.invalid("if_exists", "expected true or false")
		}
		_, err = m.RemoveForeignKey(ctx, st.Args[0], spec, ifExists)
		return err

	case CallRenameTable:
		if err := st.arity("2", len(st.Args) == 2); err != nil {
			return err
		}
		_, err := m.RenameTable(ctx, st.Args[0], st.Args[1])
		return err

	case CallDropTable:
		if err := st.arity("1", len(st.Args) == 1); err != nil {
			return err
		}
		if err := st.allow(); err != nil {
			return err
		}
		return m.DropTable(ctx, st.Args[0])

	case CallRemoveColumn:
		if err := st.arity("2", len(st.Args) == 2); err != nil {
			return err
		}
		if err := st.allow(); err != nil {
			return err
		}
		_, err := m.RemoveColumn(ctx, st.Args[0], st.Args[1])
		return err

	default:
		return fmt.Errorf("unsupported statement: %s", st.Call)
	}
}

// ApplyScript applies every statement line read from r. Blank lines and
// lines starting with # are skipped.
func (m *Migrator) ApplyScript(ctx context.Context, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	applied := 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := m.Apply(ctx, line); err != nil {
			return applied, fmt.Errorf("line %d: %w", lineNo, err)
		}
		applied++
	}
	if err := sc.Err(); err != nil {
		return applied, fmt.Errorf("failed to read statements: %w", err)
	}
	return applied, nil
}
