package schema

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
)

var ErrUnavailable = errors.New("schema unavailable")

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

type Table struct {
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primary_key"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Description maps table name to its structure within one namespace.
type Description map[string]Table

type Introspector interface {
	DescribeSchema(ctx context.Context, namespace string) (Description, error)
}

func (d Description) TableNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d Description) HasTable(name string) bool {
	for table := range d {
		if strings.EqualFold(table, name) {
			return true
		}
	}
	return false
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9_]+`)

// Tokens returns the lowercased table and column names.
func (d Description) Tokens() map[string]struct{} {
	tokens := map[string]struct{}{}
	for name, table := range d {
		tokens[strings.ToLower(name)] = struct{}{}
		for _, column := range table.Columns {
			tokens[strings.ToLower(column.Name)] = struct{}{}
		}
	}
	return tokens
}

// References reports whether text mentions at least one table or column name as a whole token.
func (d Description) References(text string) bool {
	if len(d) == 0 {
		return false
	}
	tokens := d.Tokens()
	for _, word := range tokenSplit.Split(strings.ToLower(text), -1) {
		if word == "" {
			continue
		}
		if _, ok := tokens[word]; ok {
			return true
		}
	}
	return false
}

// MentionedTable returns the first known table name that appears as a whole token in text.
func (d Description) MentionedTable(text string) string {
	if len(d) == 0 {
		return ""
	}
	byLower := make(map[string]string, len(d))
	for name := range d {
		byLower[strings.ToLower(name)] = name
	}
	for _, word := range tokenSplit.Split(strings.ToLower(text), -1) {
		if name, ok := byLower[word]; ok {
			return name
		}
	}
	return ""
}

// Render produces the compact prompt form, one table per line:
// users(id integer, email text) pk(id) fk(team_id -> teams.id)
func (d Description) Render() string {
	if len(d) == 0 {
		return "(no tables)"
	}
	var b strings.Builder
	for i, name := range d.TableNames() {
		if i > 0 {
			b.WriteByte('\n')
		}
		table := d[name]
		b.WriteString(name)
		b.WriteByte('(')
		for j, column := range table.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(column.Name)
			if column.Type != "" {
				b.WriteByte(' ')
				b.WriteString(column.Type)
			}
		}
		b.WriteByte(')')
		if len(table.PrimaryKey) > 0 {
			b.WriteString(" pk(")
			b.WriteString(strings.Join(table.PrimaryKey, ", "))
			b.WriteByte(')')
		}
		for _, fk := range table.ForeignKeys {
			b.WriteString(" fk(")
			b.WriteString(fk.Column)
			b.WriteString(" -> ")
			b.WriteString(fk.RefTable)
			b.WriteByte('.')
			b.WriteString(fk.RefColumn)
			b.WriteByte(')')
		}
	}
	return b.String()
}

// Summary lists table names with column counts for display.
func (d Description) Summary() map[string]int {
	out := make(map[string]int, len(d))
	for name, table := range d {
		out[name] = len(table.Columns)
	}
	return out
}

func (d Description) Clone() Description {
	if d == nil {
		return nil
	}
	out := make(Description, len(d))
	for name, table := range d {
		out[name] = Table{
			Columns:     append([]Column(nil), table.Columns...),
			PrimaryKey:  append([]string(nil), table.PrimaryKey...),
			ForeignKeys: append([]ForeignKey(nil), table.ForeignKeys...),
		}
	}
	return out
}
