package sqlgen

import (
	"strconv"
	"strings"
)

// LimitStyle selects how a row limit is rendered.
type LimitStyle int

const (
	// LimitKeyword renders "LIMIT n".
	LimitKeyword LimitStyle = iota
	// LimitFetchFirst renders "FETCH FIRST n ROWS ONLY".
	LimitFetchFirst
)

// Dialect is the per-target configuration of the SQL generator.
type Dialect struct {
	Name    string
	Aliases []string

	Quote    string // opening identifier quote
	QuoteEnd string // closing identifier quote
	Escape   string // replacement for QuoteEnd inside an identifier

	Limit LimitStyle
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.QuoteEnd, d.Escape)
	return d.Quote + escaped + d.QuoteEnd
}

// LimitClause renders a row limit.
func (d *Dialect) LimitClause(n int) string {
	switch d.Limit {
	case LimitFetchFirst:
		return "FETCH FIRST " + strconv.Itoa(n) + " ROWS ONLY"
	default:
		return "LIMIT " + strconv.Itoa(n)
	}
}

// Builder assembles a Dialect.
type Builder struct {
	d Dialect
}

// NewDialect starts a dialect with double-quoted identifiers and LIMIT.
func NewDialect(name string) *Builder {
	return &Builder{d: Dialect{
		Name:     strings.ToLower(name),
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
		Limit:    LimitKeyword,
	}}
}

// Aliases adds alternative registry keys.
func (b *Builder) Aliases(names ...string) *Builder {
	for _, n := range names {
		b.d.Aliases = append(b.d.Aliases, strings.ToLower(n))
	}
	return b
}

// Identifiers sets identifier quoting.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.d.Quote = quote
	b.d.QuoteEnd = quoteEnd
	b.d.Escape = escape
	return b
}

// LimitStyle sets the limit syntax.
func (b *Builder) LimitStyle(s LimitStyle) *Builder {
	b.d.Limit = s
	return b
}

// Build returns the finished dialect.
func (b *Builder) Build() *Dialect {
	d := b.d
	return &d
}
