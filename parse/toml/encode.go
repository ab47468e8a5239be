package toml

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultIndent   = 4
	DefaultMaxWidth = 100
)

// Options controls how a document is rendered. A zero Indent or MaxWidth
// selects the default.
type Options struct {
	// MultilineStrings renders strings containing newlines as """ blocks when
	// they are written directly in a table body.
	MultilineStrings bool
	// MultilineThreshold is the rune length a string must exceed before it
	// takes the multiline form.
	MultilineThreshold int
	// Indent is the number of spaces per level of a wrapped inline array.
	Indent int
	// MaxWidth bounds single-line inline arrays and inline array-of-table
	// elements.
	MaxWidth int
}

func DefaultOptions() Options {
	return Options{Indent: DefaultIndent, MaxWidth: DefaultMaxWidth}
}

func (o Options) normalize() Options {
	if o.Indent <= 0 {
		o.Indent = DefaultIndent
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.MultilineThreshold < 0 {
		o.MultilineThreshold = 0
	}
	return o
}

// =========================
// Public API
// =========================

// Encoder writes TOML documents to an output stream.
type Encoder struct {
	w    io.Writer
	opts Options
}

func NewEncoder(w io.Writer, opts Options) *Encoder {
	return &Encoder{w: w, opts: opts}
}

// Encode renders doc and writes it out. Nothing is written when rendering
// fails.
func (enc *Encoder) Encode(doc *Table) error {
	out, err := EncodeWithOptions(doc, enc.opts)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(enc.w, out); err != nil {
		return fmt.Errorf("writing toml document: %w", err)
	}
	return nil
}

// Encode renders doc with the default options.
func Encode(doc *Table) (string, error) {
	return EncodeWithOptions(doc, DefaultOptions())
}

// EncodeWithOptions renders doc as a TOML document. An empty document renders
// as the empty string.
func EncodeWithOptions(doc *Table, opts Options) (string, error) {
	if doc == nil {
		return "", nil
	}
	e := newEncoder(opts)
	if err := e.writeTable(doc, nil, false); err != nil {
		return "", err
	}
	Logger().Debug("encoded toml document",
		zap.Int("keys", doc.Len()),
		zap.Int("bytes", e.buf.Len()),
	)
	return e.buf.String(), nil
}

// Marshal converts v with FromAny and encodes the resulting table.
func Marshal(v any, opts Options) ([]byte, error) {
	n, err := FromAny(v)
	if err != nil {
		return nil, err
	}
	doc, ok := n.(*Table)
	if !ok {
		return nil, encodeErr(ErrInvalidValueKind, nil, "document root is %s, not a table", n.Kind())
	}
	out, err := EncodeWithOptions(doc, opts)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// FormatValue renders a single node the way it would appear inside an inline
// array: strings stay on one line, tables become inline tables.
func FormatValue(n Node, opts Options) (string, error) {
	return newEncoder(opts).formatNode(n, nil, 0, posArray)
}

// =========================
// Encoder State
// =========================

// encoder holds the state of a single encode call.
type encoder struct {
	opts   Options
	buf    strings.Builder
	active map[Node]struct{}
}

func newEncoder(opts Options) *encoder {
	return &encoder{
		opts:   opts.normalize(),
		active: make(map[Node]struct{}),
	}
}

// enter marks n as being rendered; meeting it again below itself is a cycle.
func (e *encoder) enter(n Node, path []string) error {
	if _, ok := e.active[n]; ok {
		return encodeErr(ErrCycle, path, "%s contains itself", n.Kind())
	}
	e.active[n] = struct{}{}
	return nil
}

func (e *encoder) leave(n Node) {
	delete(e.active, n)
}

func childPath(path []string, key string) []string {
	return append(path[:len(path):len(path)], key)
}

// checkKeys verifies that Keys and Items describe the same entries.
func checkKeys(t *Table, path []string) error {
	seen := make(map[string]struct{}, len(t.Keys))
	for _, k := range t.Keys {
		if _, dup := seen[k]; dup {
			return encodeErr(ErrInvariant, path, "key %q listed twice", k)
		}
		seen[k] = struct{}{}
		if _, ok := t.Items[k]; !ok {
			return encodeErr(ErrInvariant, path, "key %q has no value", k)
		}
		if !utf8.ValidString(k) {
			return encodeErr(ErrInvalidValueKind, path, "key %q is not valid UTF-8", k)
		}
	}
	if len(seen) != len(t.Items) {
		return encodeErr(ErrInvariant, path, "%d values are missing from the key order", len(t.Items)-len(seen))
	}
	return nil
}

// =========================
// Table Sections
// =========================

type entryClass uint8

const (
	entryInline entryClass = iota
	entryTable
	entryTableArray
)

// section is a table rendered under its own header after the inline entries
// of its parent.
type section struct {
	key     string
	table   *Table
	inArray bool
}

func (e *encoder) classify(n Node, path []string) (entryClass, error) {
	switch v := n.(type) {
	case *Value:
		if v != nil {
			return entryInline, nil
		}
	case *Table:
		if v != nil {
			return entryTable, nil
		}
	case *Array:
		if v == nil {
			break
		}
		headers, err := e.headerArray(v, path)
		if err != nil {
			return 0, err
		}
		if headers {
			return entryTableArray, nil
		}
		return entryInline, nil
	}
	return 0, encodeErr(ErrInvalidValueKind, path, "unsupported node %T", n)
}

// writeTable writes the inline entries of t, then each nested table and array
// of tables in key order. The header is skipped for the root and for a table
// that holds nothing but nested sections; their headers name it already.
func (e *encoder) writeTable(t *Table, path []string, inArray bool) error {
	if err := e.enter(t, path); err != nil {
		return err
	}
	defer e.leave(t)

	if err := checkKeys(t, path); err != nil {
		return err
	}

	var inline []string
	var sections []section
	for _, k := range t.Keys {
		n := t.Items[k]
		class, err := e.classify(n, childPath(path, k))
		if err != nil {
			return err
		}
		switch class {
		case entryInline:
			inline = append(inline, k)
		case entryTable:
			sections = append(sections, section{key: k, table: n.(*Table)})
		case entryTableArray:
			for _, el := range n.(*Array).Elems {
				sections = append(sections, section{key: k, table: el.(*Table), inArray: true})
			}
		}
	}

	wrote := false
	if inArray || (len(path) > 0 && (len(inline) > 0 || len(sections) == 0)) {
		if inArray {
			e.buf.WriteString("[[" + formatPath(path) + "]]\n")
		} else {
			e.buf.WriteString("[" + formatPath(path) + "]\n")
		}
		wrote = true
	}

	for _, k := range inline {
		val, err := e.formatNode(t.Items[k], childPath(path, k), 0, posBody)
		if err != nil {
			return err
		}
		e.buf.WriteString(FormatKey(k))
		e.buf.WriteString(" = ")
		e.buf.WriteString(val)
		e.buf.WriteByte('\n')
		wrote = true
	}

	for _, s := range sections {
		if wrote {
			e.buf.WriteByte('\n')
		}
		wrote = true
		if err := e.writeTable(s.table, childPath(path, s.key), s.inArray); err != nil {
			return err
		}
	}
	return nil
}

// headerArray reports whether a renders as [[path]] blocks: it is a non-empty
// array of tables and at least one element does not fit on an inline line.
func (e *encoder) headerArray(a *Array, path []string) (bool, error) {
	if len(a.Elems) == 0 {
		return false, nil
	}
	for _, el := range a.Elems {
		if t, ok := el.(*Table); !ok || t == nil {
			return false, nil
		}
	}
	for i, el := range a.Elems {
		fits, err := e.fitsInline(el.(*Table), childPath(path, strconv.Itoa(i)))
		if err != nil {
			return false, err
		}
		if !fits {
			Logger().Debug("rendering array of tables as headers",
				zap.String("path", formatPath(path)),
				zap.Int("elements", len(a.Elems)),
			)
			return true, nil
		}
	}
	return false, nil
}

func (e *encoder) fitsInline(t *Table, path []string) (bool, error) {
	s, err := e.inlineTable(t, path)
	if err != nil {
		return false, err
	}
	line := strings.Repeat(" ", e.opts.Indent) + s + ","
	if utf8.RuneCountInString(line) > e.opts.MaxWidth || strings.Contains(line, "\n") {
		return false, nil
	}
	return !e.holdsMultiline(t), nil
}

// holdsMultiline reports whether a string under n would take the multiline
// form if it were written in a table body.
func (e *encoder) holdsMultiline(n Node) bool {
	switch v := n.(type) {
	case *Value:
		s, ok := v.V.(string)
		return ok && v.Type == tomlValueKinds.ValueString && e.opts.wantsMultiline(s)
	case *Array:
		for _, el := range v.Elems {
			if e.holdsMultiline(el) {
				return true
			}
		}
	case *Table:
		for _, k := range v.Keys {
			if e.holdsMultiline(v.Items[k]) {
				return true
			}
		}
	}
	return false
}

// =========================
// Inline Values
// =========================

// position is where an inline value is written.
type position uint8

const (
	posBody   position = iota // directly in a table body
	posArray                  // element of an inline array
	posInline                 // inside an inline table
)

func (e *encoder) formatNode(n Node, path []string, level int, pos position) (string, error) {
	switch v := n.(type) {
	case *Value:
		if v == nil {
			break
		}
		s, err := formatScalar(v, e.opts, pos == posBody)
		if err != nil {
			return "", &EncodeError{Err: err, Path: append([]string(nil), path...)}
		}
		return s, nil
	case *Array:
		if v == nil {
			break
		}
		return e.inlineArray(v, path, level, pos == posInline)
	case *Table:
		if v == nil {
			break
		}
		return e.inlineTable(v, path)
	}
	return "", encodeErr(ErrInvalidValueKind, path, "unsupported node %T", n)
}

// inlineArray renders a on one line when it fits in MaxWidth, otherwise one
// element per line. flat forces the single-line form.
func (e *encoder) inlineArray(a *Array, path []string, level int, flat bool) (string, error) {
	if err := e.enter(a, path); err != nil {
		return "", err
	}
	defer e.leave(a)

	if len(a.Elems) == 0 {
		return "[]", nil
	}
	pos := posArray
	if flat {
		pos = posInline
	}
	items := make([]string, len(a.Elems))
	for i, el := range a.Elems {
		s, err := e.formatNode(el, childPath(path, strconv.Itoa(i)), level+1, pos)
		if err != nil {
			return "", err
		}
		items[i] = s
	}

	single := "[ " + strings.Join(items, ", ") + ",]"
	if flat || utf8.RuneCountInString(single) <= e.opts.MaxWidth {
		return single, nil
	}

	indent := strings.Repeat(" ", e.opts.Indent*(level+1))
	var b strings.Builder
	b.WriteString("[\n")
	for _, item := range items {
		b.WriteString(indent)
		b.WriteString(item)
		b.WriteString(",\n")
	}
	b.WriteString(strings.Repeat(" ", e.opts.Indent*level))
	b.WriteString("]")
	return b.String(), nil
}

func (e *encoder) inlineTable(t *Table, path []string) (string, error) {
	if err := e.enter(t, path); err != nil {
		return "", err
	}
	defer e.leave(t)

	if err := checkKeys(t, path); err != nil {
		return "", err
	}
	if len(t.Keys) == 0 {
		return "{}", nil
	}
	parts := make([]string, len(t.Keys))
	for i, k := range t.Keys {
		val, err := e.formatNode(t.Items[k], childPath(path, k), 0, posInline)
		if err != nil {
			return "", err
		}
		parts[i] = FormatKey(k) + " = " + val
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}
