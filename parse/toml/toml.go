package toml

// toml 包提供 TOML 文档的有序内存模型，以及围绕该模型的读写两端：
//
// - Parse：逐行读取 TOML 文本，构建保持键顺序的 AST（表 / 数组 / 值）
// - Encode：将有序 AST 渲染回 TOML 文本（见 encode.go）
//
// 范围：
// - TOML v1.0.0 核心功能
// - 显式 AST，键按插入顺序迭代
// - 安全的点分键处理
// - 表、数组表的输出结构判定
// - 确定性错误
//
// 非目标（设计如此）：
// - 注释保留
// - 与原始文档的格式化往返
// - 流式读写

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// =========================
// AST Definitions
// =========================

type ValueKind string

var tomlValueKinds = struct {
	ValueString        ValueKind
	ValueInt           ValueKind
	ValueFloat         ValueKind
	ValueBool          ValueKind
	ValueDatetime      ValueKind
	ValueLocalDate     ValueKind
	ValueLocalTime     ValueKind
	ValueLocalDatetime ValueKind
	ValueLiteral       ValueKind
	ValueTable         ValueKind
	ValueArray         ValueKind
}{
	ValueString:        "string",
	ValueInt:           "int",
	ValueFloat:         "float",
	ValueBool:          "bool",
	ValueDatetime:      "datetime",
	ValueLocalDate:     "local_date",
	ValueLocalTime:     "local_time",
	ValueLocalDatetime: "local_datetime",
	ValueLiteral:       "literal",
	ValueTable:         "table",
	ValueArray:         "array",
}

// Node is implemented only by *Table, *Array and *Value.
type Node interface {
	Kind() ValueKind
	Value() any
	node()
}

// -------- Table --------

// Table is an ordered mapping. Keys holds every key of Items exactly once, in
// insertion order; the encoder emits entries in that order.
type Table struct {
	Keys  []string
	Items map[string]Node
}

func NewTable() *Table {
	return &Table{Items: make(map[string]Node)}
}

func (*Table) Kind() ValueKind { return tomlValueKinds.ValueTable }

func (*Table) Value() any { return nil }

func (*Table) node() {}

// Set stores n under key. A new key is appended to the order; an existing
// key keeps its position.
func (t *Table) Set(key string, n Node) *Table {
	if t.Items == nil {
		t.Items = make(map[string]Node)
	}
	if _, ok := t.Items[key]; !ok {
		t.Keys = append(t.Keys, key)
	}
	t.Items[key] = n
	return t
}

func (t *Table) Lookup(key string) (Node, bool) {
	n, ok := t.Items[key]
	return n, ok
}

func (t *Table) Delete(key string) {
	if _, ok := t.Items[key]; !ok {
		return
	}
	delete(t.Items, key)
	for i, k := range t.Keys {
		if k == key {
			t.Keys = append(t.Keys[:i:i], t.Keys[i+1:]...)
			break
		}
	}
}

func (t *Table) Len() int { return len(t.Keys) }

// -------- Array --------

type Array struct {
	Elems []Node
}

func NewArray(elems ...Node) *Array {
	return &Array{Elems: elems}
}

func (v *Array) Kind() ValueKind { return tomlValueKinds.ValueArray }

func (v *Array) Value() any { return v.Elems }

func (*Array) node() {}

// -------- Value --------

type Value struct {
	Type ValueKind
	V    any
}

func (v *Value) Kind() ValueKind { return v.Type }

func (v *Value) Value() any { return v.V }

func (*Value) node() {}

func String(s string) *Value { return &Value{Type: tomlValueKinds.ValueString, V: s} }

func Int(i int64) *Value { return &Value{Type: tomlValueKinds.ValueInt, V: i} }

func Float(f float64) *Value { return &Value{Type: tomlValueKinds.ValueFloat, V: f} }

func Bool(b bool) *Value { return &Value{Type: tomlValueKinds.ValueBool, V: b} }

func Datetime(t time.Time) *Value { return &Value{Type: tomlValueKinds.ValueDatetime, V: t} }

func LocalDate(t time.Time) *Value { return &Value{Type: tomlValueKinds.ValueLocalDate, V: t} }

func LocalTime(t time.Time) *Value { return &Value{Type: tomlValueKinds.ValueLocalTime, V: t} }

func LocalDatetime(t time.Time) *Value {
	return &Value{Type: tomlValueKinds.ValueLocalDatetime, V: t}
}

// Literal wraps text that is already valid TOML. It is written verbatim.
func Literal(text string) *Value { return &Value{Type: tomlValueKinds.ValueLiteral, V: text} }

// =========================
// Public API
// =========================

// Parse parses TOML input from r and returns a root Table whose keys keep
// their document order.
func Parse(r io.Reader) (*Table, error) {
	p := &parser{
		scanner: bufio.NewScanner(r),
		root:    NewTable(),
		cur:     nil,
	}
	p.cur = p.root

	for p.scanner.Scan() {
		line := strings.TrimSpace(p.scanner.Text())
		p.lineNo++

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "["):
			if err := p.parseTableHeader(line); err != nil {
				return nil, err
			}
		default:
			idx := findUnquotedEqual(line)
			if idx < 0 {
				return nil, p.errf("invalid syntax")
			}
			if err := p.parseKeyValue(line, idx); err != nil {
				return nil, err
			}
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	return p.root, nil
}

// =========================
// Parser Implementation
// =========================

type parser struct {
	scanner *bufio.Scanner
	root    *Table
	cur     *Table
	lineNo  int
}

func (p *parser) parseTableHeader(line string) error {
	s := strings.TrimSpace(stripComment(line))
	isArray := strings.HasPrefix(s, "[[")
	if isArray {
		if !strings.HasSuffix(s, "]]") {
			return p.errf("invalid array-of-table header")
		}
	} else if !strings.HasSuffix(s, "]") {
		return p.errf("invalid table header")
	}
	var name string
	if isArray {
		name = strings.TrimSpace(s[2 : len(s)-2])
	} else {
		name = strings.TrimSpace(s[1 : len(s)-1])
	}
	parts, err := parseKeyParts(name)
	if err != nil {
		return p.errf(err.Error())
	}

	if !isArray {
		t := p.root
		for _, part := range parts {
			next, ok := childTable(t, part)
			if !ok {
				return p.errf(fmt.Sprintf("key %q already defined and is not a table", part))
			}
			t = next
		}
		p.cur = t
		return nil
	}

	parent := p.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := childTable(parent, part)
		if !ok {
			return p.errf(fmt.Sprintf("key %q already defined and is not a table", part))
		}
		parent = next
	}
	last := parts[len(parts)-1]
	var arr *Array
	existing, ok := parent.Items[last]
	if !ok {
		arr = &Array{Elems: make([]Node, 0)}
		parent.Set(last, arr)
	} else {
		arr, ok = existing.(*Array)
		if !ok {
			return p.errf(fmt.Sprintf("key %q already defined and is not an array", last))
		}
	}
	newTbl := NewTable()
	arr.Elems = append(arr.Elems, newTbl)
	p.cur = newTbl
	return nil
}

func (p *parser) parseKeyValue(line string, idx int) error {
	key := strings.TrimSpace(line[:idx])
	val := strings.TrimSpace(line[idx+1:])

	parts, err := parseKeyParts(key)
	if err != nil {
		return p.errf(err.Error())
	}

	t := p.cur
	for _, part := range parts[:len(parts)-1] {
		next, ok := childTable(t, part)
		if !ok {
			return p.errf(fmt.Sprintf("key %q already defined and is not a table", part))
		}
		t = next
	}

	last := parts[len(parts)-1]
	if _, exists := t.Items[last]; exists {
		return p.errf(fmt.Sprintf("duplicate key %q", last))
	}

	fullVal, err := p.consumeValue(val)
	if err != nil {
		return p.errf(err.Error())
	}
	v, err := parseValue(fullVal)
	if err != nil {
		return p.errf(err.Error())
	}

	t.Set(last, v)
	return nil
}

// consumeValue keeps reading lines while a multiline string, array or inline
// table opened on the current line is still open.
func (p *parser) consumeValue(initial string) (string, error) {
	if strings.TrimSpace(stripComment(initial)) == "" {
		return "", errors.New("empty value")
	}
	var st lexState
	depth := st.depth(initial, 0)
	var b strings.Builder
	b.WriteString(initial)
	for depth > 0 || st.multi {
		if !p.scanner.Scan() {
			if st.multi {
				return "", errors.New("unterminated multiline string")
			}
			return "", errors.New("unterminated compound value")
		}
		line := p.scanner.Text()
		p.lineNo++
		b.WriteString("\n")
		b.WriteString(line)
		depth = st.depth(line, depth)
	}
	return b.String(), nil
}

func (p *parser) errf(msg string) error {
	return fmt.Errorf("toml:%d: %s", p.lineNo, msg)
}

// childTable returns the table under key, creating it when absent. A key
// holding an array of tables resolves to its last element.
func childTable(t *Table, key string) (*Table, bool) {
	n, ok := t.Items[key]
	if !ok {
		next := NewTable()
		t.Set(key, next)
		return next, true
	}
	switch v := n.(type) {
	case *Table:
		return v, true
	case *Array:
		if len(v.Elems) > 0 {
			last, ok := v.Elems[len(v.Elems)-1].(*Table)
			return last, ok
		}
	}
	return nil, false
}

// =========================
// Value Parsing
// =========================

func parseValue(s string) (Node, error) {
	s = strings.TrimSpace(stripComment(s))
	if s == "" {
		return nil, errors.New("empty value")
	}
	if strings.HasPrefix(s, `"""`) {
		content, ok := extractTripleQuoted(s, '"')
		if !ok {
			return nil, errors.New("unterminated multiline string")
		}
		decoded, err := decodeBasicString(content, true)
		if err != nil {
			return nil, err
		}
		return String(decoded), nil
	}
	if strings.HasPrefix(s, `'''`) {
		content, ok := extractTripleQuoted(s, '\'')
		if !ok {
			return nil, errors.New("unterminated multiline literal string")
		}
		return String(content), nil
	}
	if strings.HasPrefix(s, `"`) {
		content, ok := extractSingleQuoted(s, '"')
		if !ok {
			return nil, errors.New("unterminated string")
		}
		decoded, err := decodeBasicString(content, false)
		if err != nil {
			return nil, err
		}
		return String(decoded), nil
	}
	if strings.HasPrefix(s, `'`) {
		content, ok := extractSingleQuoted(s, '\'')
		if !ok {
			return nil, errors.New("unterminated literal string")
		}
		return String(content), nil
	}
	if strings.HasPrefix(s, "[") {
		return parseArrayToken(s)
	}
	if strings.HasPrefix(s, "{") {
		return parseInlineTableToken(s)
	}
	if s == "true" || s == "false" {
		return Bool(s == "true"), nil
	}
	if f, ok := parseSpecialFloat(s); ok {
		return Float(f), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, normalizeDatetime(s)); err == nil {
		return Datetime(t), nil
	}
	if t, ok := parseLocalDateTimeVariants(s); ok {
		return t, nil
	}
	if i, err := parseIntToken(s); err == nil {
		return Int(i), nil
	}
	if f, err := parseFloatToken(s); err == nil {
		return Float(f), nil
	}
	return nil, errors.New("unsupported value")
}

// normalizeDatetime accepts the space-separated date-time form.
func normalizeDatetime(s string) string {
	if len(s) > 10 && s[10] == ' ' {
		return s[:10] + "T" + s[11:]
	}
	return s
}

func parseLocalDateTimeVariants(s string) (Node, bool) {
	s = normalizeDatetime(s)
	for _, l := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(l, s); err == nil {
			return LocalDatetime(t), true
		}
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return LocalDate(d), true
	}
	for _, l := range []string{"15:04:05", "15:04:05.999999999"} {
		if t, err := time.Parse(l, s); err == nil {
			return LocalTime(t), true
		}
	}
	return nil, false
}

func parseIntToken(s string) (int64, error) {
	s = strings.ReplaceAll(s, "_", "")
	sign := int64(1)
	body := s
	if strings.HasPrefix(body, "-") || strings.HasPrefix(body, "+") {
		if body[0] == '-' {
			sign = -1
		}
		body = body[1:]
	}
	base := 0
	switch {
	case strings.HasPrefix(body, "0x"):
		base = 16
	case strings.HasPrefix(body, "0o"):
		base = 8
	case strings.HasPrefix(body, "0b"):
		base = 2
	}
	if base == 0 {
		return strconv.ParseInt(s, 10, 64)
	}
	v, err := strconv.ParseUint(body[2:], base, 64)
	if err != nil {
		return 0, err
	}
	return int64(v) * sign, nil
}

func parseSpecialFloat(s string) (float64, bool) {
	switch s {
	case "inf", "+inf":
		return math.Inf(+1), true
	case "-inf":
		return math.Inf(-1), true
	case "nan", "+nan", "-nan":
		return math.NaN(), true
	}
	return 0, false
}

func parseFloatToken(s string) (float64, error) {
	if f, ok := parseSpecialFloat(s); ok {
		return f, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
}

func parseArrayToken(s string) (*Array, error) {
	content := strings.TrimSpace(stripComment(s))
	if !strings.HasPrefix(content, "[") || !strings.HasSuffix(content, "]") {
		return nil, errors.New("invalid array")
	}
	content = strings.TrimSpace(content[1 : len(content)-1])
	parts := splitTopLevel(content, ',')
	arr := &Array{Elems: make([]Node, 0, len(parts))}
	for _, part := range parts {
		if part == "" {
			continue
		}
		v, err := parseValue(part)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, v)
	}
	return arr, nil
}

func parseInlineTableToken(s string) (*Table, error) {
	content := strings.TrimSpace(stripComment(s))
	if !strings.HasPrefix(content, "{") || !strings.HasSuffix(content, "}") {
		return nil, errors.New("invalid inline table")
	}
	inner := strings.TrimSpace(content[1 : len(content)-1])
	t := NewTable()
	for _, pair := range splitTopLevel(inner, ',') {
		if pair == "" {
			continue
		}
		idx := findUnquotedEqual(pair)
		if idx < 0 {
			return nil, errors.New("invalid inline table kv")
		}
		parts, err := parseKeyParts(strings.TrimSpace(pair[:idx]))
		if err != nil {
			return nil, err
		}
		cur := t
		for _, part := range parts[:len(parts)-1] {
			next, ok := childTable(cur, part)
			if !ok {
				return nil, errors.New("inline table path conflict")
			}
			cur = next
		}
		last := parts[len(parts)-1]
		if _, exists := cur.Items[last]; exists {
			return nil, errors.New("duplicate inline table key")
		}
		v, err := parseValue(strings.TrimSpace(pair[idx+1:]))
		if err != nil {
			return nil, err
		}
		cur.Set(last, v)
	}
	return t, nil
}

// =========================
// Strings & Keys
// =========================

// parseKeyParts splits a dotted key. Quoted segments may be empty.
func parseKeyParts(s string) ([]string, error) {
	var parts []string
	i := 0
	skipSpace := func() {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
	}
	for {
		skipSpace()
		if i >= len(s) {
			return nil, errors.New("empty key")
		}
		switch s[i] {
		case '"':
			end := closingQuote(s, i+1, '"')
			if end < 0 {
				return nil, errors.New("unterminated quoted key")
			}
			part, err := decodeBasicString(s[i+1:end], false)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			i = end + 1
		case '\'':
			end := closingQuote(s, i+1, '\'')
			if end < 0 {
				return nil, errors.New("unterminated quoted key")
			}
			parts = append(parts, s[i+1:end])
			i = end + 1
		default:
			start := i
			for i < len(s) && s[i] != '.' && s[i] != ' ' && s[i] != '\t' {
				if s[i] == '"' || s[i] == '\'' {
					return nil, errors.New("invalid quoted key position")
				}
				i++
			}
			if i == start {
				return nil, errors.New("empty key segment")
			}
			parts = append(parts, s[start:i])
		}
		skipSpace()
		if i == len(s) {
			return parts, nil
		}
		if s[i] != '.' {
			return nil, fmt.Errorf("unexpected %q in key", s[i])
		}
		i++
	}
}

// closingQuote returns the index of the quote ending a string that starts at
// from, honouring backslash escapes in basic strings.
func closingQuote(s string, from int, quote byte) int {
	for i := from; i < len(s); i++ {
		if quote == '"' && s[i] == '\\' {
			i++
			continue
		}
		if s[i] == quote {
			return i
		}
	}
	return -1
}

func extractTripleQuoted(s string, quote byte) (string, bool) {
	delim := strings.Repeat(string(quote), 3)
	if !strings.HasPrefix(s, delim) {
		return "", false
	}
	body := s[3:]
	for i := 0; i < len(body); i++ {
		if quote == '"' && body[i] == '\\' {
			i++
			continue
		}
		if !strings.HasPrefix(body[i:], delim) {
			continue
		}
		// up to two quotes may sit directly before the closing delimiter
		end := i
		for end+3 < len(body) && body[end+3] == quote && end-i < 2 {
			end++
		}
		content := body[:end]
		content = strings.TrimPrefix(content, "\r")
		content = strings.TrimPrefix(content, "\n")
		return content, true
	}
	return "", false
}

func extractSingleQuoted(s string, quote byte) (string, bool) {
	if len(s) < 2 || s[0] != quote || s[len(s)-1] != quote {
		return "", false
	}
	return s[1 : len(s)-1], true
}

func decodeBasicString(s string, multiline bool) (string, error) {
	if multiline {
		var b strings.Builder
		for i := 0; i < len(s); i++ {
			if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\\' {
				b.WriteString(`\\`)
				i++
				continue
			}
			if s[i] == '\\' && lineEndingBackslash(s[i+1:]) {
				i++
				for i < len(s) && strings.ContainsRune(" \t\r\n", rune(s[i])) {
					i++
				}
				i--
				continue
			}
			b.WriteByte(s[i])
		}
		s = b.String()
	}
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			out.WriteByte(ch)
			continue
		}
		if i+1 >= len(s) {
			return "", errors.New("invalid escape")
		}
		i++
		switch s[i] {
		case 'b':
			out.WriteByte('\b')
		case 't':
			out.WriteByte('\t')
		case 'n':
			out.WriteByte('\n')
		case 'f':
			out.WriteByte('\f')
		case 'r':
			out.WriteByte('\r')
		case '"':
			out.WriteByte('"')
		case '\\':
			out.WriteByte('\\')
		case 'u', 'U':
			width := 4
			if s[i] == 'U' {
				width = 8
			}
			if i+width >= len(s) {
				return "", errors.New("invalid unicode escape")
			}
			r, err := parseHexRune(s[i+1 : i+1+width])
			if err != nil {
				return "", err
			}
			out.WriteRune(r)
			i += width
		default:
			return "", errors.New("unsupported escape")
		}
	}
	return out.String(), nil
}

// lineEndingBackslash reports whether only whitespace separates a backslash
// from the next newline.
func lineEndingBackslash(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\r':
		case '\n':
			return true
		default:
			return false
		}
	}
	return false
}

func parseHexRune(h string) (rune, error) {
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, err
	}
	return rune(v), nil
}

// =========================
// Lexical Scanning
// =========================

// lexState tracks whether a scan position sits inside a string literal. It
// survives across lines so multiline strings inside arrays are followed.
type lexState struct {
	basic, literal, multi bool
}

// advance consumes the token at s[i] and returns its width and whether it is
// part of a string literal.
func (st *lexState) advance(s string, i int) (int, bool) {
	switch {
	case st.basic:
		if s[i] == '\\' && i+1 < len(s) {
			return 2, true
		}
		if st.multi && strings.HasPrefix(s[i:], `"""`) {
			st.basic, st.multi = false, false
			return 3, true
		}
		if !st.multi && s[i] == '"' {
			st.basic = false
		}
		return 1, true
	case st.literal:
		if st.multi && strings.HasPrefix(s[i:], `'''`) {
			st.literal, st.multi = false, false
			return 3, true
		}
		if !st.multi && s[i] == '\'' {
			st.literal = false
		}
		return 1, true
	}
	switch {
	case strings.HasPrefix(s[i:], `"""`):
		st.basic, st.multi = true, true
		return 3, true
	case s[i] == '"':
		st.basic = true
		return 1, true
	case strings.HasPrefix(s[i:], `'''`):
		st.literal, st.multi = true, true
		return 3, true
	case s[i] == '\'':
		st.literal = true
		return 1, true
	}
	return 1, false
}

// depth returns the bracket depth after scanning line, starting from depth.
func (st *lexState) depth(line string, depth int) int {
	for i := 0; i < len(line); {
		w, quoted := st.advance(line, i)
		if !quoted {
			switch line[i] {
			case '#':
				i = len(line)
				continue
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
		i += w
	}
	if !st.multi {
		st.basic, st.literal = false, false
	}
	return depth
}

// stripComment drops comments outside strings, line by line.
func stripComment(s string) string {
	var b strings.Builder
	var st lexState
	for i := 0; i < len(s); {
		w, quoted := st.advance(s, i)
		if !quoted && s[i] == '#' {
			next := strings.IndexByte(s[i:], '\n')
			if next < 0 {
				break
			}
			i += next
			continue
		}
		b.WriteString(s[i:min(i+w, len(s))])
		i += w
	}
	return b.String()
}

func findUnquotedEqual(s string) int {
	var st lexState
	for i := 0; i < len(s); {
		w, quoted := st.advance(s, i)
		if !quoted && s[i] == '=' {
			return i
		}
		i += w
	}
	return -1
}

// splitTopLevel splits s on sep outside strings, arrays and inline tables.
// Parts are trimmed.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var st lexState
	depth := 0
	start := 0
	for i := 0; i < len(s); {
		w, quoted := st.advance(s, i)
		if !quoted {
			switch s[i] {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			case sep:
				if depth == 0 {
					parts = append(parts, strings.TrimSpace(s[start:i]))
					start = i + 1
				}
			}
		}
		i += w
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// =========================
// Safe Access Helpers
// =========================

func Get(root *Table, path ...string) (Node, bool) {
	var cur Node = root
	for _, p := range path {
		t, ok := cur.(*Table)
		if !ok {
			return nil, false
		}
		cur, ok = t.Items[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SplitKey splits a dotted key the way a table header would.
func SplitKey(key string) ([]string, error) {
	return parseKeyParts(key)
}

func GetUntyped(root *Table, path ...string) (any, bool) {
	n, ok := Get(root, path...)
	if !ok {
		return nil, false
	}
	return ToUntyped(n), true
}

func ToUntyped(n Node) any {
	switch v := n.(type) {
	case *Value:
		return v.V
	case *Array:
		out := make([]any, len(v.Elems))
		for i := range v.Elems {
			out[i] = ToUntyped(v.Elems[i])
		}
		return out
	case *Table:
		m := make(map[string]any, len(v.Keys))
		for _, k := range v.Keys {
			m[k] = ToUntyped(v.Items[k])
		}
		return m
	default:
		return nil
	}
}

func MustString(n Node) string {
	v := n.(*Value)
	return v.V.(string)
}

func MustInt(n Node) int64 {
	v := n.(*Value)
	return v.V.(int64)
}
