package toml

import (
	"reflect"
	"slices"
	"strconv"
	"time"

	gotoml "github.com/pelletier/go-toml/v2"
)

// FromAny converts plain Go values into a Node. Maps become tables with their
// keys sorted, since Go maps carry no order; build a *Table directly when the
// order matters. The local date and time types of go-toml/v2 map to the
// matching local kinds, so documents decoded by it convert without loss.
// A map, slice or pointer that contains itself is reported as ErrCycle.
func FromAny(v any) (Node, error) {
	c := &converter{active: make(map[visit]struct{})}
	return c.fromAny(v, nil)
}

// visit identifies a map, slice or pointer on the active conversion path.
// Slices sharing a backing array differ by length.
type visit struct {
	ptr uintptr
	len int
	typ reflect.Type
}

type converter struct {
	active map[visit]struct{}
}

func (c *converter) enter(rv reflect.Value, path []string) (visit, error) {
	key := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() != reflect.Pointer {
		key.len = rv.Len()
	}
	if key.ptr == 0 {
		return key, nil
	}
	if _, ok := c.active[key]; ok {
		return key, encodeErr(ErrCycle, path, "%s contains itself", rv.Type())
	}
	c.active[key] = struct{}{}
	return key, nil
}

func (c *converter) leave(key visit) {
	delete(c.active, key)
}

func (c *converter) fromAny(v any, path []string) (Node, error) {
	switch x := v.(type) {
	case nil:
		return nil, encodeErr(ErrInvalidValueKind, path, "nil value")
	case Node:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return &Value{Type: tomlValueKinds.ValueFloat, V: x}, nil
	case time.Time:
		return Datetime(x), nil
	case gotoml.LocalDate:
		return LocalDate(time.Date(x.Year, time.Month(x.Month), x.Day, 0, 0, 0, 0, time.UTC)), nil
	case gotoml.LocalTime:
		return LocalTime(time.Date(0, time.January, 1, x.Hour, x.Minute, x.Second, x.Nanosecond, time.UTC)), nil
	case gotoml.LocalDateTime:
		return LocalDatetime(time.Date(x.Year, time.Month(x.Month), x.Day,
			x.Hour, x.Minute, x.Second, x.Nanosecond, time.UTC)), nil
	case map[string]any:
		key, err := c.enter(reflect.ValueOf(x), path)
		if err != nil {
			return nil, err
		}
		defer c.leave(key)
		return c.table(x, path)
	case []any:
		key, err := c.enter(reflect.ValueOf(x), path)
		if err != nil {
			return nil, err
		}
		defer c.leave(key)
		return c.array(x, path)
	}
	if i, ok := toInt64(v); ok {
		return Int(i), nil
	}
	return c.fromReflect(reflect.ValueOf(v), path)
}

func (c *converter) table(m map[string]any, path []string) (*Table, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	t := NewTable()
	for _, k := range keys {
		n, err := c.fromAny(m[k], childPath(path, k))
		if err != nil {
			return nil, err
		}
		t.Set(k, n)
	}
	return t, nil
}

func (c *converter) array(elems []any, path []string) (*Array, error) {
	arr := &Array{Elems: make([]Node, len(elems))}
	for i, el := range elems {
		n, err := c.fromAny(el, childPath(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		arr.Elems[i] = n
	}
	return arr, nil
}

func (c *converter) fromReflect(rv reflect.Value, path []string) (Node, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, encodeErr(ErrInvalidValueKind, path, "nil %s", rv.Type())
		}
		key, err := c.enter(rv, path)
		if err != nil {
			return nil, err
		}
		defer c.leave(key)
		return c.fromAny(rv.Elem().Interface(), path)
	case reflect.Interface:
		if rv.IsNil() {
			return nil, encodeErr(ErrInvalidValueKind, path, "nil %s", rv.Type())
		}
		return c.fromAny(rv.Elem().Interface(), path)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, encodeErr(ErrInvalidValueKind, path, "map key type %s is not a string", rv.Type().Key())
		}
		key, err := c.enter(rv, path)
		if err != nil {
			return nil, err
		}
		defer c.leave(key)
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return c.table(m, path)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			key, err := c.enter(rv, path)
			if err != nil {
				return nil, err
			}
			defer c.leave(key)
		}
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return c.array(elems, path)
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if i, ok := toInt64(rv.Uint()); ok {
			return Int(i), nil
		}
		return nil, encodeErr(ErrInvalidValueKind, path, "integer %d overflows int64", rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	}
	return nil, encodeErr(ErrInvalidValueKind, path, "unsupported Go type %T", rv.Interface())
}
