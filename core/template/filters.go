package template

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// filterFunc implements both pipe filters (input != nil) and bare calls
// (input == nil, e.g. default(x) used outside a pipe).
type filterFunc func(input any, args []any) (any, error)

var filterRegistry = map[string]filterFunc{
	"default": filterDefault,
	"upper":   filterUpper,
	"lower":   filterLower,
	"trim":    filterTrim,
	"length":  filterLength,
	"join":    filterJoin,
	"replace": filterReplace,
	"int":     filterInt,
	"float":   filterFloat,
	"bool":    filterBool,
	"string":  filterString,
	"first":   filterFirst,
	"last":    filterLast,
}

func callFilter(name string, input any, args []any) (any, error) {
	f, ok := filterRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", name)
	}
	return f(input, args)
}

// filterDefault is the escape hatch for undefined/nil/empty values:
// `expr | default(x)` and the bare call form `default(x)` both return x
// whenever the left-hand side is nil or the zero value of its type. An
// error evaluating the left-hand side (such as an undefined variable)
// is returned as is; default does not replace it.
func filterDefault(input any, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("default requires exactly one argument")
	}
	if input == nil || !truthy(input) {
		return args[0], nil
	}
	return input, nil
}

func filterUpper(input any, _ []any) (any, error) {
	s, err := asString(input)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func filterLower(input any, _ []any) (any, error) {
	s, err := asString(input)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func filterTrim(input any, _ []any) (any, error) {
	s, err := asString(input)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

func filterLength(input any, _ []any) (any, error) {
	if input == nil {
		return float64(0), nil
	}
	if s, ok := input.(string); ok {
		return float64(len(s)), nil
	}
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return float64(rv.Len()), nil
	}
	return nil, fmt.Errorf("length: unsupported type %T", input)
}

func filterJoin(input any, args []any) (any, error) {
	sep := ","
	if len(args) > 0 {
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		sep = s
	}
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("join: input is not a list (%T)", input)
	}
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, err := asString(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

func filterReplace(input any, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("replace requires exactly two arguments")
	}
	s, err := asString(input)
	if err != nil {
		return nil, err
	}
	old, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	repl, err := asString(args[1])
	if err != nil {
		return nil, err
	}
	return strings.ReplaceAll(s, old, repl), nil
}

func filterInt(input any, _ []any) (any, error) {
	switch v := input.(type) {
	case float64:
		return float64(int64(v)), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("int: cannot parse %q", v)
		}
		return float64(int64(f)), nil
	case bool:
		if v {
			return float64(1), nil
		}
		return float64(0), nil
	}
	return nil, fmt.Errorf("int: unsupported type %T", input)
}

func filterFloat(input any, _ []any) (any, error) {
	switch v := input.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("float: cannot parse %q", v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("float: unsupported type %T", input)
}

func filterBool(input any, _ []any) (any, error) {
	return truthy(input), nil
}

func filterString(input any, _ []any) (any, error) {
	return asString(input)
}

func filterFirst(input any, _ []any) (any, error) {
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("first: input is not a list (%T)", input)
	}
	if rv.Len() == 0 {
		return nil, fmt.Errorf("first: empty list")
	}
	return rv.Index(0).Interface(), nil
}

func filterLast(input any, _ []any) (any, error) {
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("last: input is not a list (%T)", input)
	}
	if rv.Len() == 0 {
		return nil, fmt.Errorf("last: empty list")
	}
	return rv.Index(rv.Len() - 1).Interface(), nil
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10), nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(x), nil
	}
}
