// Package convert turns raw body representations into caller-requested types.
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// ErrUnsupported is returned when no conversion exists between two types.
var ErrUnsupported = errors.New("unsupported conversion")

// Converter converts src into the value pointed to by dst.
type Converter interface {
	Convert(src any, dst any) error
}

// Func adapts a function to the Converter interface.
type Func func(src any, dst any) error

// Convert calls f(src, dst).
func (f Func) Convert(src any, dst any) error { return f(src, dst) }

// Error describes a failed conversion.
type Error struct {
	From string
	To   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("convert %s to %s: %v", e.From, e.To, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Default is the converter used when none is configured.
var Default Converter = Standard{}

// Standard converts between strings, bytes, scalars, JSON documents and
// structured values.
type Standard struct{}

// Convert implements Converter.
func (Standard) Convert(src any, dst any) error {
	rv := reflect.ValueOf(dst)
	if dst == nil || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &Error{From: typeName(src), To: typeName(dst), Err: errors.New("destination must be a non-nil pointer")}
	}

	if r, ok := src.(io.Reader); ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return &Error{From: typeName(src), To: typeName(dst), Err: err}
		}
		src = data
	}

	fail := func(err error) error {
		return &Error{From: typeName(src), To: typeName(dst), Err: err}
	}

	switch d := dst.(type) {
	case *any:
		*d = src
		return nil
	case *string:
		s, err := toString(src)
		if err != nil {
			return fail(err)
		}
		*d = s
		return nil
	case *[]byte:
		b, err := toBytes(src)
		if err != nil {
			return fail(err)
		}
		*d = b
		return nil
	case *int:
		n, err := toInt64(src)
		if err != nil {
			return fail(err)
		}
		*d = int(n)
		return nil
	case *int64:
		n, err := toInt64(src)
		if err != nil {
			return fail(err)
		}
		*d = n
		return nil
	case *float64:
		f, err := toFloat64(src)
		if err != nil {
			return fail(err)
		}
		*d = f
		return nil
	case *bool:
		s, err := toString(src)
		if err != nil {
			return fail(err)
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fail(err)
		}
		*d = b
		return nil
	}

	if src == nil {
		return fail(ErrUnsupported)
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(rv.Elem().Type()) {
		rv.Elem().Set(sv)
		return nil
	}

	switch s := src.(type) {
	case []byte:
		if err := json.Unmarshal(s, dst); err != nil {
			return fail(err)
		}
		return nil
	case string:
		if err := json.Unmarshal([]byte(s), dst); err != nil {
			return fail(err)
		}
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fail(err)
	}
	if err := dec.Decode(src); err != nil {
		return fail(err)
	}
	return nil
}

func toString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", ErrUnsupported
	}

	switch reflect.ValueOf(src).Kind() {
	case reflect.Map, reflect.Slice, reflect.Struct, reflect.Array:
		b, err := json.Marshal(src)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return fmt.Sprint(src), nil
}

func toBytes(src any) ([]byte, error) {
	if b, ok := src.([]byte); ok {
		return b, nil
	}
	s, err := toString(src)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func toInt64(src any) (int64, error) {
	switch v := src.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	}
	s, err := toString(src)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

func toFloat64(src any) (float64, error) {
	switch v := src.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	s, err := toString(src)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
