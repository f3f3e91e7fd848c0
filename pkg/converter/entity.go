package converter

import (
	"math/big"
	"time"
)

// Kind is the Go type a field expects when a row value is written into it.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindInt64
	KindFloat64
	KindBool
	KindTime
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// Field is one entry of an entity's accessor table. Get returns the current
// field value; Set receives nil or a value of the Go type that matches Kind
// (string, int, int64, float64, bool, time.Time, *big.Float).
type Field struct {
	Name string
	Kind Kind
	Get  func() any
	Set  func(v any)
}

// Entity is implemented by domain objects that can be converted to and from
// rows. Fields returns the accessor table in column order.
type Entity interface {
	Fields() []Field
}

func StringField(name string, p *string) Field {
	return Field{
		Name: name,
		Kind: KindString,
		Get:  func() any { return *p },
		Set: func(v any) {
			s, _ := v.(string)
			*p = s
		},
	}
}

func IntField(name string, p *int) Field {
	return Field{
		Name: name,
		Kind: KindInt,
		Get:  func() any { return *p },
		Set: func(v any) {
			n, _ := v.(int)
			*p = n
		},
	}
}

func Int64Field(name string, p *int64) Field {
	return Field{
		Name: name,
		Kind: KindInt64,
		Get:  func() any { return *p },
		Set: func(v any) {
			n, _ := v.(int64)
			*p = n
		},
	}
}

func Float64Field(name string, p *float64) Field {
	return Field{
		Name: name,
		Kind: KindFloat64,
		Get:  func() any { return *p },
		Set: func(v any) {
			f, _ := v.(float64)
			*p = f
		},
	}
}

func BoolField(name string, p *bool) Field {
	return Field{
		Name: name,
		Kind: KindBool,
		Get:  func() any { return *p },
		Set: func(v any) {
			b, _ := v.(bool)
			*p = b
		},
	}
}

// TimeField maps the zero time to a null cell.
func TimeField(name string, p *time.Time) Field {
	return Field{
		Name: name,
		Kind: KindTime,
		Get: func() any {
			if p.IsZero() {
				return nil
			}
			return *p
		},
		Set: func(v any) {
			t, _ := v.(time.Time)
			*p = t
		},
	}
}

// DecimalField holds arbitrary-precision values; a nil pointer is a null cell.
func DecimalField(name string, p **big.Float) Field {
	return Field{
		Name: name,
		Kind: KindDecimal,
		Get: func() any {
			if *p == nil {
				return nil
			}
			return *p
		},
		Set: func(v any) {
			d, _ := v.(*big.Float)
			*p = d
		},
	}
}
