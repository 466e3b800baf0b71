package importer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ValueKind int

const (
	KindNil ValueKind = iota
	KindString
	KindNumber
	KindDate
	KindList
)

// Value is the loosely-typed cell a parsed row carries into validation. A
// cleaned record holds the coerced form; the strongly-typed entity is built
// only after the whole row validates.
type Value struct {
	kind ValueKind
	str  string
	num  decimal.Decimal
	date time.Time
	list []string
}

func NilValue() Value                   { return Value{kind: KindNil} }
func StringValue(s string) Value        { return Value{kind: KindString, str: s} }
func NumberValue(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }
func DateValue(t time.Time) Value       { return Value{kind: KindDate, date: t} }
func ListValue(items []string) Value    { return Value{kind: KindList, list: items} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNil() bool     { return v.kind == KindNil }

func (v Value) Number() decimal.Decimal { return v.num }
func (v Value) Date() time.Time         { return v.date }

// List returns the elements of a list value. A plain string splits on the
// configured multi-value delimiters so both representations are accepted.
func (v Value) List() []string {
	switch v.kind {
	case KindList:
		return v.list
	case KindString:
		return SplitMultiValue(v.str)
	}
	return nil
}

// String renders the canonical textual form of the value: dates as RFC 3339,
// numbers without noise, lists re-joined on "; ".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindDate:
		return v.date.Format(time.RFC3339)
	case KindList:
		return strings.Join(v.list, "; ")
	}
	return ""
}

// SplitMultiValue splits a delimiter-separated cell into trimmed elements.
// Semicolons take precedence over commas so "Smith, John; Doe, Jane" keeps
// name-internal commas intact.
func SplitMultiValue(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Record is a validated, cleaned row keyed by target field name.
type Record map[string]Value
