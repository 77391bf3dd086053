package chnative

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is a ClickHouse logical column type. It is a closed set of concrete
// structs, one per variant, dispatched on by a type switch rather than
// virtual methods — the hot primitive column path needs to avoid
// interface-call indirection.
type Type interface {
	// String prints the type in ClickHouse's canonical surface syntax; it is
	// the inverse of ParseType.
	String() string
	isType()
}

// Integer width/signedness variants.
type (
	UInt8Type   struct{}
	UInt16Type  struct{}
	UInt32Type  struct{}
	UInt64Type  struct{}
	UInt128Type struct{}
	UInt256Type struct{}
	Int8Type    struct{}
	Int16Type   struct{}
	Int32Type   struct{}
	Int64Type   struct{}
	Int128Type  struct{}
	Int256Type  struct{}
	Float32Type struct{}
	Float64Type struct{}
	BFloat16Type struct{}
)

func (UInt8Type) isType()    {}
func (UInt16Type) isType()   {}
func (UInt32Type) isType()   {}
func (UInt64Type) isType()   {}
func (UInt128Type) isType()  {}
func (UInt256Type) isType()  {}
func (Int8Type) isType()     {}
func (Int16Type) isType()    {}
func (Int32Type) isType()    {}
func (Int64Type) isType()    {}
func (Int128Type) isType()   {}
func (Int256Type) isType()   {}
func (Float32Type) isType()  {}
func (Float64Type) isType()  {}
func (BFloat16Type) isType() {}

func (UInt8Type) String() string    { return "UInt8" }
func (UInt16Type) String() string   { return "UInt16" }
func (UInt32Type) String() string   { return "UInt32" }
func (UInt64Type) String() string   { return "UInt64" }
func (UInt128Type) String() string  { return "UInt128" }
func (UInt256Type) String() string  { return "UInt256" }
func (Int8Type) String() string     { return "Int8" }
func (Int16Type) String() string    { return "Int16" }
func (Int32Type) String() string    { return "Int32" }
func (Int64Type) String() string    { return "Int64" }
func (Int128Type) String() string   { return "Int128" }
func (Int256Type) String() string   { return "Int256" }
func (Float32Type) String() string  { return "Float32" }
func (Float64Type) String() string  { return "Float64" }
func (BFloat16Type) String() string { return "BFloat16" }

// DecimalType covers Decimal32/64/128/256, the width selected by Precision:
// the smallest signed integer width holding P decimal digits.
type DecimalType struct {
	Precision int
	Scale     int
}

func (DecimalType) isType() {}
func (d DecimalType) String() string {
	return fmt.Sprintf("Decimal(%d, %d)", d.Precision, d.Scale)
}

// Width returns the storage width in bits for the decimal's precision.
func (d DecimalType) Width() int {
	switch {
	case d.Precision <= 9:
		return 32
	case d.Precision <= 18:
		return 64
	case d.Precision <= 38:
		return 128
	default:
		return 256
	}
}

type StringType struct{}

func (StringType) isType()        {}
func (StringType) String() string { return "String" }

type FixedStringType struct{ N int }

func (FixedStringType) isType()          {}
func (f FixedStringType) String() string { return fmt.Sprintf("FixedString(%d)", f.N) }

type DateType struct{}
type Date32Type struct{}

func (DateType) isType()    {}
func (Date32Type) isType() {}
func (DateType) String() string   { return "Date" }
func (Date32Type) String() string { return "Date32" }

// DateTimeType is seconds-since-epoch with an optional IANA timezone name.
type DateTimeType struct{ Timezone string }

func (DateTimeType) isType() {}
func (d DateTimeType) String() string {
	if d.Timezone == "" {
		return "DateTime"
	}
	return fmt.Sprintf("DateTime(%s)", quoteIdent(d.Timezone))
}

// DateTime64Type is ticks-since-epoch at 10^-Precision seconds per tick,
// with an optional timezone.
type DateTime64Type struct {
	Precision int
	Timezone  string
}

func (DateTime64Type) isType() {}
func (d DateTime64Type) String() string {
	if d.Timezone == "" {
		return fmt.Sprintf("DateTime64(%d)", d.Precision)
	}
	return fmt.Sprintf("DateTime64(%d, %s)", d.Precision, quoteIdent(d.Timezone))
}

type UUIDType struct{}
type IPv4Type struct{}
type IPv6Type struct{}

func (UUIDType) isType() {}
func (IPv4Type) isType() {}
func (IPv6Type) isType() {}
func (UUIDType) String() string { return "UUID" }
func (IPv4Type) String() string { return "IPv4" }
func (IPv6Type) String() string { return "IPv6" }

// EnumType covers Enum8 and Enum16; Bits is 8 or 16. Values map names to
// their integer codes and must be unique in both directions.
type EnumType struct {
	Bits   int
	Names  []string
	Values []int64
}

func (EnumType) isType() {}
func (e EnumType) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Enum%d(", e.Bits)
	for i, name := range e.Names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = %d", quoteEnumName(name), e.Values[i])
	}
	b.WriteByte(')')
	return b.String()
}

// NameForValue looks up the enum name for a wire-encoded value.
func (e EnumType) NameForValue(v int64) (string, bool) {
	for i, val := range e.Values {
		if val == v {
			return e.Names[i], true
		}
	}
	return "", false
}

// ValueForName looks up the wire-encoded value for an enum name.
func (e EnumType) ValueForName(name string) (int64, bool) {
	for i, n := range e.Names {
		if n == name {
			return e.Values[i], true
		}
	}
	return 0, false
}

type ArrayType struct{ Elem Type }

func (ArrayType) isType()          {}
func (a ArrayType) String() string { return fmt.Sprintf("Array(%s)", a.Elem.String()) }

// NullableType wraps T. Invariant (enforced by ParseType and newNullable):
// T must not itself be Nullable, Array, or Map.
type NullableType struct{ Inner Type }

func (NullableType) isType()          {}
func (n NullableType) String() string { return fmt.Sprintf("Nullable(%s)", n.Inner.String()) }

// newNullable validates the Nullable invariant — Nullable cannot wrap
// Array, Map, or another Nullable — before constructing the type.
func newNullable(inner Type) (Type, error) {
	switch inner.(type) {
	case NullableType:
		return nil, newSchemaError("Nullable(Nullable(...)) is not permitted")
	case ArrayType:
		return nil, newSchemaError("Nullable(Array(...)) is not permitted")
	case MapType:
		return nil, newSchemaError("Nullable(Map(...)) is not permitted")
	}
	return NullableType{Inner: inner}, nil
}

// LowCardinalityType dictionary-encodes Inner, which must be a string,
// nullable string, or primitive type.
type LowCardinalityType struct{ Inner Type }

func (LowCardinalityType) isType() {}
func (l LowCardinalityType) String() string {
	return fmt.Sprintf("LowCardinality(%s)", l.Inner.String())
}

func newLowCardinality(inner Type) (Type, error) {
	base := inner
	if n, ok := base.(NullableType); ok {
		base = n.Inner
	}
	switch base.(type) {
	case StringType, FixedStringType,
		UInt8Type, UInt16Type, UInt32Type, UInt64Type,
		Int8Type, Int16Type, Int32Type, Int64Type,
		Float32Type, Float64Type,
		DateType, Date32Type, DateTimeType, UUIDType:
		return LowCardinalityType{Inner: inner}, nil
	default:
		return nil, newSchemaError("LowCardinality(%s) is not permitted: inner type must be string or primitive", inner.String())
	}
}

type MapType struct {
	Key   Type
	Value Type
}

func (MapType) isType() {}
func (m MapType) String() string {
	return fmt.Sprintf("Map(%s, %s)", m.Key.String(), m.Value.String())
}

// TupleType is optionally named; Names[i] is "" when the tuple element at
// index i is unnamed.
type TupleType struct {
	Elems []Type
	Names []string
}

func (TupleType) isType() {}
func (t TupleType) String() string {
	var b strings.Builder
	b.WriteString("Tuple(")
	for i, e := range t.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		if i < len(t.Names) && t.Names[i] != "" {
			fmt.Fprintf(&b, "%s %s", t.Names[i], e.String())
		} else {
			b.WriteString(e.String())
		}
	}
	b.WriteByte(')')
	return b.String()
}

// NestedType is sugar that desugars to Array(Tuple(...)) for wire purposes:
// the type grammar is strictly tree-shaped, and Nested carries no
// independent wire representation.
type NestedType struct {
	Names []string
	Elems []Type
}

func (NestedType) isType() {}
func (n NestedType) String() string {
	var b strings.Builder
	b.WriteString("Nested(")
	for i, e := range n.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", n.Names[i], e.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Desugar returns the Array(Tuple(...)) equivalent used on the wire.
func (n NestedType) Desugar() ArrayType {
	return ArrayType{Elem: TupleType{Elems: n.Elems, Names: n.Names}}
}

type VariantType struct{ Elems []Type }

func (VariantType) isType() {}
func (v VariantType) String() string {
	var b strings.Builder
	b.WriteString("Variant(")
	for i, e := range v.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(')')
	return b.String()
}

type DynamicType struct{}

func (DynamicType) isType()        {}
func (DynamicType) String() string { return "Dynamic" }

func quoteIdent(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

func quoteEnumName(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

// typeParser is a hand-written recursive-descent parser over the printed
// ClickHouse type grammar: a single dispatch function per syntactic
// category, each consuming exactly the tokens its grammar rule owns.
type typeParser struct {
	s   string
	pos int
}

// ParseType parses a ClickHouse type expression into its canonical internal
// representation.
func ParseType(s string) (Type, error) {
	p := &typeParser{s: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, newSchemaError("unexpected trailing input at offset %d in type %q", p.pos, s)
	}
	return t, nil
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peekIdent() string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.s[start:p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return newSchemaError("expected %q at offset %d in type %q", c, p.pos, p.s)
	}
	p.pos++
	return nil
}

func (p *typeParser) parseType() (Type, error) {
	p.skipSpace()
	name := p.peekIdent()
	if name == "" {
		return nil, newSchemaError("expected type name at offset %d in type %q", p.pos, p.s)
	}

	switch name {
	case "UInt8":
		return UInt8Type{}, nil
	case "UInt16":
		return UInt16Type{}, nil
	case "UInt32":
		return UInt32Type{}, nil
	case "UInt64":
		return UInt64Type{}, nil
	case "UInt128":
		return UInt128Type{}, nil
	case "UInt256":
		return UInt256Type{}, nil
	case "Int8":
		return Int8Type{}, nil
	case "Int16":
		return Int16Type{}, nil
	case "Int32":
		return Int32Type{}, nil
	case "Int64":
		return Int64Type{}, nil
	case "Int128":
		return Int128Type{}, nil
	case "Int256":
		return Int256Type{}, nil
	case "Float32":
		return Float32Type{}, nil
	case "Float64":
		return Float64Type{}, nil
	case "BFloat16":
		return BFloat16Type{}, nil
	case "String":
		return StringType{}, nil
	case "Date":
		return DateType{}, nil
	case "Date32":
		return Date32Type{}, nil
	case "UUID":
		return UUIDType{}, nil
	case "IPv4":
		return IPv4Type{}, nil
	case "IPv6":
		return IPv6Type{}, nil
	case "Dynamic":
		return DynamicType{}, nil
	case "FixedString":
		return p.parseFixedString()
	case "Decimal":
		return p.parseDecimal()
	case "DateTime":
		return p.parseDateTime()
	case "DateTime64":
		return p.parseDateTime64()
	case "Enum8":
		return p.parseEnum(8)
	case "Enum16":
		return p.parseEnum(16)
	case "Array":
		return p.parseArray()
	case "Nullable":
		return p.parseNullable()
	case "LowCardinality":
		return p.parseLowCardinality()
	case "Map":
		return p.parseMap()
	case "Tuple":
		return p.parseTuple()
	case "Nested":
		return p.parseNested()
	case "Variant":
		return p.parseVariant()
	default:
		return nil, newSchemaError("unknown type name %q at offset %d", name, p.pos)
	}
}

func (p *typeParser) parseFixedString() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	n, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return FixedStringType{N: n}, nil
}

func (p *typeParser) parseDecimal() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	precision, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.expect(','); err != nil {
		return nil, err
	}
	p.skipSpace()
	scale, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return DecimalType{Precision: precision, Scale: scale}, nil
}

func (p *typeParser) parseDateTime() (Type, error) {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == '(' {
		p.pos++
		tz, err := p.parseQuotedString()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return DateTimeType{Timezone: tz}, nil
	}
	return DateTimeType{}, nil
}

func (p *typeParser) parseDateTime64() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	precision, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	var tz string
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == ',' {
		p.pos++
		p.skipSpace()
		tz, err = p.parseQuotedString()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return DateTime64Type{Precision: precision, Timezone: tz}, nil
}

func (p *typeParser) parseEnum(bits int) (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var names []string
	var values []int64
	seenNames := map[string]bool{}
	seenValues := map[int64]bool{}
	for {
		p.skipSpace()
		name, err := p.parseQuotedString()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect('='); err != nil {
			return nil, err
		}
		val, err := p.parseSignedInt()
		if err != nil {
			return nil, err
		}
		if seenNames[name] {
			return nil, newSchemaError("duplicate enum name %q", name)
		}
		if seenValues[val] {
			return nil, newSchemaError("duplicate enum value %d", val)
		}
		seenNames[name] = true
		seenValues[val] = true
		names = append(names, name)
		values = append(values, val)

		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return EnumType{Bits: bits, Names: names, Values: values}, nil
}

func (p *typeParser) parseArray() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return ArrayType{Elem: elem}, nil
}

func (p *typeParser) parseNullable() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	inner, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return newNullable(inner)
}

func (p *typeParser) parseLowCardinality() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	inner, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return newLowCardinality(inner)
}

func (p *typeParser) parseMap() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	key, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.expect(','); err != nil {
		return nil, err
	}
	val, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return MapType{Key: key, Value: val}, nil
}

func (p *typeParser) parseTuple() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var elems []Type
	var names []string
	for {
		p.skipSpace()
		name := p.tryParseFieldName()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		names = append(names, name)

		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return TupleType{Elems: elems, Names: names}, nil
}

func (p *typeParser) parseNested() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var elems []Type
	var names []string
	for {
		p.skipSpace()
		name := p.peekIdent()
		if name == "" {
			return nil, newSchemaError("expected field name at offset %d in Nested(...)", p.pos)
		}
		p.skipSpace()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		names = append(names, name)

		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return NestedType{Elems: elems, Names: names}, nil
}

func (p *typeParser) parseVariant() (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var elems []Type
	for {
		p.skipSpace()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return VariantType{Elems: elems}, nil
}

// tryParseFieldName looks ahead for `ident ` (a named tuple element) without
// consuming it if what follows isn't actually a type name start.
func (p *typeParser) tryParseFieldName() string {
	save := p.pos
	name := p.peekIdent()
	if name == "" {
		p.pos = save
		return ""
	}
	spaceStart := p.pos
	p.skipSpace()
	if p.pos == spaceStart || p.pos >= len(p.s) {
		p.pos = save
		return ""
	}
	// A bare type keyword followed directly by '(' or end-of-tuple without
	// an intervening identifier is not a named element; peekIdent already
	// consumed the keyword, so check whether another identifier follows.
	next := p.s[p.pos]
	if next == ',' || next == ')' || next == '(' {
		p.pos = save
		return ""
	}
	return name
}

func (p *typeParser) parseInt() (int, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, newSchemaError("expected integer at offset %d in type %q", p.pos, p.s)
	}
	n, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		return 0, newSchemaError("invalid integer %q: %v", p.s[start:p.pos], err)
	}
	return n, nil
}

func (p *typeParser) parseSignedInt() (int64, error) {
	p.skipSpace()
	start := p.pos
	if p.pos < len(p.s) && (p.s[p.pos] == '-' || p.s[p.pos] == '+') {
		p.pos++
	}
	digitsStart := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == digitsStart {
		return 0, newSchemaError("expected integer at offset %d in type %q", p.pos, p.s)
	}
	n, err := strconv.ParseInt(p.s[start:p.pos], 10, 64)
	if err != nil {
		return 0, newSchemaError("invalid integer %q: %v", p.s[start:p.pos], err)
	}
	return n, nil
}

// parseQuotedString parses a single-quoted, backslash-escaped string literal
// (used for enum names and timezone strings).
func (p *typeParser) parseQuotedString() (string, error) {
	if err := p.expect('\''); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		if p.pos >= len(p.s) {
			return "", newSchemaError("unterminated quoted string in type %q", p.s)
		}
		c := p.s[p.pos]
		if c == '\\' && p.pos+1 < len(p.s) {
			b.WriteByte(p.s[p.pos+1])
			p.pos += 2
			continue
		}
		if c == '\'' {
			p.pos++
			break
		}
		b.WriteByte(c)
		p.pos++
	}
	return b.String(), nil
}
