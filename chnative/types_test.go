package chnative

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTypeRoundTrip(t *testing.T) {
	cases := []string{
		"UInt8", "UInt256", "Int32", "Float64", "BFloat16",
		"String", "FixedString(16)",
		"Decimal(18, 4)", "Decimal(76, 10)",
		"Date", "Date32",
		"DateTime", "DateTime('UTC')",
		"DateTime64(3)", "DateTime64(9, 'UTC')",
		"UUID", "IPv4", "IPv6",
		"Enum8('a' = 1, 'b' = 2)",
		"Enum16('x' = -1, 'y' = 300)",
		"Array(String)",
		"Array(Array(UInt32))",
		"Nullable(String)",
		"LowCardinality(String)",
		"LowCardinality(Nullable(String))",
		"Map(String, UInt64)",
		"Tuple(UInt32, String)",
		"Tuple(a UInt32, b String)",
		"Tuple(Array(String), UInt32)",
		"Variant(UInt32, String)",
		"Dynamic",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			ty, err := ParseType(s)
			require.NoError(t, err)
			require.Equal(t, s, ty.String())

			ty2, err := ParseType(ty.String())
			require.NoError(t, err)
			require.Equal(t, ty.String(), ty2.String())
		})
	}
}

func TestNullableCannotNest(t *testing.T) {
	_, err := newNullable(NullableType{Inner: StringType{}})
	require.Error(t, err)

	_, err = newNullable(ArrayType{Elem: StringType{}})
	require.Error(t, err)

	_, err = newNullable(MapType{Key: StringType{}, Value: UInt8Type{}})
	require.Error(t, err)
}

func TestLowCardinalityRejectsUnsupportedInner(t *testing.T) {
	_, err := newLowCardinality(ArrayType{Elem: StringType{}})
	require.Error(t, err)

	_, err = newLowCardinality(StringType{})
	require.NoError(t, err)

	_, err = newLowCardinality(NullableType{Inner: StringType{}})
	require.NoError(t, err)
}

func TestDecimalWidth(t *testing.T) {
	require.Equal(t, 32, DecimalType{Precision: 9, Scale: 2}.Width())
	require.Equal(t, 64, DecimalType{Precision: 18, Scale: 2}.Width())
	require.Equal(t, 128, DecimalType{Precision: 38, Scale: 2}.Width())
	require.Equal(t, 256, DecimalType{Precision: 76, Scale: 2}.Width())
}

func TestEnumValueLookup(t *testing.T) {
	e := EnumType{Bits: 8, Names: []string{"a", "b"}, Values: []int64{1, 2}}
	name, ok := e.NameForValue(2)
	require.True(t, ok)
	require.Equal(t, "b", name)

	_, ok = e.NameForValue(99)
	require.False(t, ok)

	v, ok := e.ValueForName("a")
	require.True(t, ok)
	require.EqualValues(t, 1, v)
}

func TestNestedDesugarsToArrayOfTuple(t *testing.T) {
	n := NestedType{Names: []string{"x", "y"}, Elems: []Type{UInt32Type{}, StringType{}}}
	arr := n.Desugar()
	tuple, ok := arr.Elem.(TupleType)
	require.True(t, ok)
	require.Equal(t, []string{"x", "y"}, tuple.Names)
}
