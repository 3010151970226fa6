package literal_test

import (
	"math"
	"testing"

	"codeweave/internal/literal"
)

func TestLiteral_KindAndDescriptor(t *testing.T) {
	tests := []struct {
		lit  literal.Literal
		kind literal.Kind
		desc byte
	}{
		{literal.NewBoolean(true), literal.KindBoolean, 'Z'},
		{literal.NewByte(-3), literal.KindByte, 'B'},
		{literal.NewChar('x'), literal.KindChar, 'C'},
		{literal.NewShort(300), literal.KindShort, 'S'},
		{literal.NewInteger(42), literal.KindInteger, 'I'},
		{literal.NewLong(1 << 40), literal.KindLong, 'J'},
		{literal.NewFloat(1.5), literal.KindFloat, 'F'},
		{literal.NewDouble(2.25), literal.KindDouble, 'D'},
	}
	for _, tt := range tests {
		if got := tt.lit.Kind(); got != tt.kind {
			t.Errorf("%v: Kind() = %v, want %v", tt.lit, got, tt.kind)
		}
		if got := tt.lit.Kind().Descriptor(); got != tt.desc {
			t.Errorf("%v: Descriptor() = %c, want %c", tt.lit, got, tt.desc)
		}
		if got := literal.KindOfDescriptor(tt.desc); got != tt.kind {
			t.Errorf("KindOfDescriptor(%c) = %v, want %v", tt.desc, got, tt.kind)
		}
	}
}

func TestLiteral_NoImplicitConversion(t *testing.T) {
	var a literal.Literal = literal.NewInteger(1)
	var b literal.Literal = literal.NewLong(1)
	if a == b {
		t.Fatal("Integer(1) must not equal Long(1)")
	}
	if a != literal.Literal(literal.NewInteger(1)) {
		t.Fatal("equal integer literals must compare equal")
	}
}

func TestLiteral_BitsRoundTrip(t *testing.T) {
	lits := []literal.Literal{
		literal.NewBoolean(false),
		literal.NewBoolean(true),
		literal.NewByte(math.MinInt8),
		literal.NewChar(0xFFFF),
		literal.NewShort(math.MinInt16),
		literal.NewInteger(math.MinInt32),
		literal.NewLong(math.MaxInt64),
		literal.NewFloat(-0.5),
		literal.NewDouble(math.Pi),
	}
	for _, l := range lits {
		got, err := literal.FromBits(l.Kind(), literal.Bits(l))
		if err != nil {
			t.Fatalf("FromBits(%v): %v", l, err)
		}
		if got != l {
			t.Errorf("FromBits(Bits(%v)) = %v", l, got)
		}
	}
	if _, err := literal.FromBits(literal.KindInvalid, 0); err == nil {
		t.Error("expected error for invalid kind")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		kind    literal.Kind
		text    string
		want    literal.Literal
		wantErr bool
	}{
		{literal.KindBoolean, "true", literal.NewBoolean(true), false},
		{literal.KindInteger, "42", literal.NewInteger(42), false},
		{literal.KindInteger, "0x10", literal.NewInteger(16), false},
		{literal.KindInteger, "4294967296", nil, true},
		{literal.KindByte, "128", nil, true},
		{literal.KindChar, "a", literal.NewChar('a'), false},
		{literal.KindChar, "65", literal.NewChar(65), false},
		{literal.KindLong, "-9", literal.NewLong(-9), false},
		{literal.KindFloat, "1.5", literal.NewFloat(1.5), false},
		{literal.KindDouble, "nope", nil, true},
	}
	for _, tt := range tests {
		got, err := literal.Parse(tt.kind, tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%v, %q) error = %v, wantErr %v", tt.kind, tt.text, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Parse(%v, %q) = %v, want %v", tt.kind, tt.text, got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"int", "integer", "I"} {
		k, err := literal.ParseKind(s)
		if err != nil || k != literal.KindInteger {
			t.Errorf("ParseKind(%q) = %v, %v", s, k, err)
		}
	}
	if _, err := literal.ParseKind("V"); err == nil {
		t.Error("void is not a literal kind")
	}
}
