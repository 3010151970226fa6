// Package signature decodes and encodes method signatures and type
// descriptors in the binary's descriptor syntax.
//
// A method signature has an optional qualified prefix followed by a
// parenthesised parameter list and a return type:
//
//	Lcom/example/Foo;->bar(I[Ljava/lang/String;Z)V
//	bar(IZ)J
//	(IZ)V
//
// Type descriptors are one of the primitive letters ZBSCIJFD, V (return only),
// an object type L<binary name>; or an array [<component>.
package signature

import (
	"errors"
	"fmt"
	"strings"

	"codeweave/internal/literal"
)

var (
	// ErrMalformed reports a signature that does not follow the descriptor syntax.
	ErrMalformed = errors.New("malformed signature")
)

// Method is a decoded method signature.
type Method struct {
	// Prefix is everything before the opening parenthesis, e.g. "LFoo;->bar".
	Prefix string
	Params []string
	Return string
}

// Proto returns the "(params)ret" part of the signature.
func (m Method) Proto() string {
	return Encode(m.Params, m.Return)
}

// String re-encodes the signature including its prefix.
func (m Method) String() string {
	return m.Prefix + m.Proto()
}

// Class returns the declaring class descriptor of a qualified signature, or "".
func (m Method) Class() string {
	if i := strings.Index(m.Prefix, "->"); i >= 0 {
		return m.Prefix[:i]
	}
	return ""
}

// Name returns the method name part of the prefix.
func (m Method) Name() string {
	if i := strings.Index(m.Prefix, "->"); i >= 0 {
		return m.Prefix[i+2:]
	}
	return m.Prefix
}

// Parse decodes a method signature.
func Parse(sig string) (Method, error) {
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		return Method{}, fmt.Errorf("%w: %q: missing '('", ErrMalformed, sig)
	}
	m := Method{Prefix: sig[:open]}
	rest := sig[open+1:]
	for {
		if rest == "" {
			return Method{}, fmt.Errorf("%w: %q: missing ')'", ErrMalformed, sig)
		}
		if rest[0] == ')' {
			rest = rest[1:]
			break
		}
		n, err := scanType(rest, false)
		if err != nil {
			return Method{}, fmt.Errorf("%w: %q: %v", ErrMalformed, sig, err)
		}
		m.Params = append(m.Params, rest[:n])
		rest = rest[n:]
	}
	n, err := scanType(rest, true)
	if err != nil {
		return Method{}, fmt.Errorf("%w: %q: return type: %v", ErrMalformed, sig, err)
	}
	if n != len(rest) {
		return Method{}, fmt.Errorf("%w: %q: trailing characters %q", ErrMalformed, sig, rest[n:])
	}
	m.Return = rest
	return m, nil
}

// ExtractArguments returns the parameter type descriptors of sig in order.
func ExtractArguments(sig string) ([]string, error) {
	m, err := Parse(sig)
	if err != nil {
		return nil, err
	}
	return m.Params, nil
}

// ExtractReturn returns the return type descriptor of sig.
func ExtractReturn(sig string) (string, error) {
	m, err := Parse(sig)
	if err != nil {
		return "", err
	}
	return m.Return, nil
}

// Encode builds "(params)ret".
func Encode(params []string, ret string) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(p)
	}
	sb.WriteByte(')')
	sb.WriteString(ret)
	return sb.String()
}

// ValidType reports whether desc is exactly one well-formed field type descriptor.
func ValidType(desc string) bool {
	n, err := scanType(desc, false)
	return err == nil && n == len(desc)
}

// scanType returns the length of the type descriptor at the start of s.
func scanType(s string, allowVoid bool) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i > 255 {
		return 0, fmt.Errorf("array of more than 255 dimensions")
	}
	if i == len(s) {
		return 0, fmt.Errorf("truncated type descriptor")
	}
	switch c := s[i]; c {
	case 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D':
		return i + 1, nil
	case 'V':
		if !allowVoid || i > 0 {
			return 0, fmt.Errorf("void is only valid as a return type")
		}
		return 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("unterminated class descriptor")
		}
		if strings.ContainsAny(s[i+1:i+end], "();[") {
			return 0, fmt.Errorf("invalid class descriptor %q", s[i:i+end+1])
		}
		return i + end + 1, nil
	default:
		return 0, fmt.Errorf("unknown type descriptor %q", c)
	}
}

// Kind classifies a type descriptor.
type Kind uint8

const (
	// KindInvalid is an empty or unknown descriptor.
	KindInvalid Kind = iota
	// KindVoid is V, valid only as a return type.
	KindVoid
	// KindPrimitive is one of ZBSCIJFD.
	KindPrimitive
	// KindObject is a class descriptor, Lpkg/Cls;.
	KindObject
	// KindArray is a descriptor starting with [.
	KindArray
)

// KindOf classifies desc without validating it completely.
func KindOf(desc string) Kind {
	if desc == "" {
		return KindInvalid
	}
	switch desc[0] {
	case 'V':
		return KindVoid
	case 'L':
		return KindObject
	case '[':
		return KindArray
	}
	if len(desc) == 1 && literal.KindOfDescriptor(desc[0]) != literal.KindInvalid {
		return KindPrimitive
	}
	return KindInvalid
}

// Literal returns the literal kind a primitive descriptor accepts.
func Literal(desc string) literal.Kind {
	if len(desc) != 1 {
		return literal.KindInvalid
	}
	return literal.KindOfDescriptor(desc[0])
}

// Shorty returns the shorty form used by proto tables: the return type
// followed by one letter per parameter, with references collapsed to 'L'.
func Shorty(params []string, ret string) string {
	var sb strings.Builder
	sb.WriteByte(shortyChar(ret))
	for _, p := range params {
		sb.WriteByte(shortyChar(p))
	}
	return sb.String()
}

func shortyChar(desc string) byte {
	if desc == "" {
		return 'V'
	}
	if desc[0] == '[' {
		return 'L'
	}
	return desc[0]
}

// Pretty renders a type descriptor the way source code spells it:
// "I" -> "int", "[Ljava/lang/String;" -> "java.lang.String[]".
func Pretty(desc string) string {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	base := desc[dims:]
	var name string
	switch {
	case base == "V":
		name = "void"
	case len(base) == 1 && literal.KindOfDescriptor(base[0]) != literal.KindInvalid:
		name = literal.KindOfDescriptor(base[0]).String()
	case strings.HasPrefix(base, "L") && strings.HasSuffix(base, ";"):
		name = strings.ReplaceAll(base[1:len(base)-1], "/", ".")
	default:
		name = base
	}
	return name + strings.Repeat("[]", dims)
}
