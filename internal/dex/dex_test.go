package dex

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func buildSample(t *testing.T) *Binary {
	t.Helper()
	bd := NewBuilder("/data/app/sample.apk!classes.dex")
	code := &Code{Blocks: []CodeBlock{{Insns: []Insn{{ID: 0, Op: "return-void"}}}}}
	if _, err := bd.Define("Lcom/example/Foo;->bar(IZ)V", AccPublic|AccStatic, code); err != nil {
		t.Fatal(err)
	}
	if _, err := bd.Define("Lcom/example/Foo;->nat(J)I", AccPublic|AccNative, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := bd.Method("Ljava/lang/Object;-><init>()V"); err != nil {
		t.Fatal(err)
	}
	bd.Field("Lcom/example/Foo;", "count", "I")
	return bd.Binary()
}

func TestBuilder_InternsEntries(t *testing.T) {
	bd := NewBuilder("x.dex")
	a := bd.Type("I")
	b := bd.Type("I")
	if a != b {
		t.Fatalf("Type interned twice: %d vs %d", a, b)
	}
	p1, err := bd.Proto("(IZ)V")
	if err != nil {
		t.Fatal(err)
	}
	p2, _ := bd.Proto("(IZ)V")
	if p1 != p2 {
		t.Fatalf("Proto interned twice")
	}
	if got := bd.Binary().String(bd.Binary().Protos[p1].Shorty); got != "VIZ" {
		t.Errorf("shorty = %q, want VIZ", got)
	}
	if _, err := bd.Proto("name(I)V"); err == nil {
		t.Error("proto with a name must be rejected")
	}
	if _, err := bd.Method("noclass(I)V"); err == nil {
		t.Error("method without class must be rejected")
	}
}

func TestBuilder_DefineTwice(t *testing.T) {
	bd := NewBuilder("x.dex")
	if _, err := bd.Define("LA;->m()V", AccStatic, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := bd.Define("LA;->m()V", AccStatic, nil); err == nil {
		t.Error("expected duplicate definition error")
	}
}

func TestBinary_Names(t *testing.T) {
	b := buildSample(t)
	if got := b.MethodQualifiedName(0); got != "Lcom/example/Foo;->bar(IZ)V" {
		t.Errorf("MethodQualifiedName = %q", got)
	}
	if got := b.PrettyMethod(0, true); got != "void com.example.Foo.bar(int, boolean)" {
		t.Errorf("PrettyMethod = %q", got)
	}
	if got := b.PrettyMethod(0, false); got != "com.example.Foo.bar" {
		t.Errorf("PrettyMethod(no sig) = %q", got)
	}
	if got := b.FieldQualifiedName(0); got != "Lcom/example/Foo;->count:I" {
		t.Errorf("FieldQualifiedName = %q", got)
	}
	if got := b.FileName(); got != "classes.dex" {
		t.Errorf("FileName = %q", got)
	}
}

func TestBinary_Describe(t *testing.T) {
	b := buildSample(t)
	d, err := b.Describe(0)
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsStatic() || d.IsNative() {
		t.Errorf("flags = %#x", d.AccessFlags)
	}
	if len(d.Formals()) != 2 || d.Return != "V" {
		t.Errorf("formals = %q, return = %q", d.Formals(), d.Return)
	}

	nat, err := b.Describe(1)
	if err != nil {
		t.Fatal(err)
	}
	if !nat.IsNative() {
		t.Error("nat should be native")
	}
	formals := nat.Formals()
	if len(formals) != 2 || formals[0] != "Lcom/example/Foo;" || formals[1] != "J" {
		t.Errorf("instance formals = %q", formals)
	}

	if _, err := b.Describe(NoMethodIdx); err == nil {
		t.Error("expected out of range error")
	}
	// referenced-only method has no class data
	if flags := b.MethodAccessFlags(2); flags != 0 {
		t.Errorf("referenced method flags = %#x", flags)
	}
}

func TestBinary_Counts(t *testing.T) {
	b := buildSample(t)
	c, err := b.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if c.Methods != 3 || c.Fields != 1 || c.ClassDefs != 1 {
		t.Errorf("counts = %+v", c)
	}
	if int(c.Strings) != len(b.Strings) || int(c.Types) != len(b.Types) || int(c.Protos) != len(b.Protos) {
		t.Errorf("counts = %+v", c)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatMsgpack, FormatCBOR} {
		t.Run(format.String(), func(t *testing.T) {
			b := buildSample(t)
			var first bytes.Buffer
			if err := Encode(&first, b, format); err != nil {
				t.Fatal(err)
			}
			got, err := Decode(bytes.NewReader(first.Bytes()), format)
			if err != nil {
				t.Fatal(err)
			}
			if got.Location != b.Location || got.MethodQualifiedName(0) != b.MethodQualifiedName(0) {
				t.Errorf("decoded binary differs: %q %q", got.Location, got.MethodQualifiedName(0))
			}
			em, ok := got.EncodedMethod(0)
			if !ok || em.Code == nil || em.Code.NumInsns() != 1 {
				t.Fatalf("code lost in round trip")
			}
			var second bytes.Buffer
			if err := Encode(&second, got, format); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(first.Bytes(), second.Bytes()) {
				t.Error("re-encoding is not stable")
			}
		})
	}
}

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.mp", "out.cbor"} {
		path := filepath.Join(dir, name)
		b := buildSample(t)
		if err := Save(path, b); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if len(got.Methods) != len(b.Methods) {
			t.Errorf("%s: methods = %d, want %d", name, len(got.Methods), len(b.Methods))
		}
	}
	if FormatForPath("x.CBOR") != FormatCBOR || FormatForPath("x.bin") != FormatMsgpack {
		t.Error("FormatForPath mismatch")
	}
}

func TestDecode_SchemaMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := cborEncMode.NewEncoder(&buf).Encode(&image{Schema: 99, Binary: &Binary{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(&buf, FormatCBOR); !errors.Is(err, ErrSchema) {
		t.Errorf("Decode error = %v, want ErrSchema", err)
	}
}
