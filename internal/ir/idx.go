package ir

import (
	"fortio.org/safecast"

	"codeweave/internal/dex"
)

func dexTypeIdx(x int64) dex.TypeIdx {
	v, err := safecast.Conv[int32](x)
	if err != nil {
		return dex.NoTypeIdx
	}
	return dex.TypeIdx(v)
}

func dexFieldIdx(x int64) dex.FieldIdx {
	v, err := safecast.Conv[int32](x)
	if err != nil {
		return dex.NoFieldIdx
	}
	return dex.FieldIdx(v)
}

func dexMethodIdx(x int64) dex.MethodIdx {
	v, err := safecast.Conv[int32](x)
	if err != nil {
		return dex.NoMethodIdx
	}
	return dex.MethodIdx(v)
}

// MethodIdx returns the invoke target of an invoke instruction, or
// dex.NoMethodIdx for any other instruction.
func (i *Instr) MethodIdx() dex.MethodIdx {
	if i == nil || !i.Op.IsInvoke() {
		return dex.NoMethodIdx
	}
	return dexMethodIdx(i.Index)
}

// FieldIdx returns the field read by a static get, or dex.NoFieldIdx.
func (i *Instr) FieldIdx() dex.FieldIdx {
	if i == nil || i.Op != OpStaticGet {
		return dex.NoFieldIdx
	}
	return dexFieldIdx(i.Index)
}

// TypeIdx returns the class loaded by a load-class, or dex.NoTypeIdx.
func (i *Instr) TypeIdx() dex.TypeIdx {
	if i == nil || i.Op != OpLoadClass {
		return dex.NoTypeIdx
	}
	return dexTypeIdx(i.Index)
}
