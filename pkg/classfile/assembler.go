package classfile

import (
	"fmt"
	"math"
)

// Assembler emits the bytecode of one method and tracks the operand stack
// depth in slots so MaxStack can be computed.
type Assembler struct {
	pool     *PoolBuilder
	code     []byte
	depth    int
	maxDepth int
	err      error
}

// NewAssembler returns an assembler adding its constants to pool.
func NewAssembler(pool *PoolBuilder) *Assembler {
	return &Assembler{pool: pool}
}

func (a *Assembler) emit(delta int, b ...byte) {
	a.code = append(a.code, b...)
	a.depth += delta
	if a.depth < 0 && a.err == nil {
		a.err = fmt.Errorf("operand stack underflow at pc %d", len(a.code))
	}
	if a.depth > a.maxDepth {
		a.maxDepth = a.depth
	}
}

func (a *Assembler) emitU2(op byte, delta int, v uint16) {
	a.emit(delta, op, byte(v>>8), byte(v))
}

// Insn emits a single-byte instruction whose net effect on the operand
// stack is delta slots.
func (a *Assembler) Insn(op byte, delta int) { a.emit(delta, op) }

// AconstNull pushes null.
func (a *Assembler) AconstNull() { a.emit(1, OpAconstNull) }

// PushInt pushes an int constant using the shortest encoding.
func (a *Assembler) PushInt(v int32) {
	switch {
	case v >= -1 && v <= 5:
		a.emit(1, byte(int32(OpIconst0)+v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		a.emit(1, OpBipush, byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		a.emit(1, OpSipush, byte(uint16(v)>>8), byte(uint16(v)))
	default:
		a.ldc(a.pool.Integer(v))
	}
}

// PushString pushes a string constant.
func (a *Assembler) PushString(s string) {
	a.ldc(a.pool.String(s))
}

// PushLong pushes a long constant.
func (a *Assembler) PushLong(v int64) {
	switch v {
	case 0:
		a.emit(2, OpLconst0)
	case 1:
		a.emit(2, OpLconst1)
	default:
		a.emitU2(OpLdc2W, 2, a.pool.Long(v))
	}
}

func (a *Assembler) ldc(index uint16) {
	if index <= math.MaxUint8 {
		a.emit(1, OpLdc, byte(index))
		return
	}
	a.emitU2(OpLdcW, 1, index)
}

// Load pushes the local variable at slot, choosing the opcode from desc.
func (a *Assembler) Load(desc string, slot int) {
	if slot < 0 || slot > math.MaxUint8 {
		if a.err == nil {
			a.err = fmt.Errorf("local variable slot %d out of range", slot)
		}
		return
	}
	var op byte
	switch desc {
	case "Z", "B", "C", "S", "I":
		op = OpIload
	case "J":
		op = OpLload
	case "F":
		op = OpFload
	case "D":
		op = OpDload
	default:
		op = OpAload
	}
	if slot <= 3 {
		// xload_<n> forms follow each other in groups of four
		a.emit(SlotSize(desc), OpIload0+(op-OpIload)*4+byte(slot))
		return
	}
	a.emit(SlotSize(desc), op, byte(slot))
}

// Dup duplicates a one-slot value.
func (a *Assembler) Dup() { a.emit(1, OpDup) }

// Pop discards the value of type desc on top of the stack.
func (a *Assembler) Pop(desc string) {
	if SlotSize(desc) == 2 {
		a.emit(-2, OpPop2)
		return
	}
	a.emit(-1, OpPop)
}

// GetStatic pushes a static field.
func (a *Assembler) GetStatic(class, name, desc string) {
	a.emitU2(OpGetstatic, SlotSize(desc), a.pool.Fieldref(class, name, desc))
}

// GetField replaces an object reference with one of its fields.
func (a *Assembler) GetField(class, name, desc string) {
	a.emitU2(OpGetfield, SlotSize(desc)-1, a.pool.Fieldref(class, name, desc))
}

// PutField stores into an instance field.
func (a *Assembler) PutField(class, name, desc string) {
	a.emitU2(OpPutfield, -SlotSize(desc)-1, a.pool.Fieldref(class, name, desc))
}

// Invoke emits invokestatic, invokespecial or invokevirtual.
func (a *Assembler) Invoke(op byte, class, name, desc string) {
	md, err := ParseMethodDescriptor(desc)
	if err != nil {
		if a.err == nil {
			a.err = err
		}
		return
	}
	delta := SlotSize(md.Return) - md.ArgSlots()
	if op != OpInvokestatic {
		delta-- // receiver
	}
	a.emitU2(op, delta, a.pool.Methodref(class, name, desc))
}

// ANewArray pops a length and pushes a new reference array.
func (a *Assembler) ANewArray(class string) {
	a.emitU2(OpAnewarray, 0, a.pool.Class(class))
}

// AAStore stores a reference into an array.
func (a *Assembler) AAStore() { a.emit(-3, OpAastore) }

// CheckCast checks the reference on top of the stack against class.
func (a *Assembler) CheckCast(class string) {
	a.emitU2(OpCheckcast, 0, a.pool.Class(class))
}

// Return emits the return instruction for a method returning desc.
func (a *Assembler) Return(desc string) {
	switch desc {
	case "V":
		a.emit(0, OpReturn)
	case "Z", "B", "C", "S", "I":
		a.emit(-1, OpIreturn)
	case "J":
		a.emit(-2, OpLreturn)
	case "F":
		a.emit(-1, OpFreturn)
	case "D":
		a.emit(-2, OpDreturn)
	default:
		a.emit(-1, OpAreturn)
	}
}

// Code finishes the method and returns its Code attribute.
func (a *Assembler) Code(maxLocals int) (*CodeAttribute, error) {
	if a.err != nil {
		return nil, a.err
	}
	if len(a.code) == 0 {
		return nil, fmt.Errorf("empty method body")
	}
	if len(a.code) > math.MaxUint16 {
		return nil, fmt.Errorf("method body too large: %d bytes", len(a.code))
	}
	if maxLocals > math.MaxUint16 {
		return nil, fmt.Errorf("too many locals: %d", maxLocals)
	}
	a.pool.Utf8("Code")
	return &CodeAttribute{
		MaxStack:  uint16(a.maxDepth),
		MaxLocals: uint16(maxLocals),
		Code:      a.code,
	}, nil
}
