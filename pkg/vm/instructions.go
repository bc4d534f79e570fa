package vm

import (
	"fmt"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (t *thread) executeInstruction(frame *Frame, opcode byte) (Value, bool, error) {
	// xload_<n> and xstore_<n> come in runs of four per type
	switch {
	case opcode >= classfile.OpIload0 && opcode <= classfile.OpAload3:
		frame.Push(frame.GetLocal(int(opcode-classfile.OpIload0) % 4))
		return Value{}, false, nil
	case opcode >= classfile.OpIstore0 && opcode <= classfile.OpAstore3:
		frame.SetLocal(int(opcode-classfile.OpIstore0)%4, frame.Pop())
		return Value{}, false, nil
	case opcode >= classfile.OpIconstM1 && opcode <= classfile.OpIconst5:
		frame.Push(IntValue(int32(opcode) - classfile.OpIconst0))
		return Value{}, false, nil
	}

	switch opcode {
	case classfile.OpNop:
		// do nothing

	// --- Constant load instructions ---
	case classfile.OpAconstNull:
		frame.Push(NullValue())

	case classfile.OpLconst0:
		frame.Push(LongValue(0))
	case classfile.OpLconst1:
		frame.Push(LongValue(1))

	case classfile.OpFconst0:
		frame.Push(FloatValue(0.0))
	case classfile.OpFconst1:
		frame.Push(FloatValue(1.0))
	case classfile.OpFconst2:
		frame.Push(FloatValue(2.0))

	case classfile.OpDconst0:
		frame.Push(DoubleValue(0.0))
	case classfile.OpDconst1:
		frame.Push(DoubleValue(1.0))

	case classfile.OpBipush:
		val := frame.ReadI8()
		frame.Push(IntValue(int32(val)))

	case classfile.OpSipush:
		val := frame.ReadI16()
		frame.Push(IntValue(int32(val)))

	case classfile.OpLdc:
		index := frame.ReadU8()
		return t.executeLdc(frame, uint16(index))

	case classfile.OpLdcW, classfile.OpLdc2W:
		index := frame.ReadU16()
		return t.executeLdc(frame, index)

	// --- Local variable load and store instructions ---
	case classfile.OpIload, classfile.OpLload, classfile.OpFload, classfile.OpDload, classfile.OpAload:
		index := frame.ReadU8()
		frame.Push(frame.GetLocal(int(index)))

	case classfile.OpIstore, classfile.OpLstore, classfile.OpFstore, classfile.OpDstore, classfile.OpAstore:
		index := frame.ReadU8()
		frame.SetLocal(int(index), frame.Pop())

	// --- Arrays ---
	case classfile.OpAaload:
		index := frame.Pop().Int
		arr, err := arrayOperand(frame.Pop(), "aaload")
		if err != nil {
			return Value{}, false, err
		}
		if index < 0 || int(index) >= len(arr.Elements) {
			return Value{}, false, NewJavaException("java/lang/ArrayIndexOutOfBoundsException", "index %d, length %d", index, len(arr.Elements))
		}
		frame.Push(arr.Elements[index])

	case classfile.OpAastore:
		value := frame.Pop()
		index := frame.Pop().Int
		arr, err := arrayOperand(frame.Pop(), "aastore")
		if err != nil {
			return Value{}, false, err
		}
		if index < 0 || int(index) >= len(arr.Elements) {
			return Value{}, false, NewJavaException("java/lang/ArrayIndexOutOfBoundsException", "index %d, length %d", index, len(arr.Elements))
		}
		if !isAssignable(value, classfile.ClassNameOf(arr.Component)) {
			return Value{}, false, NewJavaException("java/lang/ArrayStoreException", "%s", refClassName(value))
		}
		arr.Elements[index] = value

	case classfile.OpAnewarray:
		index := frame.ReadU16()
		className, err := classfile.GetClassName(frame.Class.File.ConstantPool, index)
		if err != nil {
			return Value{}, false, fmt.Errorf("anewarray: %w", err)
		}
		count := frame.Pop().Int
		if count < 0 {
			return Value{}, false, NewJavaException("java/lang/NegativeArraySizeException", "%d", count)
		}
		elements := make([]Value, count)
		for i := range elements {
			elements[i] = NullValue()
		}
		arr := &JArray{Component: classfile.ClassDescriptor(className), Elements: elements}
		frame.Push(RefValue(arr))

	case classfile.OpArraylength:
		arr, err := arrayOperand(frame.Pop(), "arraylength")
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(IntValue(int32(len(arr.Elements))))

	// --- Stack manipulation ---
	case classfile.OpPop:
		frame.Pop()

	case classfile.OpPop2:
		if v := frame.Pop(); !v.IsWide() {
			frame.Pop()
		}

	case classfile.OpDup:
		v := frame.Peek()
		frame.Push(v)

	case classfile.OpSwap:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)

	// --- Arithmetic ---
	case classfile.OpIadd:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int + v2.Int))

	case classfile.OpLadd:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long + v2.Long))

	case classfile.OpIsub:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int - v2.Int))

	case classfile.OpLsub:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long - v2.Long))

	case classfile.OpImul:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int * v2.Int))

	case classfile.OpI2l:
		v := frame.Pop()
		frame.Push(LongValue(int64(v.Int)))

	case classfile.OpL2i:
		v := frame.Pop()
		frame.Push(IntValue(int32(v.Long)))

	// --- Branches ---
	case classfile.OpIfeq:
		return t.executeBranch(frame, func(v Value) bool { return v.Int == 0 })
	case classfile.OpIfne:
		return t.executeBranch(frame, func(v Value) bool { return v.Int != 0 })
	case classfile.OpIfnull:
		return t.executeBranch(frame, Value.IsNull)
	case classfile.OpIfnonnull:
		return t.executeBranch(frame, func(v Value) bool { return !v.IsNull() })

	case classfile.OpGoto:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	// --- Return ---
	case classfile.OpIreturn, classfile.OpLreturn, classfile.OpFreturn, classfile.OpDreturn, classfile.OpAreturn:
		return frame.Pop(), true, nil

	case classfile.OpReturn:
		return Value{}, true, nil

	// --- Method invocation and field access ---
	case classfile.OpGetstatic:
		return t.executeGetstatic(frame)

	case classfile.OpPutstatic:
		return t.executePutstatic(frame)

	case classfile.OpGetfield:
		return t.executeGetfield(frame)

	case classfile.OpPutfield:
		return t.executePutfield(frame)

	case classfile.OpInvokevirtual:
		return t.executeInvokevirtual(frame)

	case classfile.OpInvokespecial:
		return t.executeInvokespecial(frame)

	case classfile.OpInvokestatic:
		return t.executeInvokestatic(frame)

	case classfile.OpNew:
		return t.executeNew(frame)

	case classfile.OpAthrow:
		excRef := frame.Pop()
		if excRef.IsNull() {
			return Value{}, false, nullPointer("athrow")
		}
		if obj, ok := excRef.Ref.(*JObject); ok {
			return Value{}, false, &JavaException{Object: obj}
		}
		return Value{}, false, fmt.Errorf("athrow: non-object on stack")

	case classfile.OpCheckcast:
		index := frame.ReadU16()
		className, err := classfile.GetClassName(frame.Class.File.ConstantPool, index)
		if err != nil {
			return Value{}, false, fmt.Errorf("checkcast: %w", err)
		}
		if val := frame.Peek(); !isAssignable(val, className) {
			return Value{}, false, classCast(refClassName(val), className)
		}

	case classfile.OpInstanceof:
		index := frame.ReadU16()
		className, err := classfile.GetClassName(frame.Class.File.ConstantPool, index)
		if err != nil {
			return Value{}, false, fmt.Errorf("instanceof: %w", err)
		}
		ref := frame.Pop()
		if !ref.IsNull() && isAssignable(ref, className) {
			frame.Push(IntValue(1))
		} else {
			frame.Push(IntValue(0))
		}

	default:
		return Value{}, false, fmt.Errorf("unknown opcode: 0x%02X at PC=%d", opcode, frame.PC-1)
	}

	return Value{}, false, nil
}

// executeBranch handles the single-operand branch instructions.
func (t *thread) executeBranch(frame *Frame, cond func(Value) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	val := frame.Pop()
	if cond(val) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

func arrayOperand(ref Value, op string) (*JArray, error) {
	if ref.IsNull() {
		return nil, nullPointer(op)
	}
	arr, ok := ref.Ref.(*JArray)
	if !ok {
		return nil, fmt.Errorf("%s: reference is not an array", op)
	}
	return arr, nil
}
