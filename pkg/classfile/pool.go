package classfile

import (
	"fmt"
	"math"
	"strconv"
)

// maxPoolSize is the largest constant_pool_count a class file can declare.
const maxPoolSize = math.MaxUint16

// PoolBuilder assembles a constant pool for a class being generated.
// Identical entries are stored once.
type PoolBuilder struct {
	entries []ConstantPoolEntry
	index   map[string]uint16
	err     error
}

// NewPoolBuilder returns an empty builder. Index 0 is reserved, as in the
// class file format.
func NewPoolBuilder() *PoolBuilder {
	return &PoolBuilder{
		entries: []ConstantPoolEntry{nil},
		index:   make(map[string]uint16),
	}
}

func (b *PoolBuilder) add(key string, e ConstantPoolEntry, wide bool) uint16 {
	if i, ok := b.index[key]; ok {
		return i
	}
	need := 1
	if wide {
		need = 2
	}
	if len(b.entries)+need > maxPoolSize {
		if b.err == nil {
			b.err = fmt.Errorf("constant pool overflow: more than %d entries", maxPoolSize-1)
		}
		return 0
	}
	i := uint16(len(b.entries))
	b.entries = append(b.entries, e)
	if wide {
		// long and double occupy two slots
		b.entries = append(b.entries, nil)
	}
	b.index[key] = i
	return i
}

// Utf8 returns the index of a CONSTANT_Utf8 entry.
func (b *PoolBuilder) Utf8(s string) uint16 {
	if len(s) > math.MaxUint16 && b.err == nil {
		b.err = fmt.Errorf("Utf8 constant too long: %d bytes", len(s))
	}
	return b.add("u:"+s, &ConstantUtf8{Value: s}, false)
}

// Class returns the index of a CONSTANT_Class entry for an internal name.
func (b *PoolBuilder) Class(name string) uint16 {
	n := b.Utf8(name)
	return b.add("c:"+name, &ConstantClass{NameIndex: n}, false)
}

// String returns the index of a CONSTANT_String entry.
func (b *PoolBuilder) String(s string) uint16 {
	n := b.Utf8(s)
	return b.add("s:"+s, &ConstantString{StringIndex: n}, false)
}

// Integer returns the index of a CONSTANT_Integer entry.
func (b *PoolBuilder) Integer(v int32) uint16 {
	return b.add("i:"+strconv.FormatInt(int64(v), 10), &ConstantInteger{Value: v}, false)
}

// Long returns the index of a CONSTANT_Long entry.
func (b *PoolBuilder) Long(v int64) uint16 {
	return b.add("j:"+strconv.FormatInt(v, 10), &ConstantLong{Value: v}, true)
}

// NameAndType returns the index of a CONSTANT_NameAndType entry.
func (b *PoolBuilder) NameAndType(name, desc string) uint16 {
	n, d := b.Utf8(name), b.Utf8(desc)
	return b.add("n:"+name+":"+desc, &ConstantNameAndType{NameIndex: n, DescriptorIndex: d}, false)
}

// Fieldref returns the index of a CONSTANT_Fieldref entry.
func (b *PoolBuilder) Fieldref(class, name, desc string) uint16 {
	c, nt := b.Class(class), b.NameAndType(name, desc)
	return b.add("f:"+class+"."+name+":"+desc, &ConstantFieldref{ClassIndex: c, NameAndTypeIndex: nt}, false)
}

// Methodref returns the index of a CONSTANT_Methodref entry.
func (b *PoolBuilder) Methodref(class, name, desc string) uint16 {
	c, nt := b.Class(class), b.NameAndType(name, desc)
	return b.add("m:"+class+"."+name+":"+desc, &ConstantMethodref{ClassIndex: c, NameAndTypeIndex: nt}, false)
}

// Entries returns the assembled pool, 1-indexed like a parsed one.
func (b *PoolBuilder) Entries() ([]ConstantPoolEntry, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.entries, nil
}
