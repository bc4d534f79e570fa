package classfile

// Opcodes understood by the assembler and the interpreter.
const (
	OpNop           = 0x00
	OpAconstNull    = 0x01
	OpIconstM1      = 0x02
	OpIconst0       = 0x03
	OpIconst1       = 0x04
	OpIconst2       = 0x05
	OpIconst3       = 0x06
	OpIconst4       = 0x07
	OpIconst5       = 0x08
	OpLconst0       = 0x09
	OpLconst1       = 0x0A
	OpFconst0       = 0x0B
	OpFconst1       = 0x0C
	OpFconst2       = 0x0D
	OpDconst0       = 0x0E
	OpDconst1       = 0x0F
	OpBipush        = 0x10
	OpSipush        = 0x11
	OpLdc           = 0x12
	OpLdcW          = 0x13
	OpLdc2W         = 0x14
	OpIload         = 0x15
	OpLload         = 0x16
	OpFload         = 0x17
	OpDload         = 0x18
	OpAload         = 0x19
	OpIload0        = 0x1A
	OpLload0        = 0x1E
	OpFload0        = 0x22
	OpDload0        = 0x26
	OpAload0        = 0x2A
	OpAload3        = 0x2D
	OpAaload        = 0x32
	OpIstore        = 0x36
	OpLstore        = 0x37
	OpFstore        = 0x38
	OpDstore        = 0x39
	OpAstore        = 0x3A
	OpIstore0       = 0x3B
	OpLstore0       = 0x3F
	OpFstore0       = 0x43
	OpDstore0       = 0x47
	OpAstore0       = 0x4B
	OpAstore3       = 0x4E
	OpAastore       = 0x53
	OpPop           = 0x57
	OpPop2          = 0x58
	OpDup           = 0x59
	OpSwap          = 0x5F
	OpIadd          = 0x60
	OpLadd          = 0x61
	OpIsub          = 0x64
	OpLsub          = 0x65
	OpImul          = 0x68
	OpI2l           = 0x85
	OpL2i           = 0x88
	OpIfeq          = 0x99
	OpIfne          = 0x9A
	OpGoto          = 0xA7
	OpIreturn       = 0xAC
	OpLreturn       = 0xAD
	OpFreturn       = 0xAE
	OpDreturn       = 0xAF
	OpAreturn       = 0xB0
	OpReturn        = 0xB1
	OpGetstatic     = 0xB2
	OpPutstatic     = 0xB3
	OpGetfield      = 0xB4
	OpPutfield      = 0xB5
	OpInvokevirtual = 0xB6
	OpInvokespecial = 0xB7
	OpInvokestatic  = 0xB8
	OpNew           = 0xBB
	OpAnewarray     = 0xBD
	OpArraylength   = 0xBE
	OpAthrow        = 0xBF
	OpCheckcast     = 0xC0
	OpInstanceof    = 0xC1
	OpIfnull        = 0xC6
	OpIfnonnull     = 0xC7
)
