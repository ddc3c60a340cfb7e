package tomasulo

// Package-level opcode table for the Tomasulo core's 64-bit instruction
// word (spec §3): [63:56] opcode, [55:52] Rd, [51:48] Rn, [47:44] Rm,
// [43:12] imm32, [11:0] reserved.

// OpCode identifies one of the 78 instructions the decoder recognizes.
// Mirrors the teacher's pkg/inst.OpCode: a compact enum distinct from the
// raw encoded byte, so aliasing/renumbering never touches the wire format.
type OpCode uint8

const (
	OpNOP OpCode = iota
	OpSWI

	// Integer ALU, 3-register and immediate variants.
	OpADD
	OpADDI
	OpSUB
	OpSUBI
	OpADC
	OpADCI
	OpSBC
	OpSBCI
	OpAND
	OpANDI
	OpORR
	OpORRI
	OpEOR
	OpEORI
	OpBIC
	OpBICI
	OpLSL
	OpLSLI
	OpLSR
	OpLSRI
	OpASR
	OpASRI
	OpROR
	OpRORI
	OpINC
	OpDEC
	OpMOV
	OpMOVI
	OpMVN
	OpMVNI
	OpCMP
	OpCMPI
	OpCMN
	OpCMNI
	OpTST
	OpTSTI
	OpTEQ
	OpTEQI

	// Integer MUL/DIV, 3-register and immediate.
	OpMUL
	OpMULI
	OpDIV
	OpDIVI

	// FP ALU: add/sub/sign ops/rounding conversions/compares.
	OpFADD
	OpFADDI
	OpFSUB
	OpFSUBI
	OpFCOPYSIGN
	OpFNEG
	OpFABS
	OpCDTI
	OpCDTD
	OpFROUND
	OpFTRUNC
	OpFFLOOR
	OpFCEIL
	OpFCMP
	OpFCMPI
	OpFCMN
	OpFCMNI
	OpFCMPS

	// FP MUL/DIV/SQRT.
	OpFMUL
	OpFMULI
	OpFDIV
	OpFDIVI
	OpFSQRT

	// Branches.
	OpB
	OpBEQ
	OpBNE
	OpBLT
	OpBGT
	OpBUN
	OpBORD

	// Memory.
	OpLDR
	OpSTR
	OpLDRB
	OpSTRB

	opCodeCount
)

var opCodeNames = [opCodeCount]string{
	OpNOP: "NOP", OpSWI: "SWI",
	OpADD: "ADD", OpADDI: "ADDI", OpSUB: "SUB", OpSUBI: "SUBI",
	OpADC: "ADC", OpADCI: "ADCI", OpSBC: "SBC", OpSBCI: "SBCI",
	OpAND: "AND", OpANDI: "ANDI", OpORR: "ORR", OpORRI: "ORRI",
	OpEOR: "EOR", OpEORI: "EORI", OpBIC: "BIC", OpBICI: "BICI",
	OpLSL: "LSL", OpLSLI: "LSLI", OpLSR: "LSR", OpLSRI: "LSRI",
	OpASR: "ASR", OpASRI: "ASRI", OpROR: "ROR", OpRORI: "RORI",
	OpINC: "INC", OpDEC: "DEC",
	OpMOV: "MOV", OpMOVI: "MOVI", OpMVN: "MVN", OpMVNI: "MVNI",
	OpCMP: "CMP", OpCMPI: "CMPI", OpCMN: "CMN", OpCMNI: "CMNI",
	OpTST: "TST", OpTSTI: "TSTI", OpTEQ: "TEQ", OpTEQI: "TEQI",
	OpMUL: "MUL", OpMULI: "MULI", OpDIV: "DIV", OpDIVI: "DIVI",
	OpFADD: "FADD", OpFADDI: "FADDI", OpFSUB: "FSUB", OpFSUBI: "FSUBI",
	OpFCOPYSIGN: "FCOPYSIGN", OpFNEG: "FNEG", OpFABS: "FABS",
	OpCDTI: "CDTI", OpCDTD: "CDTD",
	OpFROUND: "FROUND", OpFTRUNC: "FTRUNC", OpFFLOOR: "FFLOOR", OpFCEIL: "FCEIL",
	OpFCMP: "FCMP", OpFCMPI: "FCMPI", OpFCMN: "FCMN", OpFCMNI: "FCMNI", OpFCMPS: "FCMPS",
	OpFMUL: "FMUL", OpFMULI: "FMULI", OpFDIV: "FDIV", OpFDIVI: "FDIVI", OpFSQRT: "FSQRT",
	OpB: "B", OpBEQ: "BEQ", OpBNE: "BNE", OpBLT: "BLT", OpBGT: "BGT", OpBUN: "BUN", OpBORD: "BORD",
	OpLDR: "LDR", OpSTR: "STR", OpLDRB: "LDRB", OpSTRB: "STRB",
}

// String returns the opcode's mnemonic, the same spelling asm.Assemble
// accepts, or "OP?" for a value beyond the table. Decode falls back to
// OpNOP's row for such a value, but DecodeWord keeps the raw opcode byte
// in Decoded.Op, so an illegal instruction carries it onward.
func (op OpCode) String() string {
	if int(op) < len(opCodeNames) && opCodeNames[op] != "" {
		return opCodeNames[op]
	}
	return "OP?"
}

// AllocClass is the 3-bit ROB allocation-type / reservation-station family
// a decoded instruction is routed to (spec §3, §4.C).
type AllocClass uint8

const (
	ClassIntALU AllocClass = iota
	ClassIntMUL
	ClassFPALU
	ClassFPMUL
	ClassLoad
	ClassStore
	ClassBranch
	ClassCMPOnly
)

// DecodeInfo is one row of the opcode decode table the control unit reads
// combinationally (spec §4.C).
type DecodeInfo struct {
	Class           AllocClass
	UseImm          bool
	WritesRd        bool
	ModifiesFlags   bool
	NeedsFlags      bool
	IsCMPOnly       bool
	IsUnconditional bool
	IsUnary         bool // single source operand: Rm for MOV/MVN and the FP unary ops, Rn for INC/DEC
	IsFP            bool
	NoExecute       bool // NOP/SWI: allocate a ROB entry directly, ready, no RS
}

var decodeTable = func() [opCodeCount]DecodeInfo {
	var t [opCodeCount]DecodeInfo

	intALU := func(op, opi OpCode, modFlags bool) {
		t[op] = DecodeInfo{Class: ClassIntALU, WritesRd: true, ModifiesFlags: modFlags}
		t[opi] = DecodeInfo{Class: ClassIntALU, UseImm: true, WritesRd: true, ModifiesFlags: modFlags}
	}
	intALU(OpADD, OpADDI, true)
	intALU(OpSUB, OpSUBI, true)
	intALU(OpAND, OpANDI, true)
	intALU(OpORR, OpORRI, true)
	intALU(OpEOR, OpEORI, true)
	intALU(OpBIC, OpBICI, true)
	intALU(OpLSL, OpLSLI, true)
	intALU(OpLSR, OpLSRI, true)
	intALU(OpASR, OpASRI, true)
	intALU(OpROR, OpRORI, true)

	t[OpADC] = DecodeInfo{Class: ClassIntALU, WritesRd: true, ModifiesFlags: true, NeedsFlags: true}
	t[OpADCI] = DecodeInfo{Class: ClassIntALU, UseImm: true, WritesRd: true, ModifiesFlags: true, NeedsFlags: true}
	t[OpSBC] = DecodeInfo{Class: ClassIntALU, WritesRd: true, ModifiesFlags: true, NeedsFlags: true}
	t[OpSBCI] = DecodeInfo{Class: ClassIntALU, UseImm: true, WritesRd: true, ModifiesFlags: true, NeedsFlags: true}

	t[OpINC] = DecodeInfo{Class: ClassIntALU, WritesRd: true, ModifiesFlags: true, IsUnary: true}
	t[OpDEC] = DecodeInfo{Class: ClassIntALU, WritesRd: true, ModifiesFlags: true, IsUnary: true}
	t[OpMOV] = DecodeInfo{Class: ClassIntALU, WritesRd: true, IsUnary: true}
	t[OpMOVI] = DecodeInfo{Class: ClassIntALU, UseImm: true, WritesRd: true, IsUnary: true}
	t[OpMVN] = DecodeInfo{Class: ClassIntALU, WritesRd: true, IsUnary: true}
	t[OpMVNI] = DecodeInfo{Class: ClassIntALU, UseImm: true, WritesRd: true, IsUnary: true}

	cmpOnly := func(op, opi OpCode) {
		t[op] = DecodeInfo{Class: ClassCMPOnly, ModifiesFlags: true, IsCMPOnly: true}
		t[opi] = DecodeInfo{Class: ClassCMPOnly, UseImm: true, ModifiesFlags: true, IsCMPOnly: true}
	}
	cmpOnly(OpCMP, OpCMPI)
	cmpOnly(OpCMN, OpCMNI)
	cmpOnly(OpTST, OpTSTI)
	cmpOnly(OpTEQ, OpTEQI)

	t[OpMUL] = DecodeInfo{Class: ClassIntMUL, WritesRd: true, ModifiesFlags: true}
	t[OpMULI] = DecodeInfo{Class: ClassIntMUL, UseImm: true, WritesRd: true, ModifiesFlags: true}
	t[OpDIV] = DecodeInfo{Class: ClassIntMUL, WritesRd: true, ModifiesFlags: true}
	t[OpDIVI] = DecodeInfo{Class: ClassIntMUL, UseImm: true, WritesRd: true, ModifiesFlags: true}

	fpALU := func(op, opi OpCode) {
		t[op] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsFP: true}
		t[opi] = DecodeInfo{Class: ClassFPALU, UseImm: true, WritesRd: true, IsFP: true}
	}
	fpALU(OpFADD, OpFADDI)
	fpALU(OpFSUB, OpFSUBI)
	t[OpFCOPYSIGN] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsFP: true}
	t[OpFNEG] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}
	t[OpFABS] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}
	t[OpCDTI] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}
	t[OpCDTD] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}
	t[OpFROUND] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}
	t[OpFTRUNC] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}
	t[OpFFLOOR] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}
	t[OpFCEIL] = DecodeInfo{Class: ClassFPALU, WritesRd: true, IsUnary: true, IsFP: true}

	fpCmp := func(op, opi OpCode) {
		t[op] = DecodeInfo{Class: ClassFPALU, ModifiesFlags: true, IsCMPOnly: true, IsFP: true}
		t[opi] = DecodeInfo{Class: ClassFPALU, UseImm: true, ModifiesFlags: true, IsCMPOnly: true, IsFP: true}
	}
	fpCmp(OpFCMP, OpFCMPI)
	fpCmp(OpFCMN, OpFCMNI)
	t[OpFCMPS] = DecodeInfo{Class: ClassFPALU, ModifiesFlags: true, IsCMPOnly: true, IsFP: true}

	t[OpFMUL] = DecodeInfo{Class: ClassFPMUL, WritesRd: true, IsFP: true}
	t[OpFMULI] = DecodeInfo{Class: ClassFPMUL, UseImm: true, WritesRd: true, IsFP: true}
	t[OpFDIV] = DecodeInfo{Class: ClassFPMUL, WritesRd: true, IsFP: true}
	t[OpFDIVI] = DecodeInfo{Class: ClassFPMUL, UseImm: true, WritesRd: true, IsFP: true}
	t[OpFSQRT] = DecodeInfo{Class: ClassFPMUL, WritesRd: true, IsUnary: true, IsFP: true}

	// Branch target rides in Vk, same slot the immediate extender fills
	// for any other UseImm op, so the executor reads it uniformly.
	t[OpB] = DecodeInfo{Class: ClassBranch, UseImm: true, IsUnconditional: true}
	t[OpBEQ] = DecodeInfo{Class: ClassBranch, UseImm: true, NeedsFlags: true}
	t[OpBNE] = DecodeInfo{Class: ClassBranch, UseImm: true, NeedsFlags: true}
	t[OpBLT] = DecodeInfo{Class: ClassBranch, UseImm: true, NeedsFlags: true}
	t[OpBGT] = DecodeInfo{Class: ClassBranch, UseImm: true, NeedsFlags: true}
	t[OpBUN] = DecodeInfo{Class: ClassBranch, UseImm: true, NeedsFlags: true}
	t[OpBORD] = DecodeInfo{Class: ClassBranch, UseImm: true, NeedsFlags: true}

	t[OpLDR] = DecodeInfo{Class: ClassLoad, WritesRd: true, UseImm: true}
	t[OpLDRB] = DecodeInfo{Class: ClassLoad, WritesRd: true, UseImm: true}
	t[OpSTR] = DecodeInfo{Class: ClassStore, UseImm: true}
	t[OpSTRB] = DecodeInfo{Class: ClassStore, UseImm: true}

	t[OpNOP] = DecodeInfo{Class: ClassCMPOnly, IsUnconditional: true, NoExecute: true}
	t[OpSWI] = DecodeInfo{Class: ClassCMPOnly, IsUnconditional: true, NoExecute: true}

	return t
}()

// Decode looks up the static properties of an opcode. Unknown opcodes fall
// back to NOP and are reported as illegal (exception code 1, spec §7).
func Decode(op OpCode) (DecodeInfo, bool) {
	if op >= opCodeCount {
		return decodeTable[OpNOP], false
	}
	return decodeTable[op], true
}
