// Package asm is the program-image contract's one supplement (spec §6,
// SPEC_FULL.md §2): a small assembler covering the mnemonics of the
// opcode table (tomasulo.OpCode) so tests and the CLI can express a
// program as text instead of hand-packed 64-bit words. It does not
// attempt to be a general-purpose assembly language — no macros, no
// sections, no directives beyond labels and comments — and the textual
// grammar itself remains out of the simulator's testable surface (spec
// §1 Non-goals: "does not define the textual assembly-language grammar
// beyond what the binary encoding requires").
package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/archsim/simcore/internal/tomasulo"
)

// shape describes how a mnemonic's operand list maps onto the Rd/Rn/Rm/imm
// fields of the 64-bit word (spec §3).
type shape int

const (
	shapeRRR     shape = iota // Rd, Rn, Rm
	shapeRRI                  // Rd, Rn, #imm
	shapeRR                   // Rd, Rm   (unary; source rides Vk/Rm, e.g. MOV)
	shapeRI                   // Rd, #imm (unary immediate, e.g. MOVI)
	shapeRN                   // Rd, Rn   (unary; source rides Vj/Rn, e.g. INC)
	shapeCmpRR                // Rn, Rm   (no destination: CMP/FCMP family)
	shapeCmpRI                // Rn, #imm
	shapeMemLoad              // Rd, [Rn, #imm]
	shapeMemStore             // Rd, [Rn, #imm]  (Rd is the source of the stored value)
	shapeBranch               // label
	shapeNone                 // NOP, SWI
)

type mnemonicDef struct {
	op    tomasulo.OpCode
	shape shape
	fp    bool // immediate, if present, is a float32 bit pattern, not a sign-extended int32
}

var mnemonics = map[string]mnemonicDef{
	"ADD": {tomasulo.OpADD, shapeRRR, false}, "ADDI": {tomasulo.OpADDI, shapeRRI, false},
	"SUB": {tomasulo.OpSUB, shapeRRR, false}, "SUBI": {tomasulo.OpSUBI, shapeRRI, false},
	"ADC": {tomasulo.OpADC, shapeRRR, false}, "ADCI": {tomasulo.OpADCI, shapeRRI, false},
	"SBC": {tomasulo.OpSBC, shapeRRR, false}, "SBCI": {tomasulo.OpSBCI, shapeRRI, false},
	"AND": {tomasulo.OpAND, shapeRRR, false}, "ANDI": {tomasulo.OpANDI, shapeRRI, false},
	"ORR": {tomasulo.OpORR, shapeRRR, false}, "ORRI": {tomasulo.OpORRI, shapeRRI, false},
	"EOR": {tomasulo.OpEOR, shapeRRR, false}, "EORI": {tomasulo.OpEORI, shapeRRI, false},
	"BIC": {tomasulo.OpBIC, shapeRRR, false}, "BICI": {tomasulo.OpBICI, shapeRRI, false},
	"LSL": {tomasulo.OpLSL, shapeRRR, false}, "LSLI": {tomasulo.OpLSLI, shapeRRI, false},
	"LSR": {tomasulo.OpLSR, shapeRRR, false}, "LSRI": {tomasulo.OpLSRI, shapeRRI, false},
	"ASR": {tomasulo.OpASR, shapeRRR, false}, "ASRI": {tomasulo.OpASRI, shapeRRI, false},
	"ROR": {tomasulo.OpROR, shapeRRR, false}, "RORI": {tomasulo.OpRORI, shapeRRI, false},
	"INC": {tomasulo.OpINC, shapeRN, false},
	"DEC": {tomasulo.OpDEC, shapeRN, false},
	"MOV": {tomasulo.OpMOV, shapeRR, false}, "MOVI": {tomasulo.OpMOVI, shapeRI, false},
	"MVN": {tomasulo.OpMVN, shapeRR, false}, "MVNI": {tomasulo.OpMVNI, shapeRI, false},
	"CMP": {tomasulo.OpCMP, shapeCmpRR, false}, "CMPI": {tomasulo.OpCMPI, shapeCmpRI, false},
	"CMN": {tomasulo.OpCMN, shapeCmpRR, false}, "CMNI": {tomasulo.OpCMNI, shapeCmpRI, false},
	"TST": {tomasulo.OpTST, shapeCmpRR, false}, "TSTI": {tomasulo.OpTSTI, shapeCmpRI, false},
	"TEQ": {tomasulo.OpTEQ, shapeCmpRR, false}, "TEQI": {tomasulo.OpTEQI, shapeCmpRI, false},

	"MUL": {tomasulo.OpMUL, shapeRRR, false}, "MULI": {tomasulo.OpMULI, shapeRRI, false},
	"DIV": {tomasulo.OpDIV, shapeRRR, false}, "DIVI": {tomasulo.OpDIVI, shapeRRI, false},

	"FADD": {tomasulo.OpFADD, shapeRRR, true}, "FADDI": {tomasulo.OpFADDI, shapeRRI, true},
	"FSUB": {tomasulo.OpFSUB, shapeRRR, true}, "FSUBI": {tomasulo.OpFSUBI, shapeRRI, true},
	"FCOPYSIGN": {tomasulo.OpFCOPYSIGN, shapeRRR, true},
	"FNEG":      {tomasulo.OpFNEG, shapeRR, true},
	"FABS":      {tomasulo.OpFABS, shapeRR, true},
	"CDTI":      {tomasulo.OpCDTI, shapeRR, true},
	"CDTD":      {tomasulo.OpCDTD, shapeRR, true},
	"FROUND":    {tomasulo.OpFROUND, shapeRR, true},
	"FTRUNC":    {tomasulo.OpFTRUNC, shapeRR, true},
	"FFLOOR":    {tomasulo.OpFFLOOR, shapeRR, true},
	"FCEIL":     {tomasulo.OpFCEIL, shapeRR, true},
	"FCMP":      {tomasulo.OpFCMP, shapeCmpRR, true}, "FCMPI": {tomasulo.OpFCMPI, shapeCmpRI, true},
	"FCMN": {tomasulo.OpFCMN, shapeCmpRR, true}, "FCMNI": {tomasulo.OpFCMNI, shapeCmpRI, true},
	"FCMPS": {tomasulo.OpFCMPS, shapeCmpRR, true},

	"FMUL": {tomasulo.OpFMUL, shapeRRR, true}, "FMULI": {tomasulo.OpFMULI, shapeRRI, true},
	"FDIV": {tomasulo.OpFDIV, shapeRRR, true}, "FDIVI": {tomasulo.OpFDIVI, shapeRRI, true},
	"FSQRT": {tomasulo.OpFSQRT, shapeRR, true},

	"B": {tomasulo.OpB, shapeBranch, false}, "BEQ": {tomasulo.OpBEQ, shapeBranch, false},
	"BNE": {tomasulo.OpBNE, shapeBranch, false}, "BLT": {tomasulo.OpBLT, shapeBranch, false},
	"BGT": {tomasulo.OpBGT, shapeBranch, false}, "BUN": {tomasulo.OpBUN, shapeBranch, false},
	"BORD": {tomasulo.OpBORD, shapeBranch, false},

	"LDR": {tomasulo.OpLDR, shapeMemLoad, false}, "LDRB": {tomasulo.OpLDRB, shapeMemLoad, false},
	"STR": {tomasulo.OpSTR, shapeMemStore, false}, "STRB": {tomasulo.OpSTRB, shapeMemStore, false},

	"NOP": {tomasulo.OpNOP, shapeNone, false},
	"SWI": {tomasulo.OpSWI, shapeNone, false},
}

var registerNames = map[string]uint8{
	"R0": 0, "R1": 1, "R2": 2, "R3": 3, "R4": 4, "R5": 5, "R6": 6,
	"R7": 7, "R8": 8, "R9": 9, "R10": 10, "R11": 11, "R12": 12,
	"UPPER": 13, "LOWER": 14, "PEID": 15,
}

// Assemble translates newline-separated source into a sequence of 64-bit
// words, laid out consecutively starting at address 0 as spec §6
// requires. ';' and '#' outside an immediate operand start a line
// comment; a bare "label:" line or a "label: MNEMONIC ..." line defines a
// label usable as a branch target. Errors report the 1-based source line.
func Assemble(source string) ([]uint64, error) {
	lines := strings.Split(source, "\n")

	type rawLine struct {
		lineNo int
		text   string
	}
	var instrs []rawLine
	labels := map[string]uint64{}

	addr := uint64(0)
	for i, raw := range lines {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for {
			colon := strings.Index(line, ":")
			if colon < 0 {
				break
			}
			label := strings.TrimSpace(line[:colon])
			if label == "" || strings.ContainsAny(label, " \t") {
				break
			}
			if _, exists := labels[label]; exists {
				return nil, fmt.Errorf("line %d: duplicate label %q", i+1, label)
			}
			labels[label] = addr
			line = strings.TrimSpace(line[colon+1:])
			if line == "" {
				goto nextLine
			}
		}
		instrs = append(instrs, rawLine{lineNo: i + 1, text: line})
		addr += 8
	nextLine:
	}

	words := make([]uint64, len(instrs))
	for idx, rl := range instrs {
		w, err := assembleLine(rl.text, labels)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", rl.lineNo, err)
		}
		words[idx] = uint64(w)
	}
	return words, nil
}

func stripComment(line string) string {
	if j := strings.IndexByte(line, ';'); j >= 0 {
		line = line[:j]
	}
	// '#' also prefixes immediates ("#5"); only strip it as a comment
	// marker when it starts a token (preceded by whitespace or start
	// of line) AND is not immediately followed by a digit/sign, which
	// would make it an immediate instead of a comment.
	for j := 0; j < len(line); j++ {
		if line[j] != '#' || (j > 0 && line[j-1] != ' ' && line[j-1] != '\t') {
			continue
		}
		if j+1 < len(line) && (line[j+1] >= '0' && line[j+1] <= '9' || line[j+1] == '-' || line[j+1] == '+') {
			continue
		}
		return line[:j]
	}
	return line
}

func assembleLine(text string, labels map[string]uint64) (tomasulo.Word, error) {
	fields := strings.SplitN(text, " ", 2)
	mnemonic := strings.ToUpper(strings.TrimSpace(fields[0]))
	def, ok := mnemonics[mnemonic]
	if !ok {
		return 0, fmt.Errorf("unknown mnemonic %q", fields[0])
	}

	var operandStr string
	if len(fields) == 2 {
		operandStr = fields[1]
	}
	ops := splitOperands(operandStr)

	var rd, rn, rm uint8
	var imm uint32

	switch def.shape {
	case shapeNone:
		// no operands

	case shapeRRR:
		if len(ops) != 3 {
			return 0, fmt.Errorf("%s expects 3 register operands", mnemonic)
		}
		var err error
		if rd, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		if rn, err = parseReg(ops[1]); err != nil {
			return 0, err
		}
		if rm, err = parseReg(ops[2]); err != nil {
			return 0, err
		}

	case shapeRRI:
		if len(ops) != 3 {
			return 0, fmt.Errorf("%s expects Rd, Rn, #imm", mnemonic)
		}
		var err error
		if rd, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		if rn, err = parseReg(ops[1]); err != nil {
			return 0, err
		}
		if imm, err = parseImm(ops[2], def.fp); err != nil {
			return 0, err
		}

	case shapeRR:
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects Rd, Rm", mnemonic)
		}
		var err error
		if rd, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		if rm, err = parseReg(ops[1]); err != nil {
			return 0, err
		}

	case shapeRI:
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects Rd, #imm", mnemonic)
		}
		var err error
		if rd, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		if imm, err = parseImm(ops[1], def.fp); err != nil {
			return 0, err
		}

	case shapeRN:
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects Rd, Rn", mnemonic)
		}
		var err error
		if rd, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		if rn, err = parseReg(ops[1]); err != nil {
			return 0, err
		}

	case shapeCmpRR:
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects Rn, Rm", mnemonic)
		}
		var err error
		if rn, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		if rm, err = parseReg(ops[1]); err != nil {
			return 0, err
		}

	case shapeCmpRI:
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects Rn, #imm", mnemonic)
		}
		var err error
		if rn, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		if imm, err = parseImm(ops[1], def.fp); err != nil {
			return 0, err
		}

	case shapeMemLoad, shapeMemStore:
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects Rd, [Rn, #imm]", mnemonic)
		}
		var err error
		if rd, err = parseReg(ops[0]); err != nil {
			return 0, err
		}
		rn, imm, err = parseMem(ops[1])
		if err != nil {
			return 0, err
		}

	case shapeBranch:
		if len(ops) != 1 {
			return 0, fmt.Errorf("%s expects a single label operand", mnemonic)
		}
		target, ok := labels[ops[0]]
		if !ok {
			return 0, fmt.Errorf("undefined label %q", ops[0])
		}
		imm = uint32(target)
	}

	return tomasulo.Encode(def.op, rd, rn, rm, imm), nil
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseReg(tok string) (uint8, error) {
	r, ok := registerNames[strings.ToUpper(tok)]
	if !ok {
		return 0, fmt.Errorf("not a register: %q", tok)
	}
	return r, nil
}

func parseImm(tok string, fp bool) (uint32, error) {
	tok = strings.TrimPrefix(strings.TrimSpace(tok), "#")
	if fp {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, fmt.Errorf("bad float immediate %q: %w", tok, err)
		}
		return math.Float32bits(float32(f)), nil
	}
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		uv, uerr := strconv.ParseUint(tok, 0, 32)
		if uerr != nil {
			return 0, fmt.Errorf("bad integer immediate %q: %w", tok, err)
		}
		return uint32(uv), nil
	}
	return uint32(int32(v)), nil
}

// parseMem parses "[Rn]" or "[Rn, #imm]".
func parseMem(tok string) (rn uint8, imm uint32, err error) {
	tok = strings.TrimSpace(tok)
	if !strings.HasPrefix(tok, "[") || !strings.HasSuffix(tok, "]") {
		return 0, 0, fmt.Errorf("expected [Rn] or [Rn, #imm], got %q", tok)
	}
	inner := tok[1 : len(tok)-1]
	parts := splitOperands(inner)
	if len(parts) == 0 || len(parts) > 2 {
		return 0, 0, fmt.Errorf("malformed memory operand %q", tok)
	}
	rn, err = parseReg(parts[0])
	if err != nil {
		return 0, 0, err
	}
	if len(parts) == 2 {
		imm, err = parseImm(parts[1], false)
		if err != nil {
			return 0, 0, err
		}
	}
	return rn, imm, nil
}
