// Package code defines the bytecode instruction format the compiler emits
// and the VM executes: opcodes, their operand widths, and a disassembler.
package code

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Instructions is a raw stream of encoded bytecode instructions.
type Instructions []byte

// Opcode identifies a single bytecode instruction.
type Opcode byte

const (
	OpConstant Opcode = iota
	OpPop

	OpAdd
	OpSub
	OpMul
	OpDiv

	OpEqual
	OpNotEqual
	OpGreaterThan

	OpMinus
	OpBang

	OpTrue
	OpFalse
	OpNull

	OpJumpNotTruthy
	OpJump

	OpGetGlobal
	OpSetGlobal
	OpGetLocal
	OpSetLocal
	OpGetFree
	OpGetBuiltin

	OpArray
	OpTable
	OpIndex
	OpSetIndex

	// OpDup2 duplicates the top two stack slots, preserving their order
	// (..., a, b -> ..., a, b, a, b). It lets an indexed operator-assignment
	// read the current container[index] via OpIndex while keeping a second
	// container/index pair on the stack for the OpSetIndex that follows.
	OpDup2

	OpCall
	OpReturnValue
	OpReturn

	OpClosure
	OpCurrentClosure

	// OpRequire loads and runs a submodule: pop n arguments (n == 1, the
	// module path string), push the module's exported value. This has no
	// counterpart in the distilled opcode table; the module loader
	// described only as an external interface needs a bytecode hook to be
	// reachable from compiled code at all, so it is added here.
	OpRequire
)

// Definition describes an opcode's mnemonic and the byte width of each of
// its operands, in order.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	OpConstant: {"OpConstant", []int{2}},
	OpPop:      {"OpPop", []int{}},

	OpAdd: {"OpAdd", []int{}},
	OpSub: {"OpSub", []int{}},
	OpMul: {"OpMul", []int{}},
	OpDiv: {"OpDiv", []int{}},

	OpEqual:       {"OpEqual", []int{}},
	OpNotEqual:    {"OpNotEqual", []int{}},
	OpGreaterThan: {"OpGreaterThan", []int{}},

	OpMinus: {"OpMinus", []int{}},
	OpBang:  {"OpBang", []int{}},

	OpTrue:  {"OpTrue", []int{}},
	OpFalse: {"OpFalse", []int{}},
	OpNull:  {"OpNull", []int{}},

	OpJumpNotTruthy: {"OpJumpNotTruthy", []int{2}},
	OpJump:          {"OpJump", []int{2}},

	OpGetGlobal:  {"OpGetGlobal", []int{2}},
	OpSetGlobal:  {"OpSetGlobal", []int{2}},
	OpGetLocal:   {"OpGetLocal", []int{1}},
	OpSetLocal:   {"OpSetLocal", []int{1}},
	OpGetFree:    {"OpGetFree", []int{1}},
	OpGetBuiltin: {"OpGetBuiltin", []int{1}},

	OpArray:    {"OpArray", []int{2}},
	OpTable:    {"OpTable", []int{2}},
	OpIndex:    {"OpIndex", []int{}},
	OpSetIndex: {"OpSetIndex", []int{}},
	OpDup2:     {"OpDup2", []int{}},

	OpCall:        {"OpCall", []int{1}},
	OpReturnValue: {"OpReturnValue", []int{}},
	OpReturn:      {"OpReturn", []int{}},

	OpClosure:        {"OpClosure", []int{2, 1}},
	OpCurrentClosure: {"OpCurrentClosure", []int{}},

	OpRequire: {"OpRequire", []int{1}},
}

// Lookup returns op's Definition, or an error if op is unrecognized.
func Lookup(op Opcode) (*Definition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Make encodes op and its operands into one instruction, big-endian. An
// unrecognized opcode yields an empty slice.
func Make(op Opcode, operands ...int) []byte {
	def, ok := definitions[op]
	if !ok {
		return []byte{}
	}

	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}

	instruction := make([]byte, length)
	instruction[0] = byte(op)

	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(operand))
		case 1:
			instruction[offset] = byte(operand)
		}
		offset += width
	}
	return instruction
}

// ReadOperands decodes the operands of the instruction at ins[0:], per def,
// and returns them along with the number of bytes consumed.
func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0
	for i, width := range def.OperandWidths {
		switch width {
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		case 1:
			operands[i] = int(ins[offset])
		}
		offset += width
	}
	return operands, offset
}

func ReadUint16(ins Instructions) uint16 { return binary.BigEndian.Uint16(ins) }
func ReadUint8(ins Instructions) uint8   { return ins[0] }

// String disassembles ins into a human-readable listing, one instruction
// per line prefixed with its byte offset.
func (ins Instructions) String() string {
	var out bytes.Buffer
	i := 0
	for i < len(ins) {
		def, err := Lookup(Opcode(ins[i]))
		if err != nil {
			fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		fmt.Fprintf(&out, "%04d %s\n", i, fmtInstruction(def, operands))
		i += 1 + read
	}
	return out.String()
}

func fmtInstruction(def *Definition, operands []int) string {
	switch len(operands) {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	case 2:
		return fmt.Sprintf("%s %d %d", def.Name, operands[0], operands[1])
	}
	return fmt.Sprintf("ERROR: unhandled operand count for %s", def.Name)
}
