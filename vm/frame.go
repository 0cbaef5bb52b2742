package vm

import (
	"monke/compiler/code"
	"monke/object"
)

// Frame is one call's activation record: the closure being executed, its
// instruction pointer, and the stack slot its locals start at.
type Frame struct {
	closure     *object.Closure
	ip          int
	basePointer int
}

func NewFrame(cl *object.Closure, basePointer int) *Frame {
	return &Frame{closure: cl, ip: -1, basePointer: basePointer}
}

func (f *Frame) Instructions() code.Instructions {
	return f.closure.Fn.Instructions
}
