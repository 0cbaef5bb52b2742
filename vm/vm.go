// Package vm executes compiled bytecode: a stack machine with call frames,
// a mark-and-sweep collector for its heap-allocated values, and a module
// loader reachable through the OpRequire opcode.
package vm

import (
	"fmt"

	"monke/compiler"
	"monke/compiler/code"
	"monke/object"
)

// VM executes the instructions and constants produced by the compiler.
type VM struct {
	constants []object.Object
	stack     Stack
	globals   []object.Object

	frames      [MaxFrames]*Frame
	framesIndex int

	lastPopped object.Object

	heapHead     object.Heap
	bytesUntilGC int

	modules *ModuleLoader
}

// New creates a VM ready to run bytecode, with a fresh empty globals store.
func New(bytecode *compiler.Bytecode) *VM {
	mainFn := &object.CompiledFunction{
		Instructions: bytecode.Instructions,
		SourceLines:  bytecode.SourceLines,
		Name:         "main",
	}
	mainClosure := &object.Closure{Fn: mainFn}

	vm := &VM{
		constants:    bytecode.Constants,
		globals:      make([]object.Object, 0, 64),
		bytesUntilGC: initialGCBudget,
		modules:      NewModuleLoader(),
	}
	vm.frames[0] = NewFrame(mainClosure, 0)
	vm.framesIndex = 1
	return vm
}

// NewWithGlobalsStore creates a VM that shares an existing globals slice,
// the way a REPL carries state across successive submissions.
func NewWithGlobalsStore(bytecode *compiler.Bytecode, globals []object.Object) *VM {
	vm := New(bytecode)
	vm.globals = globals
	return vm
}

// GlobalsStore exposes the current globals slice for REPL continuity.
func (vm *VM) GlobalsStore() []object.Object { return vm.globals }

// LastPoppedStackElem returns the most recently popped value, the result of
// the last top-level expression statement executed.
func (vm *VM) LastPoppedStackElem() object.Object { return vm.lastPopped }

func (vm *VM) currentFrame() *Frame { return vm.frames[vm.framesIndex-1] }

func (vm *VM) pushFrame(f *Frame) {
	vm.frames[vm.framesIndex] = f
	vm.framesIndex++
}

func (vm *VM) popFrame() *Frame {
	vm.framesIndex--
	return vm.frames[vm.framesIndex]
}

func (vm *VM) push(obj object.Object) error {
	return vm.stack.Push(obj)
}

// Run executes the VM's instructions to completion or until a runtime error
// occurs.
func (vm *VM) Run() error {
	for vm.currentFrame().ip < len(vm.currentFrame().Instructions())-1 {
		vm.currentFrame().ip++

		ip := vm.currentFrame().ip
		ins := vm.currentFrame().Instructions()
		op := code.Opcode(ins[ip])

		switch op {
		case code.OpConstant:
			constIndex := code.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			if err := vm.push(vm.constants[constIndex]); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpPop:
			vm.lastPopped = vm.stack.Pop()

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv:
			if err := vm.executeBinaryOperation(op); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpTrue:
			if err := vm.push(object.TrueValue); err != nil {
				return vm.runtimeErr(err)
			}
		case code.OpFalse:
			if err := vm.push(object.FalseValue); err != nil {
				return vm.runtimeErr(err)
			}
		case code.OpNull:
			if err := vm.push(object.NullValue); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpEqual, code.OpNotEqual, code.OpGreaterThan:
			if err := vm.executeComparison(op); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpBang:
			value := vm.stack.Pop()
			if err := vm.push(object.NativeBool(!object.IsTruthy(value))); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpMinus:
			if err := vm.executeMinusOperator(); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpJump:
			pos := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip = pos - 1

		case code.OpJumpNotTruthy:
			pos := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			condition := vm.stack.Pop()
			if !object.IsTruthy(condition) {
				vm.currentFrame().ip = pos - 1
			}

		case code.OpSetGlobal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			val := vm.stack.Pop()
			for idx >= len(vm.globals) {
				vm.globals = append(vm.globals, object.NullValue)
			}
			vm.globals[idx] = val

		case code.OpGetGlobal:
			idx := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			if idx >= len(vm.globals) {
				if err := vm.push(object.NullValue); err != nil {
					return vm.runtimeErr(err)
				}
			} else if err := vm.push(vm.globals[idx]); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpSetLocal:
			idx := int(code.ReadUint8(ins[ip+1:]))
			vm.currentFrame().ip++
			vm.stack.Set(vm.currentFrame().basePointer+idx, vm.stack.Pop())

		case code.OpGetLocal:
			idx := int(code.ReadUint8(ins[ip+1:]))
			vm.currentFrame().ip++
			if err := vm.push(vm.stack.Get(vm.currentFrame().basePointer + idx)); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpGetFree:
			idx := int(code.ReadUint8(ins[ip+1:]))
			vm.currentFrame().ip++
			if err := vm.push(vm.currentFrame().closure.Free[idx]); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpGetBuiltin:
			idx := int(code.ReadUint8(ins[ip+1:]))
			vm.currentFrame().ip++
			if idx < 0 || idx >= len(object.Builtins) {
				return vm.runtimeErr(fmt.Errorf("builtin %d undefined", idx))
			}
			if err := vm.push(object.Builtins[idx]); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpCurrentClosure:
			if err := vm.push(vm.currentFrame().closure); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpArray:
			n := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			if err := vm.buildArray(n); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpTable:
			n := int(code.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2
			if err := vm.buildTable(n); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpIndex:
			index := vm.stack.Pop()
			left := vm.stack.Pop()
			if err := vm.executeIndexExpression(left, index); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpSetIndex:
			value := vm.stack.Pop()
			index := vm.stack.Pop()
			container := vm.stack.Pop()
			if err := vm.executeSetIndex(container, index, value); err != nil {
				return vm.runtimeErr(err)
			}
			if err := vm.push(value); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpDup2:
			sp := vm.stack.SP()
			a, b := vm.stack.Get(sp-2), vm.stack.Get(sp-1)
			if err := vm.push(a); err != nil {
				return vm.runtimeErr(err)
			}
			if err := vm.push(b); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpClosure:
			constIndex := int(code.ReadUint16(ins[ip+1:]))
			numFree := int(code.ReadUint8(ins[ip+3:]))
			vm.currentFrame().ip += 3
			if err := vm.pushClosure(constIndex, numFree); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpCall:
			numArgs := int(code.ReadUint8(ins[ip+1:]))
			vm.currentFrame().ip++
			if err := vm.executeCall(numArgs); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpReturnValue:
			returnValue := vm.stack.Pop()
			frame := vm.popFrame()
			if err := vm.stack.SetSP(frame.basePointer - 1); err != nil {
				return vm.runtimeErr(err)
			}
			if err := vm.push(returnValue); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpReturn:
			frame := vm.popFrame()
			if err := vm.stack.SetSP(frame.basePointer - 1); err != nil {
				return vm.runtimeErr(err)
			}
			if err := vm.push(object.NullValue); err != nil {
				return vm.runtimeErr(err)
			}

		case code.OpRequire:
			numArgs := int(code.ReadUint8(ins[ip+1:]))
			vm.currentFrame().ip++
			if err := vm.executeRequire(numArgs); err != nil {
				return vm.runtimeErr(err)
			}

		default:
			return vm.runtimeErr(fmt.Errorf("unknown opcode %d", op))
		}
	}
	return nil
}

func (vm *VM) buildArray(n int) error {
	elements := make([]object.Object, n)
	start := vm.stack.SP() - n
	for i := 0; i < n; i++ {
		elements[i] = vm.stack.Get(start + i)
	}
	if err := vm.stack.SetSP(start); err != nil {
		return err
	}
	arr := &object.Array{Elements: elements}
	vm.track(arr)
	return vm.push(arr)
}

func (vm *VM) buildTable(n int) error {
	start := vm.stack.SP() - 2*n
	tbl := object.NewTable()
	vm.track(tbl)
	for i := 0; i < n; i++ {
		key := vm.stack.Get(start + 2*i)
		val := vm.stack.Get(start + 2*i + 1)
		if _, err := tbl.Set(key, val); err != nil {
			return err
		}
	}
	if err := vm.stack.SetSP(start); err != nil {
		return err
	}
	return vm.push(tbl)
}

func (vm *VM) pushClosure(constIndex, numFree int) error {
	constant := vm.constants[constIndex]
	fn, ok := constant.(*object.CompiledFunction)
	if !ok {
		return fmt.Errorf("not a function: %+v", constant)
	}

	free := make([]object.Object, numFree)
	start := vm.stack.SP() - numFree
	for i := 0; i < numFree; i++ {
		free[i] = vm.stack.Get(start + i)
	}
	if err := vm.stack.SetSP(start); err != nil {
		return err
	}

	closure := &object.Closure{Fn: fn, Free: free}
	vm.track(closure)
	return vm.push(closure)
}

func (vm *VM) executeCall(numArgs int) error {
	callee := vm.stack.Get(vm.stack.SP() - 1 - numArgs)
	switch callee := callee.(type) {
	case *object.Closure:
		return vm.callClosure(callee, numArgs)
	case *object.BuiltinFunction:
		return vm.callBuiltin(callee, numArgs)
	default:
		return vm.push(object.NewError("calling non-function"))
	}
}

func (vm *VM) callClosure(cl *object.Closure, numArgs int) error {
	if numArgs != cl.Fn.NumParameters {
		return fmt.Errorf("wrong number of arguments: want=%d, got=%d", cl.Fn.NumParameters, numArgs)
	}

	basePointer := vm.stack.SP() - numArgs
	frame := NewFrame(cl, basePointer)
	vm.pushFrame(frame)

	for i := basePointer + numArgs; i < basePointer+cl.Fn.NumLocals; i++ {
		vm.stack.Set(i, object.NullValue)
	}
	return vm.stack.SetSP(basePointer + cl.Fn.NumLocals)
}

func (vm *VM) callBuiltin(builtin *object.BuiltinFunction, numArgs int) error {
	args := make([]object.Object, numArgs)
	start := vm.stack.SP() - numArgs
	for i := 0; i < numArgs; i++ {
		args[i] = vm.stack.Get(start + i)
	}

	result := builtin.Fn(vm.track, args...)
	if err := vm.stack.SetSP(start - 1); err != nil {
		return err
	}

	if result == nil {
		return vm.push(object.NullValue)
	}
	return vm.push(result)
}

func (vm *VM) executeRequire(numArgs int) error {
	if numArgs != 1 {
		return fmt.Errorf("require expects exactly 1 argument, got %d", numArgs)
	}
	arg := vm.stack.Pop()
	path, ok := arg.(*object.String)
	if !ok {
		return fmt.Errorf("require argument must be a string, got %s", arg.Type())
	}
	value, err := vm.modules.Require(path.Value)
	if err != nil {
		return err
	}
	return vm.push(value)
}

func isNumeric(o object.Object) bool {
	switch o.(type) {
	case *object.Integer, *object.Float:
		return true
	}
	return false
}

func asFloat(o object.Object) float64 {
	switch o := o.(type) {
	case *object.Integer:
		return float64(o.Value)
	case *object.Float:
		return o.Value
	}
	return 0
}

func opSymbol(op code.Opcode) string {
	switch op {
	case code.OpAdd:
		return "+"
	case code.OpSub:
		return "-"
	case code.OpMul:
		return "*"
	case code.OpDiv:
		return "/"
	case code.OpGreaterThan:
		return ">"
	case code.OpEqual:
		return "=="
	case code.OpNotEqual:
		return "!="
	default:
		return "?"
	}
}

func (vm *VM) executeBinaryOperation(op code.Opcode) error {
	right := vm.stack.Pop()
	left := vm.stack.Pop()

	switch {
	case left.Type() == object.IntegerObj && right.Type() == object.IntegerObj:
		return vm.executeIntegerBinary(op, left.(*object.Integer).Value, right.(*object.Integer).Value)

	case isNumeric(left) && isNumeric(right):
		return vm.executeFloatBinary(op, asFloat(left), asFloat(right))

	case left.Type() == object.StringObj && right.Type() == object.StringObj:
		return vm.executeStringBinary(op, left.(*object.String).Value, right.(*object.String).Value)

	case left.Type() != right.Type():
		return fmt.Errorf("type mismatch: %s %s %s", left.Type(), opSymbol(op), right.Type())

	default:
		return fmt.Errorf("unknown operator: %s %s %s", left.Type(), opSymbol(op), right.Type())
	}
}

func (vm *VM) executeIntegerBinary(op code.Opcode, l, r int64) error {
	var result int64
	switch op {
	case code.OpAdd:
		result = l + r
	case code.OpSub:
		result = l - r
	case code.OpMul:
		result = l * r
	case code.OpDiv:
		if r == 0 {
			return fmt.Errorf("division by zero")
		}
		result = l / r
	default:
		return fmt.Errorf("unknown integer operator: %d", op)
	}
	return vm.push(&object.Integer{Value: result})
}

func (vm *VM) executeFloatBinary(op code.Opcode, l, r float64) error {
	var result float64
	switch op {
	case code.OpAdd:
		result = l + r
	case code.OpSub:
		result = l - r
	case code.OpMul:
		result = l * r
	case code.OpDiv:
		if r == 0 {
			return fmt.Errorf("division by zero")
		}
		result = l / r
	default:
		return fmt.Errorf("unknown float operator: %d", op)
	}
	return vm.push(&object.Float{Value: result})
}

func (vm *VM) executeStringBinary(op code.Opcode, l, r string) error {
	if op != code.OpAdd {
		return fmt.Errorf("unknown operator: String %s String", opSymbol(op))
	}
	str := &object.String{Value: l + r}
	vm.track(str)
	return vm.push(str)
}

func (vm *VM) executeComparison(op code.Opcode) error {
	right := vm.stack.Pop()
	left := vm.stack.Pop()

	if isNumeric(left) && isNumeric(right) {
		return vm.executeNumericComparison(op, asFloat(left), asFloat(right))
	}

	if l, ok := left.(*object.String); ok {
		if r, ok := right.(*object.String); ok {
			switch op {
			case code.OpEqual:
				return vm.push(object.NativeBool(l.Value == r.Value))
			case code.OpNotEqual:
				return vm.push(object.NativeBool(l.Value != r.Value))
			default:
				return fmt.Errorf("unknown operator: %s %s %s", left.Type(), opSymbol(op), right.Type())
			}
		}
	}

	switch op {
	case code.OpEqual:
		return vm.push(object.NativeBool(object.Equal(left, right)))
	case code.OpNotEqual:
		return vm.push(object.NativeBool(!object.Equal(left, right)))
	default:
		return fmt.Errorf("unknown operator: %s %s %s", left.Type(), opSymbol(op), right.Type())
	}
}

func (vm *VM) executeNumericComparison(op code.Opcode, l, r float64) error {
	switch op {
	case code.OpEqual:
		return vm.push(object.NativeBool(l == r))
	case code.OpNotEqual:
		return vm.push(object.NativeBool(l != r))
	case code.OpGreaterThan:
		return vm.push(object.NativeBool(l > r))
	default:
		return fmt.Errorf("unknown numeric operator: %d", op)
	}
}

func (vm *VM) executeMinusOperator() error {
	value := vm.stack.Pop()
	switch value := value.(type) {
	case *object.Integer:
		return vm.push(&object.Integer{Value: -value.Value})
	case *object.Float:
		return vm.push(&object.Float{Value: -value.Value})
	default:
		return fmt.Errorf("unknown operator: -%s", value.Type())
	}
}

func (vm *VM) executeIndexExpression(left, index object.Object) error {
	switch left := left.(type) {
	case *object.Array:
		idx, ok := index.(*object.Integer)
		if !ok {
			return fmt.Errorf("index operator not supported: %s", index.Type())
		}
		if idx.Value < 0 || idx.Value >= int64(len(left.Elements)) {
			return vm.push(object.NullValue)
		}
		return vm.push(left.Elements[idx.Value])

	case *object.Table:
		value, err := left.Get(index)
		if err != nil {
			return err
		}
		return vm.push(value)

	default:
		return fmt.Errorf("index operator not supported: %s", left.Type())
	}
}

func (vm *VM) executeSetIndex(container, index, value object.Object) error {
	switch container := container.(type) {
	case *object.Array:
		idx, ok := index.(*object.Integer)
		if !ok {
			return fmt.Errorf("index operator not supported: %s", index.Type())
		}
		if idx.Value < 0 || idx.Value >= int64(len(container.Elements)) {
			return fmt.Errorf("array index out of range: %d", idx.Value)
		}
		container.Elements[idx.Value] = value
		return nil

	case *object.Table:
		if _, isNull := value.(*object.Null); isNull {
			_, err := container.Remove(index)
			return err
		}
		_, err := container.Set(index, value)
		return err

	default:
		return fmt.Errorf("index assignment not supported: %s", container.Type())
	}
}

// runtimeErr wraps a plain Go error into a RuntimeError with a call-stack
// trace. An error that is already a *RuntimeError is returned unchanged,
// with whatever trace it has (none, for a stack overflow).
func (vm *VM) runtimeErr(err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RuntimeError); ok {
		return re
	}

	trace := make([]string, 0, vm.framesIndex)
	for i := vm.framesIndex - 1; i >= 0; i-- {
		frame := vm.frames[i]
		name := frame.closure.Fn.Name
		if name == "" {
			name = "<anonymous>"
		}
		line := frame.closure.Fn.SourceLines[frame.ip]
		trace = append(trace, fmt.Sprintf("%s at line %d", name, line))
	}
	return &RuntimeError{Message: err.Error(), Trace: trace}
}
