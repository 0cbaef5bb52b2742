// Package object defines the runtime value representation: a tagged union
// over null, numbers, booleans, strings, arrays, tables, and closures.
//
// Null, Integer, Float and Boolean are value types: copying one of these
// Object handles copies the value. Everything else is heap-allocated and
// shared; copying the handle copies only a pointer. Heap types embed Header
// so the VM's garbage collector can link them into its allocation list.
package object

import (
	"bytes"
	"fmt"
	"strings"

	"monke/compiler/code"
)

// Type tags the concrete kind of an Object.
type Type int

const (
	NullObj Type = iota
	IntegerObj
	FloatObj
	BooleanObj
	StringObj
	ArrayObj
	TableObj
	ClosureObj
	CompiledFunctionObj
	BuiltinObj
	ErrorObj
)

var typeNames = map[Type]string{
	NullObj:             "Null",
	IntegerObj:          "Integer",
	FloatObj:            "Float",
	BooleanObj:          "Boolean",
	StringObj:           "String",
	ArrayObj:            "Array",
	TableObj:            "Table",
	ClosureObj:          "Closure",
	CompiledFunctionObj: "CompiledFunction",
	BuiltinObj:          "Builtin",
	ErrorObj:            "Error",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "Unknown"
}

// Object is the interface every runtime value satisfies.
type Object interface {
	Type() Type
	Inspect() string
}

// Header links a heap-allocated Object into the VM's mark-and-sweep list.
// It is embedded, never referenced directly, by every Heap implementation.
type Header struct {
	marked bool
	next   Heap
}

func (h *Header) Marked() bool   { return h.marked }
func (h *Header) Mark()          { h.marked = true }
func (h *Header) Unmark()        { h.marked = false }
func (h *Header) Next() Heap     { return h.next }
func (h *Header) SetNext(n Heap) { h.next = n }

// Heap is a compound Object tracked by the garbage collector.
type Heap interface {
	Object
	GCHeader() *Header
	// Size reports an approximate byte cost, charged against the VM's
	// bytes-until-GC budget.
	Size() int
}

// Null is the sole `null`/`nothing` value.
type Null struct{}

func (*Null) Type() Type      { return NullObj }
func (*Null) Inspect() string { return "null" }

// NullValue is the single shared null instance; nulls are value types so
// comparing two Objects for null-ness compares against this pointer.
var NullValue = &Null{}

// Integer is a 64-bit signed integer value.
type Integer struct{ Value int64 }

func (i *Integer) Type() Type      { return IntegerObj }
func (i *Integer) Inspect() string { return fmt.Sprintf("%d", i.Value) }

// Float is a 64-bit floating point value.
type Float struct{ Value float64 }

func (f *Float) Type() Type      { return FloatObj }
func (f *Float) Inspect() string { return fmt.Sprintf("%g", f.Value) }

// Boolean is `true` or `false`.
type Boolean struct{ Value bool }

func (b *Boolean) Type() Type      { return BooleanObj }
func (b *Boolean) Inspect() string { return fmt.Sprintf("%t", b.Value) }

var (
	TrueValue  = &Boolean{Value: true}
	FalseValue = &Boolean{Value: false}
)

// NativeBool returns the shared Boolean for a Go bool.
func NativeBool(v bool) *Boolean {
	if v {
		return TrueValue
	}
	return FalseValue
}

// String is a byte string; no Unicode-aware operations are performed on it.
type String struct {
	Header
	Value string
}

func (s *String) Type() Type      { return StringObj }
func (s *String) Inspect() string { return s.Value }
func (s *String) GCHeader() *Header { return &s.Header }
func (s *String) Size() int         { return len(s.Value) }

// Array is an ordered, resizable sequence of Objects.
type Array struct {
	Header
	Elements []Object
}

func (a *Array) Type() Type { return ArrayObj }
func (a *Array) Inspect() string {
	var out bytes.Buffer
	parts := make([]string, 0, len(a.Elements))
	for _, e := range a.Elements {
		parts = append(parts, e.Inspect())
	}
	out.WriteString("[")
	out.WriteString(strings.Join(parts, ", "))
	out.WriteString("]")
	return out.String()
}
func (a *Array) GCHeader() *Header { return &a.Header }
func (a *Array) Size() int         { return len(a.Elements) * 8 }

// Closure pairs a compiled function with the free variables it captured
// at the point its Closure opcode was executed.
type Closure struct {
	Header
	Fn   *CompiledFunction
	Free []Object
}

func (c *Closure) Type() Type      { return ClosureObj }
func (c *Closure) Inspect() string { return fmt.Sprintf("closure<%s>", c.Fn.Name) }
func (c *Closure) GCHeader() *Header { return &c.Header }
func (c *Closure) Size() int         { return 16 + len(c.Free)*8 }

// CompiledFunction is produced by the compiler and stored as a constant
// pool entry; it is immutable once compilation of its body completes.
// It is not itself GC-tracked: it is owned by the constant pool, not the
// VM heap, and is only ever reached through a Closure.
type CompiledFunction struct {
	Instructions  code.Instructions
	NumLocals     int
	NumParameters int
	Name          string
	// SourceLines[ip] is the source line of the instruction starting at
	// byte offset ip, used for call-stack traces.
	SourceLines map[int]int
}

func (cf *CompiledFunction) Type() Type      { return CompiledFunctionObj }
func (cf *CompiledFunction) Inspect() string { return fmt.Sprintf("fn<%s>", cf.Name) }

// BuiltinFunction wraps a native Go function exposed to Monke code. track
// links any new compound value the builtin allocates (Array, Table,
// String) into the running VM's GC head-list, the same as a heap
// allocation compiled straight from source; a builtin that allocates one
// without calling track would make it invisible to markAndSweep.
type BuiltinFunction struct {
	Name string
	Fn   func(track func(Heap) Heap, args ...Object) Object
}

func (b *BuiltinFunction) Type() Type      { return BuiltinObj }
func (b *BuiltinFunction) Inspect() string { return fmt.Sprintf("builtin<%s>", b.Name) }

// Error is a first-class runtime error value; it is not hashable.
type Error struct{ Message string }

func (e *Error) Type() Type      { return ErrorObj }
func (e *Error) Inspect() string { return "Error: " + e.Message }

// NewError formats an Error object the way builtins and the VM raise them.
func NewError(format string, a ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, a...)}
}

// IsTruthy reports whether obj is truthy: everything except null and the
// boolean false.
func IsTruthy(obj Object) bool {
	switch obj := obj.(type) {
	case *Null:
		return false
	case *Boolean:
		return obj.Value
	default:
		return true
	}
}

// Equal implements the value-kind equality rules: integers and booleans
// compare by value, floats with IEEE == (so NaN is never Equal to itself),
// strings by bytes, arrays element-wise and recursively, tables and
// closures by identity. Objects of different kinds are never Equal.
func Equal(a, b Object) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch a := a.(type) {
	case *Null:
		return true
	case *Integer:
		return a.Value == b.(*Integer).Value
	case *Float:
		return a.Value == b.(*Float).Value
	case *Boolean:
		return a.Value == b.(*Boolean).Value
	case *String:
		return a.Value == b.(*String).Value
	case *Array:
		bArr := b.(*Array)
		if len(a.Elements) != len(bArr.Elements) {
			return false
		}
		for i := range a.Elements {
			if !Equal(a.Elements[i], bArr.Elements[i]) {
				return false
			}
		}
		return true
	case *Table, *Closure:
		return a == b
	default:
		return a == b
	}
}
