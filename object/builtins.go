package object

import (
	"fmt"
	"os"
)

// Builtins is the fixed set of native functions exposed to Monke code, in
// the order the compiler's symbol table binds them (index == position in
// this slice, and in the VM's builtins array).
var Builtins = []*BuiltinFunction{
	{Name: "len", Fn: builtinLen},
	{Name: "puts", Fn: builtinPuts},
	{Name: "first", Fn: builtinFirst},
	{Name: "last", Fn: builtinLast},
	{Name: "rest", Fn: builtinRest},
	{Name: "push", Fn: builtinPush},
	{Name: "exit", Fn: builtinExit},
	{Name: "copy", Fn: builtinCopy},
}

// GetBuiltinByName returns the index of the named builtin in Builtins, or
// -1 if there is none by that name.
func GetBuiltinByName(name string) int {
	for i, b := range Builtins {
		if b.Name == name {
			return i
		}
	}
	return -1
}

func wrongArgCount(name string, got, want int) *Error {
	return NewError("wrong number of arguments to %s: got=%d, want=%d", name, got, want)
}

func builtinLen(track func(Heap) Heap, args ...Object) Object {
	if len(args) != 1 {
		return wrongArgCount("len", len(args), 1)
	}
	switch arg := args[0].(type) {
	case *String:
		return &Integer{Value: int64(len(arg.Value))}
	case *Array:
		return &Integer{Value: int64(len(arg.Elements))}
	case *Table:
		return &Integer{Value: int64(arg.Len())}
	default:
		return NewError("argument to len not supported, got %s", arg.Type())
	}
}

func builtinPuts(track func(Heap) Heap, args ...Object) Object {
	for _, arg := range args {
		fmt.Println(arg.Inspect())
	}
	return NullValue
}

func builtinFirst(track func(Heap) Heap, args ...Object) Object {
	if len(args) != 1 {
		return wrongArgCount("first", len(args), 1)
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return NewError("argument to first must be Array, got %s", args[0].Type())
	}
	if len(arr.Elements) == 0 {
		return NullValue
	}
	return arr.Elements[0]
}

func builtinLast(track func(Heap) Heap, args ...Object) Object {
	if len(args) != 1 {
		return wrongArgCount("last", len(args), 1)
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return NewError("argument to last must be Array, got %s", args[0].Type())
	}
	if len(arr.Elements) == 0 {
		return NullValue
	}
	return arr.Elements[len(arr.Elements)-1]
}

func builtinRest(track func(Heap) Heap, args ...Object) Object {
	if len(args) != 1 {
		return wrongArgCount("rest", len(args), 1)
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return NewError("argument to rest must be Array, got %s", args[0].Type())
	}
	length := len(arr.Elements)
	if length == 0 {
		return NullValue
	}
	newElements := make([]Object, length-1)
	copy(newElements, arr.Elements[1:length])
	return track(&Array{Elements: newElements}).(*Array)
}

func builtinPush(track func(Heap) Heap, args ...Object) Object {
	if len(args) != 2 {
		return wrongArgCount("push", len(args), 2)
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return NewError("argument to push must be Array, got %s", args[0].Type())
	}
	length := len(arr.Elements)
	newElements := make([]Object, length+1)
	copy(newElements, arr.Elements)
	newElements[length] = args[1]
	return track(&Array{Elements: newElements}).(*Array)
}

func builtinExit(track func(Heap) Heap, args ...Object) Object {
	code := 0
	if len(args) == 1 {
		if i, ok := args[0].(*Integer); ok {
			code = int(i.Value)
		}
	}
	os.Exit(code)
	return NullValue
}

func builtinCopy(track func(Heap) Heap, args ...Object) Object {
	if len(args) != 1 {
		return wrongArgCount("copy", len(args), 1)
	}
	return deepCopy(track, args[0])
}

func deepCopy(track func(Heap) Heap, obj Object) Object {
	switch obj := obj.(type) {
	case *Array:
		elements := make([]Object, len(obj.Elements))
		for i, e := range obj.Elements {
			elements[i] = deepCopy(track, e)
		}
		return track(&Array{Elements: elements}).(*Array)
	case *Table:
		cp := NewTable()
		obj.ForEach(func(k, v Object) {
			cp.Set(k, deepCopy(track, v))
		})
		return track(cp).(*Table)
	case *String:
		return track(&String{Value: obj.Value}).(*String)
	default:
		return obj
	}
}
