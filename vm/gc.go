package vm

import "monke/object"

// initialGCBudget is the bytes-until-GC counter's starting and reset value.
const initialGCBudget = 1024

// track links a freshly allocated heap object into the VM's allocation
// list and charges its size against the GC budget, running a collection
// first if the budget has already been exhausted.
func (vm *VM) track(h object.Heap) object.Heap {
	if vm.bytesUntilGC <= 0 {
		vm.markAndSweep()
		vm.bytesUntilGC = initialGCBudget
	}
	h.GCHeader().SetNext(vm.heapHead)
	vm.heapHead = h
	vm.bytesUntilGC -= h.Size()
	return h
}

// markAndSweep traces every object reachable from the stack and globals,
// then frees (drops from the allocation list) everything left unmarked.
func (vm *VM) markAndSweep() {
	for _, v := range vm.stack.Live() {
		markObject(v)
	}
	for _, g := range vm.globals {
		markObject(g)
	}
	for i := 0; i < vm.framesIndex; i++ {
		markObject(vm.frames[i].closure)
	}

	var kept object.Heap
	node := vm.heapHead
	for node != nil {
		next := node.GCHeader().Next()
		if node.GCHeader().Marked() {
			node.GCHeader().Unmark()
			node.GCHeader().SetNext(kept)
			kept = node
		}
		node = next
	}
	vm.heapHead = kept
}

func markObject(obj object.Object) {
	h, ok := obj.(object.Heap)
	if !ok {
		return
	}
	if h.GCHeader().Marked() {
		return
	}
	h.GCHeader().Mark()

	switch v := obj.(type) {
	case *object.Array:
		for _, e := range v.Elements {
			markObject(e)
		}
	case *object.Table:
		v.ForEach(func(k, val object.Object) {
			markObject(k)
			markObject(val)
		})
	case *object.Closure:
		for _, f := range v.Free {
			markObject(f)
		}
	}
}
