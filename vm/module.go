package vm

import (
	"fmt"
	"os"
	"time"

	"monke/compiler"
	"monke/lexer"
	"monke/object"
	"monke/parser"
)

// moduleEntry caches one compiled-and-run module, keyed by the modtime it
// was last loaded at.
type moduleEntry struct {
	modTime time.Time
	value   object.Object
}

// ModuleLoader resolves require() calls: each distinct path is lexed,
// parsed and compiled in its own independent scope, run on a fresh VM, and
// cached by the source file's modification time so an unchanged module
// only pays that cost once per loader. Every VM creates its own loader, so
// the cache is not shared between VMs.
type ModuleLoader struct {
	cache map[string]*moduleEntry
}

func NewModuleLoader() *ModuleLoader {
	return &ModuleLoader{cache: map[string]*moduleEntry{}}
}

// Require loads path, or returns its cached value if the file's
// modification time hasn't changed since the last load.
func (ml *ModuleLoader) Require(path string) (object.Object, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load module %q: %s", path, err)
	}

	if entry, ok := ml.cache[path]; ok && !info.ModTime().After(entry.modTime) {
		return entry.value, nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load module %q: %s", path, err)
	}

	l := lexer.New(string(source))
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("module %q: %s", path, errs[0])
	}

	comp := compiler.New()
	if err := comp.Compile(program); err != nil {
		return nil, fmt.Errorf("module %q: %s", path, err)
	}

	moduleVM := New(comp.Bytecode())
	if err := moduleVM.Run(); err != nil {
		return nil, fmt.Errorf("module %q: %s", path, err)
	}

	value := moduleVM.LastPoppedStackElem()
	if value == nil {
		value = object.NullValue
	}
	ml.cache[path] = &moduleEntry{modTime: info.ModTime(), value: value}
	return value, nil
}
