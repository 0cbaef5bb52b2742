package compiler

import (
	"fmt"
	"testing"

	"monke/ast"
	"monke/compiler/code"
	"monke/lexer"
	"monke/object"
	"monke/parser"
)

type compilerTestCase struct {
	input                string
	expectedConstants    []any
	expectedInstructions []code.Instructions
}

func parse(input string) *ast.Program {
	l := lexer.New(input)
	p := parser.New(l)
	return p.ParseProgram()
}

func runCompilerTests(t *testing.T, tests []compilerTestCase) {
	t.Helper()
	for _, tt := range tests {
		program := parse(tt.input)

		c := New()
		if err := c.Compile(program); err != nil {
			t.Fatalf("%q: compiler error: %s", tt.input, err)
		}

		bytecode := c.Bytecode()

		if err := testInstructions(tt.expectedInstructions, bytecode.Instructions); err != nil {
			t.Errorf("%q: %s", tt.input, err)
		}
		if err := testConstants(tt.expectedConstants, bytecode.Constants); err != nil {
			t.Errorf("%q: %s", tt.input, err)
		}
	}
}

func testInstructions(expected []code.Instructions, actual code.Instructions) error {
	concatted := concatInstructions(expected)
	if len(actual) != len(concatted) {
		return fmt.Errorf("wrong instructions length.\nwant=%q\ngot =%q", concatted, actual)
	}
	for i, b := range concatted {
		if actual[i] != b {
			return fmt.Errorf("wrong byte at %d.\nwant=%q\ngot =%q", i, concatted, actual)
		}
	}
	return nil
}

func concatInstructions(s []code.Instructions) code.Instructions {
	out := code.Instructions{}
	for _, ins := range s {
		out = append(out, ins...)
	}
	return out
}

func testConstants(expected []any, actual []object.Object) error {
	if len(expected) != len(actual) {
		return fmt.Errorf("wrong constant count. want=%d, got=%d", len(expected), len(actual))
	}
	for i, want := range expected {
		switch want := want.(type) {
		case int:
			intObj, ok := actual[i].(*object.Integer)
			if !ok || intObj.Value != int64(want) {
				return fmt.Errorf("constant %d: want Integer(%d), got %v", i, want, actual[i])
			}
		case string:
			strObj, ok := actual[i].(*object.String)
			if !ok || strObj.Value != want {
				return fmt.Errorf("constant %d: want String(%q), got %v", i, want, actual[i])
			}
		case []code.Instructions:
			fn, ok := actual[i].(*object.CompiledFunction)
			if !ok {
				return fmt.Errorf("constant %d: want CompiledFunction, got %T", i, actual[i])
			}
			if err := testInstructions(want, fn.Instructions); err != nil {
				return fmt.Errorf("constant %d: %s", i, err)
			}
		}
	}
	return nil
}

func TestIntegerArithmetic(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "1 + 2",
			expectedConstants: []any{1, 2},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpAdd),
				code.Make(code.OpPop),
			},
		},
		{
			input:             "1; 2",
			expectedConstants: []any{1, 2},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpPop),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestBooleanAndComparisonExpressions(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "true",
			expectedConstants: []any{},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpTrue),
				code.Make(code.OpPop),
			},
		},
		{
			input:             "1 > 2",
			expectedConstants: []any{1, 2},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpGreaterThan),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestConditionalsWithoutElseEmitOpNull(t *testing.T) {
	input := `if (true) { 10 }; 3333;`
	tests := []compilerTestCase{
		{
			input:             input,
			expectedConstants: []any{10, 3333},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpTrue),
				code.Make(code.OpJumpNotTruthy, 10),
				code.Make(code.OpConstant, 0),
				code.Make(code.OpJump, 11),
				code.Make(code.OpNull),
				code.Make(code.OpPop),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestGlobalLetStatements(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "let one = 1; let two = 2;",
			expectedConstants: []any{1, 2},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpSetGlobal, 1),
			},
		},
		{
			input:             "let one = 1; one;",
			expectedConstants: []any{1},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpGetGlobal, 0),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestStringExpressions(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             `"monke"`,
			expectedConstants: []any{"monke"},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpPop),
			},
		},
		{
			input:             `"mon" + "ke"`,
			expectedConstants: []any{"mon", "ke"},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpAdd),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestArrayAndTableLiterals(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "[1, 2, 3]",
			expectedConstants: []any{1, 2, 3},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpConstant, 2),
				code.Make(code.OpArray, 3),
				code.Make(code.OpPop),
			},
		},
		{
			input:             "{1: 2, 3: 4}",
			expectedConstants: []any{1, 2, 3, 4},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpConstant, 2),
				code.Make(code.OpConstant, 3),
				code.Make(code.OpTable, 2),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestIdentifierAssignmentLeavesItsValueOnTheStack(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "let a = 1; a = 2;",
			expectedConstants: []any{1, 2},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpGetGlobal, 0),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestIndexAssignmentPushesContainerIndexValueInOrder(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "let a = [1, 2, 3]; a[0] = 10;",
			expectedConstants: []any{1, 2, 3, 0, 10},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpConstant, 2),
				code.Make(code.OpArray, 3),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpGetGlobal, 0),
				code.Make(code.OpConstant, 3),
				code.Make(code.OpConstant, 4),
				code.Make(code.OpSetIndex),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestIndexOperatorAssignmentReadsOnceViaOpDup2(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "let a = [1]; a[0] += 2;",
			expectedConstants: []any{1, 0, 2},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpArray, 1),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpGetGlobal, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpDup2),
				code.Make(code.OpIndex),
				code.Make(code.OpConstant, 2),
				code.Make(code.OpAdd),
				code.Make(code.OpSetIndex),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestIndexExpressions(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "[1, 2, 3][1 + 1]",
			expectedConstants: []any{1, 2, 3, 1, 1},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpConstant, 2),
				code.Make(code.OpArray, 3),
				code.Make(code.OpConstant, 3),
				code.Make(code.OpConstant, 4),
				code.Make(code.OpAdd),
				code.Make(code.OpIndex),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestCompiledFunctions(t *testing.T) {
	tests := []compilerTestCase{
		{
			input:             "fn() { return 5 + 10 }",
			expectedConstants: []any{5, 10, []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpAdd),
				code.Make(code.OpReturnValue),
			}},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpClosure, 2, 0),
				code.Make(code.OpPop),
			},
		},
		{
			input: "fn() { 5 + 10 }",
			expectedConstants: []any{5, 10, []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpAdd),
				code.Make(code.OpReturnValue),
			}},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpClosure, 2, 0),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestCompiledFunctionWithNoReturnValueEmitsImplicitReturn(t *testing.T) {
	tests := []compilerTestCase{
		{
			input: "fn() { }",
			expectedConstants: []any{[]code.Instructions{
				code.Make(code.OpReturn),
			}},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpClosure, 0, 0),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestFunctionCalls(t *testing.T) {
	tests := []compilerTestCase{
		{
			input: "fn() { 24 }();",
			expectedConstants: []any{24, []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpReturnValue),
			}},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpClosure, 1, 0),
				code.Make(code.OpCall, 0),
				code.Make(code.OpPop),
			},
		},
		{
			input: "let oneArg = fn(a) { a }; oneArg(24);",
			expectedConstants: []any{[]code.Instructions{
				code.Make(code.OpGetLocal, 0),
				code.Make(code.OpReturnValue),
			}, 24},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpClosure, 0, 0),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpGetGlobal, 0),
				code.Make(code.OpConstant, 1),
				code.Make(code.OpCall, 1),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestLetStatementScopes(t *testing.T) {
	tests := []compilerTestCase{
		{
			input: "let num = 55; fn() { num }",
			expectedConstants: []any{55, []code.Instructions{
				code.Make(code.OpGetGlobal, 0),
				code.Make(code.OpReturnValue),
			}},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpSetGlobal, 0),
				code.Make(code.OpClosure, 1, 0),
				code.Make(code.OpPop),
			},
		},
		{
			input: "fn() { let num = 55; num }",
			expectedConstants: []any{55, []code.Instructions{
				code.Make(code.OpConstant, 0),
				code.Make(code.OpSetLocal, 0),
				code.Make(code.OpGetLocal, 0),
				code.Make(code.OpReturnValue),
			}},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpClosure, 1, 0),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestClosures(t *testing.T) {
	input := `
fn(a) {
  fn(b) {
    a + b
  }
}
`
	tests := []compilerTestCase{
		{
			input: input,
			expectedConstants: []any{
				[]code.Instructions{
					code.Make(code.OpGetFree, 0),
					code.Make(code.OpGetLocal, 0),
					code.Make(code.OpAdd),
					code.Make(code.OpReturnValue),
				},
				[]code.Instructions{
					code.Make(code.OpGetLocal, 0),
					code.Make(code.OpClosure, 0, 1),
					code.Make(code.OpReturnValue),
				},
			},
			expectedInstructions: []code.Instructions{
				code.Make(code.OpClosure, 1, 0),
				code.Make(code.OpPop),
			},
		},
	}
	runCompilerTests(t, tests)
}

func TestBreakAndContinueResolveToRealJumpTargets(t *testing.T) {
	input := `
while (true) {
  break
  continue
}
`
	program := parse(input)
	c := New()
	if err := c.Compile(program); err != nil {
		t.Fatalf("compiler error: %s", err)
	}
	ins := c.Bytecode().Instructions
	str := ins.String()
	if str == "" {
		t.Fatal("expected non-empty disassembly")
	}

	// break jumps past the loop (13), continue to the update point (10),
	// and no 9999 placeholder operand is left behind.
	expected := []code.Instructions{
		code.Make(code.OpTrue),
		code.Make(code.OpJumpNotTruthy, 13),
		code.Make(code.OpJump, 13),
		code.Make(code.OpJump, 10),
		code.Make(code.OpJump, 0),
	}
	if err := testInstructions(expected, ins); err != nil {
		t.Errorf("%s\n%s", err, str)
	}
}

func TestUndefinedIdentifierIsACompileError(t *testing.T) {
	program := parse("foobar;")
	c := New()
	err := c.Compile(program)
	if err == nil {
		t.Fatal("expected a compile error for an undefined identifier")
	}
	cerr, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("expected *CompileError, got %T", err)
	}
	if cerr.Message != "identifier not found: foobar" {
		t.Errorf("unexpected message: %q", cerr.Message)
	}
}

func TestBreakOutsideLoopIsACompileError(t *testing.T) {
	program := parse("break;")
	c := New()
	err := c.Compile(program)
	if err == nil {
		t.Fatal("expected a compile error for break outside a loop")
	}
}

func TestNewWithStateAppendsToExistingSymbolTableAndConstants(t *testing.T) {
	first := New()
	if err := first.Compile(parse("let a = 1;")); err != nil {
		t.Fatalf("first compile error: %s", err)
	}

	second := NewWithState(first.SymbolTable(), first.Bytecode().Constants)
	if err := second.Compile(parse("a")); err != nil {
		t.Fatalf("second compile error: %s", err)
	}

	instructions := second.Bytecode().Instructions
	expected := concatInstructions([]code.Instructions{
		code.Make(code.OpGetGlobal, 0),
		code.Make(code.OpPop),
	})
	if err := testInstructions([]code.Instructions{expected}, instructions); err != nil {
		t.Error(err)
	}
}
