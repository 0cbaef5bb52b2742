package compiler

import "monke/token"

// CompileError carries the AST token responsible for a compile-time
// failure (undefined identifier, break/continue outside a loop, invalid
// assignment target, and so on).
type CompileError struct {
	Token   token.Token
	Message string
}

func (e *CompileError) Error() string { return e.Message }
