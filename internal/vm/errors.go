package vm

import "errors"

var (
	errOperandsMismatch = errors.New("Operands must be two integers or two strings.")
	errOperandsNotInt   = errors.New("Operands must be integers.")
	errDivideByZero     = errors.New("Division by zero.")
	errModuloByZero     = errors.New("Modulo by zero.")
)
