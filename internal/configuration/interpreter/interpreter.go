package interpreter

import (
	"fmt"
)

// EvaluationError is the type of error returned by interpreter when evaluating errors.
type EvaluationError struct {
	// Expr is the expression which failed.
	Expr Expr
	// Error message.
	Message string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("expr '%s': %s", e.Expr.String(), e.Message)
}

func newEvaluationError(e Expr, format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	return &EvaluationError{Expr: e, Message: message}
}

// Interpreter evaluates a boolean condition over channel values like "heater_direct > 0".
type Interpreter struct {
	source string
	expr   Expr
	names  []string
}

func New(expression string) (*Interpreter, error) {
	expr, names, err := parse([]byte(expression))
	if err != nil {
		return nil, err
	}

	return &Interpreter{source: expression, expr: expr, names: names}, nil
}

// Variables returns the channel names the expression refers to.
func (i *Interpreter) Variables() []string {
	return i.names
}

func (i *Interpreter) String() string {
	return i.source
}

// Evaluate evaluates the expression to bool.
func (i *Interpreter) Evaluate(variables map[string]float64) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			eerr, ok := r.(*EvaluationError)
			if !ok {
				panic(r)
			}
			err = eerr
		}
	}()

	v := i.expr.Accept(newAst(variables))
	if v.typ != typeBool {
		return false, newEvaluationError(i.expr, "expected bool value. actual '%s'", v.typ)
	}

	return v.b, nil
}
