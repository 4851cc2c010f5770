package interpreter

type AST struct {
	// variables holds the channel values used to evaluate the expressions.
	variables map[string]float64
}

func newAst(v map[string]float64) *AST {
	return &AST{variables: v}
}

func (a *AST) visitCompExpr(e *CompExpr) value {
	valueLeft := e.Left.Accept(a)
	valueRight := e.Right.Accept(a)

	if valueLeft.typ != typeNum || valueRight.typ != typeNum {
		panic(newEvaluationError(e, "operator '%s' expects numbers", e.Op))
	}

	switch e.Op {
	case LESS:
		return boolean(valueLeft.n < valueRight.n)
	case LTE:
		return boolean(valueLeft.n <= valueRight.n)
	case GREATER:
		return boolean(valueLeft.n > valueRight.n)
	case GTE:
		return boolean(valueLeft.n >= valueRight.n)
	case EQUALS:
		return boolean(valueLeft.n == valueRight.n)
	case NOT_EQUALS:
		return boolean(valueLeft.n != valueRight.n)
	default:
		panic(newEvaluationError(e, "operator '%s' not supported", e.Op))
	}
}

func (a *AST) visitLogicExpr(e *LogicExpr) value {
	valueLeft := e.Left.Accept(a)
	if valueLeft.typ != typeBool {
		panic(newEvaluationError(e, "operator '%s' expects bool values", e.Op))
	}

	// short-circuit
	switch {
	case e.Op == AND && !valueLeft.b:
		return boolean(false)
	case e.Op == OR && valueLeft.b:
		return boolean(true)
	}

	valueRight := e.Right.Accept(a)
	if valueRight.typ != typeBool {
		panic(newEvaluationError(e, "operator '%s' expects bool values", e.Op))
	}

	return boolean(valueRight.b)
}

func (a *AST) visitNumExpr(e *NumExpr) value {
	return num(e.Value)
}

func (a *AST) visitLiteralExpr(e *LiteralExpr) value {
	v, ok := a.variables[e.Name]
	if !ok {
		panic(newEvaluationError(e, "cannot find variable %s", e.Name))
	}
	return num(v)
}
