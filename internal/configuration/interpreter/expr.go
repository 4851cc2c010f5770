package interpreter

import (
	"fmt"
	"strconv"
)

type Expr interface {
	String() string
	Accept(a *AST) value // visitor pattern
}

// LiteralExpr is a channel name like 'heater_direct'.
type LiteralExpr struct {
	Name string
}

func (l *LiteralExpr) String() string {
	return l.Name
}

// Accept looks into AST variables map and returns the numeric value of the channel or it panics.
func (l *LiteralExpr) Accept(a *AST) value {
	return a.visitLiteralExpr(l)
}

// NumExpr is an expression like 12.5.
type NumExpr struct {
	Value float64
}

func (n *NumExpr) String() string {
	return strconv.FormatFloat(n.Value, 'g', 6, 64)
}

func (n *NumExpr) Accept(a *AST) value {
	return a.visitNumExpr(n)
}

// CompExpr is an expression like temperature < 250
type CompExpr struct {
	Left  Expr
	Op    Token
	Right Expr
}

func (c *CompExpr) String() string {
	return fmt.Sprintf("( %s %s %s )", c.Left.String(), c.Op.String(), c.Right.String())
}

func (c *CompExpr) Accept(a *AST) value {
	return a.visitCompExpr(c)
}

// LogicExpr is an expression like x > 0 && y == 1
type LogicExpr struct {
	Left  Expr
	Op    Token
	Right Expr
}

func (l *LogicExpr) String() string {
	return fmt.Sprintf("( %s %s %s )", l.Left.String(), l.Op.String(), l.Right.String())
}

func (l *LogicExpr) Accept(a *AST) value {
	return a.visitLogicExpr(l)
}
