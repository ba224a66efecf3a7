package aggregation

import "go.mongodb.org/mongo-driver/bson"

// Group groups input documents by the _id expression and applies accumulators
// to each group. Every expression method is forwarded to the wrapped Expr.
//
// Example:
//
//	builder.Group().
//		Field("_id").Expression("$Author").
//		Field("count").Sum(1).
//		Field("titles").Push("$Title")
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/group/
type Group struct {
	stage
	expr *Expr
}

var _ Stage = (*Group)(nil)

func newGroup(builder *Builder) *Group {
	return &Group{stage: stage{builder: builder}, expr: builder.Expr()}
}

// Field sets the current field of the group expression.
func (g *Group) Field(name string) *Group {
	g.expr.Field(name)
	return g
}

// CurrentField returns the field subsequent operators apply to.
func (g *Group) CurrentField() string {
	return g.expr.CurrentField()
}

// Expression sets the current field to value without an operator.
func (g *Group) Expression(value any) *Group {
	g.expr.Expression(value)
	return g
}

// AddToSet sets the current field to an $addToSet accumulator.
func (g *Group) AddToSet(expression any) *Group {
	g.expr.AddToSet(expression)
	return g
}

// Avg sets the current field to an $avg accumulator.
func (g *Group) Avg(expression any) *Group {
	g.expr.Avg(expression)
	return g
}

// First sets the current field to a $first accumulator.
func (g *Group) First(expression any) *Group {
	g.expr.First(expression)
	return g
}

// Last sets the current field to a $last accumulator.
func (g *Group) Last(expression any) *Group {
	g.expr.Last(expression)
	return g
}

// Max sets the current field to a $max accumulator.
func (g *Group) Max(expression any) *Group {
	g.expr.Max(expression)
	return g
}

// Min sets the current field to a $min accumulator.
func (g *Group) Min(expression any) *Group {
	g.expr.Min(expression)
	return g
}

// Push sets the current field to a $push accumulator.
func (g *Group) Push(expression any) *Group {
	g.expr.Push(expression)
	return g
}

// StdDevPop sets the current field to a $stdDevPop accumulator.
func (g *Group) StdDevPop(expression any) *Group {
	g.expr.StdDevPop(expression)
	return g
}

// StdDevSamp sets the current field to a $stdDevSamp accumulator.
func (g *Group) StdDevSamp(expression any) *Group {
	g.expr.StdDevSamp(expression)
	return g
}

// Sum sets the current field to a $sum accumulator.
func (g *Group) Sum(expression any) *Group {
	g.expr.Sum(expression)
	return g
}

// Operator sets the current field to an arbitrary operator.
func (g *Group) Operator(name string, args ...any) *Group {
	g.expr.Operator(name, args...)
	return g
}

func (g *Group) Eq(expression1, expression2 any) *Group {
	g.expr.Eq(expression1, expression2)
	return g
}

func (g *Group) Ne(expression1, expression2 any) *Group {
	g.expr.Ne(expression1, expression2)
	return g
}

func (g *Group) Gt(expression1, expression2 any) *Group {
	g.expr.Gt(expression1, expression2)
	return g
}

func (g *Group) Gte(expression1, expression2 any) *Group {
	g.expr.Gte(expression1, expression2)
	return g
}

func (g *Group) Lt(expression1, expression2 any) *Group {
	g.expr.Lt(expression1, expression2)
	return g
}

func (g *Group) Lte(expression1, expression2 any) *Group {
	g.expr.Lte(expression1, expression2)
	return g
}

// In sets the current field to {$in: [expression, array]}.
func (g *Group) In(expression, array any) *Group {
	g.expr.In(expression, array)
	return g
}

func (g *Group) And(expressions ...any) *Group {
	g.expr.And(expressions...)
	return g
}

func (g *Group) Or(expressions ...any) *Group {
	g.expr.Or(expressions...)
	return g
}

func (g *Group) Not(expression any) *Group {
	g.expr.Not(expression)
	return g
}

// Cond sets the current field to a $cond with if, then and else branches.
func (g *Group) Cond(ifExpression, thenExpression, elseExpression any) *Group {
	g.expr.Cond(ifExpression, thenExpression, elseExpression)
	return g
}

func (g *Group) Concat(expressions ...any) *Group {
	g.expr.Concat(expressions...)
	return g
}

func (g *Group) IfNull(expression, replacement any) *Group {
	g.expr.IfNull(expression, replacement)
	return g
}

// Err returns the first error recorded by the group expression.
func (g *Group) Err() error {
	return g.expr.Err()
}

// Expr returns the wrapped expression.
func (g *Group) Expr() *Expr {
	return g.expr
}

// Build returns {"$group": <expression>}.
func (g *Group) Build() (bson.D, error) {
	doc, err := g.expr.Build()
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$group", Value: doc}}, nil
}
