// Package aggregation provides a fluent builder for MongoDB aggregation
// pipelines that resolves domain field names and relationships through class
// metadata and produces the documents the database expects.
package aggregation

import (
	"github.com/emulienfou/mongodb-odm/core"
	"go.mongodb.org/mongo-driver/bson"
)

// Expr accumulates aggregation expressions keyed by output field.
//
// Field selects the current field; every operator call then replaces the
// value of that field, so the last call for a field wins. Operators that are
// not accumulators may also be used without a current field, in which case
// they are set at the root of the expression ({"$eq": [...]}), which is the
// shape $expr and $cond operands need.
//
// Values may be literals, "$field" paths (resolved through the class mapping
// when the expression is bound to a class) or other expressions, also nested
// inside slices and documents. Sub-expressions are built when the owning
// expression is built.
//
// Accumulators and Expression fail with core.ErrNoCurrentField when no field
// was selected. An expression that contains itself fails to build with
// core.ErrCyclicExpression. The first error sticks: later calls are ignored and Build
// returns it.
//
// An Expr is not safe for concurrent use.
type Expr struct {
	resolver     core.FieldResolver
	class        *core.ClassMetadata
	keyList      []string
	entries      map[string]operand
	currentField string
	err          error
	building     bool
}

func newExpr(resolver core.FieldResolver, class *core.ClassMetadata) *Expr {
	return &Expr{
		resolver: resolver,
		class:    class,
		entries:  make(map[string]operand),
	}
}

// Field sets the current field for building the expression. Entries set
// for other fields are kept.
func (e *Expr) Field(name string) *Expr {
	if e.err != nil {
		return e
	}
	e.currentField = name
	return e
}

// CurrentField returns the field subsequent operators apply to.
func (e *Expr) CurrentField() string {
	return e.currentField
}

// Expression sets the value of the current field to value as is, without an
// operator. It is used for group keys and computed fields.
//
// See https://www.mongodb.com/docs/manual/meta/aggregation-quick-reference/#expressions
func (e *Expr) Expression(value any) *Expr {
	if !e.requireField("expression") {
		return e
	}
	if expr, ok := value.(*Expr); ok && expr != nil {
		e.set(e.currentField, subExpression(expr))
		return e
	}
	converted, ok := e.convert(value)
	if !ok {
		return e
	}
	e.set(e.currentField, literal(converted))
	return e
}

// AddToSet returns an array of all unique values that result from applying
// an expression to each document of a group.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/addToSet/
func (e *Expr) AddToSet(expression any) *Expr {
	return e.accumulator("$addToSet", expression)
}

// Avg returns the average of the numeric values of a group. Non-numeric
// values are ignored.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/avg/
func (e *Expr) Avg(expression any) *Expr {
	return e.accumulator("$avg", expression)
}

// First returns the value of the first document of a group. Only meaningful
// when documents are in a defined order.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/first/
func (e *Expr) First(expression any) *Expr {
	return e.accumulator("$first", expression)
}

// Last returns the value of the last document of a group. Only meaningful
// when documents are in a defined order.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/last/
func (e *Expr) Last(expression any) *Expr {
	return e.accumulator("$last", expression)
}

// Max returns the highest value of a group.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/max/
func (e *Expr) Max(expression any) *Expr {
	return e.accumulator("$max", expression)
}

// Min returns the lowest value of a group.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/min/
func (e *Expr) Min(expression any) *Expr {
	return e.accumulator("$min", expression)
}

// Push returns an array of all values of a group.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/push/
func (e *Expr) Push(expression any) *Expr {
	return e.accumulator("$push", expression)
}

// StdDevPop calculates the population standard deviation of the input values.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/stdDevPop/
func (e *Expr) StdDevPop(expression any) *Expr {
	return e.accumulator("$stdDevPop", expression)
}

// StdDevSamp calculates the sample standard deviation of the input values.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/stdDevSamp/
func (e *Expr) StdDevSamp(expression any) *Expr {
	return e.accumulator("$stdDevSamp", expression)
}

// Sum returns the sum of the numeric values of a group. Non-numeric values
// are ignored.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/sum/
func (e *Expr) Sum(expression any) *Expr {
	return e.accumulator("$sum", expression)
}

// Operator sets an arbitrary expression operator. A single argument is used
// as the operand; several arguments become an array operand.
func (e *Expr) Operator(name string, args ...any) *Expr {
	if len(args) == 1 {
		return e.operator(name, args[0])
	}
	return e.operator(name, bson.A(args))
}

// Eq compares two values and returns true when they are equivalent.
func (e *Expr) Eq(expression1, expression2 any) *Expr {
	return e.operator("$eq", bson.A{expression1, expression2})
}

// Ne compares two values and returns true when they are not equivalent.
func (e *Expr) Ne(expression1, expression2 any) *Expr {
	return e.operator("$ne", bson.A{expression1, expression2})
}

// Gt returns true when the first value is greater than the second.
func (e *Expr) Gt(expression1, expression2 any) *Expr {
	return e.operator("$gt", bson.A{expression1, expression2})
}

// Gte returns true when the first value is greater than or equal to the second.
func (e *Expr) Gte(expression1, expression2 any) *Expr {
	return e.operator("$gte", bson.A{expression1, expression2})
}

// Lt returns true when the first value is less than the second.
func (e *Expr) Lt(expression1, expression2 any) *Expr {
	return e.operator("$lt", bson.A{expression1, expression2})
}

// Lte returns true when the first value is less than or equal to the second.
func (e *Expr) Lte(expression1, expression2 any) *Expr {
	return e.operator("$lte", bson.A{expression1, expression2})
}

// In returns true when expression is an element of array.
func (e *Expr) In(expression, array any) *Expr {
	return e.operator("$in", bson.A{expression, array})
}

// And returns true when all expressions evaluate to true.
func (e *Expr) And(expressions ...any) *Expr {
	return e.operator("$and", bson.A(expressions))
}

// Or returns true when any expression evaluates to true.
func (e *Expr) Or(expressions ...any) *Expr {
	return e.operator("$or", bson.A(expressions))
}

// Not returns the boolean opposite of expression.
func (e *Expr) Not(expression any) *Expr {
	return e.operator("$not", bson.A{expression})
}

// Cond evaluates ifExpression and returns thenExpression or elseExpression.
func (e *Expr) Cond(ifExpression, thenExpression, elseExpression any) *Expr {
	return e.operator("$cond", bson.D{
		{Key: "if", Value: ifExpression},
		{Key: "then", Value: thenExpression},
		{Key: "else", Value: elseExpression},
	})
}

// Concat concatenates strings.
func (e *Expr) Concat(expressions ...any) *Expr {
	return e.operator("$concat", bson.A(expressions))
}

// IfNull returns replacement when expression is null or missing.
func (e *Expr) IfNull(expression, replacement any) *Expr {
	return e.operator("$ifNull", bson.A{expression, replacement})
}

// Err returns the first error recorded by a fluent call, if any.
func (e *Expr) Err() error {
	return e.err
}

// Build returns the accumulated expression as a document, with every
// sub-expression built. Building does not change the expression, so it can
// be called any number of times.
func (e *Expr) Build() (bson.D, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.building {
		return nil, &core.ErrCyclicExpression{}
	}
	e.building = true
	defer func() { e.building = false }()

	doc := make(bson.D, 0, len(e.keyList))
	for _, key := range e.keyList {
		value, err := e.entries[key].resolve()
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: key, Value: value})
	}
	return doc, nil
}

// accumulator stores {name: expression} under the current field.
func (e *Expr) accumulator(name string, expression any) *Expr {
	if !e.requireField(name) {
		return e
	}
	converted, ok := e.convert(expression)
	if !ok {
		return e
	}
	e.set(e.currentField, literal(bson.D{{Key: name, Value: converted}}))
	return e
}

// operator stores {name: expression} under the current field, or at the
// root when no field is selected.
func (e *Expr) operator(name string, expression any) *Expr {
	if e.err != nil {
		return e
	}
	converted, ok := e.convert(expression)
	if !ok {
		return e
	}
	if e.currentField == "" {
		e.set(name, literal(converted))
		return e
	}
	e.set(e.currentField, literal(bson.D{{Key: name, Value: converted}}))
	return e
}

func (e *Expr) requireField(operator string) bool {
	if e.err != nil {
		return false
	}
	if e.currentField == "" {
		e.err = &core.ErrNoCurrentField{Operator: operator}
		return false
	}
	return true
}

func (e *Expr) convert(value any) (any, bool) {
	converted, err := convertValue(value, e.resolver, e.class)
	if err != nil {
		e.err = err
		return nil, false
	}
	return converted, true
}

// set replaces the value of key, keeping the position of the first insertion.
func (e *Expr) set(key string, value operand) {
	if _, ok := e.entries[key]; !ok {
		e.keyList = append(e.keyList, key)
	}
	e.entries[key] = value
}
