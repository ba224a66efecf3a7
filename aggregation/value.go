package aggregation

import (
	"strings"

	"github.com/emulienfou/mongodb-odm/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type operandKind int

const (
	literalOperand operandKind = iota
	exprOperand
)

// operand is the value stored for an expression entry: either a literal
// (which may still contain sub-expressions inside slices or documents) or a
// sub-expression that is built when the owner is built.
type operand struct {
	kind    operandKind
	literal any
	expr    *Expr
}

func literal(value any) operand {
	return operand{kind: literalOperand, literal: value}
}

func subExpression(expr *Expr) operand {
	return operand{kind: exprOperand, expr: expr}
}

func (o operand) resolve() (any, error) {
	if o.kind == exprOperand {
		return o.expr.Build()
	}
	return materialize(o.literal)
}

// convertValue prepares a value given to a fluent call: "$field" paths are
// resolved against class, containers are copied, sub-expressions are kept so
// later changes to them are still seen when building.
func convertValue(value any, resolver core.FieldResolver, class *core.ClassMetadata) (any, error) {
	switch typed := value.(type) {
	case *Expr:
		if typed == nil {
			return nil, nil
		}
		return typed, nil
	case string:
		return convertFieldPath(typed, resolver, class)
	case bson.D:
		out := make(bson.D, 0, len(typed))
		for _, element := range typed {
			converted, err := convertValue(element.Value, resolver, class)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: element.Key, Value: converted})
		}
		return out, nil
	case bson.M:
		out := make(bson.M, len(typed))
		for key, element := range typed {
			converted, err := convertValue(element, resolver, class)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, element := range typed {
			converted, err := convertValue(element, resolver, class)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case bson.A:
		return convertList(typed, resolver, class)
	case []any:
		return convertList(typed, resolver, class)
	default:
		return value, nil
	}
}

func convertList(list []any, resolver core.FieldResolver, class *core.ClassMetadata) (bson.A, error) {
	out := make(bson.A, 0, len(list))
	for _, element := range list {
		converted, err := convertValue(element, resolver, class)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

// convertFieldPath resolves "$path" strings. "$$variables" and plain strings
// are left alone.
func convertFieldPath(value string, resolver core.FieldResolver, class *core.ClassMetadata) (string, error) {
	if resolver == nil || class == nil || len(value) < 2 || value[0] != '$' || value[1] == '$' {
		return value, nil
	}
	path, err := resolver.Resolve(value[1:], class)
	if err != nil {
		return "", err
	}
	return "$" + path, nil
}

// fieldPath returns the "$path" form of a field name, resolving it first.
func fieldPath(name string, resolver core.FieldResolver, class *core.ClassMetadata) (string, error) {
	name = strings.TrimPrefix(name, "$")
	if resolver != nil {
		path, err := resolver.Resolve(name, class)
		if err != nil {
			return "", err
		}
		name = path
	}
	return "$" + name, nil
}

// materialize builds every sub-expression found in value and returns plain
// documents, arrays and scalars.
func materialize(value any) (any, error) {
	switch typed := value.(type) {
	case *Expr:
		return typed.Build()
	case *Builder:
		return typed.stageArray()
	case Stage:
		return typed.Build()
	case bson.D:
		out := make(bson.D, 0, len(typed))
		for _, element := range typed {
			resolved, err := materialize(element.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: element.Key, Value: resolved})
		}
		return out, nil
	case bson.M:
		out := make(bson.M, len(typed))
		for key, element := range typed {
			resolved, err := materialize(element)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, element := range typed {
			resolved, err := materialize(element)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case bson.A:
		return materializeList(typed)
	case []any:
		return materializeList(typed)
	case mongo.Pipeline:
		return materialize([]bson.D(typed))
	case []bson.D:
		list := make([]any, len(typed))
		for index, stage := range typed {
			list[index] = stage
		}
		return materializeList(list)
	case []bson.M:
		list := make([]any, len(typed))
		for index, stage := range typed {
			list[index] = stage
		}
		return materializeList(list)
	default:
		return value, nil
	}
}

func materializeList(list []any) (bson.A, error) {
	out := make(bson.A, 0, len(list))
	for _, element := range list {
		resolved, err := materialize(element)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}
