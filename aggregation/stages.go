package aggregation

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Match filters documents. Top-level field names of the filter are resolved
// against the class of the pipeline; $and, $or and $nor are followed, and the
// operand of $expr may use "$field" paths.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/match/
type Match struct {
	stage
	filter bson.D
	err    error
}

var _ Stage = (*Match)(nil)

func newMatch(builder *Builder, filter bson.D) *Match {
	match := &Match{stage: stage{builder: builder}}
	match.filter, match.err = builder.resolveFilter(filter)
	return match
}

// Err returns the error met while resolving the filter, if any.
func (m *Match) Err() error {
	return m.err
}

// Build returns {"$match": <filter>}.
func (m *Match) Build() (bson.D, error) {
	if m.err != nil {
		return nil, m.err
	}
	filter, err := materialize(m.filter)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$match", Value: filter}}, nil
}

// Sort orders documents by one or more fields.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/sort/
type Sort struct {
	stage
	sort bson.D
	err  error
}

var _ Stage = (*Sort)(nil)

func newSort(builder *Builder, sort bson.D) *Sort {
	s := &Sort{stage: stage{builder: builder}, sort: bson.D{}}
	for _, element := range sort {
		s.By(element.Key, element.Value)
	}
	return s
}

// By appends a sort key. Order is 1, -1 or a {$meta: ...} document.
func (s *Sort) By(field string, order any) *Sort {
	if s.err != nil {
		return s
	}
	resolved, err := s.builder.resolveField(field)
	if err != nil {
		s.err = err
		return s
	}
	s.sort = append(s.sort, bson.E{Key: resolved, Value: order})
	return s
}

// Err returns the first error met while resolving sort keys, if any.
func (s *Sort) Err() error {
	return s.err
}

// Build returns {"$sort": <keys>}.
func (s *Sort) Build() (bson.D, error) {
	if s.err != nil {
		return nil, s.err
	}
	return bson.D{{Key: "$sort", Value: append(bson.D{}, s.sort...)}}, nil
}

// Skip skips the given number of documents.
type Skip struct {
	stage
	skip int64
}

var _ Stage = (*Skip)(nil)

// Build returns {"$skip": n}.
func (s *Skip) Build() (bson.D, error) {
	return bson.D{{Key: "$skip", Value: s.skip}}, nil
}

// Limit passes at most the given number of documents.
type Limit struct {
	stage
	limit int64
}

var _ Stage = (*Limit)(nil)

// Build returns {"$limit": n}.
func (l *Limit) Build() (bson.D, error) {
	return bson.D{{Key: "$limit", Value: l.limit}}, nil
}

// Unwind outputs one document per element of an array field.
//
// The short form {"$unwind": "$path"} is used unless an option is set.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/unwind/
type Unwind struct {
	stage
	path              string
	includeArrayIndex string
	preserveNull      *bool
	err               error
}

var _ Stage = (*Unwind)(nil)

func newUnwind(builder *Builder, path string) *Unwind {
	unwind := &Unwind{stage: stage{builder: builder}}
	unwind.path, unwind.err = fieldPath(path, builder.resolver, builder.class)
	return unwind
}

// IncludeArrayIndex names a new field holding the array index of the element.
func (u *Unwind) IncludeArrayIndex(field string) *Unwind {
	u.includeArrayIndex = strings.TrimPrefix(field, "$")
	return u
}

// PreserveNullAndEmptyArrays keeps documents whose array is null, missing or
// empty.
func (u *Unwind) PreserveNullAndEmptyArrays(preserve bool) *Unwind {
	u.preserveNull = &preserve
	return u
}

// Err returns the error met while resolving the path, if any.
func (u *Unwind) Err() error {
	return u.err
}

// Build returns the $unwind document.
func (u *Unwind) Build() (bson.D, error) {
	if u.err != nil {
		return nil, u.err
	}
	if u.includeArrayIndex == "" && u.preserveNull == nil {
		return bson.D{{Key: "$unwind", Value: u.path}}, nil
	}
	options := bson.D{{Key: "path", Value: u.path}}
	if u.includeArrayIndex != "" {
		options = append(options, bson.E{Key: "includeArrayIndex", Value: u.includeArrayIndex})
	}
	if u.preserveNull != nil {
		options = append(options, bson.E{Key: "preserveNullAndEmptyArrays", Value: *u.preserveNull})
	}
	return bson.D{{Key: "$unwind", Value: options}}, nil
}

// Project reshapes documents. Includes and Excludes take field names of the
// class; computed fields are set with Field and Expression.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/project/
type Project struct {
	stage
	expr *Expr
}

var _ Stage = (*Project)(nil)

func newProject(builder *Builder) *Project {
	return &Project{stage: stage{builder: builder}, expr: builder.Expr()}
}

// Includes keeps the given fields.
func (p *Project) Includes(fields ...string) *Project {
	return p.flag(fields, 1)
}

// Excludes removes the given fields.
func (p *Project) Excludes(fields ...string) *Project {
	return p.flag(fields, 0)
}

// Field sets the current output field.
func (p *Project) Field(name string) *Project {
	p.expr.Field(name)
	return p
}

// Expression sets the current output field to value.
func (p *Project) Expression(value any) *Project {
	p.expr.Expression(value)
	return p
}

// Err returns the first error recorded by the projection, if any.
func (p *Project) Err() error {
	return p.expr.Err()
}

// Build returns {"$project": <fields>}.
func (p *Project) Build() (bson.D, error) {
	doc, err := p.expr.Build()
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$project", Value: doc}}, nil
}

func (p *Project) flag(fields []string, value int) *Project {
	for _, field := range fields {
		if p.expr.Err() != nil {
			break
		}
		resolved, err := p.builder.resolveField(field)
		if err != nil {
			p.expr.err = err
			break
		}
		p.expr.Field(resolved).Expression(value)
	}
	return p
}

// AddFields adds computed fields to documents.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/addFields/
type AddFields struct {
	stage
	expr *Expr
}

var _ Stage = (*AddFields)(nil)

func newAddFields(builder *Builder) *AddFields {
	return &AddFields{stage: stage{builder: builder}, expr: builder.Expr()}
}

// Field sets the current output field.
func (a *AddFields) Field(name string) *AddFields {
	a.expr.Field(name)
	return a
}

// Expression sets the current output field to value.
func (a *AddFields) Expression(value any) *AddFields {
	a.expr.Expression(value)
	return a
}

// Err returns the first error recorded by the stage, if any.
func (a *AddFields) Err() error {
	return a.expr.Err()
}

// Build returns {"$addFields": <fields>}.
func (a *AddFields) Build() (bson.D, error) {
	doc, err := a.expr.Build()
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$addFields", Value: doc}}, nil
}
