package repository

import (
	"cmp"
	"fmt"
	"time"
)

// Op is a comparison operator usable in a Condition.
type Op string

const (
	OpEq  Op = "="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Condition compares one named field against a value.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Query is a conjunction of conditions. Limit <= 0 means no limit.
type Query struct {
	Conditions []Condition
	Limit      int
}

// Where starts a query with a single condition.
func Where(field string, op Op, value any) Query {
	return Query{Conditions: []Condition{{Field: field, Op: op, Value: value}}}
}

// And adds a condition.
func (q Query) And(field string, op Op, value any) Query {
	conds := make([]Condition, len(q.Conditions), len(q.Conditions)+1)
	copy(conds, q.Conditions)
	q.Conditions = append(conds, Condition{Field: field, Op: op, Value: value})
	return q
}

// First limits the query to one result.
func (q Query) First() Query {
	q.Limit = 1
	return q
}

// FieldValuer is implemented by entities that can be filtered in memory.
type FieldValuer interface {
	FieldValue(name string) (any, bool)
}

// Matches evaluates q against e. A condition on an absent field never matches.
func (q Query) Matches(e FieldValuer) (bool, error) {
	for _, c := range q.Conditions {
		got, ok := e.FieldValue(c.Field)
		if !ok {
			return false, nil
		}
		match, err := compare(got, c.Op, c.Value)
		if err != nil {
			return false, fmt.Errorf("field %s: %w", c.Field, err)
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func compare(got any, op Op, want any) (bool, error) {
	if op == OpEq {
		return got == want, nil
	}
	var order int
	switch g := got.(type) {
	case int:
		w, ok := want.(int)
		if !ok {
			return false, fmt.Errorf("cannot compare int with %T", want)
		}
		order = cmp.Compare(g, w)
	case string:
		w, ok := want.(string)
		if !ok {
			return false, fmt.Errorf("cannot compare string with %T", want)
		}
		order = cmp.Compare(g, w)
	case time.Time:
		w, ok := want.(time.Time)
		if !ok {
			return false, fmt.Errorf("cannot compare time with %T", want)
		}
		order = g.Compare(w)
	default:
		return false, fmt.Errorf("unsupported ordered type %T", got)
	}
	switch op {
	case OpGte:
		return order >= 0, nil
	case OpLte:
		return order <= 0, nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}
