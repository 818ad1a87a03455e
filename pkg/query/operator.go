package query

// Operator is a comparison operator in the backend-agnostic filter
// vocabulary. Each target compiler owns a mapping from this set to its native
// syntax; operators missing from a target's mapping degrade the single leaf
// they appear on.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="

	// Set membership: the field's value is (not) one of the given values.
	OpIn    Operator = "in"
	OpNotIn Operator = "nin"

	// Array containment: the field is an array containing the value, any of
	// the values, or all of the values.
	OpContains    Operator = "contains"
	OpContainsAny Operator = "containsAny"
	OpContainsAll Operator = "containsAll"

	// Text matching.
	OpMatch      Operator = "match"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"

	// Existence.
	OpDefined   Operator = "defined"
	OpUndefined Operator = "undefined"

	// Graph: the field (or, with an empty field, the whole document) holds a
	// reference to the document with the given ID.
	OpReferences Operator = "references"
)

// operators is the closed set of recognised operators.
var operators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpGreaterThan: true, OpGreaterOrEqual: true,
	OpLessThan: true, OpLessOrEqual: true,
	OpIn: true, OpNotIn: true,
	OpContains: true, OpContainsAny: true, OpContainsAll: true,
	OpMatch: true, OpStartsWith: true, OpEndsWith: true,
	OpDefined: true, OpUndefined: true,
	OpReferences: true,
}

// Known reports whether op belongs to the operator vocabulary. Unknown
// operators are not structural errors; they degrade per target.
func (op Operator) Known() bool { return operators[op] }

// Unary reports whether op takes no comparison value.
func (op Operator) Unary() bool { return op == OpDefined || op == OpUndefined }
