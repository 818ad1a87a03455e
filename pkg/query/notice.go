package query

import "fmt"

// NoticeCode classifies a degrade notice.
type NoticeCode string

const (
	// NoticeUnknownOperator: the operator is not in the target's syntax
	// table. The leaf was dropped, never remapped.
	NoticeUnknownOperator NoticeCode = "unknown-operator"

	// NoticeNarrowedOr: an OR across different fields cannot be expressed on
	// this target; only the first branch was compiled. The result set may be
	// a strict subset of the intended one.
	NoticeNarrowedOr NoticeCode = "narrowed-or"

	// NoticeEmptyOr: an empty OR group was dropped. By convention it compiles
	// to no constraint, not to "match nothing".
	NoticeEmptyOr NoticeCode = "empty-or"

	// NoticeUnsupportedNot: a NOT whose inner condition is richer than the
	// target can negate natively. May require client-side filtering.
	NoticeUnsupportedNot NoticeCode = "unsupported-not"

	// NoticeInvalidValue: the leaf's literal value cannot be represented on
	// the target. The single leaf was dropped.
	NoticeInvalidValue NoticeCode = "invalid-value"

	// NoticeUnsupportedExclusion: the target has no field-exclusion syntax;
	// the exclusion was a no-op.
	NoticeUnsupportedExclusion NoticeCode = "unsupported-exclusion"

	// NoticeUnsupportedAlias: the target cannot rename fields; the alias was
	// dropped.
	NoticeUnsupportedAlias NoticeCode = "unsupported-alias"

	// NoticeUnsupportedFunction: the target cannot evaluate computed fields;
	// the descriptor was dropped.
	NoticeUnsupportedFunction NoticeCode = "unsupported-function"

	// NoticeFlattenedProjection: the target has no sub-selection syntax; the
	// full parent field was included instead of the requested subset.
	NoticeFlattenedProjection NoticeCode = "flattened-projection"

	// NoticeDeferredExpansion: inline expansion syntax is unavailable; the
	// reference is resolved out-of-band via the resolve-depth parameter.
	NoticeDeferredExpansion NoticeCode = "deferred-expansion"

	// NoticeIgnoredCursor: cursor pagination has no native representation on
	// this target and the cursor was ignored.
	NoticeIgnoredCursor NoticeCode = "ignored-cursor"

	// NoticeFirstTypeOnly: the target cannot express a multi-type query and
	// compiled only the first type.
	NoticeFirstTypeOnly NoticeCode = "first-type-only"

	// NoticeClampedDepth: the requested reference-resolution depth exceeded
	// the compiler's maximum and was clamped.
	NoticeClampedDepth NoticeCode = "clamped-resolve-depth"

	// NoticeIgnoredLocale: the target has no per-query locale parameter.
	NoticeIgnoredLocale NoticeCode = "ignored-locale"

	// NoticeUnscopedReference: the target can only match references at the
	// document level, not on a specific field.
	NoticeUnscopedReference NoticeCode = "unscoped-reference"
)

// Notice is a structured degrade record: a construct of the query could not
// be expressed natively on the target and a narrower approximation (possibly
// a dropped condition) was emitted instead. Notices are returned with the
// compiled result, never raised as errors unless the compiler runs in strict
// mode.
type Notice struct {
	Code     NoticeCode `json:"code"`
	Field    string     `json:"field,omitempty"`
	Operator Operator   `json:"operator,omitempty"`
	Reason   string     `json:"reason"`
}

func (n Notice) String() string {
	s := string(n.Code)
	if n.Field != "" {
		s += " field=" + n.Field
	}
	if n.Operator != "" {
		s += fmt.Sprintf(" operator=%q", n.Operator)
	}
	return s + ": " + n.Reason
}
