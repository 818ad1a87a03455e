package query

const (
	// DefaultMaxResolveDepth bounds reference expansion when the caller does
	// not configure a maximum.
	DefaultMaxResolveDepth = 10

	// DefaultLimit is applied by compilers whose target requires an explicit
	// page size when the query specifies none.
	DefaultLimit = 100
)

// Options carries the constructor-time settings shared by every target
// compiler. The zero value is usable; Normalize fills in defaults.
type Options struct {
	// DefaultLocale is applied when a query specifies no locale.
	DefaultLocale string

	// FallbackLocales is the ordered list of locales consulted when a
	// localized field has no value in the requested locale. Only targets
	// with native fallback syntax use it.
	FallbackLocales []string

	// DefaultLimit is the result-count limit applied when the query has
	// none. Zero means the target's own default (DefaultLimit for targets
	// that require a page size, unlimited otherwise).
	DefaultLimit int

	// MaxResolveDepth clamps reference-resolution depth. Zero means
	// DefaultMaxResolveDepth.
	MaxResolveDepth int

	// GlobalFilter is AND-ed into every compiled query, e.g. "exclude
	// soft-deleted documents". It runs through the same condition compiler
	// as caller filters.
	GlobalFilter []Condition

	// IncludeDrafts includes unpublished documents in results. The default
	// (false) restricts every query to published content where the target
	// can express that.
	IncludeDrafts bool

	// Strict promotes any degrade notice to a *DegradeError instead of a
	// partial result.
	Strict bool
}

// Normalize returns a copy of o with zero values replaced by defaults.
func (o Options) Normalize() Options {
	if o.MaxResolveDepth <= 0 {
		o.MaxResolveDepth = DefaultMaxResolveDepth
	}
	return o
}

// ClampResolveDepth converts a requested resolve depth to the effective one,
// reporting whether clamping occurred.
func (o Options) ClampResolveDepth(requested ResolveRefs) (int, bool) {
	depth := int(requested)
	max := o.MaxResolveDepth
	if max <= 0 {
		max = DefaultMaxResolveDepth
	}
	if depth > max {
		return max, true
	}
	return depth, false
}
