package protocol

// On the wire both "default bucket" (for writes) and "sum of all buckets"
// (for reads) are spelled as the empty context string. The two target types
// below keep those meanings apart in Go; only Wire() collapses them.

// ReadTarget selects which weights a query observes. The zero value is the
// aggregate view: for every (src, dst) the sum over all contexts.
type ReadTarget struct {
	name string
}

// Aggregate returns the read target that sums every context.
func Aggregate() ReadTarget {
	return ReadTarget{}
}

// ReadFrom returns the read target for a named context.
// An empty name selects the aggregate view.
func ReadFrom(name string) ReadTarget {
	return ReadTarget{name: name}
}

// IsAggregate reports whether t reads the sum over all contexts.
func (t ReadTarget) IsAggregate() bool { return t.name == "" }

// Name returns the context name, or "" for the aggregate view.
func (t ReadTarget) Name() string { return t.name }

// Wire returns the envelope context field for t.
func (t ReadTarget) Wire() string { return t.name }

func (t ReadTarget) String() string {
	if t.IsAggregate() {
		return "<aggregate>"
	}
	return t.name
}

// WriteTarget selects the single bucket a mutation modifies. The zero value
// is the default bucket; it never fans out to named contexts.
type WriteTarget struct {
	name string
}

// DefaultBucket returns the write target for the default bucket.
func DefaultBucket() WriteTarget {
	return WriteTarget{}
}

// WriteTo returns the write target for a named context.
// An empty name selects the default bucket.
func WriteTo(name string) WriteTarget {
	return WriteTarget{name: name}
}

// IsDefault reports whether t writes the default bucket.
func (t WriteTarget) IsDefault() bool { return t.name == "" }

// Name returns the context name, or "" for the default bucket.
func (t WriteTarget) Name() string { return t.name }

// Wire returns the envelope context field for t.
func (t WriteTarget) Wire() string { return t.name }

func (t WriteTarget) String() string {
	if t.IsDefault() {
		return "<default>"
	}
	return t.name
}
