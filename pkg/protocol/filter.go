package protocol

import "math"

// Omitted bounds widen to the largest finite range so every Scores request
// carries the same nine-field tuple.
const (
	DefaultUpper = math.MaxFloat64
	DefaultLower = -math.MaxFloat64
	DefaultCount = math.MaxUint32
)

// Page selects a window of a ranked result list. Nil fields are omitted.
type Page struct {
	Index *uint32
	Count *uint32
}

func (p Page) bounds() (index, count uint32) {
	index, count = 0, DefaultCount
	if p.Index != nil {
		index = *p.Index
	}
	if p.Count != nil {
		count = *p.Count
	}
	return index, count
}

// Filter holds the optional arguments of a ranged score query.
// At most one of Lt/Lte and at most one of Gt/Gte may be set.
type Filter struct {
	Prefix       string
	HidePersonal bool
	Lt           *float64
	Lte          *float64
	Gt           *float64
	Gte          *float64
	Page
}

// Validate checks the bound combinations without building the tuple.
func (f Filter) Validate() error {
	if f.Lt != nil && f.Lte != nil {
		return ErrBothUpperBounds
	}
	if f.Gt != nil && f.Gte != nil {
		return ErrBothLowerBounds
	}
	return nil
}

func (f Filter) scoresArgs(src string) (ScoresArgs, error) {
	if err := f.Validate(); err != nil {
		return ScoresArgs{}, err
	}

	args := ScoresArgs{
		Src:          src,
		Prefix:       f.Prefix,
		HidePersonal: f.HidePersonal,
		Upper:        DefaultUpper,
		Lower:        DefaultLower,
	}
	switch {
	case f.Lt != nil:
		args.Upper = *f.Lt
	case f.Lte != nil:
		args.Upper, args.UpperIncl = *f.Lte, true
	}
	switch {
	case f.Gt != nil:
		args.Lower = *f.Gt
	case f.Gte != nil:
		args.Lower, args.LowerIncl = *f.Gte, true
	}
	args.Index, args.Count = f.Page.bounds()
	return args, nil
}

// Float returns a pointer to v, for filling optional filter fields.
func Float(v float64) *float64 { return &v }

// Uint returns a pointer to v, for filling optional page fields.
func Uint(v uint32) *uint32 { return &v }
