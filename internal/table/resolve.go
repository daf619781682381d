package table

// DefaultProbability is returned when a category has no usable buckets.
const DefaultProbability = 0.5

// Result is the outcome of a single lookup.
type Result struct {
	Probability float64
	Bucket      *Bucket // nil when the default was used
	Matched     bool    // false when the last bucket or the default stood in
	Fallback    bool    // true when DefaultProbability was returned
}

// Lookup finds the bucket for days within category.
//
// Buckets are scanned in start order and the first one containing days wins.
// When none does (a gap, or days below the lowest start) the last bucket in
// start order is used. An empty table, an unknown category, or a category
// with no buckets yields DefaultProbability.
func (t Table) Lookup(category string, days int) Result {
	if len(t) == 0 {
		return Result{Probability: DefaultProbability, Fallback: true}
	}
	buckets, ok := t[category]
	if !ok || len(buckets) == 0 {
		return Result{Probability: DefaultProbability, Fallback: true}
	}

	for i := range buckets {
		if buckets[i].Contains(days) {
			return Result{Probability: buckets[i].Probability, Bucket: &buckets[i], Matched: true}
		}
	}

	last := &buckets[len(buckets)-1]
	return Result{Probability: last.Probability, Bucket: last}
}

// Resolve returns the probability for category at days, and whether the
// default probability was used.
func Resolve(t Table, category string, days int) (float64, bool) {
	r := t.Lookup(category, days)
	return r.Probability, r.Fallback
}
