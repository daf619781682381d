package table

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ErrMalformedLabel is returned when a bucket label is neither "<start>-<end>"
// nor "<start>+".
var ErrMalformedLabel = errors.New("malformed bucket label")

// Raw is the wire shape of a probability table: categoryId → label → probability.
type Raw map[string]map[string]float64

// Bucket is one day range within a category.
type Bucket struct {
	Label       string
	Start       int
	End         int  // inclusive; ignored when OpenEnded
	OpenEnded   bool // "31+" style
	Probability float64
}

// Contains reports whether days falls inside the bucket.
func (b Bucket) Contains(days int) bool {
	if b.OpenEnded {
		return days >= b.Start
	}
	return b.Start <= days && days <= b.End
}

// Buckets holds the buckets of one category, sorted by start day.
type Buckets []Bucket

// Table maps a category identifier to its buckets.
type Table map[string]Buckets

// Categories returns the category identifiers in sorted order.
func (t Table) Categories() []string {
	out := make([]string, 0, len(t))
	for c := range t {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

var (
	rangeLabel = regexp.MustCompile(`^([0-9]+)-([0-9]+)$`)
	openLabel  = regexp.MustCompile(`^([0-9]+)\+$`)
)

// ParseLabel parses a bucket label into its start and end days.
// Accepted forms are "a-b" (inclusive, 0 ≤ a ≤ b) and "n+" (open-ended from
// n), written with ASCII digits only. Signs and whitespace are rejected.
func ParseLabel(label string) (Bucket, error) {
	if m := openLabel.FindStringSubmatch(label); m != nil {
		start, err := parseDay(m[1])
		if err != nil {
			return Bucket{}, fmt.Errorf("%w %q: %v", ErrMalformedLabel, label, err)
		}
		return Bucket{Label: label, Start: start, OpenEnded: true}, nil
	}

	m := rangeLabel.FindStringSubmatch(label)
	if m == nil {
		return Bucket{}, fmt.Errorf("%w %q: want \"start-end\" or \"start+\"", ErrMalformedLabel, label)
	}
	start, err := parseDay(m[1])
	if err != nil {
		return Bucket{}, fmt.Errorf("%w %q: start: %v", ErrMalformedLabel, label, err)
	}
	end, err := parseDay(m[2])
	if err != nil {
		return Bucket{}, fmt.Errorf("%w %q: end: %v", ErrMalformedLabel, label, err)
	}
	if start > end {
		return Bucket{}, fmt.Errorf("%w %q: start %d after end %d", ErrMalformedLabel, label, start, end)
	}
	return Bucket{Label: label, Start: start, End: end}, nil
}

// parseDay converts a digit run; only overflow can fail.
func parseDay(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("day out of range: %q", s)
	}
	return n, nil
}

// Parse converts a raw table into the typed model. Any malformed label
// rejects the whole table.
func Parse(raw Raw) (Table, error) {
	t := make(Table, len(raw))
	for category, labels := range raw {
		buckets := make(Buckets, 0, len(labels))
		for label, p := range labels {
			b, err := ParseLabel(label)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", category, err)
			}
			b.Probability = p
			buckets = append(buckets, b)
		}
		sortBuckets(buckets)
		t[category] = buckets
	}
	return t, nil
}

// sortBuckets orders by start day. Equal starts fall back to the label so the
// order never depends on map iteration.
func sortBuckets(b Buckets) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Start != b[j].Start {
			return b[i].Start < b[j].Start
		}
		return b[i].Label < b[j].Label
	})
}
