// Package compare decides whether a candidate's report agrees with the
// reference's.
package compare

import (
	"fmt"
	"io"

	"github.com/sarchlab/cachecheck/cache"
)

// Divergence locates the first access whose outcome differs. When one report
// is shorter, Index is its length and the missing side is cache.None.
type Divergence struct {
	Index     int
	Reference cache.Outcome
	Candidate cache.Outcome
}

func (d Divergence) String() string {
	return fmt.Sprintf("access %d: reference %s, candidate %s",
		d.Index, label(d.Reference), label(d.Candidate))
}

// Verdict is the result of comparing two reports.
type Verdict struct {
	StatsMatch    bool
	OutcomesMatch bool
	// Divergence is nil when the outcome sequences are equal.
	Divergence *Divergence

	Reference cache.Report
	Candidate cache.Report
}

// Compare checks the statistics and the per-access outcomes of the two
// reports for exact equality.
func Compare(ref, cand cache.Report) Verdict {
	v := Verdict{
		StatsMatch: ref.Stats == cand.Stats,
		Reference:  ref,
		Candidate:  cand,
	}

	v.Divergence = firstDivergence(ref.Outcomes, cand.Outcomes)
	v.OutcomesMatch = v.Divergence == nil

	return v
}

func firstDivergence(ref, cand []cache.Outcome) *Divergence {
	n := min(len(ref), len(cand))
	for i := 0; i < n; i++ {
		if ref[i] != cand[i] {
			return &Divergence{Index: i, Reference: ref[i], Candidate: cand[i]}
		}
	}

	if len(ref) == len(cand) {
		return nil
	}

	d := &Divergence{Index: n, Reference: cache.None, Candidate: cache.None}
	if len(ref) > n {
		d.Reference = ref[n]
	} else {
		d.Candidate = cand[n]
	}
	return d
}

// Passed reports whether both the statistics and the outcomes agree.
func (v Verdict) Passed() bool {
	return v.StatsMatch && v.OutcomesMatch
}

// WriteReport prints what differs followed by both statistics tuples. A
// passing verdict prints nothing.
func (v Verdict) WriteReport(w io.Writer) {
	if v.Passed() {
		return
	}

	if !v.OutcomesMatch && v.Divergence != nil {
		_, _ = fmt.Fprintf(w, "  outcomes differ at %s\n", v.Divergence)
		_, _ = fmt.Fprintf(w, "  outcome counts: reference %d, candidate %d\n",
			len(v.Reference.Outcomes), len(v.Candidate.Outcomes))
	}

	if !v.StatsMatch {
		_, _ = fmt.Fprintf(w, "  stats differ\n")
	}
	_, _ = fmt.Fprintf(w, "  reference: %v\n", v.Reference.Stats)
	_, _ = fmt.Fprintf(w, "  candidate: %v\n", v.Candidate.Stats)
}

func label(o cache.Outcome) string {
	if o == cache.None {
		return "None"
	}
	return o.String()
}
