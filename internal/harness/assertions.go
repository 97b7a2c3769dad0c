package harness

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/stitch/internal/assemble"
	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/interp"
	"github.com/roach88/stitch/internal/program"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string  // Assertion type for categorization
	Expected string  // Human-readable expected outcome
	Actual   string  // Human-readable actual outcome
	Trace    []Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Kind, event.Name, event.Value)
		}
	}

	return buf.String()
}

// AssertionContext is what assertions are evaluated against.
type AssertionContext struct {
	Program   *program.Program
	Assembled *assemble.Result
	Tolerance float64

	// Writes is true if setup changed heap values, which the reference
	// evaluator does not see.
	Writes bool
}

// EvaluateAssertions checks every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertMatchesReference:
		return assertMatchesReference(result, actx)
	case AssertDtype:
		return assertDtype(result, a)
	case AssertStreamCount:
		return assertStreamCount(result, a, actx)
	case AssertHeapNets:
		return assertCount(result, "heap_nets", a.Count, result.Stats.HeapNets)
	case AssertSteps:
		return assertCount(result, "steps", a.Count, result.Stats.Steps)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertMatchesReference evaluates every output with the reference
// interpreter and compares it with the value read back from the runtime.
func assertMatchesReference(result *Result, actx *AssertionContext) error {
	if actx.Writes {
		return fmt.Errorf("matches_reference cannot be combined with setup writes")
	}
	p := actx.Program
	want, err := interp.Eval(p.Graph, p.Outputs...)
	if err != nil {
		return fmt.Errorf("reference evaluation: %w", err)
	}
	for i, name := range p.OutputNames {
		got, ok := result.Values[name]
		if !ok {
			return fmt.Errorf("output %s was not read", name)
		}
		if !literalsMatch(got, want[i], actx.Tolerance) {
			return &AssertionError{
				Type:     AssertMatchesReference,
				Expected: fmt.Sprintf("%s = %s", name, formatLiteral(want[i])),
				Actual:   fmt.Sprintf("%s = %s", name, formatLiteral(got)),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertDtype(result *Result, a Assertion) error {
	got, ok := result.Values[a.Output]
	if !ok {
		return fmt.Errorf("output %s was not read", a.Output)
	}
	want, err := graph.ParseDtype(a.Dtype)
	if err != nil {
		return err
	}
	if got.Dtype != want {
		return &AssertionError{
			Type:     AssertDtype,
			Expected: fmt.Sprintf("%s is %s", a.Output, want),
			Actual:   fmt.Sprintf("%s is %s", a.Output, got.Dtype),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertStreamCount(result *Result, a Assertion, actx *AssertionContext) error {
	if actx.Assembled == nil {
		return fmt.Errorf("program was not compiled")
	}
	n := 0
	for _, r := range actx.Assembled.Records {
		if r.Op.String() == a.Op {
			n++
		}
	}
	return assertCount(result, a.Op+" records", a.Count, n)
}

func assertCount(result *Result, what string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     what,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
		Trace:    result.Trace,
	}
}

// checkExpect compares read-back values with the scenario's expect map.
// Keys are checked in sorted order so messages are stable.
func checkExpect(result *Result, expect map[string]any, tolerance float64) []string {
	names := make([]string, 0, len(expect))
	for name := range expect {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	for _, name := range names {
		got, ok := result.Values[name]
		if !ok {
			failures = append(failures, fmt.Sprintf("expect %s: no such output", name))
			continue
		}
		want, err := graph.LiteralOf(expect[name])
		if err != nil {
			failures = append(failures, fmt.Sprintf("expect %s: %v", name, err))
			continue
		}
		if !literalsMatch(got, want, tolerance) {
			failures = append(failures, fmt.Sprintf("expect %s: got %s %s, want %s",
				name, got.Dtype, formatLiteral(got), formatLiteral(want)))
		}
	}
	return failures
}

// literalsMatch compares a read-back literal with an expected one. Floats
// compare within a relative tolerance and accept int expectations. Bools
// and ints compare by dtype and value.
func literalsMatch(got, want graph.Literal, tolerance float64) bool {
	if got.Dtype == graph.Float {
		var w float64
		switch want.Dtype {
		case graph.Float:
			w = want.F
		case graph.Int:
			w = float64(want.I)
		default:
			return false
		}
		if math.IsNaN(got.F) || math.IsNaN(w) {
			return math.IsNaN(got.F) && math.IsNaN(w)
		}
		if math.IsInf(w, 0) {
			return got.F == w
		}
		return math.Abs(got.F-w) <= tolerance*math.Max(1, math.Abs(w))
	}
	return got.Dtype == want.Dtype && got.I == want.I
}

// formatLiteral renders a literal with float32-level precision so traces
// do not depend on rounding noise.
func formatLiteral(l graph.Literal) string {
	if l.Dtype == graph.Float {
		return fmt.Sprintf("%.6g", l.F)
	}
	return l.String()
}
