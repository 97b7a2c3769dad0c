package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stitch/internal/ir"
)

// TraceSnapshot captures a scenario execution for golden comparison.
type TraceSnapshot struct {
	ScenarioName string  `json:"scenario_name"`
	Trace        []Event `json:"trace"`
	Stats        Stats   `json:"stats"`
}

// toCanonical converts the snapshot to IR values for canonical JSON.
func (s *TraceSnapshot) toCanonical() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, e := range s.Trace {
		obj := ir.IRObject{
			"seq":  ir.IRInt(e.Seq),
			"kind": ir.IRString(e.Kind),
		}
		if e.Name != "" {
			obj["name"] = ir.IRString(e.Name)
		}
		if e.Dtype != "" {
			obj["dtype"] = ir.IRString(e.Dtype)
		}
		if e.Value != "" {
			obj["value"] = ir.IRString(e.Value)
		}
		trace[i] = obj
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
		"stats": ir.IRObject{
			"steps":     ir.IRInt(s.Stats.Steps),
			"heap_nets": ir.IRInt(s.Stats.HeapNets),
			"data_size": ir.IRInt(s.Stats.DataSize),
		},
	}
}

// Snapshot renders a result as the canonical JSON stored in golden files.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Stats:        result.Stats,
	}
	return ir.MarshalCanonical(snapshot.toCanonical())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
