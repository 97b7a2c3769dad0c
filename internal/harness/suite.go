package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario in a suite.
type ScenarioFailure struct {
	ScenarioName string `json:"scenario_name,omitempty"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find scenarios: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario path and collects the results.
// A scenario that fails to load or run counts as failed.
func RunSuite(paths []string, opts ...Option) *SuiteResult {
	result := &SuiteResult{}

	for _, path := range paths {
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				Error:        fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		runResult, err := Run(scenario, opts...)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioName: scenario.Name,
				ScenarioPath: path,
				Error:        fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}

		if !runResult.Pass {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioName: scenario.Name,
				ScenarioPath: path,
				Error:        strings.Join(runResult.Errors, "; "),
			})
			continue
		}

		result.Passed++
	}

	return result
}
