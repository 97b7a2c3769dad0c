package harness

import (
	"github.com/roach88/stitch/internal/graph"
)

// Event kinds recorded in a trace.
const (
	EventCompile = "compile"
	EventWrite   = "write"
	EventRun     = "run"
	EventRead    = "read"
	EventError   = "error"
)

// Event is one step of a scenario execution.
type Event struct {
	Seq   int64  `json:"seq"`
	Kind  string `json:"kind"`
	Name  string `json:"name,omitempty"`
	Dtype string `json:"dtype,omitempty"`
	Value string `json:"value,omitempty"`
}

// Stats summarises the compiled program.
type Stats struct {
	Steps    int    `json:"steps"`
	HeapNets int    `json:"heap_nets"`
	CodeSize uint32 `json:"code_size"`
	DataSize uint32 `json:"data_size"`
	Records  int    `json:"records"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists compile, write, run and read events in order.
	Trace []Event `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Values holds every output read back after the last run.
	Values map[string]graph.Literal `json:"-"`

	// Listing is the command listing of the compiled stream.
	Listing string `json:"-"`

	Stats Stats `json:"stats"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []Event{},
		Errors: []string{},
		Values: make(map[string]graph.Literal),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends an event to the trace.
func (r *Result) AddEvent(e Event) {
	r.Trace = append(r.Trace, e)
}
