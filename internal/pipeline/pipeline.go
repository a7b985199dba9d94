package pipeline

import "context"

// Input carries one generation request into the pipeline.
type Input struct {
	Text       string
	Caption    string
	Iterations int
}

// Output describes the artifacts a finished run produced. Paths are
// absolute; OutputDir is owned exclusively by the job that ran.
type Output struct {
	OutputDir       string
	FinalImage      string
	IterationImages []string
}

// ProgressFunc is invoked by the pipeline at its own cadence to publish
// incremental progress. Implementations must tolerate calls from a
// goroutine other than the submitting one.
type ProgressFunc func(phase, agent string, iteration, totalIterations int, message string)

// Pipeline is the opaque generation capability. Run blocks until the
// pipeline produces its artifacts or fails; it must eventually return.
type Pipeline interface {
	Run(ctx context.Context, in Input, report ProgressFunc) (*Output, error)
}
