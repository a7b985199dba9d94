package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-grandpa/banana-paper-ui/internal/model"
)

func TestMockPipelineProducesArtifacts(t *testing.T) {
	root := t.TempDir()
	p := NewMockPipeline(root, 0)

	out, err := p.Run(context.Background(), Input{
		Text:       "A feeds B",
		Caption:    "pipeline",
		Iterations: 3,
	}, func(phase, agent string, iteration, total int, message string) {})
	require.NoError(t, err)

	assert.Equal(t, root, filepath.Dir(out.OutputDir))
	require.Len(t, out.IterationImages, 3)
	for i, path := range out.IterationImages {
		assert.Equal(t, filepath.Join(out.OutputDir, fmt.Sprintf("iteration_%d.png", i+1)), path)
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}

	data, err := os.ReadFile(out.FinalImage)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]), "final image should be a PNG")
}

func TestMockPipelineReportsAgentsInOrder(t *testing.T) {
	p := NewMockPipeline(t.TempDir(), 0)

	type report struct {
		phase, agent string
		iteration    int
	}
	var reports []report

	_, err := p.Run(context.Background(), Input{Text: "t", Caption: "c", Iterations: 2},
		func(phase, agent string, iteration, total int, message string) {
			reports = append(reports, report{phase, agent, iteration})
			assert.Equal(t, 2, total)
		})
	require.NoError(t, err)

	want := []report{
		{model.PhasePlanning, model.AgentRetriever, 0},
		{model.PhasePlanning, model.AgentPlanner, 0},
		{model.PhasePlanning, model.AgentStylist, 0},
		{model.PhaseRefinement, model.AgentVisualizer, 1},
		{model.PhaseRefinement, model.AgentCritic, 1},
		{model.PhaseRefinement, model.AgentVisualizer, 2},
	}
	assert.Equal(t, want, reports)
}

func TestMockPipelineUsesDistinctRunDirs(t *testing.T) {
	root := t.TempDir()
	p := NewMockPipeline(root, 0)

	in := Input{Text: "t", Caption: "c", Iterations: 1}
	noop := func(phase, agent string, iteration, total int, message string) {}

	a, err := p.Run(context.Background(), in, noop)
	require.NoError(t, err)
	b, err := p.Run(context.Background(), in, noop)
	require.NoError(t, err)

	assert.NotEqual(t, a.OutputDir, b.OutputDir)
}
