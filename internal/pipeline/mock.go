package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/tech-grandpa/banana-paper-ui/internal/model"
)

// MockPipeline walks through the same phases as the real pipeline with
// placeholder images. It is used when no API key is configured, and in
// tests.
type MockPipeline struct {
	outputRoot string
	stepDelay  time.Duration
}

// NewMockPipeline creates a mock pipeline writing into outputRoot.
// stepDelay is the simulated duration of each agent step.
func NewMockPipeline(outputRoot string, stepDelay time.Duration) *MockPipeline {
	return &MockPipeline{
		outputRoot: outputRoot,
		stepDelay:  stepDelay,
	}
}

// Run simulates a full planning and refinement flow.
func (p *MockPipeline) Run(ctx context.Context, in Input, report ProgressFunc) (*Output, error) {
	if err := os.MkdirAll(p.outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}

	runDir, err := os.MkdirTemp(p.outputRoot, "run-")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	total := in.Iterations

	report(model.PhasePlanning, model.AgentRetriever, 0, total, "Retrieving relevant examples...")
	p.sleep()
	report(model.PhasePlanning, model.AgentPlanner, 0, total, "Generating textual description...")
	p.sleep()
	report(model.PhasePlanning, model.AgentStylist, 0, total, "Optimizing description aesthetics...")
	p.sleep()

	img, err := placeholderPNG(in.Caption)
	if err != nil {
		return nil, err
	}

	var iterationImages []string
	for i := 1; i <= total; i++ {
		report(model.PhaseRefinement, model.AgentVisualizer, i, total,
			fmt.Sprintf("Generating image (iteration %d/%d)...", i, total))
		p.sleep()

		path := filepath.Join(runDir, fmt.Sprintf("iteration_%d.png", i))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write iteration image: %w", err)
		}
		iterationImages = append(iterationImages, path)

		if i < total {
			report(model.PhaseRefinement, model.AgentCritic, i, total,
				fmt.Sprintf("Evaluating image (iteration %d/%d)...", i, total))
			p.sleep()
		}
	}

	finalPath := filepath.Join(runDir, "final.png")
	if err := os.WriteFile(finalPath, img, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write final image: %w", err)
	}

	return &Output{
		OutputDir:       runDir,
		FinalImage:      finalPath,
		IterationImages: iterationImages,
	}, nil
}

func (p *MockPipeline) sleep() {
	if p.stepDelay > 0 {
		time.Sleep(p.stepDelay)
	}
}

// placeholderPNG renders a small solid tile whose shade is derived from
// the caption, so distinct jobs produce distinct bytes.
func placeholderPNG(caption string) ([]byte, error) {
	var sum byte
	for i := 0; i < len(caption); i++ {
		sum += caption[i]
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	shade := color.RGBA{R: 0xFF, G: 0xE0, B: sum, A: 0xFF}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, shade)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder image: %w", err)
	}
	return buf.Bytes(), nil
}
