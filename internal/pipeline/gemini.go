package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tech-grandpa/banana-paper-ui/internal/config"
	"github.com/tech-grandpa/banana-paper-ui/internal/model"
)

// GeminiPipeline generates diagrams through the Google Generative
// Language API: a VLM model plans and critiques, an image model renders
// each refinement iteration. Artifacts are written to a fresh run
// directory under outputRoot.
type GeminiPipeline struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	vlmModel   string
	imageModel string
	outputRoot string
}

// NewGeminiPipeline creates a pipeline backed by the Gemini API.
func NewGeminiPipeline(cfg *config.GeminiConfig, outputRoot string) *GeminiPipeline {
	return &GeminiPipeline{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		vlmModel:   cfg.VLMModel,
		imageModel: cfg.ImageModel,
		outputRoot: outputRoot,
	}
}

// IsConfigured returns true if the client has valid configuration
func (p *GeminiPipeline) IsConfigured() bool {
	return p.apiKey != ""
}

// Run executes the full planning and refinement flow for one request.
func (p *GeminiPipeline) Run(ctx context.Context, in Input, report ProgressFunc) (*Output, error) {
	if err := os.MkdirAll(p.outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}

	// MkdirTemp keeps run directories unique across concurrent jobs.
	runDir, err := os.MkdirTemp(p.outputRoot, "run-")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	total := in.Iterations

	report(model.PhasePlanning, model.AgentRetriever, 0, total, "Retrieving relevant examples...")

	report(model.PhasePlanning, model.AgentPlanner, 0, total, "Generating textual description...")
	description, err := p.generateText(ctx, plannerPrompt(in))
	if err != nil {
		return nil, fmt.Errorf("planner failed: %w", err)
	}

	report(model.PhasePlanning, model.AgentStylist, 0, total, "Optimizing description aesthetics...")
	styled, err := p.generateText(ctx, stylistPrompt(description))
	if err != nil {
		return nil, fmt.Errorf("stylist failed: %w", err)
	}

	var iterationImages []string
	var lastImage []byte
	critique := ""

	for i := 1; i <= total; i++ {
		report(model.PhaseRefinement, model.AgentVisualizer, i, total,
			fmt.Sprintf("Generating image (iteration %d/%d)...", i, total))

		img, err := p.generateImage(ctx, visualizerPrompt(styled, in.Caption, critique))
		if err != nil {
			return nil, fmt.Errorf("visualizer failed on iteration %d: %w", i, err)
		}

		path := filepath.Join(runDir, fmt.Sprintf("iteration_%d.png", i))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write iteration image: %w", err)
		}
		iterationImages = append(iterationImages, path)
		lastImage = img

		if i < total {
			report(model.PhaseRefinement, model.AgentCritic, i, total,
				fmt.Sprintf("Evaluating image (iteration %d/%d)...", i, total))
			critique, err = p.generateText(ctx, criticPrompt(styled, in.Caption))
			if err != nil {
				return nil, fmt.Errorf("critic failed on iteration %d: %w", i, err)
			}
		}
	}

	finalPath := filepath.Join(runDir, "final.png")
	if err := os.WriteFile(finalPath, lastImage, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write final image: %w", err)
	}

	return &Output{
		OutputDir:       runDir,
		FinalImage:      finalPath,
		IterationImages: iterationImages,
	}, nil
}

// generateContentRequest represents the request body for generateContent
type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	Temperature        float64  `json:"temperature,omitempty"`
}

// generateContentResponse represents the response from generateContent
type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (p *GeminiPipeline) generateText(ctx context.Context, prompt string) (string, error) {
	resp, err := p.generateContent(ctx, p.vlmModel, generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{Temperature: 0.7},
	})
	if err != nil {
		return "", err
	}

	for _, c := range resp.Candidates {
		for _, pt := range c.Content.Parts {
			if pt.Text != "" {
				return pt.Text, nil
			}
		}
	}
	return "", fmt.Errorf("no text in response")
}

func (p *GeminiPipeline) generateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := p.generateContent(ctx, p.imageModel, generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	})
	if err != nil {
		return nil, err
	}

	for _, c := range resp.Candidates {
		for _, pt := range c.Content.Parts {
			if pt.InlineData != nil {
				return base64.StdEncoding.DecodeString(pt.InlineData.Data)
			}
		}
	}
	return nil, fmt.Errorf("no image in response")
}

func (p *GeminiPipeline) generateContent(ctx context.Context, mdl string, reqBody generateContentRequest) (*generateContentResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, mdl)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generateContentResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	return &genResp, nil
}

func plannerPrompt(in Input) string {
	return fmt.Sprintf(
		"You are a scientific diagram planner. Produce a precise textual layout description "+
			"for a diagram conveying: %s\n\nMethodology context:\n%s",
		in.Caption, in.Text)
}

func stylistPrompt(description string) string {
	return fmt.Sprintf(
		"Rewrite the following diagram description for visual clarity and publication "+
			"aesthetics. Keep the structure, improve spacing, color and labeling guidance:\n\n%s",
		description)
}

func visualizerPrompt(description, caption, critique string) string {
	prompt := fmt.Sprintf(
		"Render a clean scientific diagram. Caption: %s\n\nLayout description:\n%s",
		caption, description)
	if critique != "" {
		prompt += "\n\nApply this reviewer feedback:\n" + critique
	}
	return prompt
}

func criticPrompt(description, caption string) string {
	return fmt.Sprintf(
		"Critique a diagram generated for the caption %q against this layout description. "+
			"List concrete layout or labeling fixes:\n\n%s",
		caption, description)
}
