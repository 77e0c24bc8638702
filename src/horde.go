package storybook

import (
	"fmt"

	"github.com/opd-ai/horde"
)

// HordeClient generates illustrations on the AI Horde.
type HordeClient struct {
	*horde.Client
}

func NewHordeClient(apiKey string) *HordeClient {
	return &HordeClient{
		Client: horde.NewClient(apiKey),
	}
}

func (c *HordeClient) ImageGenerate(prompt string, steps, width, height int, modelName string, progress progressor) ([]byte, error) {
	pr := orNull(progress)

	if steps == 0 {
		steps = horde.DefaultSteps
	}
	if width == 0 {
		width = horde.DefaultWidth
	}
	if height == 0 {
		height = horde.DefaultHeight
	}
	if modelName == "" {
		modelName = horde.DefaultModel
	}

	req := horde.GenerationRequest{
		Prompt: prompt,
		Params: horde.Params{
			Steps:     steps,
			Width:     width,
			Height:    height,
			ModelName: modelName,
		},
	}

	pr.UpdateOutput(fmt.Sprintf("Submitting %dx%d generation request (%s, %d steps)", width, height, modelName, steps))
	resp, err := c.RequestGeneration(req)
	if err != nil {
		return nil, fmt.Errorf("requesting generation: %w", err)
	}

	pr.UpdateOutput(fmt.Sprintf("Request accepted, waiting for %s", resp.ID))
	status, err := c.WaitForCompletion(resp.ID)
	if err != nil {
		return nil, fmt.Errorf("waiting for completion: %w", err)
	}
	if len(status.Generation) == 0 {
		return nil, fmt.Errorf("no results returned for %s", resp.ID)
	}

	imageData, err := c.DownloadImage(status.Generation[0].Image)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	pr.UpdateOutput(fmt.Sprintf("Downloaded image: %d bytes", len(imageData)))

	return imageData, nil
}
