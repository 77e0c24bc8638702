package storybook

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Square page illustrations for local generation.
const (
	defaultLocalSteps = 30
	defaultLocalSize  = 1024
	// referenceStrength is how far img2img may move away from the reference.
	referenceStrength = 0.6
)

// LocalClient talks to a Stable Diffusion WebUI instance.
type LocalClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewLocalClient(baseURL string) *LocalClient {
	return &LocalClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// SDWebUIRequest is the txt2img request body.
type SDWebUIRequest struct {
	Prompt           string                 `json:"prompt"`
	NegativePrompt   string                 `json:"negative_prompt,omitempty"`
	Steps            int                    `json:"steps"`
	Width            int                    `json:"width"`
	Height           int                    `json:"height"`
	CFGScale         float64                `json:"cfg_scale,omitempty"`
	BatchSize        int                    `json:"batch_size,omitempty"`
	OverrideSettings map[string]interface{} `json:"override_settings,omitempty"`
}

// SDWebUIImg2ImgRequest is the img2img request body: a txt2img request plus
// the images to start from.
type SDWebUIImg2ImgRequest struct {
	SDWebUIRequest
	InitImages        []string `json:"init_images"`
	DenoisingStrength float64  `json:"denoising_strength"`
}

// SDWebUIResponse is the txt2img and img2img response body.
type SDWebUIResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
	Error  string   `json:"error,omitempty"`
}

func (l *LocalClient) ImageGenerate(prompt string, steps, width, height int, modelName string, progress progressor) ([]byte, error) {
	req, err := l.request(prompt, steps, width, height, modelName)
	if err != nil {
		return nil, err
	}
	return l.post("/sdapi/v1/txt2img", req, req.Width, req.Height, orNull(progress))
}

// ImageFromReference runs img2img with reference as the initial image.
func (l *LocalClient) ImageFromReference(prompt string, reference []byte, steps, width, height int, modelName string, progress progressor) ([]byte, error) {
	if len(reference) == 0 {
		return l.ImageGenerate(prompt, steps, width, height, modelName, progress)
	}
	req, err := l.request(prompt, steps, width, height, modelName)
	if err != nil {
		return nil, err
	}
	body := SDWebUIImg2ImgRequest{
		SDWebUIRequest:    req,
		InitImages:        []string{base64.StdEncoding.EncodeToString(reference)},
		DenoisingStrength: referenceStrength,
	}
	return l.post("/sdapi/v1/img2img", body, req.Width, req.Height, orNull(progress))
}

func (l *LocalClient) request(prompt string, steps, width, height int, modelName string) (SDWebUIRequest, error) {
	if l.BaseURL == "" {
		return SDWebUIRequest{}, fmt.Errorf("SD_WEBUI_URL environment variable not set")
	}
	if steps == 0 {
		steps = defaultLocalSteps
	}
	if width == 0 {
		width = defaultLocalSize
	}
	if height == 0 {
		height = defaultLocalSize
	}

	requestData := SDWebUIRequest{
		Prompt:         prompt,
		NegativePrompt: "text, letters, watermark, signature",
		Steps:          steps,
		Width:          width,
		Height:         height,
		CFGScale:       3.0,
		BatchSize:      1,
	}
	if modelName != "" {
		requestData.OverrideSettings = map[string]interface{}{"sd_model_checkpoint": modelName}
	}
	return requestData, nil
}

func (l *LocalClient) post(path string, requestData interface{}, width, height int, pr progressor) ([]byte, error) {
	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, l.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := l.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	pr.UpdateOutput(fmt.Sprintf("Sending %dx%d request to SD-WebUI at %s%s", width, height, l.BaseURL, path))
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var sdResponse SDWebUIResponse
	if err := json.Unmarshal(body, &sdResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if sdResponse.Error != "" {
		return nil, fmt.Errorf("sd-webui: %s", sdResponse.Error)
	}
	if len(sdResponse.Images) == 0 {
		return nil, fmt.Errorf("no images generated")
	}

	imageBytes, err := base64.StdEncoding.DecodeString(sdResponse.Images[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	pr.UpdateOutput("Image generation completed")
	return imageBytes, nil
}
