package client

import (
	"context"

	"github.com/lhelper/liblibai-client/pkg/auth"
)

// Endpoint paths relative to the base URL.
const (
	EndpointTextToImage       = "text-to-image"
	EndpointImageToImage      = "image-to-image"
	EndpointTaskResult        = "task-result"
	EndpointModels            = "models"
	EndpointWorkflowTemplates = "workflow-templates"
	EndpointRunWorkflow       = "run-workflow"
	EndpointModelPresets      = "model-presets"
	EndpointStar3Alpha        = "star3-alpha"
)

// Default text-to-image size.
const (
	DefaultWidth  = 512
	DefaultHeight = 512
)

// Ptr returns a pointer to v, for optional GenerationParams fields.
func Ptr[T any](v T) *T {
	return &v
}

// GenerationParams are optional sampling parameters. Nil fields are left
// out of the request; values are passed through without range checks.
// Extra entries are added last and may override any other key.
type GenerationParams struct {
	Width    *int
	Height   *int
	Steps    *int
	CFGScale *float64
	Sampler  string
	Seed     *int64
	Strength *float64
	Extra    map[string]any
}

func (p GenerationParams) apply(body map[string]any) {
	if p.Width != nil {
		body["width"] = *p.Width
	}
	if p.Height != nil {
		body["height"] = *p.Height
	}
	if p.Steps != nil {
		body["steps"] = *p.Steps
	}
	if p.CFGScale != nil {
		body["cfg_scale"] = *p.CFGScale
	}
	if p.Sampler != "" {
		body["sampler"] = p.Sampler
	}
	if p.Seed != nil {
		body["seed"] = *p.Seed
	}
	if p.Strength != nil {
		body["strength"] = *p.Strength
	}
	for k, v := range p.Extra {
		body[k] = v
	}
}

// TextToImageRequest describes a text-to-image job. Width and height
// default to 512 when unset.
type TextToImageRequest struct {
	ModelID        string
	Prompt         string
	NegativePrompt string
	Params         GenerationParams
}

// ImageToImageRequest describes an image-to-image job.
type ImageToImageRequest struct {
	ModelID        string
	Prompt         string
	NegativePrompt string
	Image          ImageSource
	Params         GenerationParams
}

// Star3AlphaRequest describes a job for the Star-3 Alpha fast preset,
// which needs no model.
type Star3AlphaRequest struct {
	Prompt         string
	NegativePrompt string
	Params         GenerationParams
}

// TextToImage submits a text-to-image job.
func (c *Client) TextToImage(ctx context.Context, r TextToImageRequest) (Response, error) {
	body := map[string]any{
		"model_id":        r.ModelID,
		"prompt":          r.Prompt,
		"negative_prompt": r.NegativePrompt,
		"width":           DefaultWidth,
		"height":          DefaultHeight,
	}
	r.Params.apply(body)
	return c.Request(ctx, MethodPost, EndpointTextToImage, nil, body)
}

// ImageToImage submits an image-to-image job. The image is embedded base64
// encoded under "image".
func (c *Client) ImageToImage(ctx context.Context, r ImageToImageRequest) (Response, error) {
	image, err := r.Image.Encode()
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"model_id":        r.ModelID,
		"prompt":          r.Prompt,
		"negative_prompt": r.NegativePrompt,
		"image":           image,
	}
	r.Params.apply(body)
	return c.Request(ctx, MethodPost, EndpointImageToImage, nil, body)
}

// TaskResult fetches the state of a generation task.
func (c *Client) TaskResult(ctx context.Context, taskID string) (Response, error) {
	return c.Request(ctx, MethodGet, EndpointTaskResult, auth.Params{"task_id": taskID}, nil)
}

// Models lists models, optionally filtered by type ("base", "lora", "vae",
// "controlnet", ...). An empty modelType lists all models.
func (c *Client) Models(ctx context.Context, modelType string) (Response, error) {
	params := auth.Params{}
	if modelType != "" {
		params["type"] = modelType
	}
	return c.Request(ctx, MethodGet, EndpointModels, params, nil)
}

// WorkflowTemplates lists the available workflow templates.
func (c *Client) WorkflowTemplates(ctx context.Context) (Response, error) {
	return c.Request(ctx, MethodGet, EndpointWorkflowTemplates, nil, nil)
}

// RunWorkflow starts a workflow. params is omitted when empty.
func (c *Client) RunWorkflow(ctx context.Context, workflowID string, params map[string]any) (Response, error) {
	body := map[string]any{
		"workflow_id": workflowID,
	}
	if len(params) > 0 {
		body["params"] = params
	}
	return c.Request(ctx, MethodPost, EndpointRunWorkflow, nil, body)
}

// ModelPresets fetches the presets of a model.
func (c *Client) ModelPresets(ctx context.Context, modelID string) (Response, error) {
	return c.Request(ctx, MethodGet, EndpointModelPresets, auth.Params{"model_id": modelID}, nil)
}

// Star3Alpha submits a job to the Star-3 Alpha fast preset.
func (c *Client) Star3Alpha(ctx context.Context, r Star3AlphaRequest) (Response, error) {
	body := map[string]any{
		"prompt":          r.Prompt,
		"negative_prompt": r.NegativePrompt,
	}
	r.Params.apply(body)
	return c.Request(ctx, MethodPost, EndpointStar3Alpha, nil, body)
}

// Ping checks that the keys are set and accepted by issuing a signed
// request for the workflow templates.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.WorkflowTemplates(ctx)
	return err
}
