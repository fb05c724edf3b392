package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lhelper/liblibai-client/pkg/client"
	"github.com/lhelper/liblibai-client/pkg/settings"
)

// addGenerationFlags registers the sampling flags shared by the generation
// commands. Unset flags fall back to ui_defaults in the settings file.
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().String("prompt", "", "Prompt (required)")
	cmd.Flags().String("negative", "", "Negative prompt")
	cmd.Flags().Int("width", 0, "Image width (default from settings)")
	cmd.Flags().Int("height", 0, "Image height (default from settings)")
	cmd.Flags().Int("steps", 0, "Sampling steps (default from settings)")
	cmd.Flags().Float64("cfg-scale", 0, "CFG scale (default from settings)")
	cmd.Flags().String("sampler", "", "Sampler (default from settings)")
	cmd.Flags().Int64("seed", -1, "Seed (-1 for random)")
	cmd.Flags().StringArray("param", nil, "Extra body parameter key=value, value parsed as JSON when possible (repeatable)")
	addWaitFlags(cmd)
}

func addWaitFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("wait", false, "Wait for the task to finish")
	cmd.Flags().Duration("wait-timeout", 10*time.Minute, "Maximum time to wait for the task")
	cmd.Flags().Duration("interval", 2*time.Second, "Initial polling interval")
}

// generationParams merges the sampling flags onto the settings defaults
func generationParams(cmd *cobra.Command, s settings.Settings) (client.GenerationParams, error) {
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	steps, _ := cmd.Flags().GetInt("steps")
	cfgScale, _ := cmd.Flags().GetFloat64("cfg-scale")
	sampler, _ := cmd.Flags().GetString("sampler")
	seed, _ := cmd.Flags().GetInt64("seed")
	rawParams, _ := cmd.Flags().GetStringArray("param")

	merged := s
	override := settings.Settings{
		UIDefaults: settings.UIDefaults{
			Width:    width,
			Height:   height,
			Steps:    steps,
			CFGScale: cfgScale,
			Sampler:  sampler,
		},
	}
	if err := settings.Merge(&merged, override); err != nil {
		return client.GenerationParams{}, err
	}

	ui := merged.UIDefaults
	p := client.GenerationParams{
		Width:    client.Ptr(ui.Width),
		Height:   client.Ptr(ui.Height),
		Steps:    client.Ptr(ui.Steps),
		CFGScale: client.Ptr(ui.CFGScale),
		Sampler:  ui.Sampler,
	}
	if seed >= 0 {
		p.Seed = client.Ptr(seed)
	}

	extra, err := parseExtraParams(rawParams)
	if err != nil {
		return client.GenerationParams{}, err
	}
	p.Extra = extra

	return p, nil
}

// parseExtraParams parses key=value pairs, decoding values that are valid
// JSON and keeping the rest as strings
func parseExtraParams(args []string) (map[string]any, error) {
	kv, err := parseKeyValues(args)
	if err != nil {
		return nil, err
	}
	if len(kv) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(kv))
	for k, v := range kv {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// finishTask prints a submitted task, polling it first when --wait is set
func finishTask(cmd *cobra.Command, c *client.Client, resp client.Response) error {
	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		return printTask(resp)
	}

	taskID := resp.TaskID()
	if taskID == "" {
		return fmt.Errorf("response carries no task id: %v", resp)
	}
	return waitAndPrint(cmd, c, taskID)
}

func waitAndPrint(cmd *cobra.Command, c *client.Client, taskID string) error {
	waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	opts := client.WaitOptions{Interval: interval}
	if !jsonOutput {
		opts.OnPoll = func(r client.Response) {
			fmt.Fprintf(os.Stderr, "Task %s: %s\n", taskID, r.Status())
		}
	}

	result, err := c.WaitForTask(ctx, taskID, opts)
	if err != nil {
		if result != nil {
			_ = printTask(result)
		}
		return describeError("task did not succeed", err)
	}
	return printTask(result)
}

// printTask prints the task fields of a response
func printTask(resp client.Response) error {
	if jsonOutput {
		return outputJSON(resp)
	}

	if id := resp.TaskID(); id != "" {
		fmt.Printf("Task ID: %s\n", id)
	}
	if status := resp.Status(); status != "" {
		fmt.Printf("Status: %s\n", status)
	}
	if img := resp.ImageURL(); img != "" {
		fmt.Printf("Image: %s\n", img)
	}
	if msg := resp.Message(); msg != "" {
		fmt.Printf("Message: %s\n", msg)
	}
	if created := resp.CreatedAt(); !created.IsZero() {
		fmt.Printf("Created: %s\n", created.Format(time.RFC3339))
	}
	return nil
}

// Text-to-image command
var txt2imgCmd = &cobra.Command{
	Use:   "txt2img",
	Short: "Generate an image from a prompt",
	Long: `Submits a text-to-image job. Sampling flags default to ui_defaults in the
settings file and the model to default_model.

Example:
  liblib txt2img --model=abc --prompt="a lighthouse at dusk" --steps=30 --wait`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, s, err := newClient()
		if err != nil {
			return err
		}

		prompt, _ := cmd.Flags().GetString("prompt")
		negative, _ := cmd.Flags().GetString("negative")
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = s.DefaultModel
		}
		if prompt == "" {
			return fmt.Errorf("--prompt is required")
		}
		if model == "" {
			return fmt.Errorf("--model is required (or set default_model in settings)")
		}

		params, err := generationParams(cmd, s)
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.TextToImage(ctx, client.TextToImageRequest{
			ModelID:        model,
			Prompt:         prompt,
			NegativePrompt: negative,
			Params:         params,
		})
		if err != nil {
			return describeError("text-to-image failed", err)
		}
		return finishTask(cmd, c, resp)
	},
}

func init() {
	txt2imgCmd.Flags().String("model", "", "Model ID (default from settings)")
	addGenerationFlags(txt2imgCmd)
}

// imageSource picks the input image from the img2img flags
func imageSource(cmd *cobra.Command) (client.ImageSource, error) {
	image, _ := cmd.Flags().GetString("image")
	imageFile, _ := cmd.Flags().GetString("image-file")
	imageBase64, _ := cmd.Flags().GetString("image-base64")

	set := 0
	for _, v := range []string{image, imageFile, imageBase64} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return client.ImageSource{}, fmt.Errorf("exactly one of --image, --image-file or --image-base64 is required")
	}

	switch {
	case imageFile != "":
		return client.ImageFromFile(imageFile), nil
	case imageBase64 != "":
		return client.ImageFromBase64(imageBase64), nil
	default:
		return client.ImageFromString(image), nil
	}
}

// Image-to-image command
var img2imgCmd = &cobra.Command{
	Use:   "img2img",
	Short: "Generate an image from an input image",
	Long: `Submits an image-to-image job.

--image accepts a path or base64 data; an existing file always wins. Use
--image-file or --image-base64 to choose explicitly.

Example:
  liblib img2img --model=abc --prompt="oil painting" --image-file=in.png --strength=0.6`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := imageSource(cmd)
		if err != nil {
			return err
		}

		c, s, err := newClient()
		if err != nil {
			return err
		}

		prompt, _ := cmd.Flags().GetString("prompt")
		negative, _ := cmd.Flags().GetString("negative")
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = s.DefaultModel
		}
		if prompt == "" {
			return fmt.Errorf("--prompt is required")
		}
		if model == "" {
			return fmt.Errorf("--model is required (or set default_model in settings)")
		}

		params, err := generationParams(cmd, s)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("strength") {
			strength, _ := cmd.Flags().GetFloat64("strength")
			params.Strength = client.Ptr(strength)
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.ImageToImage(ctx, client.ImageToImageRequest{
			ModelID:        model,
			Prompt:         prompt,
			NegativePrompt: negative,
			Image:          src,
			Params:         params,
		})
		if err != nil {
			return describeError("image-to-image failed", err)
		}
		return finishTask(cmd, c, resp)
	},
}

func init() {
	img2imgCmd.Flags().String("model", "", "Model ID (default from settings)")
	img2imgCmd.Flags().String("image", "", "Input image path or base64 data")
	img2imgCmd.Flags().String("image-file", "", "Input image path")
	img2imgCmd.Flags().String("image-base64", "", "Input image as base64 data")
	img2imgCmd.Flags().Float64("strength", 0.75, "Denoising strength")
	addGenerationFlags(img2imgCmd)
}

// Star-3 Alpha command
var star3Cmd = &cobra.Command{
	Use:   "star3",
	Short: "Generate with the Star-3 Alpha preset",
	Long:  "Submits a job to the Star-3 Alpha fast preset, which needs no model.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, s, err := newClient()
		if err != nil {
			return err
		}

		prompt, _ := cmd.Flags().GetString("prompt")
		negative, _ := cmd.Flags().GetString("negative")
		if prompt == "" {
			return fmt.Errorf("--prompt is required")
		}

		params, err := generationParams(cmd, s)
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.Star3Alpha(ctx, client.Star3AlphaRequest{
			Prompt:         prompt,
			NegativePrompt: negative,
			Params:         params,
		})
		if err != nil {
			return describeError("star-3 alpha failed", err)
		}
		return finishTask(cmd, c, resp)
	},
}

func init() {
	addGenerationFlags(star3Cmd)
}

// Task command
var taskCmd = &cobra.Command{
	Use:   "task TASK_ID",
	Short: "Get a task result",
	Long:  "Fetches the state of a generation task, optionally waiting until it finishes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			return waitAndPrint(cmd, c, args[0])
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.TaskResult(ctx, args[0])
		if err != nil {
			return describeError("failed to get task result", err)
		}
		return printTask(resp)
	},
}

func init() {
	addWaitFlags(taskCmd)
}

// Run workflow command
var runWorkflowCmd = &cobra.Command{
	Use:   "run-workflow [WORKFLOW_ID]",
	Short: "Run a workflow",
	Long: `Starts a workflow. The workflow defaults to default_workflow in the
settings file.

Example:
  liblib run-workflow wf-123 --params='{"prompt":"a cat"}' --param=seed=42`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, s, err := newClient()
		if err != nil {
			return err
		}

		workflowID := s.DefaultWorkflow
		if len(args) == 1 {
			workflowID = args[0]
		}
		if workflowID == "" {
			return fmt.Errorf("workflow id is required (or set default_workflow in settings)")
		}

		raw, _ := cmd.Flags().GetString("params")
		rawParams, _ := cmd.Flags().GetStringArray("param")
		params, err := workflowParams(raw, rawParams)
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.RunWorkflow(ctx, workflowID, params)
		if err != nil {
			return describeError("failed to run workflow", err)
		}
		return finishTask(cmd, c, resp)
	},
}

// workflowParams decodes the --params JSON object and applies each
// --param key=value on top
func workflowParams(raw string, rawParams []string) (map[string]any, error) {
	var params map[string]any
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("invalid --params (want a JSON object): %w", err)
		}
		if params == nil {
			return nil, fmt.Errorf("invalid --params: want a JSON object, got %s", raw)
		}
	} else {
		params = map[string]any{}
	}

	extra, err := parseExtraParams(rawParams)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		params[k] = v
	}
	return params, nil
}

func init() {
	runWorkflowCmd.Flags().String("params", "", "Workflow parameters as a JSON object")
	runWorkflowCmd.Flags().StringArray("param", nil, "Workflow parameter key=value (repeatable)")
	addWaitFlags(runWorkflowCmd)
}
