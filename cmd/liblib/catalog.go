package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhelper/liblibai-client/pkg/api"
	"github.com/lhelper/liblibai-client/pkg/client"
)

// Models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models",
	Long: `Lists the available models, optionally filtered by type (base, lora,
vae, controlnet). With --search only matching models are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modelType, _ := cmd.Flags().GetString("type")
		search, _ := cmd.Flags().GetString("search")

		c, _, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.Models(ctx, modelType)
		if err != nil {
			return describeError("failed to list models", err)
		}
		if search == "" {
			return outputJSON(resp)
		}
		return outputJSON(searchModels(resp.Items(), search))
	},
}

func init() {
	modelsCmd.Flags().String("type", "", "Model type filter")
	modelsCmd.Flags().String("search", "", "Only show models whose name or description contains this text (case-insensitive)")
}

// searchModels keeps the models whose name or description contains query,
// ignoring case
func searchModels(models []client.Response, query string) []client.Response {
	query = strings.ToLower(query)
	out := make([]client.Response, 0, len(models))
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.String("name")), query) ||
			strings.Contains(strings.ToLower(m.String("description")), query) {
			out = append(out, m)
		}
	}
	return out
}

// Workflows command
var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List workflow templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.WorkflowTemplates(ctx)
		if err != nil {
			return describeError("failed to list workflow templates", err)
		}
		return outputJSON(resp)
	},
}

// Presets command
var presetsCmd = &cobra.Command{
	Use:   "presets [MODEL_ID]",
	Short: "Get model presets",
	Long:  "Fetches the presets of a model. The model defaults to default_model in the settings file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, s, err := newClient()
		if err != nil {
			return err
		}

		modelID := s.DefaultModel
		if len(args) == 1 {
			modelID = args[0]
		}
		if modelID == "" {
			return fmt.Errorf("model id is required (or set default_model in settings)")
		}

		ctx, cancel := requestContext()
		defer cancel()

		resp, err := c.ModelPresets(ctx, modelID)
		if err != nil {
			return describeError("failed to get model presets", err)
		}
		return outputJSON(resp)
	},
}

// OpenAPI command
var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the API description",
	Long:  "Prints the OpenAPI document describing the API, or its operations with --list.",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		if !list {
			_, err := os.Stdout.Write(api.Raw())
			return err
		}

		doc, err := api.Load(context.Background())
		if err != nil {
			return err
		}
		ops := api.Operations(doc)

		if jsonOutput {
			return outputJSON(ops)
		}

		base := api.BasePath(doc)
		for _, op := range ops {
			fmt.Printf("%-5s %s%s (%s)\n", op.Method, base, op.Path, op.ID)
		}
		return nil
	},
}

func init() {
	openapiCmd.Flags().Bool("list", false, "List operations instead of printing the document")
}
