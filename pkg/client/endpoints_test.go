package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func decodeBody(t *testing.T, r recorded) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(r.Body, &body); err != nil {
		t.Fatalf("decode body %q: %v", r.Body, err)
	}
	return body
}

// TestTextToImage tests the text-to-image body and defaults
func TestTextToImage(t *testing.T) {
	tests := []struct {
		name   string
		req    TextToImageRequest
		expect map[string]any
		absent []string
	}{
		{
			name: "defaults",
			req:  TextToImageRequest{ModelID: "m1", Prompt: "a cat"},
			expect: map[string]any{
				"model_id":        "m1",
				"prompt":          "a cat",
				"negative_prompt": "",
				"width":           float64(512),
				"height":          float64(512),
			},
			absent: []string{"steps", "cfg_scale", "sampler", "seed"},
		},
		{
			name: "explicit parameters",
			req: TextToImageRequest{
				ModelID:        "m1",
				Prompt:         "a cat",
				NegativePrompt: "blurry",
				Params: GenerationParams{
					Width:    Ptr(768),
					Height:   Ptr(1024),
					Steps:    Ptr(30),
					CFGScale: Ptr(7.5),
					Sampler:  "euler_a",
					Seed:     Ptr(int64(42)),
				},
			},
			expect: map[string]any{
				"negative_prompt": "blurry",
				"width":           float64(768),
				"height":          float64(1024),
				"steps":           float64(30),
				"cfg_scale":       7.5,
				"sampler":         "euler_a",
				"seed":            float64(42),
			},
		},
		{
			name: "extra overrides",
			req: TextToImageRequest{
				ModelID: "m1",
				Prompt:  "a cat",
				Params: GenerationParams{
					Steps: Ptr(30),
					Extra: map[string]any{"steps": 10, "clip_skip": 2},
				},
			},
			expect: map[string]any{
				"steps":     float64(10),
				"clip_skip": float64(2),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestService(t)
			fake.response = `{"code":0,"data":{"generateUuid":"task-1"}}`

			resp, err := c.TextToImage(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.TaskID() != "task-1" {
				t.Errorf("TaskID() = %q", resp.TaskID())
			}

			got := fake.last(t)
			if got.Path != "/api/v2/text-to-image" {
				t.Errorf("path = %s", got.Path)
			}
			body := decodeBody(t, got)
			for k, v := range tt.expect {
				if body[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, body[k], v)
				}
			}
			for _, k := range tt.absent {
				if _, ok := body[k]; ok {
					t.Errorf("body has unexpected key %s", k)
				}
			}
		})
	}
}

// TestImageToImage tests the image-to-image body for both image sources
func TestImageToImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, []byte("raw image"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		image     ImageSource
		wantImage string
	}{
		{
			name:      "file",
			image:     ImageFromFile(path),
			wantImage: base64.StdEncoding.EncodeToString([]byte("raw image")),
		},
		{
			name:      "base64",
			image:     ImageFromBase64("aGVsbG8="),
			wantImage: "aGVsbG8=",
		},
		{
			name:      "string naming a file",
			image:     ImageFromString(path),
			wantImage: base64.StdEncoding.EncodeToString([]byte("raw image")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestService(t)

			_, err := c.ImageToImage(context.Background(), ImageToImageRequest{
				ModelID: "m1",
				Prompt:  "repaint",
				Image:   tt.image,
				Params:  GenerationParams{Strength: Ptr(0.6)},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			body := decodeBody(t, fake.last(t))
			if body["image"] != tt.wantImage {
				t.Errorf("image = %v, want %v", body["image"], tt.wantImage)
			}
			if body["strength"] != 0.6 {
				t.Errorf("strength = %v", body["strength"])
			}
			if _, ok := body["width"]; ok {
				t.Error("image-to-image should not default width")
			}
		})
	}

	t.Run("unreadable file", func(t *testing.T) {
		c, fake := newTestService(t)
		_, err := c.ImageToImage(context.Background(), ImageToImageRequest{
			ModelID: "m1",
			Prompt:  "repaint",
			Image:   ImageFromFile(filepath.Join(t.TempDir(), "missing.png")),
		})
		if !IsInvalidArgument(err) {
			t.Errorf("expected InvalidArgumentError, got %v", err)
		}
		if fake.count() != 0 {
			t.Error("request was sent")
		}
	})
}

// TestQueryEndpoints tests the GET endpoints and their query parameters
func TestQueryEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *Client) (Response, error)
		wantPath  string
		wantQuery map[string]string
		noKeys    []string
	}{
		{
			name:      "task result",
			call:      func(c *Client) (Response, error) { return c.TaskResult(context.Background(), "task-9") },
			wantPath:  "/api/v2/task-result",
			wantQuery: map[string]string{"task_id": "task-9"},
		},
		{
			name:      "models filtered",
			call:      func(c *Client) (Response, error) { return c.Models(context.Background(), "lora") },
			wantPath:  "/api/v2/models",
			wantQuery: map[string]string{"type": "lora"},
		},
		{
			name:     "models unfiltered",
			call:     func(c *Client) (Response, error) { return c.Models(context.Background(), "") },
			wantPath: "/api/v2/models",
			noKeys:   []string{"type"},
		},
		{
			name:     "workflow templates",
			call:     func(c *Client) (Response, error) { return c.WorkflowTemplates(context.Background()) },
			wantPath: "/api/v2/workflow-templates",
		},
		{
			name:      "model presets",
			call:      func(c *Client) (Response, error) { return c.ModelPresets(context.Background(), "m7") },
			wantPath:  "/api/v2/model-presets",
			wantQuery: map[string]string{"model_id": "m7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestService(t)
			if _, err := tt.call(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := fake.last(t)
			if got.Method != "GET" {
				t.Errorf("method = %s", got.Method)
			}
			if got.Path != tt.wantPath {
				t.Errorf("path = %s, want %s", got.Path, tt.wantPath)
			}
			for k, v := range tt.wantQuery {
				if got.Query.Get(k) != v {
					t.Errorf("query %s = %q, want %q", k, got.Query.Get(k), v)
				}
			}
			for _, k := range tt.noKeys {
				if got.Query.Has(k) {
					t.Errorf("query has unexpected key %s", k)
				}
			}
		})
	}
}

// TestRunWorkflow tests the workflow body
func TestRunWorkflow(t *testing.T) {
	t.Run("with params", func(t *testing.T) {
		c, fake := newTestService(t)
		if _, err := c.RunWorkflow(context.Background(), "wf-1", map[string]any{"prompt": "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		body := decodeBody(t, fake.last(t))
		if body["workflow_id"] != "wf-1" {
			t.Errorf("workflow_id = %v", body["workflow_id"])
		}
		params, ok := body["params"].(map[string]any)
		if !ok || params["prompt"] != "x" {
			t.Errorf("params = %v", body["params"])
		}
	})

	t.Run("without params", func(t *testing.T) {
		c, fake := newTestService(t)
		if _, err := c.RunWorkflow(context.Background(), "wf-1", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		body := decodeBody(t, fake.last(t))
		if _, ok := body["params"]; ok {
			t.Errorf("params should be omitted: %v", body)
		}
	})
}

// TestStar3Alpha tests the Star-3 Alpha body
func TestStar3Alpha(t *testing.T) {
	c, fake := newTestService(t)
	_, err := c.Star3Alpha(context.Background(), Star3AlphaRequest{
		Prompt: "a fox",
		Params: GenerationParams{Steps: Ptr(8)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := fake.last(t)
	if got.Path != "/api/v2/star3-alpha" {
		t.Errorf("path = %s", got.Path)
	}
	body := decodeBody(t, got)
	if body["prompt"] != "a fox" || body["steps"] != float64(8) {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["model_id"]; ok {
		t.Error("star3-alpha should not send a model")
	}
}

// TestPing tests the connectivity check
func TestPing(t *testing.T) {
	c, fake := newTestService(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fake.last(t).Path; got != "/api/v2/workflow-templates" {
		t.Errorf("path = %s", got)
	}

	if err := c.Signer().Configure(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(context.Background()); !IsConfigurationError(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
