// Package client provides a signed client for the liblibAI image generation
// API.
//
// Every call is authenticated by an auth.Signer, which adds AccessKey,
// SignatureNonce, Timestamp and Signature query parameters. The client
// handles common concerns like:
//   - Endpoint resolution against the API root
//   - JSON and multipart request bodies
//   - Proxy selection shared by HTTP and HTTPS traffic
//   - Type-safe error handling
//   - Context-aware operations with a fixed per-request timeout
//
// Requests are never retried; failures surface immediately.
//
// # Basic Usage
//
//	signer := auth.NewSigner(auth.Credentials{
//	    AccessKey: os.Getenv("LIBLIB_ACCESS_KEY"),
//	    SecretKey: os.Getenv("LIBLIB_SECRET_KEY"),
//	})
//	c, err := client.New(signer, client.WithProxy("http://127.0.0.1:7890"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := c.TextToImage(ctx, client.TextToImageRequest{
//	    ModelID: "model-id",
//	    Prompt:  "a lighthouse at dusk",
//	    Params:  client.GenerationParams{Steps: client.Ptr(30)},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := c.WaitForTask(ctx, resp.TaskID(), client.WaitOptions{})
//
// # Error Handling
//
// Three kinds of errors are returned:
//
//	resp, err := c.Models(ctx, "lora")
//	if err != nil {
//	    switch {
//	    case client.IsConfigurationError(err):
//	        // API keys are missing; ask the user for them
//	    case client.IsInvalidArgument(err):
//	        // Programming error in the caller
//	    case client.IsAPIError(err):
//	        // Transport failure or non-2xx status
//	    }
//	}
//
// # Image Inputs
//
// Image-to-image requests take an explicit ImageSource. ImageFromString
// keeps the plugin's historical rule: a string naming an existing regular
// file is read from disk, anything else is sent as base64 data.
package client
