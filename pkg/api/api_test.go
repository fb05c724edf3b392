package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lhelper/liblibai-client/pkg/auth"
)

const testSecret = "SK"

func loadDoc(t *testing.T) *Validator {
	t.Helper()
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return NewValidator(doc, testSecret)
}

func signedURL(t *testing.T, path string, params auth.Params) string {
	t.Helper()
	signer := auth.NewSigner(
		auth.Credentials{AccessKey: "AK", SecretKey: testSecret},
		auth.WithClock(func() time.Time { return time.Unix(1625097600, 0) }),
	)
	signed, err := signer.Sign(params)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return "http://example.test/api/v2/" + path + "?" + signed.Values().Encode()
}

// TestLoad tests that the embedded document parses and validates
func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := BasePath(doc); got != "/api/v2" {
		t.Errorf("BasePath() = %q, want %q", got, "/api/v2")
	}
	if len(Raw()) == 0 {
		t.Error("Raw() returned no data")
	}
}

// TestRawReturnsCopy tests that callers cannot modify the embedded document
func TestRawReturnsCopy(t *testing.T) {
	raw := Raw()
	raw[0] = '#'
	if Raw()[0] == '#' {
		t.Error("Raw() exposes the embedded buffer")
	}
}

// TestOperations tests the operation listing
func TestOperations(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []Operation{
		{Method: http.MethodPost, Path: "/image-to-image", ID: "imageToImage"},
		{Method: http.MethodGet, Path: "/model-presets", ID: "modelPresets"},
		{Method: http.MethodGet, Path: "/models", ID: "models"},
		{Method: http.MethodPost, Path: "/run-workflow", ID: "runWorkflow"},
		{Method: http.MethodPost, Path: "/star3-alpha", ID: "star3Alpha"},
		{Method: http.MethodGet, Path: "/task-result", ID: "taskResult"},
		{Method: http.MethodPost, Path: "/text-to-image", ID: "textToImage"},
		{Method: http.MethodGet, Path: "/workflow-templates", ID: "workflowTemplates"},
	}

	got := Operations(doc)
	if len(got) != len(want) {
		t.Fatalf("Operations() returned %d operations, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Operations()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// TestValidate tests request validation
func TestValidate(t *testing.T) {
	v := loadDoc(t)

	tests := []struct {
		name    string
		method  string
		url     func(t *testing.T) string
		body    string
		ctype   string
		wantErr error
		anyErr  bool
	}{
		{
			name:   "signed get",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return signedURL(t, "models", auth.Params{"type": "lora"})
			},
		},
		{
			name:   "signed post",
			method: http.MethodPost,
			url: func(t *testing.T) string {
				return signedURL(t, "text-to-image", nil)
			},
			body:  `{"model_id":"m","prompt":"a cat","width":512}`,
			ctype: "application/json",
		},
		{
			name:   "unknown route",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return signedURL(t, "unknown", nil)
			},
			wantErr: ErrRouteNotFound,
		},
		{
			name:   "outside base path",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return strings.Replace(signedURL(t, "models", nil), "/api/v2/", "/api/v1/", 1)
			},
			wantErr: ErrRouteNotFound,
		},
		{
			name:   "wrong method",
			method: http.MethodPost,
			url: func(t *testing.T) string {
				return signedURL(t, "models", nil)
			},
			body:    `{}`,
			ctype:   "application/json",
			wantErr: ErrMethodNotAllowed,
		},
		{
			name:   "missing required query parameter",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return signedURL(t, "task-result", nil)
			},
			anyErr: true,
		},
		{
			name:   "missing required body field",
			method: http.MethodPost,
			url: func(t *testing.T) string {
				return signedURL(t, "run-workflow", nil)
			},
			body:   `{"params":{}}`,
			ctype:  "application/json",
			anyErr: true,
		},
		{
			name:   "tampered query",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return strings.Replace(signedURL(t, "models", auth.Params{"type": "lora"}), "type=lora", "type=vae", 1)
			},
			wantErr: auth.ErrSignatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			var req *http.Request
			if body != nil {
				req = httptest.NewRequest(tt.method, tt.url(t), body)
			} else {
				req = httptest.NewRequest(tt.method, tt.url(t), nil)
			}
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}

			err := v.Validate(req)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("Validate() expected error, got nil")
				}
			default:
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			}
		})
	}
}

// TestValidateSkipsMultipartBody tests that multipart uploads are checked by
// query and signature only
func TestValidateSkipsMultipartBody(t *testing.T) {
	v := loadDoc(t)

	req := httptest.NewRequest(http.MethodPost, signedURL(t, "image-to-image", nil), strings.NewReader("--x--\r\n"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	if err := v.Validate(req); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

// TestMiddleware tests the status codes returned for rejected requests
func TestMiddleware(t *testing.T) {
	v := loadDoc(t)
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0}`))
	}))

	badSignature := func(t *testing.T) string {
		u, err := url.Parse(signedURL(t, "workflow-templates", nil))
		if err != nil {
			t.Fatal(err)
		}
		q := u.Query()
		q.Set(auth.ParamSignature, "bogus")
		u.RawQuery = q.Encode()
		return u.String()
	}

	tests := []struct {
		name       string
		method     string
		url        func(t *testing.T) string
		wantStatus int
	}{
		{
			name:   "accepted",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return signedURL(t, "workflow-templates", nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "not found",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return signedURL(t, "nope", nil)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "method not allowed",
			method: http.MethodDelete,
			url: func(t *testing.T) string {
				return signedURL(t, "models", nil)
			},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "bad signature",
			method:     http.MethodGet,
			url:        badSignature,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "unsigned",
			method: http.MethodGet,
			url: func(t *testing.T) string {
				return "http://example.test/api/v2/models"
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.url(t), nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				return
			}

			var body struct {
				Code int    `json:"code"`
				Msg  string `json:"msg"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Code != tt.wantStatus || body.Msg == "" {
				t.Errorf("error body = %+v", body)
			}
		})
	}
}
