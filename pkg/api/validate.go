package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"k8s.io/klog/v2"

	"github.com/lhelper/liblibai-client/pkg/auth"
)

// Validation errors
var (
	ErrRouteNotFound    = errors.New("route not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Validator checks requests against the OpenAPI document and verifies
// their signature with a fixed secret key.
type Validator struct {
	doc      *openapi3.T
	secret   string
	basePath string
}

// NewValidator returns a Validator for doc. Requests are expected under the
// path of the document's first server URL.
func NewValidator(doc *openapi3.T, secret string) *Validator {
	return &Validator{
		doc:      doc,
		secret:   secret,
		basePath: BasePath(doc),
	}
}

// Validate checks r. It returns an error wrapping ErrRouteNotFound or
// ErrMethodNotAllowed for unknown operations, auth.ErrSignatureMismatch or
// auth.ErrMissingParameter for authentication failures and an
// openapi3filter error for invalid parameters or bodies. The request body
// remains readable afterwards.
func (v *Validator) Validate(r *http.Request) error {
	route, err := v.findRoute(r)
	if err != nil {
		return err
	}

	opts := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}
	// Multipart uploads carry a JSON part and raw files the document does
	// not describe; only the query is checked for them.
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); strings.HasPrefix(mediaType, "multipart/") {
		opts.ExcludeRequestBody = true
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: map[string]string{},
		Route:      route,
		Options:    opts,
	}
	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		return err
	}

	return auth.Verify(r.URL.Query(), v.secret)
}

func (v *Validator) findRoute(r *http.Request) (*routers.Route, error) {
	path := r.URL.Path
	if v.basePath != "" {
		if !strings.HasPrefix(path, v.basePath+"/") {
			return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
		}
		path = strings.TrimPrefix(path, v.basePath)
	}

	item := v.doc.Paths.Find(path)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
	}
	op := item.GetOperation(r.Method)
	if op == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, r.Method, path)
	}

	return &routers.Route{
		Spec:      v.doc,
		Path:      path,
		PathItem:  item,
		Method:    r.Method,
		Operation: op,
	}, nil
}

// Middleware rejects invalid requests before they reach next. Unknown
// routes get 404, unsupported methods 405, signature failures 401 and any
// other validation failure 400, each with a JSON body {"code", "msg"}.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := v.Validate(r)
		if err == nil {
			next.ServeHTTP(w, r)
			return
		}

		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrRouteNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrMethodNotAllowed):
			status = http.StatusMethodNotAllowed
		case errors.Is(err, auth.ErrSignatureMismatch), errors.Is(err, auth.ErrMissingParameter):
			status = http.StatusUnauthorized
		}

		klog.V(2).InfoS("Rejected request", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": status,
			"msg":  err.Error(),
		})
	})
}
