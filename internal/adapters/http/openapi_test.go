package http_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/neighborhelper/internal/core/usecases"
)

// loadOpenAPISpec finds api/openapi.yaml above the test directory and parses it.
func loadOpenAPISpec(t *testing.T) *openapi3.T {
	t.Helper()
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if data, err := os.ReadFile(candidate); err == nil {
			loader := &openapi3.Loader{IsExternalRefsAllowed: false}
			spec, err := loader.LoadFromData(data)
			if err != nil {
				t.Fatalf("failed to parse OpenAPI spec: %v", err)
			}
			return spec
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("could not find api/openapi.yaml")
	return nil
}

func TestOpenAPISpec_Valid(t *testing.T) {
	spec := loadOpenAPISpec(t)
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	for _, schema := range []string{"GeoPoint", "Marker", "Post", "Match", "TrackingState", "SessionView", "APIError", "Pagination"} {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

func TestOpenAPISpec_Info(t *testing.T) {
	spec := loadOpenAPISpec(t)

	if spec.Info.Title != "Neighborhelper API" {
		t.Errorf("expected title 'Neighborhelper API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}
}

var fiberParam = regexp.MustCompile(`:(\w+)`)

// Every REST route the router registers must be documented with its method.
func TestOpenAPISpec_CoversRoutes(t *testing.T) {
	spec := loadOpenAPISpec(t)
	env := newEnv(t, usecases.SessionOptions{})

	for _, r := range env.app.GetRoutes(true) {
		if !strings.HasPrefix(r.Path, "/v1/") && r.Path != "/graphql" {
			continue
		}
		if r.Method == "HEAD" || r.Method == "USE" {
			continue
		}
		path := fiberParam.ReplaceAllString(r.Path, "{$1}")
		item := spec.Paths.Find(path)
		if item == nil {
			t.Errorf("route %s %s not documented", r.Method, path)
			continue
		}
		if item.GetOperation(r.Method) == nil {
			t.Errorf("route %s %s documented without that method", r.Method, path)
		}
	}
}
