package openapi

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
)

// Document is a loaded and validated OpenAPI description together with the
// raw bytes served to Swagger UI.
type Document struct {
	Spec *openapi3.T
	raw  []byte
}

// Load reads the document at path and validates it. A document that does not
// validate is an error so a broken contract never ships.
func Load(ctx context.Context, path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openapi document: %w", err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return &Document{Spec: spec, raw: raw}, nil
}

// HasOperation reports whether the document describes method on path.
func (d *Document) HasOperation(method, path string) bool {
	item := d.Spec.Paths.Find(path)
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}

func (d *Document) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(d.raw)
}
