package http

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

var (
	openAPIJSONOnce sync.Once
	openAPIJSON     []byte
	openAPIJSONErr  error
)

// buildOpenAPIJSON translates the embedded YAML document to JSON once, the
// way original_source/server.py's custom_openapi() builds its schema once
// and caches it on app.openapi_schema.
func buildOpenAPIJSON() ([]byte, error) {
	openAPIJSONOnce.Do(func() {
		var doc interface{}
		if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
			openAPIJSONErr = err
			return
		}
		openAPIJSON, openAPIJSONErr = json.Marshal(doc)
	})
	return openAPIJSON, openAPIJSONErr
}

func openAPIHandler(w http.ResponseWriter, r *http.Request) {
	body, err := buildOpenAPIJSON()
	if err != nil {
		http.Error(w, "failed to build openapi document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
