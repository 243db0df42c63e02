package index

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// New creates an index connector based on kind and a generic configuration map.
//
// Supported kinds:
//   - "http": HTTPIndex (config: url, valuesPath, headers as a JSON object)
//   - "fdb-list": ListIndex (config: binary)
//   - "memory": empty MemoryIndex
//
// client is used by the http kind and may be nil.
func New(kind string, config map[string]string, client *http.Client) (Index, error) {
	switch kind {
	case "http":
		return newHTTP(config, client)
	case "fdb-list":
		return &ListIndex{Binary: config["binary"]}, nil
	case "memory":
		return NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unknown index kind: %s (must be http, fdb-list, or memory)", kind)
	}
}

func newHTTP(config map[string]string, client *http.Client) (Index, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http index requires 'url' config")
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	path := config["valuesPath"]
	if path != "" && strings.Count(path, "{{") != strings.Count(path, "}}") {
		return nil, fmt.Errorf("invalid 'valuesPath' template %q", path)
	}

	return &HTTPIndex{
		URL:        url,
		ValuesPath: path,
		Headers:    headers,
		HTTPClient: client,
	}, nil
}
