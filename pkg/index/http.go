package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultValuesPath is the gjson path template used when HTTPIndex.ValuesPath is empty.
const DefaultValuesPath = "axes.{{.Dimension}}"

// HTTPIndex queries a REST front end to the FDB list API.
//
// Every filter entry is sent as a query parameter and the requested dimension
// as the "axis" parameter:
//
//	GET <URL>?axis=step&date=20250101&model=icon-ch1-eps&number=0&...
//
// The distinct values are extracted from the JSON response with a gjson path.
// The path is a text/template; {{.Dimension}} expands to the requested
// dimension. Values may be JSON strings or numbers.
//
// Example response for the default path "axes.{{.Dimension}}":
//
//	{"axes": {"step": ["0", "1", "2"]}}
type HTTPIndex struct {
	// URL is the list endpoint (required).
	URL string

	// ValuesPath is the gjson path template. Defaults to DefaultValuesPath.
	ValuesPath string

	// Headers are extra HTTP headers, e.g. an Authorization token.
	Headers map[string]string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (h *HTTPIndex) Name() string { return "http" }

// ListValues implements Index.
func (h *HTTPIndex) ListValues(ctx context.Context, dimension string, filter Filter) (Result, error) {
	if h.URL == "" {
		return nil, errors.New("http index: URL is required")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(h.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	q := u.Query()
	q.Set("axis", dimension)
	for _, k := range filter.Keys() {
		v, _ := filter.Get(k)
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	path, err := renderPath(h.valuesPath(), dimension)
	if err != nil {
		return nil, fmt.Errorf("render values path: %w", err)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(respBody) {
		return nil, errors.New("response is not valid JSON")
	}

	values := gjson.GetBytes(respBody, path)
	if !values.Exists() {
		return Result{}, nil
	}

	set := make(ValueSet)
	for _, v := range values.Array() {
		set[v.String()] = struct{}{}
	}
	if len(set) == 0 {
		return Result{}, nil
	}
	return Result{dimension: set}, nil
}

func (h *HTTPIndex) valuesPath() string {
	if h.ValuesPath == "" {
		return DefaultValuesPath
	}
	return h.ValuesPath
}

func renderPath(tmplStr, dimension string) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{"Dimension": dimension}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
