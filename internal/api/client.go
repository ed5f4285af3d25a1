package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
	"github.com/you112ef/Sky-CASA/internal/casa/storage/sqlite"
	"github.com/you112ef/Sky-CASA/internal/httputil"
)

// Client talks to a casa API server.
type Client struct {
	BaseURL string
	HTTP    httputil.HTTPClient
}

// NewClient returns a client for baseURL. A nil hc uses http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// Analyze submits in and returns the result. A failed analysis is returned
// together with its error.
func (c *Client) Analyze(ctx context.Context, in *pipeline.Input) (*pipeline.AnalysisResult, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/analyses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		defer resp.Body.Close()
		var res pipeline.AnalysisResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &res, res.Err()
	}
	var res pipeline.AnalysisResult
	if err := httputil.DecodeJSON(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetAnalysis fetches a stored result.
func (c *Client) GetAnalysis(ctx context.Context, id string) (*pipeline.AnalysisResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/analyses/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var res pipeline.AnalysisResult
	if err := httputil.DecodeJSON(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListAnalyses lists the newest stored runs.
func (c *Client) ListAnalyses(ctx context.Context, limit int) ([]*sqlite.RunSummary, error) {
	path := "/api/analyses"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var runs []*sqlite.RunSummary
	if err := httputil.DecodeJSON(resp, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Report fetches the text report of a stored run. An empty unit uses the
// server default.
func (c *Client) Report(ctx context.Context, id, unit string) (string, error) {
	path := "/api/analyses/" + url.PathEscape(id) + "/report"
	if unit != "" {
		path += "?units=" + url.QueryEscape(unit)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := httputil.CheckStatus(resp); err != nil {
		return "", err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(b), nil
}

// DeleteAnalysis removes a stored run.
func (c *Client) DeleteAnalysis(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/analyses/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return httputil.CheckStatus(resp)
}
