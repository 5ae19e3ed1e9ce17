package cmd

import (
	ahttp "AskArchive/backend/go/pkg/http"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// apiError 是服务返回的非 2xx 响应。
type apiError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *apiError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

type apiClient struct {
	base   string
	token  string
	user   string
	client *ahttp.Client
}

func newAPIClient(opts *options) (*apiClient, error) {
	if opts.token == "" && opts.user == "" {
		return nil, fmt.Errorf("either --token or --user is required")
	}
	return &apiClient{
		base:   strings.TrimRight(opts.server, "/") + "/api/v1",
		token:  opts.token,
		user:   opts.user,
		client: ahttp.NewPlainClient(opts.timeout),
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (gjson.Result, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return gjson.Result{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set("X-User-ID", c.user)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &apiError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	res := gjson.ParseBytes(data)
	if resp.StatusCode >= http.StatusBadRequest {
		return res, &apiError{
			StatusCode: resp.StatusCode,
			Kind:       res.Get("kind").String(),
			Message:    res.Get("message").String(),
		}
	}
	return res, nil
}

func (c *apiClient) postJSON(ctx context.Context, path string, payload any) (gjson.Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, err
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json")
}

// printJSON 缩进输出原始响应。
func printJSON(w io.Writer, res gjson.Result) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(res.Raw), "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
