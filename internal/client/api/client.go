package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reverc/internal/client/display"
	"reverc/internal/server/core"
)

// HealthResponse mirrors GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Time    int64  `json:"time"`
	Storage string `json:"storage"`
	Queue   int    `json:"queue"`
}

// StatusError carries the decoded error body of a failed request
type StatusError struct {
	StatusCode int
	Body       core.ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Body.Code != "" {
		return fmt.Sprintf("request failed with status %d (%s)", e.StatusCode, e.Body.Code)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

type Client struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
	Verbose    bool
	Out        io.Writer
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			// live moves are bounded server side, admin publish is not
			Timeout: 3 * time.Minute,
		},
		Out: os.Stdout,
	}
}

func (c *Client) SetVerbose(v bool) {
	c.Verbose = v
}

// SetBaseURL updates the API base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.BaseURL = strings.TrimRight(url, "/")
}

func (c *Client) SetToken(token string) {
	c.AuthToken = token
}

// request is one prepared call
type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	echo        string // shown instead of body when set
}

func jsonRequest(method, path string, v any) (request, error) {
	r := request{method: method, path: path}
	if v == nil {
		return r, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return r, err
	}
	r.body = data
	r.contentType = "application/json"
	return r, nil
}

// sourceRequest builds a multipart upload with the "file" field
func sourceRequest(method, path, filename string, source []byte) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return request{}, err
	}
	if _, err := part.Write(source); err != nil {
		return request{}, err
	}
	if err := w.Close(); err != nil {
		return request{}, err
	}
	return request{
		method:      method,
		path:        path,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
		echo:        fmt.Sprintf("<%s, %d bytes>", filepath.Base(filename), len(source)),
	}, nil
}

func (c *Client) do(r request, result any) error {
	var bodyReader io.Reader
	if r.body != nil {
		bodyReader = bytes.NewReader(r.body)
	}

	req, err := http.NewRequest(r.method, c.BaseURL+r.path, bodyReader)
	if err != nil {
		return err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	fmt.Fprintf(c.Out, "\n%s[API] %s %s%s\n", display.Blue, r.method, r.path, display.Reset)
	switch {
	case r.echo != "":
		fmt.Fprintf(c.Out, "%s%s%s\n", display.Blue, r.echo, display.Reset)
	case len(r.body) > 0 && c.Verbose:
		fmt.Fprintf(c.Out, "%sRequest Body:%s\n%s\n", display.Cyan, display.Reset, display.Indent(r.body))
	case len(r.body) > 0:
		fmt.Fprintf(c.Out, "%s%s%s\n", display.Blue, r.body, display.Reset)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		fmt.Fprintf(c.Out, "%s[ERROR] %s%s\n", display.Red, err.Error(), display.Reset)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	statusColor := display.Green
	if resp.StatusCode >= 400 {
		statusColor = display.Red
	}
	fmt.Fprintf(c.Out, "%s[%d %s]%s\n", statusColor, resp.StatusCode, http.StatusText(resp.StatusCode), display.Reset)

	if c.Verbose && len(respBody) > 0 {
		fmt.Fprintf(c.Out, "%sResponse Body:%s\n%s\n", display.Cyan, display.Reset, display.Indent(respBody))
	}

	if resp.StatusCode >= 400 {
		se := &StatusError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, &se.Body); err == nil {
			if !c.Verbose {
				fmt.Fprintf(c.Out, "%sError: %s%s\n", display.Red, se.Body.Error, display.Reset)
				if se.Body.Code != "" {
					fmt.Fprintf(c.Out, "%sCode: %s%s\n", display.Red, se.Body.Code, display.Reset)
				}
				if se.Body.Details != "" {
					fmt.Fprintf(c.Out, "%sDetails: %s%s\n", display.Red, se.Body.Details, display.Reset)
				}
			}
		} else if !c.Verbose {
			fmt.Fprintf(c.Out, "%s%s%s\n", display.Red, string(respBody), display.Reset)
		}
		return se
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			fmt.Fprintf(c.Out, "%sResponse parse error: %s%s\n", display.Red, err.Error(), display.Reset)
			fmt.Fprintf(c.Out, "%sRaw response: %s%s\n", display.Green, string(respBody), display.Reset)
			return err
		}
	}
	return nil
}

func (c *Client) doJSON(method, path string, body, result any) error {
	r, err := jsonRequest(method, path, body)
	if err != nil {
		return err
	}
	return c.do(r, result)
}

// API Methods

func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doJSON(http.MethodGet, "/health", nil, &resp)
	return &resp, err
}

// Upload sends source as a candidate or cache artifact
func (c *Client) Upload(class, filename string, source []byte) (*core.UploadResponse, error) {
	r, err := sourceRequest(http.MethodPost, "/api/upload/"+class, filename, source)
	if err != nil {
		return nil, err
	}
	var resp core.UploadResponse
	err = c.do(r, &resp)
	return &resp, err
}

// Status reads a pipeline status; target is class/id or archive/group/id
func (c *Client) Status(target string) (*core.StatusResponse, error) {
	var resp core.StatusResponse
	err := c.doJSON(http.MethodGet, "/api/status/"+target, nil, &resp)
	return &resp, err
}

func (c *Client) Cleanup(class, id string, codeOnly bool) error {
	path := fmt.Sprintf("/api/cleanup/%s/%s", class, id)
	if codeOnly {
		path += "/code"
	}
	return c.doJSON(http.MethodDelete, path, nil, nil)
}

func (c *Client) ArchiveExists(group, id string) (bool, error) {
	var resp core.ExistsResponse
	err := c.doJSON(http.MethodGet, fmt.Sprintf("/api/archive/%s/%s", group, id), nil, &resp)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return resp.Exists, err
}

// Move asks an artifact for a move; target is class/id or archive/group/id
func (c *Client) Move(target string, req core.MoveRequest) (*core.MoveResponse, error) {
	path := "/api/move/custom/" + target
	if strings.HasPrefix(target, "archive/") {
		path = "/api/move/" + target
	}
	var resp core.MoveResponse
	err := c.doJSON(http.MethodPost, path, req, &resp)
	return &resp, err
}

func (c *Client) AIMove(aiID string, req core.AIMoveRequest) (*core.AIMoveResponse, error) {
	var resp core.AIMoveResponse
	err := c.doJSON(http.MethodPost, "/api/move/ai/"+aiID, req, &resp)
	return &resp, err
}

func (c *Client) Stats() (*core.StatsResponse, error) {
	var resp core.StatsResponse
	err := c.doJSON(http.MethodGet, "/api/stats", nil, &resp)
	return &resp, err
}

func (c *Client) IncrementStats() (*core.StatsResponse, error) {
	var resp core.StatsResponse
	err := c.doJSON(http.MethodPost, "/api/stats/increment", nil, &resp)
	return &resp, err
}

// AdminLogin stores the issued token on success
func (c *Client) AdminLogin(password string) (*core.TokenResponse, error) {
	var resp core.TokenResponse
	if err := c.doJSON(http.MethodPost, "/api/admin/login", core.AdminLoginRequest{Password: password}, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// PublishArchive stores curated source and returns the terminal status
func (c *Client) PublishArchive(group, id, filename string, source []byte) (*core.StatusResponse, error) {
	r, err := sourceRequest(http.MethodPost, fmt.Sprintf("/api/admin/archive/%s/%s", group, id), filename, source)
	if err != nil {
		return nil, err
	}
	var resp core.StatusResponse
	err = c.do(r, &resp)
	return &resp, err
}

// RawRequest performs a raw HTTP request for debugging purposes
func (c *Client) RawRequest(method, path string, body string) error {
	r := request{method: method, path: path}
	if body != "" {
		r.body = []byte(body)
		if json.Valid(r.body) {
			r.contentType = "application/json"
		}
	}
	return c.do(r, nil)
}
