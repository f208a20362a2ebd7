// Package nextcloud is a small WebDAV client for the Nextcloud files API.
package nextcloud

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/metrics"
)

const (
	methodPropfind = "PROPFIND"
	methodSearch   = "SEARCH"
	methodMkcol    = "MKCOL"
)

// Config holds client configuration.
type Config struct {
	URL        string
	Username   string
	Password   string
	ChunkSize  int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to a single Nextcloud account over WebDAV.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	chunkSize  int
	httpClient *http.Client
	logger     *logrus.Logger
	tracer     trace.Tracer
}

// New creates a new client.
func New(cfg Config, logger *logrus.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse nextcloud url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("nextcloud url %q must be absolute", cfg.URL)
	}
	if cfg.Username == "" {
		return nil, errors.New("nextcloud username is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5 * 1024 * 1024
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    base,
		username:   cfg.Username,
		password:   cfg.Password,
		chunkSize:  cfg.ChunkSize,
		httpClient: httpClient,
		logger:     logger,
		tracer:     otel.Tracer("nextcloud-files-bot"),
	}, nil
}

// filesRoot is the unescaped path of the user's files collection.
func (c *Client) filesRoot() string {
	return c.baseURL.Path + "/remote.php/dav/files/" + c.username + "/"
}

// fileURL returns the WebDAV URL of a node given its user path.
func (c *Client) fileURL(userPath string) string {
	u := *c.baseURL
	u.Path = c.filesRoot() + strings.TrimPrefix(userPath, "/")
	u.RawPath = ""
	return u.String()
}

func (c *Client) searchURL() string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/remote.php/dav/"
	return u.String()
}

// do sends a request and returns the response when the status is 2xx or
// 207. Any other status is turned into an *Error and the body is closed.
func (c *Client) do(ctx context.Context, method, target, userPath string, body io.Reader, size int64, header http.Header) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, "webdav."+strings.ToLower(method))
	defer span.End()
	span.SetAttributes(
		attribute.String("webdav.method", method),
		attribute.String("webdav.path", userPath),
	)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("OCS-APIRequest", "true")
	if size > 0 {
		req.ContentLength = size
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordWebDAV(method, 0, time.Since(start))
		span.RecordError(err)
		return nil, fmt.Errorf("nextcloud: %s %q: %w", method, userPath, err)
	}
	metrics.RecordWebDAV(method, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	c.logger.WithFields(logrus.Fields{
		"method":  method,
		"path":    userPath,
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("WebDAV request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &Error{
			Method:     method,
			Path:       userPath,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(msg),
		}
		span.RecordError(apiErr)
		return nil, apiErr
	}
	return resp, nil
}

// extractMessage pulls the sabre exception message out of an error body.
func extractMessage(body []byte) string {
	s := string(body)
	start := strings.Index(s, "<s:message>")
	end := strings.Index(s, "</s:message>")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(s[start+len("<s:message>") : end])
}

func (c *Client) propfind(ctx context.Context, userPath, depth string) ([]models.FsNode, error) {
	header := http.Header{}
	header.Set("Depth", depth)
	header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := c.do(ctx, methodPropfind, c.fileURL(userPath), userPath, strings.NewReader(propfindBody), -1, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return c.decodeNodes(resp.Body)
}

func (c *Client) decodeNodes(r io.Reader) ([]models.FsNode, error) {
	ms, err := decodeMultistatus(r)
	if err != nil {
		return nil, err
	}
	root := c.filesRoot()
	nodes := make([]models.FsNode, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		node, err := resp.toNode(root)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ListDir returns the node at userPath followed by its children in the order
// the server reported them. Listing a file returns only the file.
func (c *Client) ListDir(ctx context.Context, userPath string) ([]models.FsNode, error) {
	nodes, err := c.propfind(ctx, userPath, "1")
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, &Error{Method: methodPropfind, Path: userPath, StatusCode: http.StatusNotFound}
	}

	want := strings.Trim(userPath, "/")
	for i, node := range nodes {
		if strings.Trim(node.UserPath, "/") == want {
			if i != 0 {
				self := nodes[i]
				copy(nodes[1:i+1], nodes[0:i])
				nodes[0] = self
			}
			break
		}
	}
	return nodes, nil
}

// Stat returns the node at userPath.
func (c *Client) Stat(ctx context.Context, userPath string) (models.FsNode, error) {
	nodes, err := c.propfind(ctx, userPath, "0")
	if err != nil {
		return models.FsNode{}, err
	}
	if len(nodes) == 0 {
		return models.FsNode{}, &Error{Method: methodPropfind, Path: userPath, StatusCode: http.StatusNotFound}
	}
	return nodes[0], nil
}

// ByID looks a node up by its Nextcloud file id.
func (c *Client) ByID(ctx context.Context, fileID string) (models.FsNode, error) {
	header := http.Header{}
	header.Set("Content-Type", "text/xml; charset=utf-8")

	body := strings.NewReader(searchBody(c.username, fileID))
	resp, err := c.do(ctx, methodSearch, c.searchURL(), "#"+fileID, body, -1, header)
	if err != nil {
		return models.FsNode{}, err
	}
	defer resp.Body.Close()

	nodes, err := c.decodeNodes(resp.Body)
	if err != nil {
		return models.FsNode{}, err
	}
	for _, node := range nodes {
		if node.FileID == fileID {
			return node, nil
		}
	}
	return models.FsNode{}, fmt.Errorf("file id %s: %w", fileID, ErrNotFound)
}

// Download streams the content of node into w using chunk sized reads.
func (c *Client) Download(ctx context.Context, node models.FsNode, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, c.fileURL(node.UserPath), node.UserPath, nil, -1, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.CopyBuffer(w, resp.Body, make([]byte, c.chunkSize))
	if err != nil {
		return n, fmt.Errorf("download %q: %w", node.UserPath, err)
	}
	return n, nil
}

// Upload streams r to userPath. The upload never overwrites: when a node with
// that path exists the server answers 412 and ErrExists is returned.
func (c *Client) Upload(ctx context.Context, userPath string, r io.Reader, size int64, contentType string) error {
	header := http.Header{}
	header.Set("If-None-Match", "*")
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	var body io.Reader = bufio.NewReaderSize(r, c.chunkSize)
	if size == 0 {
		body = http.NoBody
	}
	resp, err := c.do(ctx, http.MethodPut, c.fileURL(userPath), userPath, body, size, header)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Delete removes node, recursively for directories.
func (c *Client) Delete(ctx context.Context, node models.FsNode) error {
	resp, err := c.do(ctx, http.MethodDelete, c.fileURL(node.UserPath), node.UserPath, nil, -1, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Mkdir creates a directory at userPath and returns it.
func (c *Client) Mkdir(ctx context.Context, userPath string) (models.FsNode, error) {
	dirPath := strings.TrimSuffix(userPath, "/") + "/"
	resp, err := c.do(ctx, methodMkcol, c.fileURL(dirPath), dirPath, nil, -1, nil)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusMethodNotAllowed {
			return models.FsNode{}, fmt.Errorf("mkdir %q: %w", dirPath, ErrExists)
		}
		return models.FsNode{}, err
	}
	resp.Body.Close()
	return c.Stat(ctx, dirPath)
}
