package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
)

const (
	defaultHttpTimeout        = 30 * time.Second
	defaultHttpConnectTimeout = 5 * time.Second
	defaultHttpTlsTimeout     = 5 * time.Second
)

func defaultHttpClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

// Client talks to a collabdocs server over its REST API and websocket push
// channel. It implements the session store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    defaultHttpClient(),
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) Get(ctx context.Context, id string) (model.Snapshot, error) {
	var doc model.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/documents/get?docId="+url.QueryEscape(id), nil, &doc)
	return doc, err
}

func (c *Client) Put(ctx context.Context, snap model.Snapshot, opts model.WriteOptions) (model.Snapshot, error) {
	var written model.Snapshot
	err := c.do(ctx, http.MethodPut, "/api/documents/save", model.SaveDocRequest{Snapshot: snap, Options: opts}, &written)
	return written, err
}

// ListOrderedBy lists the documents visible to the caller.
func (c *Client) ListOrderedBy(ctx context.Context, field string) ([]model.Snapshot, error) {
	var docs []model.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/documents?orderBy="+url.QueryEscape(field), nil, &docs)
	return docs, err
}

func (c *Client) ListAll(ctx context.Context) ([]model.Snapshot, error) {
	return c.ListOrderedBy(ctx, "")
}

func (c *Client) Create(ctx context.Context, title string) (model.Snapshot, error) {
	var doc model.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/documents/create", model.CreateDocRequest{Title: title}, &doc)
	return doc, err
}

func (c *Client) Rename(ctx context.Context, id, title string) (model.Snapshot, error) {
	var doc model.Snapshot
	err := c.do(ctx, http.MethodPut, "/api/documents/update?docId="+url.QueryEscape(id), model.UpdateDocRequest{Title: title}, &doc)
	return doc, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/delete?docId="+url.QueryEscape(id), nil, nil)
}

func (c *Client) Invite(ctx context.Context, id, email string) (model.Snapshot, error) {
	var doc model.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/documents/invite", model.InviteRequest{DocID: id, Email: email}, &doc)
	return doc, err
}

// Ping checks that the server and its backing stores answer.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, args, result interface{}) error {
	var body io.Reader
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	r, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", docerr.ErrStoreUnreachable, method, path, err)
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", docerr.ErrStoreUnreachable, path, err)
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return statusError(r.StatusCode, responseBodyBytes)
	}
	if result == nil || len(responseBodyBytes) == 0 {
		return nil
	}
	return json.Unmarshal(responseBodyBytes, result)
}

// statusError turns a failed response back into the error taxonomy.
func statusError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var resp model.ErrorResponse
	if json.Unmarshal(body, &resp) == nil && resp.Error != "" {
		message = resp.Error
	}

	var sentinel error
	switch status {
	case http.StatusNotFound:
		sentinel = docerr.ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		sentinel = docerr.ErrPermissionDenied
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = docerr.ErrValidation
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		sentinel = docerr.ErrStoreUnreachable
	default:
		return fmt.Errorf("server returned %d: %s", status, message)
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
