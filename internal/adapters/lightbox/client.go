// Package lightbox implements ports.ParcelProvider against the LightBox RE
// REST API. Responses are decoded into the ports payload types and keep
// their raw bodies for the HTTP proxy.
package lightbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/corey/mapbuilder/internal/ports"
)

// DefaultTimeout bounds each upstream request.
const DefaultTimeout = 10 * time.Second

const (
	maxBodyBytes    = 32 << 20
	maxErrorSnippet = 2 << 10
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("LIGHTBOX_API_KEY is not set")

// APIError is a non-2xx upstream response.
type APIError struct {
	Operation string
	Status    int
	Body      string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lightbox %s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("lightbox %s: status %d: %s", e.Operation, e.Status, e.Body)
}

// Is makes a 404 match ports.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ports.ErrNotFound && e.Status == http.StatusNotFound
}

// Client calls the LightBox API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("lightbox base url %q is not absolute", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParcelsByGeometry implements ports.ParcelProvider.
func (c *Client) ParcelsByGeometry(ctx context.Context, q ports.GeometryQuery) (*ports.ParcelCollection, error) {
	q = q.WithDefaults()
	params := url.Values{}
	params.Set("wkt", q.WKT)
	params.Set("bufferDistance", strconv.FormatFloat(q.Buffer(), 'f', -1, 64))
	params.Set("bufferUnit", q.BufferUnit)

	body, err := c.get(ctx, "parcels by geometry", "/parcels/us/geometry", params)
	if err != nil {
		return nil, err
	}
	return ports.DecodeParcels(body)
}

// ParcelsByAddress implements ports.ParcelProvider.
func (c *Client) ParcelsByAddress(ctx context.Context, text string) (*ports.ParcelCollection, error) {
	params := url.Values{}
	params.Set("text", text)

	body, err := c.get(ctx, "parcels by address", "/parcels/address", params)
	if err != nil {
		return nil, err
	}
	return ports.DecodeParcels(body)
}

// StructuresByParcel implements ports.ParcelProvider.
func (c *Client) StructuresByParcel(ctx context.Context, parcelID string) (*ports.StructureCollection, error) {
	body, err := c.get(ctx, "structures", "/structures/_on/parcel/us/"+url.PathEscape(parcelID), nil)
	if err != nil {
		return nil, err
	}
	return ports.DecodeStructures(body)
}

// ZoningByParcel implements ports.ParcelProvider.
func (c *Client) ZoningByParcel(ctx context.Context, parcelID string) (*ports.ZoningCollection, error) {
	body, err := c.get(ctx, "zoning", "/zoning/_on/parcel/us/"+url.PathEscape(parcelID), nil)
	if err != nil {
		return nil, err
	}
	return ports.DecodeZonings(body)
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	full := c.baseURL + path
	if len(params) > 0 {
		full += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, fmt.Errorf("lightbox %s: %w", op, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lightbox %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, &APIError{
			Operation: op,
			Status:    resp.StatusCode,
			Body:      strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("lightbox %s: read body: %w", op, err)
	}
	return body, nil
}
