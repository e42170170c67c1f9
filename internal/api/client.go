// Package api is the back-office resource client. Every call goes through the HTTP client it
// is given, normally the authorized gateway's.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/platform/apierror"
)

const maxResponseBytes = 4 << 20

// Client groups the back-office resources.
type Client struct {
	base string
	http *http.Client

	Inventories *Resource[Inventory]
	Recipes     *Resource[Recipe]
	Suppliers   *Resource[Supplier]
	Promotions  *Resource[Promotion]
	Stocks      *Resource[Stock]
}

// New returns a Client for baseURL sending through httpClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	base := strings.TrimRight(baseURL, "/")
	if u, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("api: base url: %w", err)
	} else if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("api: base url %q must not carry a query or fragment", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{base: base, http: httpClient}
	c.Inventories = NewResource[Inventory](c, "/inventories")
	c.Recipes = NewResource[Recipe](c, "/recipes")
	c.Suppliers = NewResource[Supplier](c, "/suppliers")
	c.Promotions = NewResource[Promotion](c, "/promotions")
	c.Stocks = NewResource[Stock](c, "/stocks")
	return c, nil
}

// Resource returns the list-capable resource registered under name, for callers that pick
// a resource by its name at runtime.
func (c *Client) Resource(name string) (Lister, bool) {
	switch strings.Trim(name, "/") {
	case "inventories":
		return c.Inventories, true
	case "recipes":
		return c.Recipes, true
	case "suppliers":
		return c.Suppliers, true
	case "promotions":
		return c.Promotions, true
	case "stocks":
		return c.Stocks, true
	}
	return nil, false
}

// ResourceNames lists the names accepted by Resource.
func ResourceNames() []string {
	return []string{"inventories", "recipes", "suppliers", "promotions", "stocks"}
}

// Raw performs a GET of path and returns the body of a successful response.
func (c *Client) Raw(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// endpoint joins path, already escaped, onto the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	s := c.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		s += "?" + query.Encode()
	}
	return s
}

// do sends one request. Transport errors, including the gateway's unrecoverable session
// errors, are returned so that errors.Is still matches them.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("api: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.FromResponse(resp.StatusCode, data, http.StatusText(resp.StatusCode))
	}
	return data, nil
}
