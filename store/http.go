package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
)

const maxResponseBytes = 4 << 20

// HTTPClient reads orders and products from the data API.
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
}

var _ contractx.DataSource = (*HTTPClient)(nil)

type HTTPOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.client = c
		}
	}
}

func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.client = &http.Client{Timeout: d, Transport: h.client.Transport}
		}
	}
}

func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid data api url %q", contractx.ErrValidation, baseURL)
	}
	h := &HTTPClient{baseURL: u, client: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type ordersResponse struct {
	Orders []contractx.Order `json:"orders"`
}

type productsResponse struct {
	Products []contractx.Product `json:"products"`
}

func (h *HTTPClient) FindOrders(ctx context.Context, q contractx.OrderQuery) ([]contractx.Order, error) {
	params := url.Values{}
	if email := strings.TrimSpace(q.Email); email != "" {
		params.Set("customer_email", email)
	}
	if number := strings.TrimSpace(q.OrderNumber); number != "" {
		params.Set("order_number", number)
	}

	var out ordersResponse
	if _, err := h.get(ctx, "/orders/", params, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (h *HTTPClient) ListProducts(ctx context.Context, q contractx.ProductQuery) ([]contractx.Product, error) {
	params := url.Values{}
	if text := strings.TrimSpace(q.Text); text != "" {
		params.Set("query", text)
	}
	for _, tag := range q.Tags {
		params.Add("tags", tag)
	}
	if q.MinInventory != nil {
		params.Set("min_inventory", strconv.Itoa(*q.MinInventory))
	}

	var out productsResponse
	if _, err := h.get(ctx, "/products/", params, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (h *HTTPClient) GetProduct(ctx context.Context, sku string) (contractx.Product, error) {
	var out contractx.Product
	status, err := h.get(ctx, "/products/"+url.PathEscape(sku), nil, &out)
	if status == http.StatusNotFound {
		return contractx.Product{}, fmt.Errorf("%w: %s", contractx.ErrProductNotFound, sku)
	}
	if err != nil {
		return contractx.Product{}, err
	}
	return out, nil
}

func (h *HTTPClient) get(ctx context.Context, path string, params url.Values, dest any) (int, error) {
	u := h.baseURL.JoinPath(path)
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", contractx.ErrDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: GET %s: %v", contractx.ErrDataUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read %s: %v", contractx.ErrDataUnavailable, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("%w: GET %s: status %d", contractx.ErrDataUnavailable, path, resp.StatusCode)
	}
	if err := sonic.Unmarshal(body, dest); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode %s: %v", contractx.ErrDataUnavailable, path, err)
	}
	return resp.StatusCode, nil
}
