package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"

	"github.com/google/uuid"

	"furniture-store/internal/domain"
)

// GetProfile reads the user_profiles record of userID.
func (c *Client) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/profiles/"+userID.String(), nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListProducts returns every product, newest first.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return c.QueryProducts(ctx, domain.ProductQuery{})
}

// QueryProducts returns the products matching q.
func (c *Client) QueryProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	values := url.Values{}
	if q.Category != "" {
		values.Set("category", string(q.Category))
	}
	if q.FeaturedOnly {
		values.Set("featured", "true")
	}
	if q.InStockOnly {
		values.Set("in_stock", "true")
	}
	if q.Search != "" {
		values.Set("q", q.Search)
	}
	if q.Sort != "" {
		values.Set("sort", string(q.Sort))
	}
	p := "/api/products"
	if encoded := values.Encode(); encoded != "" {
		p += "?" + encoded
	}

	var products []domain.Product
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &products, false); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct adds a product.
func (c *Client) CreateProduct(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	var product domain.Product
	if err := c.doJSON(ctx, http.MethodPost, "/api/products", fields, &product, true); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct replaces the editable fields of product id.
func (c *Client) UpdateProduct(ctx context.Context, id uuid.UUID, fields domain.ProductFields) (*domain.Product, error) {
	var product domain.Product
	if err := c.doJSON(ctx, http.MethodPut, "/api/products/"+id.String(), fields, &product, true); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes product id.
func (c *Client) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/products/"+id.String(), nil, nil, true)
}

type orderItemsRequest struct {
	Items []domain.OrderItem `json:"items"`
}

type orderStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// InsertOrder records the order header. Repeating the call with the same
// order id returns the stored order.
func (c *Client) InsertOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	var stored domain.Order
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders", order, &stored, true); err != nil {
		return nil, err
	}
	return &stored, nil
}

// InsertOrderItems records the lines of orderID.
func (c *Client) InsertOrderItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error {
	return c.doJSON(ctx, http.MethodPost, "/api/orders/"+orderID.String()+"/items", orderItemsRequest{Items: items}, nil, true)
}

// UpdateOrderStatus moves orderID to status.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	return c.doJSON(ctx, http.MethodPatch, "/api/orders/"+orderID.String()+"/status", orderStatusRequest{Status: status}, nil, true)
}

// ListOrders returns the signed-in user's orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.doJSON(ctx, http.MethodGet, "/api/orders", nil, &orders, true); err != nil {
		return nil, err
	}
	return orders, nil
}

type uploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Upload stores r under objectPath and returns its public URL.
func (c *Client) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("path", objectPath); err != nil {
		return "", fmt.Errorf("failed to encode upload: %w", err)
	}
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(objectPath)))
	partHeader.Set("Content-Type", contentType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to encode upload: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	err = c.send(ctx, http.MethodPost, "/api/storage/product-images", buf.Bytes(), &resp,
		requestOptions{auth: true, retry: true, header: header})
	if err != nil {
		return "", err
	}
	if resp.URL == "" {
		return c.PublicURL(resp.Path), nil
	}
	return resp.URL, nil
}

// PublicURL returns the address a stored object is served from.
func (c *Client) PublicURL(objectPath string) string {
	return c.baseURL + "/storage/" + objectPath
}

var (
	_ domain.AuthProvider  = (*Client)(nil)
	_ domain.ProfileSource = (*Client)(nil)
	_ domain.ProductSource = (*Client)(nil)
	_ domain.OrderSink     = (*Client)(nil)
	_ domain.FileStorage   = (*Client)(nil)
)
