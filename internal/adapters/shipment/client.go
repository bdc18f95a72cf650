// Package shipment is the HTTP client for the shipment lookup provider.
//
// The provider authenticates with an API key and secret over basic auth
// and exposes two read endpoints:
//
//	GET /shipments?trackingNumber=...&includeShipmentItems=true
//	GET /orders/{orderId}
package shipment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scandesk/internal/ports"
)

const DefaultBaseURL = "https://ssapi.shipstation.com"

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 512

type Client struct {
	baseURL string
	key     string
	secret  string
	client  *http.Client
}

var _ ports.ShipmentLookup = (*Client)(nil)

type ShipmentItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Shipment struct {
	ShipmentID     int64          `json:"shipmentId"`
	OrderID        int64          `json:"orderId"`
	OrderNumber    string         `json:"orderNumber"`
	TrackingNumber string         `json:"trackingNumber"`
	ShipmentItems  []ShipmentItem `json:"shipmentItems"`
}

type ShipmentsResp struct {
	Shipments []Shipment `json:"shipments"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	Pages     int        `json:"pages"`
}

type OrderItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	OrderID     int64       `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	OrderStatus string      `json:"orderStatus"`
	Items       []OrderItem `json:"items"`
}

func New(baseURL, key, secret string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

// UseDefaultClient switches to http.DefaultClient so tests can swap its
// transport.
func (c *Client) UseDefaultClient() {
	c.client = http.DefaultClient
}

// Shipments lists the shipments carrying trackingNumber, items included.
func (c *Client) Shipments(ctx context.Context, trackingNumber string) ([]Shipment, error) {
	q := url.Values{}
	q.Set("trackingNumber", trackingNumber)
	q.Set("includeShipmentItems", "true")

	var out ShipmentsResp
	if err := c.getJSON(ctx, "/shipments", q, &out); err != nil {
		return nil, err
	}
	return out.Shipments, nil
}

func (c *Client) ShipmentItems(ctx context.Context, trackingNumber string) ([]string, error) {
	shipments, err := c.Shipments(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if len(shipments) == 0 {
		return nil, ports.ErrNoShipment
	}
	var skus []string
	for _, s := range shipments {
		for _, it := range s.ShipmentItems {
			if it.SKU != "" {
				skus = append(skus, it.SKU)
			}
		}
	}
	return skus, nil
}

func (c *Client) FindOrder(ctx context.Context, trackingNumber string) (string, error) {
	shipments, err := c.Shipments(ctx, trackingNumber)
	if err != nil {
		return "", err
	}
	for _, s := range shipments {
		if s.OrderID != 0 {
			return strconv.FormatInt(s.OrderID, 10), nil
		}
	}
	return "", ports.ErrNoShipment
}

func (c *Client) Order(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	if err := c.getJSON(ctx, "/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) OrderItems(ctx context.Context, orderID string) ([]string, error) {
	order, err := c.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	skus := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		if it.SKU != "" {
			skus = append(skus, it.SKU)
		}
	}
	return skus, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if c.key == "" || c.secret == "" {
		return ports.ErrMissingCredentials
	}

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &ports.StatusError{Code: resp.StatusCode, Body: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
