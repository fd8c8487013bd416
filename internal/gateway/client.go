package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/lunastore/storefront/pkg/config"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
	"github.com/lunastore/storefront/pkg/metrics"
)

// TokenSource supplies the current access token, empty when signed out.
type TokenSource interface {
	Token() string
}

// Client consumes the remote cart REST contract. All responses are
// normalized into canonical cart records before they leave this package.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	authScheme string
	retries    uint64
	backoff    time.Duration
	version    string
	logg       *logger.Logger
	metrics    *metrics.CartSyncMetrics
}

// NewClient builds a gateway client from config.
func NewClient(cfg config.GatewayConfig, tokens TokenSource, logg *logger.Logger, m *metrics.CartSyncMetrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url required")
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		authScheme: cfg.AuthScheme,
		retries:    cfg.FetchRetries,
		backoff:    cfg.RetryBackoff,
		version:    cfg.ClientVersion,
		logg:       logg,
		metrics:    m,
	}, nil
}

// FetchCart retrieves the authoritative cart. An empty cart is a valid
// zero-item snapshot, not an error. Transport failures are retried with
// exponential backoff before surfacing a network error.
func (c *Client) FetchCart(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var wire wireSnapshot
		if err := c.doJSON(ctx, http.MethodGet, "/cart", nil, &wire, "fetch_cart"); err != nil {
			if pkgerrors.IsNetwork(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		snap = wire.normalize()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// UpdateItem changes the quantity of a remote cart item.
func (c *Client) UpdateItem(ctx context.Context, backendID string, quantity int) (*UpdateResult, error) {
	if backendID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backend id is required")
	}
	body := map[string]any{"quantity": quantity}
	var wire wireUpdateResult
	if err := c.doJSON(ctx, http.MethodPatch, "/cart/items/"+backendID, body, &wire, "update_item"); err != nil {
		return nil, err
	}
	result := &UpdateResult{
		Removed:        wire.Removed,
		AvailableStock: wire.AvailableStock,
	}
	if wire.Data != nil {
		line := wire.Data.normalize()
		result.Line = &line
	}
	return result, nil
}

// RemoveItem deletes a remote cart item.
func (c *Client) RemoveItem(ctx context.Context, backendID string) (*RemoveResult, error) {
	if backendID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backend id is required")
	}
	var wire wireRemoveResult
	if err := c.doJSON(ctx, http.MethodDelete, "/cart/items/"+backendID, nil, &wire, "remove_item"); err != nil {
		return nil, err
	}
	return &RemoveResult{Message: wire.Message, ProductName: wire.ProductName}, nil
}

// AddItem pushes a locally added line to the remote cart. The local
// store is already authoritative for the UI, so callers treat failures
// as log-and-continue.
func (c *Client) AddItem(ctx context.Context, variantID string, quantity int) error {
	body := map[string]any{"variant_id": variantID, "quantity": quantity}
	return c.doJSON(ctx, http.MethodPost, "/cart/items", body, nil, "add_item")
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, dest any, op string) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", c.authScheme+" "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveGateway(op, "network_error", time.Since(start))
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, op+" transport failure")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.metrics.ObserveGateway(op, "server_error", time.Since(start))
		return pkgerrors.New(pkgerrors.CodeNetwork, fmt.Sprintf("%s failed with status %d", op, resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.metrics.ObserveGateway(op, "rejected", time.Since(start))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s rejected with status %d", op, resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	c.metrics.ObserveGateway(op, "success", time.Since(start))

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if err == io.EOF {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" returned malformed payload")
	}
	return nil
}
