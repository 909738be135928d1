// Package exchange implements the venue's REST and WebSocket transport
// behind the Gateway interface and the BBO feed transport.
//
// The REST client (Client) talks to the venue's CLOB API for order management:
//   - Place:       POST /order           — place one signed order
//   - Cancel:      DELETE /order         — cancel a single order by id
//   - BulkCancel:  DELETE /orders        — cancel a list of orders by id
//   - OpenOrders:  GET  /orders/open     — list resting orders for an address
//   - UserFills:   GET  /fills           — list historical fills for an address
//
// Every request is rate-limited via per-category TokenBuckets and
// automatically retried at the HTTP layer only on 5xx responses. Place,
// Cancel, and BulkCancel are authenticated via Signer; the OpenOrders and
// UserFills queries are sent unsigned. A round trip that fails at the
// transport level is never retried — the error is surfaced to the caller,
// whose next control-loop tick decides whether to try again.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/pkg/types"
)

// wire request/response shapes for the venue's REST API.

type orderRequest struct {
	Coin       string `json:"coin"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	TIF        string `json:"tif"`
	ReduceOnly bool   `json:"reduce_only"`
}

type orderStatus struct {
	Resting *struct {
		OID string `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		TotalSize string `json:"total_size"`
		AvgPrice  string `json:"avg_price"`
	} `json:"filled,omitempty"`
	Rejected *struct {
		Reason string `json:"reason"`
	} `json:"rejected,omitempty"`
}

type orderResponse struct {
	Status   string        `json:"status"`
	Statuses []orderStatus `json:"statuses"`
}

type cancelResultWire struct {
	OID     string `json:"oid"`
	Success bool   `json:"success"`
	Unknown bool   `json:"unknown"`
}

type bulkCancelResponse struct {
	Results []cancelResultWire `json:"results"`
}

type openOrderWire struct {
	OID       string `json:"oid"`
	Coin      string `json:"coin"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Remaining string `json:"remaining_size"`
	OpenedAt  int64  `json:"opened_at"`
}

type fillWire struct {
	Hash  string `json:"hash"`
	Coin  string `json:"coin"`
	Side  string `json:"side"`
	Size  string `json:"size"`
	Price string `json:"price"`
	Fee   string `json:"fee"`
	Time  int64  `json:"time"`
}

// Client is the venue's REST API Gateway implementation. It wraps a resty
// HTTP client with rate limiting, retry, and request signing.
type Client struct {
	http   *resty.Client
	signer *Signer
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient creates a REST Gateway with rate limiting and retry.
func NewClient(cfg config.Config, signer *Signer, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return false
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		signer: signer,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

var _ Gateway = (*Client)(nil)

// Place submits a quantized limit order.
func (c *Client) Place(ctx context.Context, pair types.Pair, side types.Side, price, size decimal.Decimal, tif types.TimeInForce, reduceOnly bool) (types.PlaceOutcome, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.PlaceOutcome{}, err
	}

	if c.dryRun {
		c.logger.Info("DRY-RUN: would place order", "side", side, "price", price, "size", size)
		return types.PlaceOutcome{Kind: types.PlaceResting, OrderID: types.OrderID(fmt.Sprintf("dry-run-%d", time.Now().UnixNano()))}, nil
	}

	req := orderRequest{
		Coin:       pair.BaseCoin,
		Side:       string(side),
		Price:      price.String(),
		Size:       size.String(),
		TIF:        string(tif),
		ReduceOnly: reduceOnly,
	}
	body := mustJSON(req)
	headers, err := c.signer.Headers(http.MethodPost, "/order", body)
	if err != nil {
		return types.PlaceOutcome{}, fmt.Errorf("sign place: %w", err)
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(req).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return types.PlaceOutcome{}, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.PlaceOutcome{}, fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Statuses) == 0 {
		return types.PlaceOutcome{}, fmt.Errorf("place order: empty status list")
	}

	return parseOrderStatus(result.Statuses[0]), nil
}

func parseOrderStatus(s orderStatus) types.PlaceOutcome {
	switch {
	case s.Resting != nil:
		return types.PlaceOutcome{Kind: types.PlaceResting, OrderID: types.OrderID(s.Resting.OID)}
	case s.Filled != nil:
		qty, _ := decimal.NewFromString(s.Filled.TotalSize)
		avg, _ := decimal.NewFromString(s.Filled.AvgPrice)
		return types.PlaceOutcome{Kind: types.PlaceFilled, FilledQty: qty, FilledAvgPx: avg}
	case s.Rejected != nil:
		return types.PlaceOutcome{Kind: types.PlaceRejected, RejectReason: s.Rejected.Reason}
	default:
		return types.PlaceOutcome{Kind: types.PlaceTransport, Err: fmt.Errorf("unrecognized order status")}
	}
}

// Cancel cancels a single resting order by id.
func (c *Client) Cancel(ctx context.Context, coin string, oid types.OrderID) (types.CancelOutcome, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel order", "oid", oid)
		return types.CancelOutcome{Kind: types.CancelOK}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return types.CancelOutcome{}, err
	}

	body := fmt.Sprintf(`{"coin":%q,"oid":%q}`, coin, oid)
	headers, err := c.signer.Headers(http.MethodDelete, "/order", body)
	if err != nil {
		return types.CancelOutcome{}, fmt.Errorf("sign cancel: %w", err)
	}

	var result cancelResultWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(&result).
		Delete("/order")
	if err != nil {
		return types.CancelOutcome{}, fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound || result.Unknown {
		return types.CancelOutcome{Kind: types.CancelUnknown}, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return types.CancelOutcome{}, fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return types.CancelOutcome{Kind: types.CancelOK}, nil
}

// BulkCancel cancels a list of orders in one round trip.
func (c *Client) BulkCancel(ctx context.Context, reqs []types.BulkCancelRequest) ([]types.BulkCancelResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would bulk cancel", "count", len(reqs))
		results := make([]types.BulkCancelResult, len(reqs))
		for i, r := range reqs {
			results[i] = types.BulkCancelResult{OrderID: r.OrderID, Outcome: types.CancelOutcome{Kind: types.CancelOK}}
		}
		return results, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	body := mustJSON(reqs)
	headers, err := c.signer.Headers(http.MethodDelete, "/orders", body)
	if err != nil {
		return nil, fmt.Errorf("sign bulk cancel: %w", err)
	}

	var result bulkCancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(reqs).
		SetResult(&result).
		Delete("/orders")
	if err != nil {
		return nil, fmt.Errorf("bulk cancel: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("bulk cancel: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]types.BulkCancelResult, len(result.Results))
	for i, r := range result.Results {
		kind := types.CancelOK
		if r.Unknown {
			kind = types.CancelUnknown
		} else if !r.Success {
			kind = types.CancelTransport
		}
		out[i] = types.BulkCancelResult{OrderID: types.OrderID(r.OID), Outcome: types.CancelOutcome{Kind: kind}}
	}
	return out, nil
}

// OpenOrders queries the venue's current view of the account's resting orders.
func (c *Client) OpenOrders(ctx context.Context, address string) ([]types.VenueOpenOrder, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	var wire []openOrderWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetResult(&wire).
		Get("/orders/open")
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("open orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]types.VenueOpenOrder, len(wire))
	for i, o := range wire {
		price, _ := decimal.NewFromString(o.Price)
		remaining, _ := decimal.NewFromString(o.Remaining)
		out[i] = types.VenueOpenOrder{
			OrderID:       types.OrderID(o.OID),
			Coin:          o.Coin,
			Side:          types.Side(o.Side),
			Price:         price,
			RemainingSize: remaining,
			OpenedAt:      time.Unix(o.OpenedAt, 0),
		}
	}
	return out, nil
}

// UserFills queries the account's historical fills.
func (c *Client) UserFills(ctx context.Context, address string) ([]types.Fill, error) {
	if err := c.rl.Query.Wait(ctx); err != nil {
		return nil, err
	}

	var wire []fillWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetResult(&wire).
		Get("/fills")
	if err != nil {
		return nil, fmt.Errorf("user fills: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("user fills: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]types.Fill, len(wire))
	for i, f := range wire {
		size, _ := decimal.NewFromString(f.Size)
		price, _ := decimal.NewFromString(f.Price)
		fee, _ := decimal.NewFromString(f.Fee)
		out[i] = types.Fill{
			Hash:  f.Hash,
			Coin:  f.Coin,
			Side:  types.Side(f.Side),
			Size:  size,
			Price: price,
			Fee:   fee,
			At:    time.Unix(f.Time, 0),
		}
	}
	return out, nil
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
