// Package issuance is the client of the upstream API that resolves star
// recipients and prepares the on-chain payment for an issuance.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/chain"
	"stars-engine/internal/httpclient"

	"github.com/shopspring/decimal"
)

const (
	service = "issuance"

	// PriceQuantity is the package size the upstream quotes prices for.
	PriceQuantity = 50
)

type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(client *httpclient.Client, baseURL, apiKey string) *Client {
	return &Client{http: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, now: time.Now}
}

// Prepared is a ready-to-sign transaction for one issuance.
type Prepared struct {
	Messages   []chain.Message
	ValidUntil time.Time
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"X-API-Key": c.apiKey}
}

// NormalizeHandle strips the leading @ and surrounding space.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

func (c *Client) ResolveRecipient(ctx context.Context, handle string) (string, error) {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return "", apperr.Invalid("recipient", "is required")
	}
	var body struct {
		Recipient string `json:"recipient"`
		Error     string `json:"error"`
	}
	err := c.http.GetJSON(ctx, c.baseURL+"/stars/recipient?username="+url.QueryEscape(handle), c.headers(), &body)
	if err != nil {
		if notFound(err) {
			return "", fmt.Errorf("%w: @%s", apperr.ErrRecipientNotFound, handle)
		}
		return "", apperr.External(service, "resolve_recipient", err)
	}
	if body.Recipient == "" {
		return "", fmt.Errorf("%w: @%s", apperr.ErrRecipientNotFound, handle)
	}
	return body.Recipient, nil
}

func notFound(err error) bool {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.Status == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(string(se.Body))
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

type prepareRequest struct {
	Recipient string `json:"recipient"`
	Quantity  int64  `json:"quantity"`
	Wallet    string `json:"wallet"`
}

type prepareResponse struct {
	Messages   []chain.Message `json:"messages"`
	ValidUntil int64           `json:"validUntil"`
}

// PrepareIssuance fails with an external service error when the payload is
// empty or already expired.
func (c *Client) PrepareIssuance(ctx context.Context, recipient string, quantity int64, treasury string) (Prepared, error) {
	var body prepareResponse
	req := prepareRequest{Recipient: recipient, Quantity: quantity, Wallet: treasury}
	if err := c.http.PostJSON(ctx, c.baseURL+"/stars/buy", c.headers(), req, &body); err != nil {
		return Prepared{}, apperr.External(service, "prepare", err)
	}
	if len(body.Messages) == 0 {
		return Prepared{}, apperr.External(service, "prepare", errors.New("empty messages"))
	}
	p := Prepared{Messages: body.Messages}
	if body.ValidUntil > 0 {
		p.ValidUntil = time.Unix(body.ValidUntil, 0)
		if c.now().After(p.ValidUntil) {
			return Prepared{}, apperr.External(service, "prepare", errors.New("transaction expired"))
		}
	}
	return p, nil
}

// UnitPrice returns the upstream price of a single star without markup.
func (c *Client) UnitPrice(ctx context.Context) (decimal.Decimal, error) {
	var body struct {
		Price decimal.Decimal `json:"price"`
	}
	endpoint := c.baseURL + "/stars/price?quantity=" + strconv.Itoa(PriceQuantity)
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &body); err != nil {
		return decimal.Zero, apperr.External(service, "price", err)
	}
	if !body.Price.IsPositive() {
		return decimal.Zero, apperr.External(service, "price", fmt.Errorf("bad price %s", body.Price))
	}
	return body.Price.Div(decimal.NewFromInt(PriceQuantity)).Round(9), nil
}
