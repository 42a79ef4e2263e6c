package chain

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/httpclient"

	"github.com/rs/zerolog/log"
)

const serviceBroadcaster = "broadcaster"

type Outcome int

const (
	// Failed means the transaction was not sent; the debit may be reversed.
	Failed Outcome = iota
	// Accepted means the network accepted the transaction.
	Accepted
	// UnconfirmedTimeout means it was sent but acceptance was not observed
	// in time. It must never be reversed.
	UnconfirmedTimeout
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case UnconfirmedTimeout:
		return "unconfirmed_timeout"
	default:
		return "failed"
	}
}

type SendRequest struct {
	Messages   []Message `json:"messages"`
	ValidUntil int64     `json:"valid_until"`
	Reference  string    `json:"reference,omitempty"`
}

type SendResult struct {
	Outcome Outcome
	TxHash  string
	Err     error
}

type Broadcaster struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	timeout time.Duration
}

func NewBroadcaster(client *httpclient.Client, baseURL, apiKey string, timeout time.Duration) *Broadcaster {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Broadcaster{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, timeout: timeout}
}

type sendResponse struct {
	Status string `json:"status"`
	TxHash string `json:"tx_hash"`
	Error  string `json:"error"`
}

// Send submits the prepared messages and classifies the result. It never
// returns an error separately; failures are carried in the result.
func (b *Broadcaster) Send(ctx context.Context, req SendRequest) SendResult {
	if len(req.Messages) == 0 {
		return SendResult{Outcome: Failed, Err: errors.New("no messages to send")}
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	headers := map[string]string{}
	if b.apiKey != "" {
		headers["Authorization"] = "Bearer " + b.apiKey
	}
	var resp sendResponse
	err := b.client.PostJSON(ctx, b.baseURL+"/v1/send", headers, req, &resp)
	res := classify(resp, err)
	if res.Err != nil {
		res.Err = apperr.External(serviceBroadcaster, "send", res.Err)
	}
	ev := log.Info()
	if res.Outcome == Failed {
		ev = log.Warn().Err(res.Err)
	}
	ev.Str("reference", req.Reference).Str("outcome", res.Outcome.String()).Str("tx_hash", res.TxHash).Msg("broadcast finished")
	return res
}

func classify(resp sendResponse, err error) SendResult {
	if err != nil {
		var se *httpclient.StatusError
		switch {
		case errors.As(err, &se) && se.Status == http.StatusGatewayTimeout:
			return SendResult{Outcome: UnconfirmedTimeout, Err: err}
		case httpclient.IsTimeout(err):
			return SendResult{Outcome: UnconfirmedTimeout, Err: err}
		default:
			return SendResult{Outcome: Failed, Err: err}
		}
	}
	switch strings.ToLower(resp.Status) {
	case "accepted", "ok", "sent":
		return SendResult{Outcome: Accepted, TxHash: resp.TxHash}
	case "pending", "timeout":
		return SendResult{Outcome: UnconfirmedTimeout, TxHash: resp.TxHash}
	default:
		msg := resp.Error
		if msg == "" {
			msg = "broadcaster returned status " + resp.Status
		}
		return SendResult{Outcome: Failed, TxHash: resp.TxHash, Err: errors.New(msg)}
	}
}
