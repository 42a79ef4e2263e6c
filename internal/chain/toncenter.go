package chain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/httpclient"

	"github.com/shopspring/decimal"
)

const serviceTonCenter = "toncenter"

type TonCenter struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
}

func NewTonCenter(client *httpclient.Client, baseURL, apiKey string) *TonCenter {
	return &TonCenter{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

type tcEnvelope[T any] struct {
	OK     bool   `json:"ok"`
	Result T      `json:"result"`
	Error  string `json:"error"`
}

type tcTransaction struct {
	Utime         int64 `json:"utime"`
	TransactionID struct {
		Hash string `json:"hash"`
		LT   string `json:"lt"`
	} `json:"transaction_id"`
	InMsg *struct {
		Source  string            `json:"source"`
		Value   string            `json:"value"`
		Message string            `json:"message"`
		MsgData map[string]string `json:"msg_data"`
	} `json:"in_msg"`
}

func (c *TonCenter) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"X-API-Key": c.apiKey}
}

// Transfers returns the most recent incoming transfers with a positive value.
func (c *TonCenter) Transfers(ctx context.Context, address string, limit int) ([]Transfer, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("archival", "true")

	var env tcEnvelope[[]tcTransaction]
	if err := c.client.GetJSON(ctx, c.baseURL+"/getTransactions?"+q.Encode(), c.headers(), &env); err != nil {
		return nil, apperr.External(serviceTonCenter, "getTransactions", err)
	}
	if !env.OK {
		return nil, apperr.External(serviceTonCenter, "getTransactions", errors.New(env.Error))
	}

	out := make([]Transfer, 0, len(env.Result))
	for _, tx := range env.Result {
		if tx.InMsg == nil || tx.InMsg.Value == "" {
			continue
		}
		nano, err := strconv.ParseInt(tx.InMsg.Value, 10, 64)
		if err != nil || nano <= 0 {
			continue
		}
		hash := tx.TransactionID.Hash
		if hash == "" {
			hash = fmt.Sprintf("tx_%d_%s", tx.Utime, tx.TransactionID.LT)
		}
		out = append(out, Transfer{
			Hash:    hash,
			Time:    time.Unix(tx.Utime, 0).UTC(),
			Amount:  fromNano(nano),
			Source:  tx.InMsg.Source,
			Comment: comment(tx.InMsg.MsgData, tx.InMsg.Message),
		})
	}
	return out, nil
}

// comment returns the first non-empty body field as sent. Text bodies may
// still be base64; the deposit matcher decodes them.
func comment(data map[string]string, message string) string {
	for _, field := range []string{"text", "comment", "payload", "body"} {
		if v := strings.TrimSpace(data[field]); v != "" {
			return v
		}
	}
	return strings.TrimSpace(message)
}

func (c *TonCenter) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("address", address)
	var env tcEnvelope[struct {
		Balance string `json:"balance"`
	}]
	if err := c.client.GetJSON(ctx, c.baseURL+"/getAddressInformation?"+q.Encode(), c.headers(), &env); err != nil {
		return decimal.Zero, apperr.External(serviceTonCenter, "getAddressInformation", err)
	}
	if !env.OK {
		return decimal.Zero, apperr.External(serviceTonCenter, "getAddressInformation", errors.New(env.Error))
	}
	nano, err := strconv.ParseInt(env.Result.Balance, 10, 64)
	if err != nil {
		return decimal.Zero, apperr.External(serviceTonCenter, "getAddressInformation", err)
	}
	return fromNano(nano), nil
}
