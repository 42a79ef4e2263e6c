package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/httpclient"

	"github.com/shopspring/decimal"
)

func newClient() *httpclient.Client {
	return httpclient.New("test", httpclient.Options{Timeout: time.Second, RetryBase: time.Millisecond})
}

func TestTonCenterTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getTransactions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "30" || r.Header.Get("X-API-Key") != "key" {
			t.Errorf("query = %s headers = %v", r.URL.RawQuery, r.Header)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"utime":1700000000,"transaction_id":{"hash":"h1","lt":"1"},"in_msg":{"source":"EQsrc","value":"1500000000","message":"","msg_data":{"@type":"msg.dataText","text":"MTIzNA=="}}},
			{"utime":1700000001,"transaction_id":{"hash":"h2","lt":"2"},"in_msg":{"source":"EQsrc","value":"250000000","message":"0042123456789"}},
			{"utime":1700000002,"transaction_id":{"hash":"h3","lt":"3"},"in_msg":{"value":"0"}},
			{"utime":1700000003,"transaction_id":{"hash":"h4","lt":"4"}}
		]}`))
	}))
	defer srv.Close()

	tc := NewTonCenter(newClient(), srv.URL+"/", "key")
	got, err := tc.Transfers(context.Background(), "EQtreasury", 30)
	if err != nil {
		t.Fatalf("Transfers() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Hash != "h1" || !got[0].Amount.Equal(decimal.RequireFromString("1.5")) || got[0].Comment != "MTIzNA==" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Comment != "0042123456789" || !got[1].Time.Equal(time.Unix(1700000001, 0)) {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestTonCenterNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := NewTonCenter(newClient(), srv.URL, "").Transfers(context.Background(), "EQ", 10)
	if !errors.Is(err, apperr.ErrExternalService) {
		t.Fatalf("err = %v, want external service error", err)
	}
}

func TestFallbackBalance(t *testing.T) {
	tonapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadRequest)
	}))
	defer tonapi.Close()
	toncenter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getAddressInformation" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"balance":"12345000000"}}`))
	}))
	defer toncenter.Close()

	src := FallbackBalance{
		Primary:  NewTonAPI(newClient(), tonapi.URL),
		Fallback: NewTonCenter(newClient(), toncenter.URL, ""),
	}
	bal, err := src.Balance(context.Background(), "EQtreasury")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("12.345")) {
		t.Fatalf("balance = %s, want 12.345", bal)
	}
}

func TestTonAPIBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/EQtreasury" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"address":"EQtreasury","balance":2000000000}`))
	}))
	defer srv.Close()

	bal, err := NewTonAPI(newClient(), srv.URL).Balance(context.Background(), "EQtreasury")
	if err != nil || !bal.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("balance = %s err = %v", bal, err)
	}
}

func TestBroadcasterOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		delay   time.Duration
		want    Outcome
		wantErr bool
	}{
		{"accepted", http.StatusOK, `{"status":"accepted","tx_hash":"abc"}`, 0, Accepted, false},
		{"pending", http.StatusAccepted, `{"status":"pending"}`, 0, UnconfirmedTimeout, false},
		{"gateway timeout", http.StatusGatewayTimeout, `{}`, 0, UnconfirmedTimeout, true},
		{"rejected", http.StatusOK, `{"status":"failed","error":"bad seqno"}`, 0, Failed, true},
		{"server error", http.StatusInternalServerError, `{}`, 0, Failed, true},
		{"client timeout", http.StatusOK, `{"status":"accepted"}`, 300 * time.Millisecond, UnconfirmedTimeout, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got SendRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				if tc.delay > 0 {
					time.Sleep(tc.delay)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			b := NewBroadcaster(newClient(), srv.URL, "k", 50*time.Millisecond)
			res := b.Send(context.Background(), SendRequest{
				Messages:   []Message{{Address: "EQdest", Amount: "1000"}},
				ValidUntil: 1700000000,
				Reference:  "p_1",
			})
			if res.Outcome != tc.want {
				t.Fatalf("outcome = %s, want %s (err %v)", res.Outcome, tc.want, res.Err)
			}
			if (res.Err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", res.Err, tc.wantErr)
			}
			if tc.delay == 0 && (len(got.Messages) != 1 || got.ValidUntil != 1700000000) {
				t.Fatalf("request = %+v", got)
			}
		})
	}
}

func TestBroadcasterUnreachableIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	res := NewBroadcaster(newClient(), addr, "", time.Second).Send(context.Background(), SendRequest{Messages: []Message{{Address: "EQ", Amount: "1"}}})
	if res.Outcome != Failed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
}

func TestToNano(t *testing.T) {
	if got := ToNano(decimal.RequireFromString("1.2345678919")); got != 1234567891 {
		t.Fatalf("ToNano = %d", got)
	}
}
