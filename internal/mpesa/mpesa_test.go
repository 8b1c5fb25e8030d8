package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func daraja(t *testing.T, tokenCalls *atomic.Int32, pushes chan<- stkRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" || r.URL.Query().Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req stkRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		pushes <- req
		_ = json.NewEncoder(w).Encode(STKResponse{
			MerchantRequestID: "m-1",
			CheckoutRequestID: "ws_CO_1",
			ResponseCode:      "0",
			CustomerMessage:   "Success. Request accepted for processing",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "pass",
		CallbackURL:    "https://fuelnow.example/api/v1/payments/mpesa/callback",
	}
}

func TestSTKPushReusesToken(t *testing.T) {
	var tokenCalls atomic.Int32
	pushes := make(chan stkRequest, 2)
	srv := daraja(t, &tokenCalls, pushes)

	c := NewClient(testConfig(srv.URL), srv.Client())
	c.now = func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }

	res, err := c.STKPush(context.Background(), "0712345678", decimal.RequireFromString("199.5"), "FUELNOW-w1")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	_, err = c.STKPush(context.Background(), "0712345678", decimal.NewFromInt(50), "FUELNOW-w1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tokenCalls.Load())

	req := <-pushes
	assert.Equal(t, "20240315123000", req.Timestamp)
	assert.Equal(t, Password("174379", "pass", "20240315123000"), req.Password)
	assert.Equal(t, int64(200), req.Amount)
	assert.Equal(t, "254712345678", req.PartyA)
	assert.Equal(t, "254712345678", req.PhoneNumber)
	assert.Equal(t, "174379", req.PartyB)
	assert.Equal(t, "CustomerPayBillOnline", req.TransactionType)
	assert.Equal(t, "FuelNow Payment", req.TransactionDesc)
}

func TestSTKPushRequiresConfig(t *testing.T) {
	c := NewClient(Config{}, nil)
	_, err := c.STKPush(context.Background(), "0712", decimal.NewFromInt(1), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseCallbackSuccess(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,
		"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":200.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
		{"Name":"TransactionDate","Value":20240315123011},{"Name":"PhoneNumber","Value":254712345678}]}}}}`)

	cb, err := ParseCallback(body)
	require.NoError(t, err)
	assert.True(t, cb.Paid())
	assert.True(t, cb.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "254712345678", cb.Phone)
	assert.Equal(t, "NLJ7RT61SV", cb.Receipt)
	assert.Equal(t, "0712345678", LocalPhone(cb.Phone))
}

func TestParseCallbackCancelled(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)
	cb, err := ParseCallback(body)
	require.NoError(t, err)
	assert.False(t, cb.Paid())
	assert.Equal(t, "Request cancelled by user", cb.ResultDesc)
}

func TestParseCallbackMalformed(t *testing.T) {
	for _, body := range []string{`not json`, `{"Body":{}}`, `{"Body":{"stkCallback":{"ResultCode":0}}}`} {
		_, err := ParseCallback([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedCallback, body)
	}
}

func TestPhoneConversions(t *testing.T) {
	assert.Equal(t, "254712345678", MSISDN("0712345678"))
	assert.Equal(t, "254712345678", MSISDN("+254712345678"))
	assert.Equal(t, "254712345678", MSISDN("712345678"))
	assert.Equal(t, "0712345678", LocalPhone("254712345678"))
	assert.Equal(t, "0712", LocalPhone("0712"))
}
