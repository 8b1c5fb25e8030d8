// Package mpesa talks to the Safaricom Daraja API: client-credential tokens,
// STK push requests and payment callbacks.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

const (
	tokenPath         = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath       = "/mpesa/stkpush/v1/processrequest"
	timestampLayout   = "20060102150405"
	transactionType   = "CustomerPayBillOnline"
	transactionDesc   = "FuelNow Payment"
	defaultHTTPTimeout = 15 * time.Second
)

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("mpesa client is not configured")

// Config holds Daraja credentials.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// Configured reports whether the credentials needed for STK push are set.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.ConsumerKey != "" && c.ConsumerSecret != "" && c.ShortCode != "" && c.Passkey != ""
}

// STKResponse is Daraja's acknowledgement of an STK push.
type STKResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Client calls Daraja. Access tokens are cached until shortly before expiry.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// NewClient builds a client. A nil base client gets a 15 second timeout.
func NewClient(cfg Config, base *http.Client) *Client {
	if base == nil {
		base = &http.Client{Timeout: defaultHTTPTimeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{cfg: cfg, now: time.Now}
	source := oauth2.ReuseTokenSourceWithExpiry(nil, &tokenSource{cfg: cfg, http: base, now: c.clock}, time.Minute)
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.http = &http.Client{
		Timeout:   base.Timeout,
		Transport: &oauth2.Transport{Source: source, Base: transport},
	}
	return c
}

func (c *Client) clock() time.Time { return c.now() }

type stkRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPush asks the customer's handset to approve a payment. Amounts are
// rounded up to whole shillings.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference string) (STKResponse, error) {
	if !c.cfg.Configured() {
		return STKResponse{}, ErrNotConfigured
	}
	msisdn := MSISDN(phone)
	timestamp := c.now().In(nairobi).Format(timestampLayout)
	body, err := json.Marshal(stkRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            amount.Ceil().IntPart(),
		PartyA:            msisdn,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   transactionDesc,
	})
	if err != nil {
		return STKResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return STKResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return STKResponse{}, fmt.Errorf("stk push: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return STKResponse{}, fmt.Errorf("stk push status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out STKResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return STKResponse{}, fmt.Errorf("decode stk response: %w", err)
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return out, fmt.Errorf("stk push rejected: %s", out.ResponseDescription)
	}
	return out, nil
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// tokenSource fetches client-credential tokens with HTTP basic auth.
type tokenSource struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	req, err := http.NewRequest(http.MethodGet, s.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.cfg.ConsumerKey, s.cfg.ConsumerSecret)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mpesa token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mpesa token status %d", resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode mpesa token: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("mpesa token response without access_token")
	}
	ttl, err := strconv.Atoi(tr.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3599
	}
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(time.Duration(ttl) * time.Second),
	}, nil
}

var nairobi = time.FixedZone("EAT", 3*60*60)
