package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedCallback is returned for payloads without Body.stkCallback.
var ErrMalformedCallback = errors.New("malformed mpesa callback")

// Callback is the normalized result of an STK push.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            decimal.Decimal
	Phone             string
	Receipt           string
}

// Paid reports whether the customer completed the payment.
func (c Callback) Paid() bool {
	return c.ResultCode == 0
}

type callbackEnvelope struct {
	Body struct {
		STKCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes a Daraja STK callback. Successful payments must carry
// Amount, PhoneNumber and MpesaReceiptNumber.
func ParseCallback(body []byte) (Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.STKCallback
	if cb == nil {
		return Callback{}, ErrMalformedCallback
	}
	out := Callback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if !out.Paid() {
		return out, nil
	}

	for _, item := range cb.CallbackMetadata.Item {
		value := strings.Trim(string(item.Value), `"`)
		switch item.Name {
		case "Amount":
			amount, err := decimal.NewFromString(value)
			if err != nil {
				return Callback{}, fmt.Errorf("%w: amount %q", ErrMalformedCallback, value)
			}
			out.Amount = amount
		case "PhoneNumber":
			out.Phone = value
		case "MpesaReceiptNumber":
			out.Receipt = value
		}
	}
	if out.Phone == "" || out.Receipt == "" || !out.Amount.IsPositive() {
		return Callback{}, fmt.Errorf("%w: missing payment metadata", ErrMalformedCallback)
	}
	return out, nil
}

// MSISDN converts a local number such as 0712345678 to 254712345678.
func MSISDN(phone string) string {
	p := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	switch {
	case strings.HasPrefix(p, "254"):
		return p
	case strings.HasPrefix(p, "0") && len(p) == 10:
		return "254" + p[1:]
	case len(p) == 9:
		return "254" + p
	default:
		return p
	}
}

// LocalPhone converts 254712345678 back to 0712345678.
func LocalPhone(msisdn string) string {
	p := strings.TrimPrefix(strings.TrimSpace(msisdn), "+")
	if strings.HasPrefix(p, "254") && len(p) == 12 {
		return "0" + p[3:]
	}
	return p
}
