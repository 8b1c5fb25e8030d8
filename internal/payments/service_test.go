package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelnow/fuelnow/internal/apperror"
	"github.com/fuelnow/fuelnow/internal/engine"
	"github.com/fuelnow/fuelnow/internal/interest"
	"github.com/fuelnow/fuelnow/internal/mpesa"
	"github.com/fuelnow/fuelnow/internal/onboarding"
	"github.com/fuelnow/fuelnow/internal/store"
	"github.com/fuelnow/fuelnow/internal/wallet"
)

type fakePusher struct {
	reference string
	err       error
}

func (p *fakePusher) STKPush(_ context.Context, _ string, _ decimal.Decimal, ref string) (mpesa.STKResponse, error) {
	p.reference = ref
	if p.err != nil {
		return mpesa.STKResponse{}, p.err
	}
	return mpesa.STKResponse{CheckoutRequestID: "ws_CO_1", ResponseCode: "0"}, nil
}

type fixture struct {
	svc     *Service
	mem     *store.Memory
	account onboarding.Account
	pusher  *fakePusher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mem := store.NewMemory()
	policy, err := interest.NewPolicy(interest.DefaultRate)
	require.NoError(t, err)
	eng := engine.New(mem, policy, nil, nil, engine.Config{})
	accounts := onboarding.NewService(mem, nil, nil, onboarding.Config{})
	acct, err := accounts.Onboard(context.Background(), onboarding.Input{
		Name: "Amina", Phone: "0712345678", IDNumber: "1", CardType: wallet.CardCredit,
	})
	require.NoError(t, err)
	_, err = mem.Wallets.AdjustUsedCredit(context.Background(), acct.Wallet.ID, decimal.NewFromInt(600))
	require.NoError(t, err)

	pusher := &fakePusher{}
	return fixture{svc: NewService(eng, accounts, pusher, nil), mem: mem, account: acct, pusher: pusher}
}

const paidCallback = `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,
	"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"Amount","Value":200},
	{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"PhoneNumber","Value":254712345678}]}}}}`

func TestCallbackRepaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.HandleCallback(ctx, []byte(paidCallback))
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.False(t, res.Duplicate)
	assert.True(t, res.Repayment.Wallet.UsedCredit.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, "NLJ7RT61SV", res.Repayment.Transaction.IdempotencyKey)

	res, err = f.svc.HandleCallback(ctx, []byte(paidCallback))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	w, err := f.mem.Wallets.Get(ctx, f.account.Wallet.ID)
	require.NoError(t, err)
	assert.True(t, w.UsedCredit.Equal(decimal.NewFromInt(400)))
}

func TestCallbackFailedPayment(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.HandleCallback(context.Background(), []byte(`{"Body":{"stkCallback":{"ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`))
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, "Request cancelled by user", res.Reason)

	_, err = f.svc.HandleCallback(context.Background(), []byte(`{}`))
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
}

func TestInitiate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Initiate(ctx, "0712345678", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	assert.Equal(t, "FUELNOW-"+f.account.Wallet.ID, f.pusher.reference)

	_, err = f.svc.Initiate(ctx, "0799999999", decimal.NewFromInt(100))
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	f.pusher.err = mpesa.ErrNotConfigured
	_, err = f.svc.Initiate(ctx, "0712345678", decimal.NewFromInt(100))
	assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

	f.pusher.err = errors.New("timeout")
	_, err = f.svc.Initiate(ctx, "0712345678", decimal.NewFromInt(100))
	assert.True(t, apperror.IsRetryable(err))
}

func TestCallbackHandlerAcknowledges(t *testing.T) {
	f := newFixture(t)
	app := fiber.New()
	app.Post("/callback", NewHandler(f.svc).Callback)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(paidCallback))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`garbage`))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
