package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recorder struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recorder) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "reservation",
			event: Event{Kind: KindReservation, Amount: d("500"), Interest: d("50"), Station: "STN-001"},
			want:  "Ksh 500 reserved (+Ksh 50 interest) at STN-001. Total: Ksh 550. Present your phone number or card to the attendant.",
		},
		{
			name:  "completion",
			event: Event{Kind: KindCompletion, Amount: d("480"), Interest: d("48"), Station: "STN-001", RemainingLimit: d("472")},
			want:  "Fuel purchase Ksh 480 (+Ksh 48 interest) at STN-001. Remaining limit: Ksh 472.",
		},
		{
			name:  "repayment with cents",
			event: Event{Kind: KindRepayment, Amount: d("123.5"), RemainingLimit: d("800")},
			want:  "Payment of Ksh 123.50 received. New limit: Ksh 800.",
		},
		{
			name:  "welcome credit",
			event: Event{Kind: KindWelcome, CardType: "credit", Amount: d("500"), RemainingLimit: d("1000")},
			want:  "Welcome to FuelNow. Your credit card is activated. Activation fee Ksh 500 received. Credit limit: Ksh 1000.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Render(tt.event)
			assert.Equal(t, tt.want, msg.Body)
			assert.Equal(t, tt.event.Kind, msg.Kind)
		})
	}
}

func TestQueueDispatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	q := NewQueue(client, "")
	require.NoError(t, q.Notify(ctx, Event{Phone: "0711000001", Kind: KindRepayment, Amount: d("200"), RemainingLimit: d("650")}))
	require.NoError(t, q.Notify(ctx, Event{Phone: "0711000002", Kind: KindTopUp, Amount: d("50"), RemainingLimit: d("50")}))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rec := &recorder{}
	disp := NewDispatcher(q, rec, quiet())
	delivered, err := disp.DeliverOne(ctx)
	require.NoError(t, err)
	assert.True(t, delivered)
	delivered, err = disp.DeliverOne(ctx)
	require.NoError(t, err)
	assert.True(t, delivered)

	require.Len(t, rec.sent, 2)
	assert.Equal(t, "0711000001", rec.sent[0].Destination, "oldest event first")
	assert.Equal(t, "Payment of Ksh 200 received. New limit: Ksh 650.", rec.sent[0].Body)
}

func TestDispatcherDropsMalformedAndReportsSendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	q := NewQueue(client, "test:outbox")
	require.NoError(t, client.LPush(ctx, "test:outbox", "{not json").Err())
	rec := &recorder{err: errors.New("gateway down")}
	disp := NewDispatcher(q, rec, quiet())

	delivered, err := disp.DeliverOne(ctx)
	require.NoError(t, err)
	assert.False(t, delivered)

	require.NoError(t, q.Notify(ctx, Event{Phone: "0711", Kind: KindRepayment, Amount: d("1")}))
	_, err = disp.DeliverOne(ctx)
	assert.ErrorContains(t, err, "gateway down")
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewQueue(client, "")
	rec := &recorder{}
	disp := NewDispatcher(q, rec, quiet())
	disp.timeout = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		disp.Run(ctx)
		close(done)
	}()
	require.NoError(t, q.Notify(context.Background(), Event{Phone: "0711", Kind: KindTopUp, Amount: d("10")}))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestSMSGatewaySend(t *testing.T) {
	var form url.Values
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/version1/messaging", r.URL.Path)
		apiKey = r.Header.Get("apiKey")
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	gw := NewSMSGateway(SMSGatewayConfig{BaseURL: srv.URL + "/", Username: "sandbox", APIKey: "k1", SenderID: "FUELNOW"}, srv.Client())
	err := gw.Send(context.Background(), Message{Destination: "+254711000001", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "k1", apiKey)
	assert.Equal(t, "sandbox", form.Get("username"))
	assert.Equal(t, "+254711000001", form.Get("to"))
	assert.Equal(t, "hello", form.Get("message"))
	assert.Equal(t, "FUELNOW", form.Get("from"))
}

func TestSMSGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw := NewSMSGateway(SMSGatewayConfig{BaseURL: srv.URL}, nil)
	err := gw.Send(context.Background(), Message{Destination: "0711", Body: "x"})
	assert.ErrorContains(t, err, "status 401")
}

func TestLoggerNotifierNilSafe(t *testing.T) {
	var n *LoggerNotifier
	assert.NoError(t, n.Send(context.Background(), Message{}))
	assert.NoError(t, NewLoggerNotifier(quiet()).Notify(context.Background(), Event{Kind: KindWelcome}))
}
