package oanda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamBody = `{"type":"HEARTBEAT","time":"2024-03-04T00:00:05.000000000Z"}
{"type":"PRICE","time":"2024-03-04T00:00:10.000000000Z","bids":[{"price":"1.10000","liquidity":1000000}],"asks":[{"price":"1.10020","liquidity":1000000}],"closeoutBid":"1.10000","closeoutAsk":"1.10020","instrument":"EUR_USD"}

not-json
{"type":"PRICE","time":"2024-03-04T00:00:40.000000000Z","closeoutBid":"1.10100","closeoutAsk":"1.10120","instrument":"EUR_USD"}
`

// go test -v --run TestStreamURL
func TestStreamURL(t *testing.T) {
	c := NewStreamClient("https://stream-fxpractice.oanda.com/", "101-001-1", "key", time.Second)

	got := c.StreamURL([]string{"EUR/USD", "USD_JPY"})
	assert.Equal(t,
		"https://stream-fxpractice.oanda.com/v3/accounts/101-001-1/pricing/stream?instruments=EUR_USD%2CUSD_JPY",
		got)
}

// go test -v --run TestStream
func TestStream(t *testing.T) {
	var gotAuth, gotInstruments string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotInstruments = r.URL.Query().Get("instruments")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, streamBody)
	}))
	defer srv.Close()

	c := NewStreamClient(srv.URL, "acct", "secret", time.Second)
	out := make(chan Event, 16)

	err := c.Stream(context.Background(), []string{"EUR/USD"}, out)
	require.ErrorIs(t, err, ErrStreamClosed)
	close(out)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "EUR_USD", gotInstruments)

	var kinds []EventKind
	for ev := range out {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{KindHeartbeat, KindPrice, KindMalformed, KindPrice}, kinds)
}

// go test -v --run TestStreamHTTPError
func TestStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"Insufficient authorization"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewStreamClient(srv.URL, "acct", "bad", time.Second)
	err := c.Stream(context.Background(), []string{"EUR/USD"}, make(chan Event, 1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStreamClosed))
	assert.Contains(t, err.Error(), "401")
}

// go test -v --run TestReadEventsCancelled
func TestReadEventsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// unbuffered and nobody reading: the send must give way to ctx
	err := ReadEvents(ctx, strings.NewReader(streamBody), make(chan Event))
	assert.ErrorIs(t, err, context.Canceled)
}
