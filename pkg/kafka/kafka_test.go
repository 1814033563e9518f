package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	b, err := Encode([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = Encode("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = Encode(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	_, err = Encode(make(chan int))
	assert.Error(t, err)
}

func TestBackoffWithJitterStaysInRange(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, d, max, "attempt %d", attempt)
	}
	assert.GreaterOrEqual(t, backoffWithJitter(min, max, 1), min/2)
}

func TestConstructorsRequireBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}

func TestConsumerRejectsStartWithoutHandlers(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Error(t, c.Start())
}

func TestHookFuncsDefaults(t *testing.T) {
	var h ConsumerHook = HookFuncs{}
	ctx := context.Background()
	km := kafka.Message{Value: []byte("x")}
	gotCtx, gotMsg, data, err := h.BeforeHandle(ctx, "t", km, km.Value)
	require.NoError(t, err)
	assert.Equal(t, ctx, gotCtx)
	assert.Equal(t, km, gotMsg)
	assert.Equal(t, []byte("x"), data)

	var seen error
	h = HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { seen = err }}
	h.OnError(ctx, "t", km, nil, errors.New("boom"))
	assert.EqualError(t, seen, "boom")
}

func TestParseCompressionDefaultsToSnappy(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression(""))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
}
