package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainOrderAndPanics(t *testing.T) {
	var order []string
	first := HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
			order = append(order, "before:1")
			return ctx, append(data, '1'), nil
		},
		After: func(context.Context, string, kafka.Message, error) { order = append(order, "after:1") },
	}
	second := HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
			order = append(order, "before:2")
			return ctx, append(data, '2'), nil
		},
		After: func(context.Context, string, kafka.Message, error) {
			order = append(order, "after:2")
			panic("ignored")
		},
	}
	chain := NewHookChain(first, nil, second)

	_, data, err := chain.BeforeHandle(context.Background(), "bars", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x12", string(data))

	chain.AfterHandle(context.Background(), "bars", kafka.Message{}, nil)
	assert.Equal(t, []string{"before:1", "before:2", "after:2", "after:1"}, order)
}

func TestHookChainBeforePanicBecomesError(t *testing.T) {
	var seen error
	chain := NewHookChain(
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, err error) { seen = err }},
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, []byte, error) {
			panic("boom")
		}},
	)
	_, _, err := chain.BeforeHandle(context.Background(), "bars", kafka.Message{}, nil)
	require.Error(t, err)
	assert.Equal(t, err, seen)
}

func TestTimingHook(t *testing.T) {
	var gotTopic string
	var gotErr error
	h := TimingHook(func(topic string, d time.Duration, err error) {
		gotTopic, gotErr = topic, err
		assert.GreaterOrEqual(t, d, time.Duration(0))
	})
	boom := errors.New("boom")
	ctx, _, err := h.BeforeHandle(context.Background(), "bars", kafka.Message{}, nil)
	require.NoError(t, err)
	h.AfterHandle(ctx, "bars", kafka.Message{}, boom)
	assert.Equal(t, "bars", gotTopic)
	assert.Equal(t, boom, gotErr)
}
