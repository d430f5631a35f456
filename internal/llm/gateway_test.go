package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dispute-assistant/internal/common"
)

type fakeReply struct {
	err     error
	content string
	block   bool
}

// fakeClient replays scripted replies. The last reply repeats.
type fakeClient struct {
	replies []fakeReply
	calls   int
	mu      sync.Mutex
}

func (f *fakeClient) Complete(ctx context.Context, _ Request) (Response, error) {
	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	f.calls++
	reply := f.replies[idx]
	f.mu.Unlock()

	if reply.block {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	if reply.err != nil {
		return Response{}, reply.err
	}
	return Response{Content: reply.content}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testGatewayConfig() Config {
	return Config{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
		RateLimit:  1000,
	}
}

func TestGateway_Complete(t *testing.T) {
	transient := &common.RetryableError{Err: errors.New("502"), Retryable: true}
	permanent := &common.RetryableError{Err: errors.New("400"), Retryable: false}

	tests := []struct {
		name      string
		replies   []fakeReply
		want      string
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "first attempt succeeds",
			replies:   []fakeReply{{content: "ok"}},
			want:      "ok",
			wantCalls: 1,
		},
		{
			name:      "one retry recovers",
			replies:   []fakeReply{{err: transient}, {content: "ok"}},
			want:      "ok",
			wantCalls: 2,
		},
		{
			name:      "retry budget is bounded",
			replies:   []fakeReply{{err: transient}},
			wantCalls: 2,
			wantErr:   true,
		},
		{
			name:      "permanent errors are not retried",
			replies:   []fakeReply{{err: permanent}},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{replies: tt.replies}
			gw := NewGateway(client, testGatewayConfig(), nil)
			defer gw.Close()

			got, err := gw.Complete(context.Background(), Request{Prompt: "p"})
			assert.Equal(t, tt.wantCalls, client.callCount())
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrModelUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateway_PerAttemptTimeout(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{{block: true}}}
	cfg := testGatewayConfig()
	cfg.Timeout = 20 * time.Millisecond
	gw := NewGateway(client, cfg, nil)
	defer gw.Close()

	_, err := gw.Complete(context.Background(), Request{Prompt: "p"})
	require.ErrorIs(t, err, common.ErrModelUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, client.callCount())
}

func TestGateway_CachesSuccessfulCompletions(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{{content: "cached"}}}
	gw := NewGateway(client, testGatewayConfig(), nil)
	defer gw.Close()

	for i := 0; i < 3; i++ {
		got, err := gw.Complete(context.Background(), Request{System: "s", Prompt: "same"})
		require.NoError(t, err)
		assert.Equal(t, "cached", got)
	}
	assert.Equal(t, 1, client.callCount())

	_, err := gw.Complete(context.Background(), Request{System: "s", Prompt: "different"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())
}

func TestGateway_CanceledContext(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{{content: "ok"}}}
	gw := NewGateway(client, testGatewayConfig(), nil)
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Complete(ctx, Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 0, client.callCount())
}
