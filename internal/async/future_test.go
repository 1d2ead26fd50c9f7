package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo(t *testing.T) {
	f := Go(context.Background(), func(context.Context) (int, error) { return 7, nil })
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestResolved(t *testing.T) {
	want := errors.New("boom")
	f := Resolved("", want)
	select {
	case <-f.Done():
	default:
		t.Fatal("resolved future should be done")
	}
	_, err := f.Result()
	assert.ErrorIs(t, err, want)
}

func TestWaitCanceled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	f := Go(context.Background(), func(context.Context) (int, error) {
		<-block
		return 1, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThenPosts(t *testing.T) {
	queue := make(chan func(), 1)
	f := Resolved(3, nil)
	f.Then(func(fn func()) { queue <- fn }, func(v int, err error) {
		assert.Equal(t, 3, v)
		assert.NoError(t, err)
	})
	select {
	case fn := <-queue:
		fn()
	case <-time.After(time.Second):
		t.Fatal("completion was never posted")
	}
}
