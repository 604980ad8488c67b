package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestShutdownHandler_ClosesInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)

	var order []string
	sh.AddFunc("logger", func() error { order = append(order, "logger"); return nil })
	sh.AddFunc("metrics", func() error { order = append(order, "metrics"); return errors.New("flush failed") })

	err := sh.Shutdown()
	assert.ErrorContains(t, err, "metrics: flush failed")
	assert.Equal(t, []string{"metrics", "logger"}, order)
}

func TestShutdownHandler_Timeout(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), 20*time.Millisecond)
	block := make(chan struct{})
	defer close(block)
	sh.AddFunc("stuck", func() error { <-block; return nil })

	assert.ErrorContains(t, sh.Shutdown(), "stuck: shutdown timeout")
}

func TestShutdownHandler_WatchFollowsParent(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := sh.Watch(parent)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("watch context not cancelled with parent")
	}
}
