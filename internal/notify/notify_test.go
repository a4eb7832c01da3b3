package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopNotifier(t *testing.T) {
	n := NoopNotifier{}
	ts, err := n.Notify(context.Background(), "hello", StatusInfo, "123.456")
	require.NoError(t, err)
	assert.Equal(t, "123.456", ts)
}

func TestEmojiForEveryStatus(t *testing.T) {
	for _, s := range []Status{StatusInfo, StatusSuccess, StatusFailed} {
		_, ok := emoji[s]
		assert.True(t, ok, "missing emoji for status %s", s)
	}
}
