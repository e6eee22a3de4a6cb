package precorrector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopReturnsSentenceUnchanged(t *testing.T) {
	out, err := Noop{}.Correct(context.Background(), "今天天气很好。")
	require.NoError(t, err)
	assert.Equal(t, "今天天气很好。", out)
}
