package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIterationLimit(t *testing.T) {
	limit := IterationLimit(10)
	require.True(t, limit.More(0))
	require.True(t, limit.More(9))
	require.False(t, limit.More(10))
	require.False(t, limit.More(11))
}

func TestTimeLimit(t *testing.T) {
	limit := NewTimeLimit(time.Hour)
	require.True(t, limit.More(0))
	require.True(t, limit.More(1<<30))

	expired := TimeLimit{Deadline: time.Now().Add(-time.Second)}
	require.False(t, expired.More(0))
}
