package ids_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/research-portal/internal/ids"
	"github.com/stretchr/testify/require"
)

func TestNewSortable_Monotonic(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	prev := ids.NewSortable(at)
	for i := 0; i < 100; i++ {
		next := ids.NewSortable(at)
		require.Greater(t, next, prev)
		prev = next
	}
	require.Greater(t, ids.NewSortable(at.Add(time.Millisecond)), prev)
}
