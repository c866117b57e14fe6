package transport

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, l *EventLog, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Append([]byte(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
	}
}

func TestEventLogSequenceStartsAtOne(t *testing.T) {
	l := NewEventLog(16)

	seq, err := l.Append([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	seq, err = l.Append([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, uint64(2), l.Latest())
}

func TestEventLogReplayAllMarkers(t *testing.T) {
	// For every marker k in [0, n], replay must return exactly the events
	// with sequence numbers k+1..n, in order, with no gap reported while
	// nothing has been evicted.
	const n = 20
	l := NewEventLog(64)
	appendN(t, l, n)

	for k := uint64(0); k <= n; k++ {
		events, gap := l.Replay(k)
		assert.False(t, gap, "marker %d", k)
		require.Len(t, events, int(n-k), "marker %d", k)
		for i, e := range events {
			assert.Equal(t, k+uint64(i)+1, e.Seq)
		}
	}
}

func TestEventLogEmptyReplay(t *testing.T) {
	l := NewEventLog(16)

	events, gap := l.Replay(0)
	assert.Empty(t, events)
	assert.False(t, gap)
}

func TestEventLogEviction(t *testing.T) {
	l := NewEventLog(4)
	appendN(t, l, 10)

	// Entries 1..6 are evicted; only 7..10 remain.
	events, gap := l.Replay(0)
	require.Len(t, events, 4)
	assert.True(t, gap)
	assert.Equal(t, uint64(7), events[0].Seq)
	assert.Equal(t, uint64(10), events[3].Seq)

	// A marker just inside the retained window replays without a gap.
	events, gap = l.Replay(6)
	assert.Len(t, events, 4)
	assert.False(t, gap)

	// A marker below the window is a gap even when it matches no entry.
	_, gap = l.Replay(3)
	assert.True(t, gap)

	// Fully caught up.
	events, gap = l.Replay(10)
	assert.Empty(t, events)
	assert.False(t, gap)
}

func TestEventLogSequenceSurvivesEviction(t *testing.T) {
	l := NewEventLog(2)
	appendN(t, l, 5)

	seq, err := l.Append([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), seq, "eviction must not reuse sequence numbers")
}

func TestEventLogClose(t *testing.T) {
	l := NewEventLog(16)
	appendN(t, l, 3)
	l.Close()

	_, err := l.Append([]byte(`{}`))
	assert.ErrorIs(t, err, ErrLogClosed)

	// Retained entries stay replayable during teardown.
	events, gap := l.Replay(1)
	assert.Len(t, events, 2)
	assert.False(t, gap)
}

func TestEventLogLimitFallback(t *testing.T) {
	l := NewEventLog(0)
	assert.Equal(t, DefaultEventRetention, l.limit)
}
