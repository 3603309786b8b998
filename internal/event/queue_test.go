package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noop = HandlerFunc(func(context.Context, any) error { return nil })

func names(q *Queue) []string {
	var out []string
	for {
		e, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, e.Name)
	}
}

func TestQueue_StrictPriorityFIFO(t *testing.T) {
	q := NewQueue()
	push := func(p Priority, name string) {
		require.NoError(t, q.Push(Entry{Priority: p, Name: name, Handler: noop}))
	}
	push(PriorityLow, "low-1")
	push(PriorityNormal, "normal-1")
	push(PriorityHigh, "high-1")
	push(PriorityNormal, "normal-2")
	push(PriorityImmediate, "imm-1")
	push(PriorityHigh, "high-2")

	assert.Equal(t, 6, q.Len())
	assert.Equal(t, []string{"imm-1", "high-1", "high-2", "normal-1", "normal-2", "low-1"}, names(q))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PushValidation(t *testing.T) {
	q := NewQueue()
	assert.ErrorIs(t, q.Push(Entry{Priority: Priority(9), Handler: noop}), ErrInvalidPriority)
	assert.ErrorIs(t, q.Push(Entry{Priority: PriorityNormal}), ErrNilHandler)
}

func TestQueue_RemoveIfKeepsOrder(t *testing.T) {
	q := NewQueue()
	for i, name := range []string{"stroke-p1-a", "other-a", "stroke-p2", "stroke-p1-b", "other-b"} {
		p := PriorityNormal
		if i == 4 {
			p = PriorityLow
		}
		require.NoError(t, q.Push(Entry{Priority: p, Name: name, Handler: noop, Args: name}))
	}

	n := q.RemoveIf(func(e Entry) bool {
		s, _ := e.Args.(string)
		return len(s) >= 9 && s[:9] == "stroke-p1"
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"other-a", "stroke-p2", "other-b"}, names(q))
	assert.Equal(t, uint64(2), q.removed.Load())
}

func TestQueue_RemoveIfSparesStop(t *testing.T) {
	q := NewQueue()
	q.pushStop()
	assert.Equal(t, 0, q.RemoveIf(func(Entry) bool { return true }))
	e, ok := q.TryPop()
	require.True(t, ok)
	assert.True(t, e.stop)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	got := make(chan Entry, 1)
	go func() {
		e, err := q.Pop(context.Background())
		if err == nil {
			got <- e
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(Entry{Priority: PriorityNormal, Name: "late", Handler: noop}))

	select {
	case e := <-got:
		assert.Equal(t, "late", e.Name)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueue_PopHonoursContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "immediate", PriorityImmediate.String())
	assert.Equal(t, "high", PriorityHigh.String())
	assert.Equal(t, "normal", PriorityNormal.String())
	assert.Equal(t, "low", PriorityLow.String())
	assert.Equal(t, "priority(7)", Priority(7).String())
	assert.False(t, Priority(-1).Valid())
}
