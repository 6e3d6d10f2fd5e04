package trace

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
)

func stepClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

func TestNilTraceIsNoop(t *testing.T) {
	var tr *Trace

	assert.False(t, tr.Enabled())
	assert.Empty(t, tr.ID())
	tr.Stage(StateReceived, time.Millisecond)
	tr.NegationCheck("spicy", "e1", 0.9, "lexical", true)
	tr.Error(StateError, "StoreUnavailable")
	assert.Nil(t, tr.Events())
}

func TestTrace_RecordsEventsInOrder(t *testing.T) {
	tr := NewWithClock(stepClock(time.Millisecond))
	_, err := uuid.Parse(tr.ID())
	require.NoError(t, err)

	c, err := query.New("noodles", nil, nil, []string{"spicy"})
	require.NoError(t, err)

	tr.Stage(StateRewritten, 2*time.Millisecond)
	tr.Components(c)
	tr.BoundDropped("dropped price_max 5: below price_min 10")
	tr.Filters("@org_id:{$org_id}", map[string]string{"org_id": "org-1"})
	tr.NegationCheck("spicy", "e1", 0.95, "lexical", true)
	tr.NegationCheck("spicy", "e2", 0.1, "lexical", false)
	tr.NegationFallback("spicy", errors.New("embedding down"))
	tr.NegationEmptied(2)

	events := tr.Events()
	require.Len(t, events, 8)

	kinds := make([]Kind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []Kind{
		KindStage, KindComponents, KindBoundDropped, KindFilters,
		KindNegationCheck, KindNegationCheck, KindNegationFallback, KindNegationEmptied,
	}, kinds)

	assert.Equal(t, StateRewritten, events[0].State)
	assert.InDelta(t, 2.0, events[0].DurationMS, 1e-9)
	assert.InDelta(t, 1.0, events[0].OffsetMS, 1e-9)
	assert.Equal(t, DecisionExcluded, events[4].Decision)
	assert.Equal(t, DecisionKept, events[5].Decision)
	require.NotNil(t, events[5].Similarity)
	assert.InDelta(t, 0.1, *events[5].Similarity, 1e-9)
	assert.Equal(t, "embedding down", events[6].Message)
	assert.Equal(t, 2, events[7].Count)
}

func TestTrace_ConcurrentAdds(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.NegationCheck("term", "e", 0.5, "semantic", false)
		}()
	}
	wg.Wait()
	assert.Len(t, tr.Events(), 50)
}

func TestTrace_EventsReturnsCopy(t *testing.T) {
	tr := New()
	tr.Stage(StateReceived, 0)
	ev := tr.Events()
	ev[0].Kind = KindError
	assert.Equal(t, KindStage, tr.Events()[0].Kind)
}
