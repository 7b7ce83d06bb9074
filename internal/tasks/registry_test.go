package tasks

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

var sony = domain.ProductInfo{Brand: "Sony", Name: "WH-1000XM5", URL: "https://shop.example/p/1"}

func TestCreate_ReusesInFlightTask(t *testing.T) {
	r := NewRegistry(logging.Discard())

	first, created := r.Create("shop.example:p1", sony)
	require.True(t, created)
	_, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskNew, first.Status)

	second, created := r.Create("shop.example:p1", sony)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, created := r.Create("shop.example:p2", sony)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreate_NewTaskAfterTerminal(t *testing.T) {
	r := NewRegistry(logging.Discard())

	first, _ := r.Create("k", sony)
	require.NoError(t, r.Fail(first.ID, "boom"))

	second, created := r.Create("k", sony)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestTransitions(t *testing.T) {
	r := NewRegistry(logging.Discard())
	task, _ := r.Create("k", sony)

	require.NoError(t, r.Start(task.ID))
	assert.ErrorIs(t, r.Start(task.ID), ErrInvalidTransition)

	payload := &domain.ProductPayload{Brand: "Sony"}
	require.NoError(t, r.Complete(task.ID, payload))

	got, err := r.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDone, got.Status)
	assert.Equal(t, payload, got.Result)

	assert.ErrorIs(t, r.Fail(task.ID, "late"), ErrInvalidTransition)
	assert.ErrorIs(t, r.Complete("missing", nil), domain.ErrTaskNotFound)
}

func TestGet_Unknown(t *testing.T) {
	r := NewRegistry(logging.Discard())

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestSubscribe_ReceivesSnapshotThenTransitions(t *testing.T) {
	r := NewRegistry(logging.Discard())
	task, _ := r.Create("k", sony)

	events, cancel, err := r.Subscribe(task.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, r.Start(task.ID))
	require.NoError(t, r.Complete(task.ID, &domain.ProductPayload{Brand: "Sony"}))

	var got []domain.TaskEvent
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, domain.WireStatusProcessing, got[0].Status)
	assert.Equal(t, domain.WireStatusProcessing, got[1].Status)
	assert.Equal(t, domain.WireStatusCompleted, got[2].Status)
	assert.Equal(t, "Sony", got[2].Data.Brand)
}

func TestSubscribe_TerminalTaskClosesImmediately(t *testing.T) {
	r := NewRegistry(logging.Discard())
	task, _ := r.Create("k", sony)
	require.NoError(t, r.Fail(task.ID, "analysis failed"))

	events, _, err := r.Subscribe(task.ID)
	require.NoError(t, err)

	ev, ok := <-events
	require.True(t, ok)
	assert.Equal(t, domain.WireStatusError, ev.Status)
	assert.Equal(t, "analysis failed", ev.Error)

	_, ok = <-events
	assert.False(t, ok)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	r := NewRegistry(logging.Discard())
	task, _ := r.Create("k", sony)

	events, cancel, err := r.Subscribe(task.ID)
	require.NoError(t, err)
	<-events
	cancel()

	require.NoError(t, r.Start(task.ID))
	_, ok := <-events
	assert.False(t, ok)

	_, _, err = r.Subscribe("missing")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestPrune(t *testing.T) {
	r := NewRegistry(logging.Discard())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	done, _ := r.Create("a", sony)
	require.NoError(t, r.Fail(done.ID, "x"))
	r.Create("b", sony)

	assert.Equal(t, 0, r.Prune(now))
	assert.Equal(t, 1, r.Prune(now.Add(time.Minute)))
	assert.Equal(t, 1, r.Len())
}
