package convo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

type memJournal struct {
	mu       sync.Mutex
	turns    map[string][]models.Turn
	failLoad bool
	failSave bool
}

func newMemJournal() *memJournal {
	return &memJournal{turns: make(map[string][]models.Turn)}
}

func (j *memJournal) AppendTurn(_ context.Context, id string, t models.Turn) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failSave {
		return errors.New("disk full")
	}
	j.turns[id] = append(j.turns[id], t)
	return nil
}

func (j *memJournal) LoadTurns(_ context.Context, id string) ([]models.Turn, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failLoad {
		return nil, errors.New("corrupt")
	}
	return append([]models.Turn(nil), j.turns[id]...), nil
}

func (j *memJournal) DeleteConversation(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.turns, id)
	return nil
}

func (j *memJournal) ConversationIDs(context.Context) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := make([]string, 0, len(j.turns))
	for id := range j.turns {
		ids = append(ids, id)
	}
	return ids, nil
}

func userTurn(text string) models.Turn {
	return models.Turn{Role: models.RoleUser, Text: text}
}

func texts(turns []models.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Text
	}
	return out
}

func TestGetOrCreate(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})

	conv, err := s.GetOrCreate("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Empty(t, conv.Turns)
	assert.Equal(t, []string{"c1"}, s.IDs())

	_, err = s.GetOrCreate("")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestAppend_OrderAndTimestamps(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	require.NoError(t, s.Append("c1", userTurn("hello")))
	require.NoError(t, s.Append("c1", models.Turn{Role: models.RoleToolResult, Text: "tool", CapabilityID: "order"}))
	require.NoError(t, s.Append("c1", models.Turn{Role: models.RoleAgent, Text: "bye"}))

	turns := s.Snapshot("c1", 0)
	assert.Equal(t, []string{"hello", "tool", "bye"}, texts(turns))
	for _, turn := range turns {
		assert.False(t, turn.Timestamp.IsZero())
	}
	assert.Equal(t, "order", turns[1].CapabilityID)
}

func TestAppend_Validation(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	assert.ErrorIs(t, s.Append("c1", models.Turn{Role: "system", Text: "x"}), ErrInvalidRole)
	assert.ErrorIs(t, s.Append("", userTurn("x")), ErrEmptyID)
}

func TestSnapshot_CopiesAndLimits(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append("c1", userTurn(fmt.Sprintf("m%d", i))))
	}

	last := s.Snapshot("c1", 2)
	assert.Equal(t, []string{"m3", "m4"}, texts(last))

	last[0].Text = "mutated"
	assert.Equal(t, "m3", s.Snapshot("c1", 2)[0].Text)

	assert.Nil(t, s.Snapshot("missing", 0))
	assert.NotContains(t, s.IDs(), "missing")
}

func TestMaxTurnsEviction(t *testing.T) {
	s := New(Options{MaxTurns: 3, Logger: zerolog.Nop()})
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append("c1", userTurn(fmt.Sprintf("m%d", i))))
	}
	assert.Equal(t, []string{"m2", "m3", "m4"}, texts(s.Snapshot("c1", 0)))
}

func TestRemove(t *testing.T) {
	j := newMemJournal()
	s := New(Options{Journal: j, Logger: zerolog.Nop()})
	require.NoError(t, s.Append("c1", userTurn("hello")))

	assert.True(t, s.Remove("c1"))
	assert.False(t, s.Remove("c1"))
	assert.Nil(t, s.Snapshot("c1", 0))
	assert.Empty(t, j.turns["c1"])

	conv, err := s.GetOrCreate("c1")
	require.NoError(t, err)
	assert.Empty(t, conv.Turns)
}

func TestConcurrentAppend_PerKeyOrdering(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", w%2)
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, s.Append(id, userTurn(fmt.Sprintf("w%d-%03d", w, i))))
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, id := range []string{"conv-0", "conv-1"} {
		turns := s.Snapshot(id, 0)
		total += len(turns)

		// Each writer's turns appear in the order it wrote them.
		lastSeen := map[string]string{}
		for _, turn := range turns {
			writer := turn.Text[:2]
			if prev, ok := lastSeen[writer]; ok {
				assert.Less(t, prev, turn.Text)
			}
			lastSeen[writer] = turn.Text
		}
	}
	assert.Equal(t, writers*perWriter, total)
}

func TestConversationsDoNotBlockEachOther(t *testing.T) {
	s := New(Options{Logger: zerolog.Nop()})
	require.NoError(t, s.Append("busy", userTurn("x")))

	e := s.entry("busy")
	e.mu.Lock()
	defer e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = s.Append("other", userTurn("y"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("append to an unrelated conversation blocked")
	}
}

func TestJournal_WriteThroughAndRehydrate(t *testing.T) {
	j := newMemJournal()
	first := New(Options{Journal: j, Logger: zerolog.Nop()})
	require.NoError(t, first.Append("c1", userTurn("hello")))
	require.NoError(t, first.Append("c1", models.Turn{Role: models.RoleAgent, Text: "hi"}))

	second := New(Options{Journal: j, Logger: zerolog.Nop()})
	conv, err := second.GetOrCreate("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "hi"}, texts(conv.Turns))

	require.NoError(t, second.Append("c1", userTurn("again")))
	assert.Equal(t, []string{"hello", "hi", "again"}, texts(second.Snapshot("c1", 0)))
	assert.Len(t, j.turns["c1"], 3)
}

func TestJournal_RehydratesOnReadAndRemove(t *testing.T) {
	j := newMemJournal()
	first := New(Options{Journal: j, Logger: zerolog.Nop()})
	require.NoError(t, first.Append("c1", userTurn("hello")))
	require.NoError(t, first.Append("c1", models.Turn{Role: models.RoleAgent, Text: "hi"}))

	second := New(Options{Journal: j, Logger: zerolog.Nop()})
	assert.Equal(t, []string{"c1"}, second.IDs())
	assert.Equal(t, []string{"hello", "hi"}, texts(second.Snapshot("c1", 0)))
	assert.Equal(t, []string{"hi"}, texts(second.Snapshot("c1", 1)))
	assert.Nil(t, second.Snapshot("unknown", 0))
	assert.Equal(t, []string{"c1"}, second.IDs(), "unknown id must not be created")

	third := New(Options{Journal: j, Logger: zerolog.Nop()})
	assert.True(t, third.Remove("c1"))
	assert.Empty(t, j.turns["c1"])
	assert.Empty(t, third.IDs())
	assert.False(t, third.Remove("c1"))
}

func TestJournal_Failures(t *testing.T) {
	j := newMemJournal()
	j.failLoad = true
	s := New(Options{Journal: j, Logger: zerolog.Nop()})

	_, err := s.GetOrCreate("c1")
	assert.Error(t, err)
	assert.Error(t, s.Append("c1", userTurn("x")))

	j.failLoad = false
	j.failSave = true
	assert.Error(t, s.Append("c1", userTurn("x")))
	assert.Empty(t, s.Snapshot("c1", 0))

	j.failSave = false
	require.NoError(t, s.Append("c1", userTurn("x")))
	assert.Equal(t, []string{"x"}, texts(s.Snapshot("c1", 0)))
}
