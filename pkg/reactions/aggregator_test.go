package reactions

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/chaterr"
	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

func TestTallyStartsAtZero(t *testing.T) {
	a := New()
	assert.Equal(t, models.ReactionTally{}, a.Tally("m1"))

	require.NoError(t, a.Record("m1", models.Like))
	assert.Equal(t, models.ReactionTally{Likes: 1}, a.Tally("m1"))
}

func TestRepeatReactionsAreCounted(t *testing.T) {
	a := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Record("m1", models.Dislike))
	}
	require.NoError(t, a.Record("m1", models.Like))
	assert.Equal(t, models.ReactionTally{Likes: 1, Dislikes: 3}, a.Tally("m1"))
}

func TestRecordUnknownKind(t *testing.T) {
	a := New()
	err := a.Record("m1", models.ReactionKind("love"))
	assert.True(t, errors.Is(err, chaterr.ErrUnknownReaction))
	assert.Equal(t, models.ReactionTally{}, a.Tally("m1"))
}

func TestConcurrentRecord(t *testing.T) {
	a := New()
	const workers, per = 8, 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			kind := models.Like
			if w%2 == 1 {
				kind = models.Dislike
			}
			for i := 0; i < per; i++ {
				_ = a.Record("hot", kind)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, models.ReactionTally{Likes: workers / 2 * per, Dislikes: workers / 2 * per}, a.Tally("hot"))
}

func TestMergeNeverDecreases(t *testing.T) {
	a := New()
	_ = a.Record("m1", models.Like)
	_ = a.Record("m1", models.Like)

	a.Merge("m1", models.ReactionTally{Likes: 1, Dislikes: 4})
	assert.Equal(t, models.ReactionTally{Likes: 2, Dislikes: 4}, a.Tally("m1"))

	a.Merge("m2", models.ReactionTally{})
	assert.Empty(t, a.Snapshot([]string{"m2"}))
}

func TestForget(t *testing.T) {
	a := New()
	_ = a.Record("m1", models.Like)
	_ = a.Record("m2", models.Like)
	a.Forget("m1")

	assert.Equal(t, models.ReactionTally{}, a.Tally("m1"))
	assert.Equal(t, map[string]models.ReactionTally{"m2": {Likes: 1}}, a.Snapshot([]string{"m1", "m2"}))
}
