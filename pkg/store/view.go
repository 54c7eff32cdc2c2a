package store

import (
	"iter"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// View is a restartable, read-only window onto one channel's log.
type View struct {
	store   *MessageStore
	channel string
}

func (v View) Channel() string { return v.channel }

// All yields the channel's messages in order. Each call starts over from a
// fresh snapshot, so a view can be ranged again after new appends.
func (v View) All() iter.Seq[models.Message] {
	return func(yield func(models.Message) bool) {
		for _, m := range v.store.snapshot(v.channel) {
			if !yield(m) {
				return
			}
		}
	}
}

// Messages returns the current contents as a slice.
func (v View) Messages() []models.Message {
	return v.store.snapshot(v.channel)
}

func (v View) Len() int {
	return v.store.Len(v.channel)
}
