package channel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

// DefaultRooms is the public room list used when no catalogue is configured.
var DefaultRooms = []models.ChannelInfo{
	{ID: "public", Name: "Public", Category: "Lobby"},
	{ID: "friends", Name: "Friends", Category: "Lobby"},
	{ID: "fans", Name: "Fans", Category: "Lobby"},
	{ID: "reality1", Name: "The Bachelor Live", Category: "Reality TV"},
	{ID: "reality2", Name: "Survivor Discussion", Category: "Reality TV"},
	{ID: "sports1", Name: "NBA Finals Game 1", Category: "Sports"},
	{ID: "sports2", Name: "Premier League Chat", Category: "Sports"},
}

// Catalogue is the set of known public rooms.
type Catalogue struct {
	mu    sync.RWMutex
	rooms map[string]models.ChannelInfo
}

// NewCatalogue builds a catalogue. Rooms without an id get one slugified
// from their name; invalid or duplicate ids are rejected.
func NewCatalogue(rooms []models.ChannelInfo) (*Catalogue, error) {
	c := &Catalogue{rooms: make(map[string]models.ChannelInfo, len(rooms))}
	for _, r := range rooms {
		if r.ID == "" {
			r.ID = Slugify(r.Name)
		}
		if !ValidatePublic(r.ID) {
			return nil, fmt.Errorf("invalid public channel id %q", r.ID)
		}
		if _, dup := c.rooms[r.ID]; dup {
			return nil, fmt.Errorf("duplicate public channel id %q", r.ID)
		}
		if r.Name == "" {
			r.Name = r.ID
		}
		r.Kind = models.ChannelPublic
		c.rooms[r.ID] = r
	}
	return c, nil
}

func (c *Catalogue) Lookup(id string) (models.ChannelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[id]
	return r, ok
}

// All returns the rooms sorted by id.
func (c *Catalogue) All() []models.ChannelInfo {
	c.mu.RLock()
	out := make([]models.ChannelInfo, 0, len(c.rooms))
	for _, r := range c.rooms {
		out = append(out, r)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Describe returns catalogue info for public ids and a synthesised entry
// for direct ids.
func (c *Catalogue) Describe(id string) (models.ChannelInfo, bool) {
	if r, ok := c.Lookup(id); ok {
		return r, true
	}
	kind, ok := Kind(id)
	if !ok {
		return models.ChannelInfo{}, false
	}
	info := models.ChannelInfo{ID: id, Name: id, Kind: kind}
	if a, b, ok := Participants(id); ok {
		info.Name = a + " & " + b
		info.Category = "Direct"
	}
	return info, true
}
