package composer

import (
	"regexp"
	"strings"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

const (
	DefaultFont  = "system"
	DefaultColor = "#000000"
	DefaultSize  = "regular"
)

var (
	Fonts     = []string{"system", "comic", "typewriter"}
	FontSizes = []string{"small", "regular", "large"}

	colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

func oneOf(v string, allowed []string, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

// NormalizeStyle maps unknown fonts, sizes and colors to the defaults.
func NormalizeStyle(s models.Style) models.Style {
	s.Font = oneOf(s.Font, Fonts, DefaultFont)
	s.Size = oneOf(s.Size, FontSizes, DefaultSize)
	c := strings.TrimSpace(s.Color)
	if colorRe.MatchString(c) {
		s.Color = strings.ToUpper(c)
	} else {
		s.Color = DefaultColor
	}
	return s
}

// Stamp returns the sender block to embed in a new message.
func Stamp(id models.SenderIdentity) models.SenderIdentity {
	id.Name = strings.TrimSpace(id.Name)
	if id.Name == "" {
		id.Name = id.ID
	}
	id.Style = NormalizeStyle(id.Style)
	return id
}
