// Package channel resolves channel identifiers. Public rooms use short
// lowercase slugs; direct conversations use a "dm_" id derived from the two
// participants, so the two namespaces can never collide.
package channel

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/newprojectblitz/chat-chrome-chatterbox/pkg/models"
)

const (
	directPrefix = "dm_"
	directSep    = "_"
	maxSlugLen   = 32
)

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// participant ids are percent-encoded down to this set, which leaves "_"
// free to separate the pair and keeps the id usable as a storage key.
var escapedRe = regexp.MustCompile(`^[A-Za-z0-9.%-]+$`)

func escape(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func unescape(part string) (string, bool) {
	if !escapedRe.MatchString(part) {
		return "", false
	}
	id, err := url.PathUnescape(part)
	if err != nil {
		return "", false
	}
	return id, true
}

// Resolve returns the direct channel id shared by participants a and b.
// Resolve(a, b) == Resolve(b, a).
func Resolve(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return directPrefix + escape(pair[0]) + directSep + escape(pair[1])
}

// Participants recovers the sorted participant pair of a direct channel id.
func Participants(id string) (string, string, bool) {
	if !strings.HasPrefix(id, directPrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(id, directPrefix), directSep)
	if len(parts) != 2 {
		return "", "", false
	}
	a, ok := unescape(parts[0])
	if !ok {
		return "", "", false
	}
	b, ok := unescape(parts[1])
	if !ok {
		return "", "", false
	}
	return a, b, true
}

// ValidatePublic reports whether s is usable as a public room id.
func ValidatePublic(s string) bool {
	return len(s) <= maxSlugLen && slugRe.MatchString(s)
}

// Kind classifies an id. ok is false for ids that are neither a valid
// public slug nor a well formed direct id.
func Kind(id string) (models.ChannelKind, bool) {
	if _, _, ok := Participants(id); ok {
		return models.ChannelDirect, true
	}
	if ValidatePublic(id) {
		return models.ChannelPublic, true
	}
	return "", false
}

// Valid reports whether id names any channel.
func Valid(id string) bool {
	_, ok := Kind(id)
	return ok
}

// Slugify turns a display name into a public room slug.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s
}
