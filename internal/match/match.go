// package match implements the normalization and fuzzy-matching gate used to
// decide whether a catalog search result corresponds to a free-text
// listening event.
//
// Matching is a boolean threshold gate over word sets, not a similarity
// score: the artist must match exactly after normalization, and track/album
// titles must clear fixed token-overlap ratios.
package match

import "strings"

const (
	trackThreshold = 0.70
	albumThreshold = 0.50
)

// Candidate is one catalog search result under consideration.
type Candidate struct {
	Artist string
	Track  string
	Album  string
}

// Normalize lower-cases s, replaces every character outside [a-z0-9] and
// whitespace with a space, collapses runs of whitespace, and trims.
//
// Total and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenSet splits a normalized string into its set of words.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

// overlapRatio computes |a ∩ b| / max(|a|, |b|) over two word sets.
// Both sets empty yields 0.
func overlapRatio(a, b map[string]struct{}) float64 {
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if larger == 0 {
		return 0
	}

	common := 0
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}

	return float64(common) / float64(larger)
}

// IsMatch reports whether the candidate corresponds to the target
// (artist, album, track) triple.
//
// The artist must be equal after normalization; artist names are treated as
// low-ambiguity keys. Track titles must overlap at >= 70% of the larger word
// set. When checkAlbum is set and both normalized album strings are
// non-empty, album titles must overlap at >= 50%; unresolvable album text
// (normalized to empty) is non-blocking.
func IsMatch(c Candidate, artist, album, track string, checkAlbum bool) bool {
	if Normalize(c.Artist) != Normalize(artist) {
		return false
	}

	if overlapRatio(tokenSet(Normalize(c.Track)), tokenSet(Normalize(track))) < trackThreshold {
		return false
	}

	if checkAlbum {
		candAlbum := Normalize(c.Album)
		wantAlbum := Normalize(album)
		if candAlbum != "" && wantAlbum != "" {
			if overlapRatio(tokenSet(candAlbum), tokenSet(wantAlbum)) < albumThreshold {
				return false
			}
		}
	}

	return true
}
