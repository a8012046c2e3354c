package lookup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxQueryRunes caps accepted query length before normalization.
const maxQueryRunes = 256

// cleaner folds compatibility forms (full-width digits, ligatures) to their
// canonical equivalents and strips control characters, so visually identical
// inputs map to one cache key.
var cleaner = transform.Chain(
	norm.NFKC,
	runes.Remove(runes.In(unicode.C)),
)

var (
	phoneSepRE = regexp.MustCompile(`[\s\-().]`)
	spaceRE    = regexp.MustCompile(`\s+`)

	phoneRE    = regexp.MustCompile(`^\+?\d{6,15}$`)
	emailRE    = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	upiRE      = regexp.MustCompile(`^[a-z0-9.\-_]{2,}@[a-z]{2,}$`)
	panRE      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ipRE       = regexp.MustCompile(`^[0-9a-fA-F:.]{3,45}$`)
	vehicleRE  = regexp.MustCompile(`^[A-Z0-9]{4,13}$`)
	ifscRE     = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	usernameRE = regexp.MustCompile(`^@?[a-z0-9_.]{2,64}$`)
)

// Normalize canonicalizes raw user input for the given query type. The
// result is the form stored in QueryRecord rows and embedded in cache keys.
// It reports ok=false when the input is empty, oversized, or fails the
// type's shape check.
func Normalize(qtype, raw string) (normalized string, ok bool) {
	s, _, err := transform.String(cleaner, raw)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	s = spaceRE.ReplaceAllString(s, " ")
	if s == "" || len([]rune(s)) > maxQueryRunes {
		return "", false
	}

	switch qtype {
	case TypePhone:
		s = phoneSepRE.ReplaceAllString(s, "")
		s = strings.TrimPrefix(s, "+")
		return s, phoneRE.MatchString("+" + s)
	case TypeEmail:
		s = strings.ToLower(s)
		return s, emailRE.MatchString(s)
	case TypeUPI:
		s = strings.ToLower(s)
		return s, upiRE.MatchString(s)
	case TypePAN:
		s = strings.ToUpper(phoneSepRE.ReplaceAllString(s, ""))
		return s, panRE.MatchString(s)
	case TypeIP:
		s = strings.ToLower(s)
		return s, ipRE.MatchString(s)
	case TypeVehicle:
		s = strings.ToUpper(phoneSepRE.ReplaceAllString(s, ""))
		return s, vehicleRE.MatchString(s)
	case TypeIFSC:
		s = strings.ToUpper(s)
		return s, ifscRE.MatchString(s)
	case TypeUsername:
		s = strings.TrimPrefix(strings.ToLower(s), "@")
		return s, usernameRE.MatchString(s)
	default:
		// Unknown types are normalized generically; the dispatcher rejects
		// them later if no provider supports the type.
		return strings.ToLower(s), true
	}
}

// Key builds the namespaced cache key for a normalized query. Namespacing by
// type keeps sources with overlapping query shapes (phone vs. vehicle) from
// colliding.
func Key(qtype, normalized string) string {
	return qtype + ":" + normalized
}
