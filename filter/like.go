package filter

import "unicode"

// MatchLike reports whether subject matches pattern, where wild matches any
// run of characters, single matches exactly one character and esc makes the
// following pattern character literal. A trailing escape is dropped.
func MatchLike(pattern, subject string, wild, single, esc rune) bool {
	m := likeMatcher{wild: wild, single: single, esc: esc}
	return m.match([]rune(pattern), []rune(subject))
}

// MatchLikeFold is MatchLike with literal characters compared under simple
// case folding. The wildcard, single and escape characters are matched
// exactly.
func MatchLikeFold(pattern, subject string, wild, single, esc rune) bool {
	m := likeMatcher{wild: wild, single: single, esc: esc, fold: true}
	return m.match([]rune(pattern), []rune(subject))
}

type likeMatcher struct {
	wild, single, esc rune
	fold              bool
}

func (m likeMatcher) match(pattern, subject []rune) bool {
	if len(pattern) == 0 && len(subject) == 0 {
		return true
	}

	// Accumulate the literal prefix up to the first unescaped wildcard.
	var prefix []rune
	var stop rune
	stopped := false
	i := 0
scan:
	for i < len(pattern) {
		c := pattern[i]
		switch {
		case c == m.esc:
			if i+1 < len(pattern) {
				prefix = append(prefix, pattern[i+1])
			}
			i += 2
		case c == m.wild || c == m.single:
			stop, stopped = c, true
			break scan
		default:
			prefix = append(prefix, c)
			i++
		}
	}

	if !m.hasPrefix(subject, prefix) {
		return false
	}
	if !stopped {
		return len(subject) == len(prefix)
	}

	rest := pattern[i+1:]
	if stop == m.wild {
		for j := len(prefix); j <= len(subject); j++ {
			if m.match(rest, subject[j:]) {
				return true
			}
		}
		return false
	}
	if len(subject) <= len(prefix) {
		return false
	}
	return m.match(rest, subject[len(prefix)+1:])
}

func (m likeMatcher) hasPrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i, r := range prefix {
		if s[i] == r {
			continue
		}
		if !m.fold || !equalFold(s[i], r) {
			return false
		}
	}
	return true
}

// equalFold reports whether a and b are equal under simple Unicode case
// folding.
func equalFold(a, b rune) bool {
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}
