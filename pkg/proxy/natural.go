package proxy

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRun = regexp.MustCompile(`\d*\.\d+|\d+`)

type keyPart struct {
	text   string
	number float64
}

// naturalKey splits s into alternating text and number runs. The result
// always starts and ends with a text run, which may be empty.
func naturalKey(s string) []keyPart {
	locs := numberRun.FindAllStringIndex(s, -1)
	parts := make([]keyPart, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		parts = append(parts, keyPart{text: strings.ToLower(s[last:loc[0]])})
		n, _ := strconv.ParseFloat(s[loc[0]:loc[1]], 64)
		parts = append(parts, keyPart{number: n})
		last = loc[1]
	}
	return append(parts, keyPart{text: strings.ToLower(s[last:])})
}

// NaturalCompare orders a and b the way a person reads them: text runs
// compare case-insensitively, number runs by value. Keys that only differ
// in case or zero padding fall back to a plain comparison.
func NaturalCompare(a, b string) int {
	ka, kb := naturalKey(a), naturalKey(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if i%2 == 0 {
			if c := strings.Compare(ka[i].text, kb[i].text); c != 0 {
				return c
			}
			continue
		}
		switch {
		case ka[i].number < kb[i].number:
			return -1
		case ka[i].number > kb[i].number:
			return 1
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	}
	return strings.Compare(a, b)
}

// NaturalLess reports whether a sorts before b in ascending natural order.
func NaturalLess(a, b string) bool {
	return NaturalCompare(a, b) < 0
}
