package extract

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errLabelShape = errors.New("unexpected label shape")

// parseReviews reads an accessible label such as "4.6 stars 1,234 Reviews"
// or "4,6 estrellas 87 reseñas". The first token is the average, the third
// the count. Both must parse or neither is returned.
func parseReviews(label string) (avg float64, count int, err error) {
	tokens := strings.Fields(label)
	if len(tokens) < 3 {
		return 0, 0, fmt.Errorf("%q: %w", label, errLabelShape)
	}

	avg, err = strconv.ParseFloat(strings.ReplaceAll(tokens[0], ",", "."), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: average: %w", label, errLabelShape)
	}
	if math.IsNaN(avg) || avg < 0 || avg > 5 {
		return 0, 0, fmt.Errorf("%q: average %.2f out of range: %w", label, avg, errLabelShape)
	}

	digits := strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, tokens[2])
	count, err = strconv.Atoi(strings.Trim(digits, "()"))
	if err != nil || count < 0 {
		return 0, 0, fmt.Errorf("%q: count: %w", label, errLabelShape)
	}
	return avg, count, nil
}

// parseCoords pulls "@lat,lon" out of a Maps URL, e.g.
// https://www.google.com/maps/place/X/@40.7127,-74.0059,17z/data=...
func parseCoords(rawURL string) (lat, lon float64, ok bool) {
	at := strings.Index(rawURL, "@")
	if at < 0 {
		return 0, 0, false
	}
	rest := rawURL[at+1:]
	if slash := strings.IndexAny(rest, "/?"); slash >= 0 {
		rest = rest[:slash]
	}
	parts := strings.Split(rest, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
