package rag

import (
	"math"
	"strings"
)

// uncertaintyMarkers is the fixed list of hedging phrases scanned for when
// estimating confidence. Each marker counts once no matter how often it
// occurs in the text.
var uncertaintyMarkers = []string{
	"unclear", "uncertain", "possibly", "potentially", "could be",
	"perhaps", "not sure", "questionable", "differential",
	"to be considered", "cannot be ruled out",
}

// Confidence estimates how confident a generated assessment reads, as a
// deterministic heuristic in [0, 1]. Longer answers score higher up to a
// 2000-character ceiling; every distinct uncertainty marker present lowers
// the score. The result is rounded to two decimals and surfaced directly
// to users.
func Confidence(text string) float64 {
	lower := strings.ToLower(text)

	count := 0
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(lower, marker) {
			count++
		}
	}

	uncertaintyFactor := math.Max(0, 1.0-0.05*float64(count))
	lengthFactor := math.Min(1, float64(len(text))/2000)

	confidence := 0.7*uncertaintyFactor + 0.3*lengthFactor
	return math.Round(confidence*100) / 100
}
