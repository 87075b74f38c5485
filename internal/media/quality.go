package media

import "strings"

// qualityRank maps a quality label to its position on the upgrade scale.
var qualityRank = map[string]float64{
	"720p":  1,
	"1080p": 2,
	"1440p": 2.5,
	"2160p": 3,
	"4k":    3,
	"uhd":   3,
}

// detectTokens is checked in order; the first token found in a path wins.
var detectTokens = []struct {
	token string
	rank  float64
}{
	{"2160p", 3},
	{"4k", 3},
	{"uhd", 3},
	{"1440p", 2.5},
	{"1080p", 2},
	{"1024p", 1.5},
	{"720p", 1},
}

// Rank returns the numeric rank of a quality label. Unknown labels rank 0.
func Rank(label string) float64 {
	return qualityRank[strings.ToLower(strings.TrimSpace(label))]
}

// RankFromHeight buckets a video height in pixels onto the rank scale.
func RankFromHeight(height int) float64 {
	switch {
	case height >= 2160:
		return 3
	case height >= 1440:
		return 2.5
	case height >= 1080:
		return 2
	case height >= 720:
		return 1
	default:
		return 0
	}
}

// DetectRank looks for a quality token inside a free-text path or title.
func DetectRank(s string) float64 {
	s = strings.ToLower(s)
	for _, dt := range detectTokens {
		if strings.Contains(s, dt.token) {
			return dt.rank
		}
	}
	return 0
}
