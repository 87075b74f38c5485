package match

import (
	"net/url"
	"sort"
	"strings"

	"github.com/anacrolix/torrent/metainfo"

	"upgrader/internal/config"
	"upgrader/internal/media"
)

// Policy holds the upgrade thresholds. It is immutable once built.
type Policy struct {
	UHDRating     float64
	LadderHigh    []string
	LadderDefault []string
}

// DefaultPolicy prefers 2160p for movies rated 7.0 or better.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Default().Match)
}

// PolicyFromConfig builds a Policy from the [match] config section.
func PolicyFromConfig(c config.Match) Policy {
	return Policy{
		UHDRating:     c.UHDRating,
		LadderHigh:    append([]string(nil), c.LadderHigh...),
		LadderDefault: append([]string(nil), c.LadderDefault...),
	}
}

func (p Policy) ladder(rating float64) []string {
	if rating >= p.UHDRating {
		return p.LadderHigh
	}
	return p.LadderDefault
}

// NextUpgrade returns the quality label to upgrade to and the torrent that
// provides it, or ("", nil) when nothing ranks above currentRank. The
// returned label always ranks strictly above currentRank.
func NextUpgrade(movie media.Movie, currentRank float64, p Policy) (string, *media.Torrent) {
	groups := groupByQuality(movie.Torrents)

	for _, want := range p.ladder(movie.Rating) {
		key := strings.ToLower(want)
		if media.Rank(key) > currentRank {
			if ts, ok := groups[key]; ok {
				return want, &ts[0]
			}
		}
	}

	// Highest rank above current across every group; ties go to the
	// lexically greater label.
	var bestKey string
	var bestRank float64
	for key := range groups {
		r := media.Rank(key)
		if r <= currentRank {
			continue
		}
		if bestKey == "" || r > bestRank || (r == bestRank && key > bestKey) {
			bestKey, bestRank = key, r
		}
	}
	if bestKey == "" {
		return "", nil
	}
	return bestKey, &groups[bestKey][0]
}

// groupByQuality groups torrents by lowercase quality with bluray releases
// first in each group.
func groupByQuality(torrents []media.Torrent) map[string][]media.Torrent {
	groups := make(map[string][]media.Torrent)
	for _, t := range torrents {
		key := strings.ToLower(strings.TrimSpace(t.Quality))
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], t)
	}
	for _, ts := range groups {
		sort.SliceStable(ts, func(i, j int) bool {
			return isBluray(ts[i]) && !isBluray(ts[j])
		})
	}
	return groups
}

func isBluray(t media.Torrent) bool {
	return strings.EqualFold(t.Type, "bluray")
}

// Magnet builds the magnet link for t, named "title.quality.type".
func Magnet(movieTitle string, t media.Torrent) string {
	name := movieTitle + "." + t.Label()

	var ih metainfo.Hash
	if err := ih.FromHexString(strings.TrimSpace(t.Hash)); err == nil {
		return metainfo.Magnet{InfoHash: ih, DisplayName: name}.String()
	}

	// Not a v1 info-hash; keep it verbatim.
	return "magnet:?xt=urn:btih:" + strings.TrimSpace(t.Hash) + "&dn=" + url.QueryEscape(name)
}
