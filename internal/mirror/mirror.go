// Package mirror builds the ordered list of YTS API roots to try.
package mirror

import "strings"

// APIPath is the path segment every API root ends with.
const APIPath = "/api/v2"

// Defaults are the built-in mirrors, in trial order.
var Defaults = []string{
	"https://www.yts-official.to/api/v2",
	"https://yts.rs/api/v2",
	"https://yts.lt/api/v2",
	"https://yts.mx/api/v2",
	"https://yts.pm/api/v2",
	"https://yts.ag/api/v2",
	"https://yts.am/api/v2",
}

// Registry is an immutable, ordered set of API roots.
type Registry struct {
	endpoints []string
}

// New builds a registry from configured roots (site roots or explicit API
// roots) followed by defaults. Duplicates keep their first position.
func New(configured, defaults []string) *Registry {
	seen := make(map[string]struct{}, len(configured)+len(defaults))
	var endpoints []string
	add := func(root string) {
		if root == "" {
			return
		}
		if _, ok := seen[root]; ok {
			return
		}
		seen[root] = struct{}{}
		endpoints = append(endpoints, root)
	}
	for _, raw := range configured {
		add(Normalize(raw))
	}
	for _, d := range defaults {
		add(strings.TrimRight(d, "/"))
	}
	return &Registry{endpoints: endpoints}
}

// Endpoints returns the API roots in trial order.
func (r *Registry) Endpoints() []string {
	out := make([]string, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Normalize trims a configured root and makes it end in APIPath.
func Normalize(raw string) string {
	root := strings.TrimRight(strings.TrimSpace(raw), "/")
	if root == "" {
		return ""
	}
	if !strings.HasSuffix(root, APIPath) {
		root += APIPath
	}
	return root
}
