package swcache

import (
	"strings"
)

// Kind is a request category that selects caching strategy.
type Kind int

// Request kinds.
const (
	KindOther Kind = iota
	KindHTML
	KindAudio
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// Classify detects request kind by lexical shape of URL path and Accept header.
//
// HTML wins over audio, so a navigation to an mp3 file is treated as HTML.
func Classify(r *Request) Kind {
	p := r.path()
	if p == "" {
		p = "/"
	}

	if strings.HasSuffix(p, ".html") || strings.HasSuffix(p, "/") || r.Accepts("text/html") {
		return KindHTML
	}

	if strings.HasSuffix(strings.ToLower(p), ".mp3") {
		return KindAudio
	}

	return KindOther
}
