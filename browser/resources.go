package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockedTypes maps the config spelling of a resource class to the CDP
// resource type it names.
var blockedTypes = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

// blockSet resolves configured names into CDP resource types. Unknown
// names are kept lowercased and matched against the CDP type name
// ("script", "xhr").
func blockSet(names []string) map[proto.NetworkResourceType]bool {
	set := make(map[proto.NetworkResourceType]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if t, ok := blockedTypes[n]; ok {
			set[t] = true
		} else if n != "" {
			set[proto.NetworkResourceType(n)] = true
		}
	}
	return set
}

// shouldBlock reports whether a request of type t is dropped.
func shouldBlock(set map[proto.NetworkResourceType]bool, t proto.NetworkResourceType) bool {
	return set[t] || set[proto.NetworkResourceType(strings.ToLower(string(t)))]
}

// applyResourceBlocking fails matching requests on the viewed page so
// captures of heavy pages load faster. It returns the hijack router to
// stop when the page goes away; nil when nothing is blocked.
func applyResourceBlocking(page *rod.Page, names []string) *rod.HijackRouter {
	set := blockSet(names)
	if len(set) == 0 {
		return nil
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(set, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
