// Package cursor derives navigable pagination cursors from the list
// responses of the hosting service. GitLab reports the current position in
// X-Page / X-Total-Pages / X-Per-Page / X-Total headers and enumerates the
// reachable pages in the Link header's first/prev/next/last relations.
package cursor

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/xanzy/go-gitlab"
)

// Action names a pagination move offered by a cursor.
type Action string

const (
	First Action = "first"
	Prev  Action = "prev"
	Next  Action = "next"
	Last  Action = "last"
)

// MaxPerPage is the largest page size the service supports. List-all
// traversals request it to bound round-trips.
const MaxPerPage = 100

// Cursor is an opaque pagination handle: the current position plus the
// followable link for each relation the service advertised.
type Cursor struct {
	Page       int
	TotalPages int
	PerPage    int
	TotalItems int

	links map[Action]string
}

// FromResponse derives a cursor from a list response.
func FromResponse(resp *gitlab.Response) Cursor {
	if resp == nil || resp.Response == nil {
		return Cursor{}
	}
	return FromHeader(resp.Header)
}

// FromHeader derives a cursor from the pagination headers of a response.
func FromHeader(h http.Header) Cursor {
	return Cursor{
		Page:       headerInt(h, "X-Page"),
		TotalPages: headerInt(h, "X-Total-Pages"),
		PerPage:    headerInt(h, "X-Per-Page"),
		TotalItems: headerInt(h, "X-Total"),
		links:      parseLinks(h.Get("Link")),
	}
}

// Has reports whether the action's target page is reachable from the
// current position: next only below the last page, prev only past the first.
func (c Cursor) Has(a Action) bool {
	switch a {
	case Next:
		return c.Page < c.TotalPages
	case Prev:
		return c.Page > 1
	case First:
		return c.Page > 1
	case Last:
		return c.Page < c.TotalPages
	}
	return false
}

// Actions returns the offered action set in a stable order.
func (c Cursor) Actions() []Action {
	var actions []Action
	for _, a := range []Action{First, Prev, Next, Last} {
		if c.Has(a) {
			actions = append(actions, a)
		}
	}
	return actions
}

// PageFor resolves the page number an offered action leads to. The page is
// taken from the advertised link when present and derived from the current
// position otherwise.
func (c Cursor) PageFor(a Action) (int, bool) {
	if !c.Has(a) {
		return 0, false
	}
	if link, ok := c.links[a]; ok {
		if u, err := url.Parse(link); err == nil {
			if page, err := strconv.Atoi(u.Query().Get("page")); err == nil && page > 0 {
				return page, true
			}
		}
	}
	switch a {
	case First:
		return 1, true
	case Prev:
		return c.Page - 1, true
	case Next:
		return c.Page + 1, true
	case Last:
		return c.TotalPages, true
	}
	return 0, false
}

// Link returns the raw URL advertised for a relation, if any.
func (c Cursor) Link(a Action) (string, bool) {
	link, ok := c.links[a]
	return link, ok
}

func headerInt(h http.Header, name string) int {
	n, err := strconv.Atoi(h.Get(name))
	if err != nil {
		return 0
	}
	return n
}

// parseLinks parses a Link header of the form
// `<https://...?page=2>; rel="next", <https://...?page=1>; rel="first"`.
func parseLinks(header string) map[Action]string {
	links := make(map[Action]string)
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(section[0]), "<>")
		if target == "" {
			continue
		}
		for _, param := range section[1:] {
			param = strings.TrimSpace(param)
			rel, ok := strings.CutPrefix(param, "rel=")
			if !ok {
				continue
			}
			rel = strings.Trim(rel, `"`)
			switch Action(rel) {
			case First, Prev, Next, Last:
				links[Action(rel)] = target
			}
		}
	}
	return links
}
