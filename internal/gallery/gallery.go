package gallery

import "tti-balder/internal/design"

// Gallery is the ordered design history of a session, newest first. It is
// not safe for concurrent use; the session store serialises access.
type Gallery struct {
	items []design.Design
}

func (g *Gallery) Add(d design.Design) {
	g.items = append([]design.Design{d}, g.items...)
}

// Remove deletes the design with the given id and reports whether it existed.
func (g *Gallery) Remove(id string) bool {
	for i, d := range g.items {
		if d.ID == id {
			g.items = append(g.items[:i:i], g.items[i+1:]...)
			return true
		}
	}
	return false
}

func (g *Gallery) Get(id string) (design.Design, bool) {
	for _, d := range g.items {
		if d.ID == id {
			return d, true
		}
	}
	return design.Design{}, false
}

func (g *Gallery) Latest() (design.Design, bool) {
	if len(g.items) == 0 {
		return design.Design{}, false
	}
	return g.items[0], true
}

func (g *Gallery) List() []design.Design {
	out := make([]design.Design, len(g.items))
	copy(out, g.items)
	return out
}

func (g *Gallery) Len() int {
	return len(g.items)
}

func (g *Gallery) Clone() Gallery {
	return Gallery{items: g.List()}
}
