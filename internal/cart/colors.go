package cart

// ColorTable translates the widget's color labels to the host's option
// vocabulary.
type ColorTable map[string]string

func DefaultColorTable() ColorTable {
	return ColorTable{
		"White": "Hvid",
		"Black": "Sort",
	}
}

// HostLabel returns the host label for color; labels without an entry pass
// through unchanged.
func (t ColorTable) HostLabel(color string) string {
	if host, ok := t[color]; ok {
		return host
	}
	return color
}

// Resolver maps (color, size) to a host variant id.
type Resolver struct {
	Colors ColorTable
}

func (r Resolver) Resolve(catalog Catalog, color, size string) (string, bool) {
	return catalog.Lookup(r.Colors.HostLabel(color), size)
}
