package types

// Document bundles everything one run extracts from a gallery: the
// group and user tables, the gallery-wide plugin parameters, and the
// root album with its transitively reachable items.
type Document struct {
	Groups           []*Group
	Users            []*User
	PluginParameters Parameters
	Album            *Item
}

// WalkItems returns root and every item below it in breadth-first,
// left-to-right order. The parent tree is acyclic, so the walk needs
// no visited set; link relations are not followed.
func WalkItems(root *Item) []*Item {
	var out []*Item
	queue := []*Item{root}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		out = append(out, item)
		queue = append(queue, item.Subitems...)
	}
	return out
}
