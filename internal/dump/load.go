package dump

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"github.com/dairiki/g2-metadata/pkg/types"
)

// Load reconstructs a document graph from a previously dumped YAML
// document. It needs no database: aliases rebuild the shared
// references, tags dispatch to the entity variants, and derived keys
// (path, link_path) are skipped since the model re-derives them.
func Load(r io.Reader) (*types.Document, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	l := &loader{memo: make(map[*yaml.Node]any)}
	return l.document(node)
}

// loader memoizes by node identity, so aliases to one node resolve to
// one reconstructed object.
type loader struct {
	memo map[*yaml.Node]any
}

func (l *loader) document(node *yaml.Node) (*types.Document, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root is not a mapping (line %d)", node.Line)
	}
	doc := &types.Document{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		switch key {
		case "groups":
			for _, child := range deref(value).Content {
				g, err := l.groupRef(child)
				if err != nil {
					return nil, err
				}
				doc.Groups = append(doc.Groups, g)
			}
		case "users":
			for _, child := range deref(value).Content {
				u, err := l.userRef(child)
				if err != nil {
					return nil, err
				}
				doc.Users = append(doc.Users, u)
			}
		case "plugin_parameters":
			params, err := l.params(value)
			if err != nil {
				return nil, err
			}
			doc.PluginParameters = params
		case "album":
			album, err := l.itemRef(value)
			if err != nil {
				return nil, err
			}
			doc.Album = album
		default:
			log.WithField("key", key).Debug("skipping unknown document key")
		}
	}
	if doc.Album == nil {
		return nil, types.ErrNoRootAlbum
	}
	return doc, nil
}

// entity resolves aliases and dispatches on the node tag. An unknown
// tag aborts the load.
func (l *loader) entity(node *yaml.Node) (types.Entity, error) {
	node = deref(node)
	if v, ok := l.memo[node]; ok {
		e, ok := v.(types.Entity)
		if !ok {
			return nil, fmt.Errorf("node at line %d is not an entity", node.Line)
		}
		return e, nil
	}
	switch node.Tag {
	case "!AlbumItem":
		return l.item(node, types.KindAlbum)
	case "!PhotoItem":
		return l.item(node, types.KindPhoto)
	case "!MovieItem":
		return l.item(node, types.KindMovie)
	case "!LinkItem":
		return l.item(node, types.KindLink)
	case "!AnimationItem":
		return l.item(node, types.KindAnimation)
	case "!DataItem":
		return l.item(node, types.KindData)
	case "!UnknownItem":
		return l.item(node, types.KindUnknown)
	case "!Comment":
		return l.comment(node)
	case "!Derivative", "!DerivativeImage":
		return l.derivative(node)
	case "!User":
		return l.user(node)
	case "!Group":
		return l.group(node)
	default:
		return nil, fmt.Errorf("%w: %s (line %d)",
			types.ErrUnknownTag, node.Tag, node.Line)
	}
}

func (l *loader) itemRef(node *yaml.Node) (*types.Item, error) {
	e, err := l.entity(node)
	if err != nil {
		return nil, err
	}
	it, ok := e.(*types.Item)
	if !ok {
		return nil, fmt.Errorf("expected an item, got %s (line %d)",
			e.Tag(), node.Line)
	}
	return it, nil
}

func (l *loader) userRef(node *yaml.Node) (*types.User, error) {
	e, err := l.entity(node)
	if err != nil {
		return nil, err
	}
	u, ok := e.(*types.User)
	if !ok {
		return nil, fmt.Errorf("expected a user, got %s (line %d)",
			e.Tag(), node.Line)
	}
	return u, nil
}

func (l *loader) groupRef(node *yaml.Node) (*types.Group, error) {
	e, err := l.entity(node)
	if err != nil {
		return nil, err
	}
	g, ok := e.(*types.Group)
	if !ok {
		return nil, fmt.Errorf("expected a group, got %s (line %d)",
			e.Tag(), node.Line)
	}
	return g, nil
}

func (l *loader) item(node *yaml.Node, kind types.ItemKind) (*types.Item, error) {
	it := &types.Item{Kind: kind}
	switch kind {
	case types.KindAlbum:
		it.Album = &types.AlbumPayload{}
	case types.KindPhoto:
		it.Photo = &types.PhotoPayload{}
	case types.KindMovie:
		it.Movie = &types.MoviePayload{}
	case types.KindAnimation:
		it.Animation = &types.AnimationPayload{}
	case types.KindData:
		it.Data = &types.DataPayload{}
	case types.KindLink:
		it.External = &types.LinkPayload{}
	}
	l.memo[node] = it

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		handled, err := l.commonField(&it.Common, key, value)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		if err := l.itemField(it, key, value); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (l *loader) itemField(it *types.Item, key string, value *yaml.Node) error {
	var err error
	switch key {
	case "path", "link_path":
		// Derived from the parent chain; never stored.
	case "parentId":
		it.ParentID, err = asInt(value)
	case "pathComponent":
		it.PathComponent, err = asString(value)
	case "title":
		it.Title, err = asString(value)
	case "summary":
		it.Summary, err = asString(value)
	case "description":
		it.Description, err = asString(value)
	case "keywords":
		it.Keywords, err = asString(value)
	case "ownerId":
		it.OwnerID, err = asInt(value)
	case "orderWeight":
		it.OrderWeight, err = asInt(value)
	case "viewCount":
		it.ViewCount, err = asInt(value)
	case "originationTimestamp":
		it.OriginationTime, err = asTime(value)
	case "is_hidden":
		it.Hidden, err = asBool(value)
	case "theme", "orderBy", "orderDirection":
		err = l.albumField(it, key, value)
	case "width", "height", "duration":
		err = l.dimensionField(it, key, value)
	case "mimeType":
		if it.Data != nil {
			it.Data.MimeType, err = asString(value)
		}
	case "size":
		if it.Data != nil {
			it.Data.Size, err = asInt(value)
		}
	case "link":
		if it.External != nil {
			it.External.URL, err = asString(value)
		}
	case "comments":
		for _, child := range deref(value).Content {
			e, err := l.entity(child)
			if err != nil {
				return err
			}
			c, ok := e.(*types.Comment)
			if !ok {
				return fmt.Errorf("expected a comment, got %s (line %d)",
					e.Tag(), child.Line)
			}
			it.Comments = append(it.Comments, c)
		}
	case "owner":
		it.Owner, err = l.userRef(value)
	case "accessList":
		it.AccessList, err = l.accessList(value)
	case "plugin_parameters":
		if it.Album != nil {
			it.Album.PluginParameters, err = l.params(value)
		}
	case "derivative_prefs":
		if it.Album != nil {
			it.Album.DerivativePrefs, err = l.prefs(value)
		}
	case "hilight":
		it.HilightTarget, err = l.itemRef(value)
	case "linked_entity":
		it.Link, err = l.itemRef(value)
	case "derivatives":
		for _, child := range deref(value).Content {
			e, err := l.entity(child)
			if err != nil {
				return err
			}
			d, ok := e.(*types.Derivative)
			if !ok {
				return fmt.Errorf("expected a derivative, got %s (line %d)",
					e.Tag(), child.Line)
			}
			it.Derivatives = append(it.Derivatives, d)
		}
	case "subitems":
		for _, child := range deref(value).Content {
			sub, err := l.itemRef(child)
			if err != nil {
				return err
			}
			sub.Parent = it
			it.Subitems = append(it.Subitems, sub)
		}
	default:
		log.WithField("key", key).Debug("skipping unknown item key")
	}
	return err
}

func (l *loader) albumField(it *types.Item, key string, value *yaml.Node) error {
	if it.Album == nil {
		return nil
	}
	s, err := asString(value)
	if err != nil {
		return err
	}
	switch key {
	case "theme":
		it.Album.Theme = s
	case "orderBy":
		it.Album.OrderBy = s
	case "orderDirection":
		it.Album.OrderDirection = s
	}
	return nil
}

func (l *loader) dimensionField(it *types.Item, key string, value *yaml.Node) error {
	v, err := asInt(value)
	if err != nil {
		return err
	}
	set := func(width, height, duration *int) {
		switch key {
		case "width":
			*width = v
		case "height":
			*height = v
		case "duration":
			if duration != nil {
				*duration = v
			}
		}
	}
	switch {
	case it.Photo != nil:
		set(&it.Photo.Width, &it.Photo.Height, nil)
	case it.Movie != nil:
		set(&it.Movie.Width, &it.Movie.Height, &it.Movie.Duration)
	case it.Animation != nil:
		set(&it.Animation.Width, &it.Animation.Height, nil)
	}
	return nil
}

func (l *loader) comment(node *yaml.Node) (*types.Comment, error) {
	c := &types.Comment{}
	l.memo[node] = c
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		handled, err := l.commonField(&c.Common, key, value)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		switch key {
		case "parentId":
			c.ParentID, err = asInt(value)
		case "commenterId":
			c.CommenterID, err = asInt(value)
		case "host":
			c.Host, err = asString(value)
		case "subject":
			c.Subject, err = asString(value)
		case "comment":
			c.Body, err = asString(value)
		case "date":
			c.Date, err = asTime(value)
		case "author":
			c.Author, err = asString(value)
		case "publishStatus":
			c.PublishStatus, err = asInt(value)
		default:
			log.WithField("key", key).Debug("skipping unknown comment key")
		}
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (l *loader) derivative(node *yaml.Node) (*types.Derivative, error) {
	d := &types.Derivative{}
	if node.Tag == "!DerivativeImage" {
		d.Image = &types.DerivativeImagePayload{}
	}
	l.memo[node] = d
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		handled, err := l.commonField(&d.Common, key, value)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		switch key {
		case "parentId":
			d.ParentID, err = asInt(value)
		case "derivativeSourceId":
			d.SourceID, err = asInt(value)
		case "derivativeOperations":
			d.Operations, err = asString(value)
		case "derivativeOrder":
			d.Order, err = asInt(value)
		case "derivativeSize":
			d.Size, err = asInt(value)
		case "derivativeType":
			d.Type, err = asInt(value)
		case "mimeType":
			d.MimeType, err = asString(value)
		case "postFilterOperations":
			d.PostFilterOperations, err = asString(value)
		case "isBroken":
			d.Broken, err = asBool(value)
		case "width":
			if d.Image != nil {
				d.Image.Width, err = asInt(value)
			}
		case "height":
			if d.Image != nil {
				d.Image.Height, err = asInt(value)
			}
		case "source":
			d.Source, err = l.entity(value)
		default:
			log.WithField("key", key).Debug("skipping unknown derivative key")
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (l *loader) user(node *yaml.Node) (*types.User, error) {
	u := &types.User{}
	l.memo[node] = u
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		handled, err := l.commonField(&u.Common, key, value)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		switch key {
		case "userName":
			u.UserName, err = asString(value)
		case "fullName":
			u.FullName, err = asString(value)
		case "email":
			u.Email, err = asString(value)
		case "language":
			u.Language, err = asString(value)
		case "locked":
			u.Locked, err = asBool(value)
		case "plugin_parameters":
			u.PluginParameters, err = l.params(value)
		default:
			log.WithField("key", key).Debug("skipping unknown user key")
		}
		if err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (l *loader) group(node *yaml.Node) (*types.Group, error) {
	g := &types.Group{}
	l.memo[node] = g
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		handled, err := l.commonField(&g.Common, key, value)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		switch key {
		case "groupType":
			g.GroupType, err = asInt(value)
		case "groupName":
			g.GroupName, err = asString(value)
		case "users":
			for _, child := range deref(value).Content {
				u, err := l.userRef(child)
				if err != nil {
					return nil, err
				}
				g.Users = append(g.Users, u)
			}
		default:
			log.WithField("key", key).Debug("skipping unknown group key")
		}
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (l *loader) commonField(c *types.Common, key string, value *yaml.Node) (bool, error) {
	var err error
	switch key {
	case "id":
		c.ID, err = asInt(value)
	case "creationTimestamp":
		c.CreationTime, err = asTime(value)
	case "modificationTimestamp":
		c.ModificationTime, err = asTime(value)
	case "serialNumber":
		c.SerialNumber, err = asInt(value)
	case "isLinkable":
		c.IsLinkable, err = asBool(value)
	case "linkId":
		c.LinkID, err = asInt(value)
	default:
		return false, nil
	}
	return true, err
}

// accessList rebuilds a shared list once per node, so every subscriber
// of an aliased list gets the identical pointer.
func (l *loader) accessList(node *yaml.Node) (*types.AccessList, error) {
	node = deref(node)
	if v, ok := l.memo[node]; ok {
		list, ok := v.(*types.AccessList)
		if !ok {
			return nil, fmt.Errorf("node at line %d is not an access list", node.Line)
		}
		return list, nil
	}
	list := &types.AccessList{}
	l.memo[node] = list
	for _, child := range node.Content {
		child = deref(child)
		if child.Tag != "!AccessMap" {
			return nil, fmt.Errorf("%w: %s in access list (line %d)",
				types.ErrUnknownTag, child.Tag, child.Line)
		}
		var entry types.AccessEntry
		for i := 0; i+1 < len(child.Content); i += 2 {
			key, value := child.Content[i].Value, child.Content[i+1]
			var err error
			switch key {
			case "accessListId":
				list.ID, err = asInt(value)
			case "permission":
				entry.Permission, err = asInt(value)
			case "userOrGroup":
				entry.Principal, err = l.entity(value)
			case "userOrGroupId":
				// Recoverable from the principal.
			default:
				log.WithField("key", key).Debug("skipping unknown access entry key")
			}
			if err != nil {
				return nil, err
			}
		}
		list.Entries = append(list.Entries, entry)
	}
	return list, nil
}

func (l *loader) params(node *yaml.Node) (types.Parameters, error) {
	node = deref(node)
	if node.Tag == "!!null" {
		return nil, nil
	}
	params := make(types.Parameters)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pluginType, byIDNode := node.Content[i].Value, deref(node.Content[i+1])
		byID := make(map[string]map[string]any)
		for j := 0; j+1 < len(byIDNode.Content); j += 2 {
			pluginID, byNameNode := byIDNode.Content[j].Value, deref(byIDNode.Content[j+1])
			byName := make(map[string]any)
			for k := 0; k+1 < len(byNameNode.Content); k += 2 {
				value, err := asAny(byNameNode.Content[k+1])
				if err != nil {
					return nil, err
				}
				byName[byNameNode.Content[k].Value] = value
			}
			byID[pluginID] = byName
		}
		params[pluginType] = byID
	}
	return params, nil
}

func (l *loader) prefs(node *yaml.Node) (types.DerivativePrefs, error) {
	node = deref(node)
	if node.Tag == "!!null" {
		return nil, nil
	}
	prefs := make(types.DerivativePrefs)
	for i := 0; i+1 < len(node.Content); i += 2 {
		dtype, err := asInt(node.Content[i])
		if err != nil {
			return nil, err
		}
		for _, op := range deref(node.Content[i+1]).Content {
			s, err := asString(op)
			if err != nil {
				return nil, err
			}
			prefs[dtype] = append(prefs[dtype], s)
		}
	}
	return prefs, nil
}

func deref(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func asString(node *yaml.Node) (string, error) {
	node = deref(node)
	if node.Tag == "!!null" {
		return "", nil
	}
	return node.Value, nil
}

func asInt(node *yaml.Node) (int, error) {
	node = deref(node)
	if node.Tag == "!!null" {
		return 0, nil
	}
	v, err := strconv.Atoi(node.Value)
	if err != nil {
		return 0, fmt.Errorf("bad integer %q (line %d)", node.Value, node.Line)
	}
	return v, nil
}

func asBool(node *yaml.Node) (bool, error) {
	node = deref(node)
	if node.Tag == "!!null" {
		return false, nil
	}
	v, err := strconv.ParseBool(node.Value)
	if err != nil {
		return false, fmt.Errorf("bad boolean %q (line %d)", node.Value, node.Line)
	}
	return v, nil
}

func asTime(node *yaml.Node) (time.Time, error) {
	node = deref(node)
	if node.Tag == "!!null" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, node.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q (line %d)",
			node.Value, node.Line)
	}
	return t.UTC(), nil
}

// asAny maps a generic value node onto the decoded plugin parameter
// shapes: scalars, sequences, and string-keyed mappings.
func asAny(node *yaml.Node) (any, error) {
	node = deref(node)
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			return nil, nil
		case "!!bool":
			v, err := strconv.ParseBool(node.Value)
			return v, err
		case "!!int":
			v, err := strconv.ParseInt(node.Value, 10, 64)
			return v, err
		case "!!float":
			v, err := strconv.ParseFloat(node.Value, 64)
			return v, err
		default:
			return node.Value, nil
		}
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := asAny(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := asAny(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: node kind %d (line %d)",
			types.ErrUnrepresentable, node.Kind, node.Line)
	}
}
