// Package dump serializes the loaded gallery graph to a tagged,
// anchor/alias-capable YAML document and reads such documents back,
// independent of any database.
//
// Every entity is represented at most once per pass: the node cache is
// keyed by object identity and installed before recursing, so shared
// substructure becomes an alias and link cycles terminate.
package dump

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dairiki/g2-metadata/pkg/types"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// foldThreshold selects folded over literal block style for multi-line
// strings whose longest line exceeds it.
const foldThreshold = 65

// Options control one serialization pass.
type Options struct {
	// Omit lists field names dropped uniformly from every mapping,
	// e.g. "derivatives" to keep dumps small.
	Omit []string
}

// Dump writes the document graph as a single YAML document.
func Dump(w io.Writer, doc *types.Document, opts Options) error {
	d := &dumper{
		omit:     make(map[string]bool, len(opts.Omit)),
		memo:     make(map[any]*yaml.Node),
		counters: make(map[string]int),
	}
	for _, name := range opts.Omit {
		d.omit[name] = true
	}
	root, err := d.documentNode(doc)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return enc.Close()
}

// dumper carries the per-pass state: the omitted field set, the
// identity-keyed node cache, and per-type-prefix anchor counters.
type dumper struct {
	omit     map[string]bool
	memo     map[any]*yaml.Node
	counters map[string]int
}

func (d *dumper) documentNode(doc *types.Document) (*yaml.Node, error) {
	root := mappingNode("")
	groups := sequenceNode()
	for _, g := range doc.Groups {
		node, err := d.ref(g)
		if err != nil {
			return nil, err
		}
		groups.Content = append(groups.Content, node)
	}
	users := sequenceNode()
	for _, u := range doc.Users {
		node, err := d.ref(u)
		if err != nil {
			return nil, err
		}
		users.Content = append(users.Content, node)
	}
	params, err := d.paramsNode(doc.PluginParameters)
	if err != nil {
		return nil, err
	}
	album, err := d.ref(doc.Album)
	if err != nil {
		return nil, err
	}
	d.put(root, "groups", groups)
	d.put(root, "users", users)
	d.put(root, "plugin_parameters", params)
	d.put(root, "album", album)
	return root, nil
}

// ref returns the node for an entity: the full tagged mapping on first
// encounter, an alias to it afterwards. The cache entry is installed
// before the body is filled so cyclic references resolve to the
// in-progress node instead of recursing forever.
func (d *dumper) ref(e types.Entity) (*yaml.Node, error) {
	if node, ok := d.memo[e]; ok {
		return d.alias(node), nil
	}
	node := mappingNode("!" + e.Tag())
	d.memo[e] = node

	var err error
	switch v := e.(type) {
	case *types.Item:
		err = d.fillItem(node, v)
	case *types.Comment:
		err = d.fillComment(node, v)
	case *types.Derivative:
		err = d.fillDerivative(node, v)
	case *types.User:
		err = d.fillUser(node, v)
	case *types.Group:
		err = d.fillGroup(node, v)
	default:
		err = fmt.Errorf("%w: %T", types.ErrUnrepresentable, e)
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// alias lazily names the target on second encounter; anchors carry the
// lowercased type tag for readability (albumitem001, user002, ...).
func (d *dumper) alias(target *yaml.Node) *yaml.Node {
	if target.Anchor == "" {
		prefix := "id"
		if strings.HasPrefix(target.Tag, "!") && !strings.HasPrefix(target.Tag, "!!") {
			prefix = strings.ToLower(target.Tag[1:])
		}
		d.counters[prefix]++
		target.Anchor = fmt.Sprintf("%s%03d", prefix, d.counters[prefix])
	}
	return &yaml.Node{Kind: yaml.AliasNode, Value: target.Anchor, Alias: target}
}

func (d *dumper) fillItem(node *yaml.Node, it *types.Item) error {
	p, err := it.Path()
	if err != nil {
		return err
	}
	d.put(node, "path", strNode(p))
	if it.Link != nil {
		lp, err := it.Link.Path()
		if err != nil {
			return err
		}
		d.put(node, "link_path", strNode(lp))
	}

	d.fillCommon(node, &it.Common)
	d.put(node, "parentId", intNode(it.ParentID))
	if it.PathComponent != "" {
		d.put(node, "pathComponent", strNode(it.PathComponent))
	}
	d.put(node, "title", strNode(it.Title))
	d.put(node, "summary", strNode(it.Summary))
	d.put(node, "description", strNode(it.Description))
	d.put(node, "keywords", strNode(it.Keywords))
	d.put(node, "ownerId", intNode(it.OwnerID))
	d.put(node, "orderWeight", intNode(it.OrderWeight))
	d.put(node, "viewCount", intNode(it.ViewCount))
	d.put(node, "originationTimestamp", timeNode(it.OriginationTime))
	d.put(node, "is_hidden", boolNode(it.Hidden))

	switch {
	case it.Album != nil:
		d.put(node, "theme", strNode(it.Album.Theme))
		d.put(node, "orderBy", strNode(it.Album.OrderBy))
		d.put(node, "orderDirection", strNode(it.Album.OrderDirection))
	case it.Photo != nil:
		d.put(node, "width", intNode(it.Photo.Width))
		d.put(node, "height", intNode(it.Photo.Height))
	case it.Movie != nil:
		d.put(node, "width", intNode(it.Movie.Width))
		d.put(node, "height", intNode(it.Movie.Height))
		d.put(node, "duration", intNode(it.Movie.Duration))
	case it.Animation != nil:
		d.put(node, "width", intNode(it.Animation.Width))
		d.put(node, "height", intNode(it.Animation.Height))
	case it.Data != nil:
		d.put(node, "mimeType", strNode(it.Data.MimeType))
		d.put(node, "size", intNode(it.Data.Size))
	case it.External != nil:
		d.put(node, "link", strNode(it.External.URL))
	}

	if len(it.Comments) > 0 {
		seq := sequenceNode()
		for _, c := range it.Comments {
			child, err := d.ref(c)
			if err != nil {
				return err
			}
			seq.Content = append(seq.Content, child)
		}
		d.put(node, "comments", seq)
	}
	if it.Owner != nil {
		owner, err := d.ref(it.Owner)
		if err != nil {
			return err
		}
		d.put(node, "owner", owner)
	}
	if it.AccessList != nil {
		list, err := d.accessListNode(it.AccessList)
		if err != nil {
			return err
		}
		d.put(node, "accessList", list)
	}
	if it.Album != nil {
		if it.Album.PluginParameters != nil {
			params, err := d.paramsNode(it.Album.PluginParameters)
			if err != nil {
				return err
			}
			d.put(node, "plugin_parameters", params)
		}
		if it.Album.DerivativePrefs != nil {
			d.put(node, "derivative_prefs", prefsNode(it.Album.DerivativePrefs))
		}
		hilight, err := it.Hilight()
		if err != nil {
			return err
		}
		if hilight != nil {
			target, err := d.ref(hilight)
			if err != nil {
				return err
			}
			d.put(node, "hilight", target)
		}
	}
	if it.Link != nil {
		linked, err := d.ref(it.Link)
		if err != nil {
			return err
		}
		d.put(node, "linked_entity", linked)
	}
	if len(it.Derivatives) > 0 {
		seq := sequenceNode()
		for _, dv := range it.Derivatives {
			child, err := d.ref(dv)
			if err != nil {
				return err
			}
			seq.Content = append(seq.Content, child)
		}
		d.put(node, "derivatives", seq)
	}
	if len(it.Subitems) > 0 {
		seq := sequenceNode()
		for _, sub := range it.Subitems {
			child, err := d.ref(sub)
			if err != nil {
				return err
			}
			seq.Content = append(seq.Content, child)
		}
		d.put(node, "subitems", seq)
	}
	return nil
}

func (d *dumper) fillComment(node *yaml.Node, c *types.Comment) error {
	d.fillCommon(node, &c.Common)
	d.put(node, "parentId", intNode(c.ParentID))
	d.put(node, "commenterId", intNode(c.CommenterID))
	d.put(node, "host", strNode(c.Host))
	d.put(node, "subject", strNode(c.Subject))
	d.put(node, "comment", strNode(c.Body))
	d.put(node, "date", timeNode(c.Date))
	d.put(node, "author", strNode(c.Author))
	d.put(node, "publishStatus", intNode(c.PublishStatus))
	return nil
}

func (d *dumper) fillDerivative(node *yaml.Node, dv *types.Derivative) error {
	d.fillCommon(node, &dv.Common)
	d.put(node, "parentId", intNode(dv.ParentID))
	d.put(node, "derivativeSourceId", intNode(dv.SourceID))
	d.put(node, "derivativeOperations", strNode(dv.Operations))
	d.put(node, "derivativeOrder", intNode(dv.Order))
	d.put(node, "derivativeSize", intNode(dv.Size))
	d.put(node, "derivativeType", intNode(dv.Type))
	d.put(node, "mimeType", strNode(dv.MimeType))
	d.put(node, "postFilterOperations", strNode(dv.PostFilterOperations))
	d.put(node, "isBroken", boolNode(dv.Broken))
	if dv.Image != nil {
		d.put(node, "width", intNode(dv.Image.Width))
		d.put(node, "height", intNode(dv.Image.Height))
	}
	if dv.Source != nil {
		source, err := d.ref(dv.Source)
		if err != nil {
			return err
		}
		d.put(node, "source", source)
	}
	return nil
}

func (d *dumper) fillUser(node *yaml.Node, u *types.User) error {
	d.fillCommon(node, &u.Common)
	d.put(node, "userName", strNode(u.UserName))
	d.put(node, "fullName", strNode(u.FullName))
	d.put(node, "email", strNode(u.Email))
	d.put(node, "language", strNode(u.Language))
	d.put(node, "locked", boolNode(u.Locked))
	if u.PluginParameters != nil {
		params, err := d.paramsNode(u.PluginParameters)
		if err != nil {
			return err
		}
		d.put(node, "plugin_parameters", params)
	}
	return nil
}

func (d *dumper) fillGroup(node *yaml.Node, g *types.Group) error {
	d.fillCommon(node, &g.Common)
	d.put(node, "groupType", intNode(g.GroupType))
	d.put(node, "groupName", strNode(g.GroupName))
	seq := sequenceNode()
	for _, u := range g.Users {
		member, err := d.ref(u)
		if err != nil {
			return err
		}
		seq.Content = append(seq.Content, member)
	}
	d.put(node, "users", seq)
	return nil
}

func (d *dumper) fillCommon(node *yaml.Node, c *types.Common) {
	d.put(node, "id", intNode(c.ID))
	d.put(node, "creationTimestamp", timeNode(c.CreationTime))
	d.put(node, "modificationTimestamp", timeNode(c.ModificationTime))
	d.put(node, "serialNumber", intNode(c.SerialNumber))
	d.put(node, "isLinkable", boolNode(c.IsLinkable))
	if c.LinkID != 0 {
		d.put(node, "linkId", intNode(c.LinkID))
	}
}

// accessListNode shares the whole list node by list identity, so items
// subscribed to the same list alias a single sequence.
func (d *dumper) accessListNode(list *types.AccessList) (*yaml.Node, error) {
	if node, ok := d.memo[list]; ok {
		return d.alias(node), nil
	}
	seq := sequenceNode()
	d.memo[list] = seq
	for _, entry := range list.Entries {
		node := mappingNode("!AccessMap")
		d.put(node, "accessListId", intNode(list.ID))
		d.put(node, "permission", intNode(entry.Permission))
		d.put(node, "userOrGroupId", intNode(entry.Principal.Base().ID))
		principal, err := d.ref(entry.Principal)
		if err != nil {
			return nil, err
		}
		d.put(node, "userOrGroup", principal)
		seq.Content = append(seq.Content, node)
	}
	return seq, nil
}

func (d *dumper) paramsNode(params types.Parameters) (*yaml.Node, error) {
	if len(params) == 0 {
		return nullNode(), nil
	}
	root := mappingNode("")
	for _, pluginType := range sortedKeys(params) {
		byID := mappingNode("")
		for _, pluginID := range sortedKeys(params[pluginType]) {
			byName := mappingNode("")
			for _, name := range sortedKeys(params[pluginType][pluginID]) {
				value, err := valueNode(params[pluginType][pluginID][name])
				if err != nil {
					return nil, err
				}
				d.put(byName, name, value)
			}
			d.put(byID, pluginID, byName)
		}
		d.put(root, pluginType, byID)
	}
	return root, nil
}

func prefsNode(prefs types.DerivativePrefs) *yaml.Node {
	root := mappingNode("")
	keys := make([]int, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		seq := sequenceNode()
		for _, op := range prefs[k] {
			seq.Content = append(seq.Content, strNode(op))
		}
		root.Content = append(root.Content, intNode(k), seq)
	}
	return root
}

// valueNode covers the closed set of decoded plugin parameter shapes.
func valueNode(v any) (*yaml.Node, error) {
	switch v := v.(type) {
	case nil:
		return nullNode(), nil
	case string:
		return strNode(v), nil
	case bool:
		return boolNode(v), nil
	case int:
		return intNode(v), nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int",
			Value: strconv.FormatInt(v, 10)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float",
			Value: strconv.FormatFloat(v, 'g', -1, 64)}, nil
	case []any:
		seq := sequenceNode()
		for _, elem := range v {
			node, err := valueNode(elem)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, node)
		}
		return seq, nil
	case map[string]any:
		root := mappingNode("")
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			node, err := valueNode(v[k])
			if err != nil {
				return nil, err
			}
			root.Content = append(root.Content, strNode(k), node)
		}
		return root, nil
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrUnrepresentable, v)
	}
}

func (d *dumper) put(m *yaml.Node, key string, value *yaml.Node) {
	if d.omit[key] {
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
}

func mappingNode(tag string) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: tag}
}

func sequenceNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode}
}

// strNode normalizes line endings and picks a block style for
// multi-line values: literal, or folded when any line runs long.
func strNode(s string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	if strings.ContainsAny(s, "\r\n") {
		lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
		n.Value = strings.Join(lines, "\n")
		n.Style = yaml.LiteralStyle
		for _, line := range lines {
			if len(line) > foldThreshold {
				n.Style = yaml.FoldedStyle
				break
			}
		}
	}
	return n
}

func intNode(v int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)}
}

func boolNode(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
}

func timeNode(t time.Time) *yaml.Node {
	if t.IsZero() {
		return nullNode()
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp",
		Value: t.UTC().Truncate(time.Second).Format(timestampLayout)}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
