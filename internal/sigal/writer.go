package sigal

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/dairiki/g2-metadata/internal/markup"
	"github.com/dairiki/g2-metadata/pkg/types"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// Writer emits one sidecar metadata file per album and media item
// under the albums directory. Missing files, absent symlinks, and
// unhandled item types are per-node warnings; model integrity errors
// abort the run.
type Writer struct {
	AlbumsDir  string
	SidecarExt string

	conv *markup.Converter
}

func NewWriter(albumsDir, sidecarExt string) *Writer {
	if sidecarExt == "" {
		sidecarExt = ".md"
	}
	return &Writer{
		AlbumsDir:  albumsDir,
		SidecarExt: sidecarExt,
		conv:       markup.New(),
	}
}

// WriteAll projects the whole document tree.
func (w *Writer) WriteAll(doc *types.Document) error {
	defaults := sortDefaults(doc.PluginParameters)
	for _, item := range types.WalkItems(doc.Album) {
		if err := w.writeItem(item, defaults); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeItem(it *types.Item, defaults sortSpec) error {
	p, err := it.Path()
	if err != nil {
		return err
	}
	ctx := log.WithFields(log.Fields{"id": it.ID, "path": p})
	switch {
	case it.Album != nil:
		return w.writeAlbum(it, p, defaults, ctx)
	case it.Photo != nil, it.Movie != nil:
		return w.writeMedia(it, p, ctx)
	case it.External != nil:
		w.ensureSymlink(it, p, ctx)
		return nil
	default:
		ctx.WithField("kind", string(it.Kind)).Warn("skipping unhandled item type")
		return nil
	}
}

func (w *Writer) writeAlbum(it *types.Item, p string, defaults sortSpec, ctx *log.Entry) error {
	dir := filepath.Join(w.AlbumsDir, filepath.FromSlash(p))
	if info, err := os.Stat(dir); err != nil {
		ctx.Warn("album directory is missing, skipping")
		return nil
	} else if !info.IsDir() {
		ctx.Warn("album path is not a directory, skipping")
		return nil
	}

	header, body, err := w.metadata(it, ctx)
	if err != nil {
		return err
	}

	thumbnail, err := w.albumThumbnail(it, ctx)
	if err != nil {
		return err
	}
	if thumbnail != "" {
		header = append(header, kv{"thumbnail", thumbnail})
	}
	order := resolveOrder(it.Album, defaults)
	order.check(ctx)
	if order.orderBy != "" {
		header = append(header, kv{"order-by", order.orderBy})
	}
	if order.orderDirection != "" {
		header = append(header, kv{"order-direction", order.orderDirection})
	}

	return w.writeSidecar(filepath.Join(dir, "index"+w.SidecarExt), header, body, ctx)
}

func (w *Writer) writeMedia(it *types.Item, p string, ctx *log.Entry) error {
	target := filepath.Join(w.AlbumsDir, filepath.FromSlash(p))
	if _, err := os.Stat(target); err != nil {
		ctx.Warn("media file is missing or unreadable")
	}

	header, body, err := w.metadata(it, ctx)
	if err != nil {
		return err
	}
	sidecar := strings.TrimSuffix(target, filepath.Ext(target)) + w.SidecarExt
	return w.writeSidecar(sidecar, header, body, ctx)
}

// ensureSymlink creates the symlink a link item expects at its own
// path, pointing at the linked item's resolved location.
func (w *Writer) ensureSymlink(it *types.Item, p string, ctx *log.Entry) {
	if it.Link == nil {
		ctx.Warn("link item has no resolved target")
		return
	}
	targetPath, err := it.Link.Path()
	if err != nil {
		ctx.WithError(err).Warn("link target has no derivable path")
		return
	}
	full := filepath.Join(w.AlbumsDir, filepath.FromSlash(p))
	dest := filepath.Join(w.AlbumsDir, filepath.FromSlash(targetPath))
	rel, err := filepath.Rel(filepath.Dir(full), dest)
	if err != nil {
		rel = dest
	}

	info, err := os.Lstat(full)
	switch {
	case err != nil:
		if err := os.Symlink(rel, full); err != nil {
			ctx.WithError(err).Warn("cannot create symlink")
			return
		}
		ctx.WithField("target", rel).Info("created symlink")
	case info.Mode()&os.ModeSymlink == 0:
		ctx.Warn("expected a symlink, found a regular file")
	}
}

type kv struct {
	key   string
	value string
}

// metadata builds the common header fields and the Markdown body.
func (w *Writer) metadata(it *types.Item, ctx *log.Entry) ([]kv, string, error) {
	fields := reconcile(it.Title, it.Summary, it.Description,
		it.PathComponent, w.conv.Strip)
	if fields.Summary != "" {
		ctx.WithField("summary", fields.Summary).
			Warn("cannot eliminate non-trivial summary")
	}

	header := []kv{{"title", fields.Title}}
	if fields.Summary != "" {
		header = append(header, kv{"summary", w.conv.Strip(fields.Summary)})
	}
	if !it.OriginationTime.IsZero() {
		header = append(header, kv{"date", it.OriginationTime.UTC().Format(timestampLayout)})
	}
	if !it.CreationTime.IsZero() {
		header = append(header, kv{"created", it.CreationTime.UTC().Format(timestampLayout)})
	}
	if !it.ModificationTime.IsZero() {
		header = append(header, kv{"updated", it.ModificationTime.UTC().Format(timestampLayout)})
	}
	if it.Owner != nil {
		if it.Owner.FullName != "" {
			header = append(header, kv{"author", it.Owner.FullName})
		}
		if it.Owner.Email != "" {
			header = append(header, kv{"author-email", it.Owner.Email})
		}
	}
	header = append(header,
		kv{"order-weight", strconv.Itoa(it.OrderWeight)},
		kv{"gallery2-id", strconv.Itoa(it.ID)},
	)
	if it.Keywords != "" {
		header = append(header, kv{"keywords", it.Keywords})
	}
	if it.ViewCount != 0 {
		header = append(header, kv{"view-count", strconv.Itoa(it.ViewCount)})
	}
	if it.Hidden {
		header = append(header, kv{"hidden", "yes"})
	}

	body, err := w.conv.ToMarkdown(fields.Description)
	if err != nil {
		return nil, "", err
	}
	return header, body, nil
}

// albumThumbnail resolves the thumbnail path relative to the album:
// the album's own hilight first, then its subalbums' hilights in
// breadth-first, left-to-right order.
func (w *Writer) albumThumbnail(album *types.Item, ctx *log.Entry) (string, error) {
	queue := []*types.Item{album}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		hilight, err := it.Hilight()
		if err != nil {
			return "", err
		}
		if hilight != nil {
			if rel, ok := relativePath(album, hilight); ok {
				return rel, nil
			}
			ctx.WithField("hilight", hilight.ID).
				Warn("hilight is outside the album subtree")
		}
		for _, sub := range it.Subitems {
			if sub.Album != nil {
				queue = append(queue, sub)
			}
		}
	}
	return "", nil
}

// relativePath climbs the parent chain from target up to base.
func relativePath(base, target *types.Item) (string, bool) {
	parts := []string{target.PathComponent}
	for p := target.Parent; p != nil; p = p.Parent {
		if p == base {
			return path.Join(parts...), true
		}
		parts = append([]string{p.PathComponent}, parts...)
	}
	return "", false
}

var lineBreaks = regexp.MustCompile(`\s*\n\s*`)

func (w *Writer) writeSidecar(name string, header []kv, body string, ctx *log.Entry) error {
	var b strings.Builder
	for _, field := range header {
		if field.value == "" {
			continue
		}
		value := lineBreaks.ReplaceAllString(field.value, " ")
		fmt.Fprintf(&b, "%-8s %s\n", headerKey(field.key)+":", value)
	}
	b.WriteString("\n")
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	ctx.WithField("sidecar", name).Debug("writing metadata")
	if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
		ctx.WithError(err).Warn("cannot write sidecar")
	}
	return nil
}

// headerKey renders "author-email" as "Author-Email".
func headerKey(key string) string {
	parts := strings.Split(key, "-")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "-")
}
