// Package snapshot persists a document graph as a compact binary
// snapshot that loads much faster than the YAML dump.
//
// The graph is flattened into id-keyed records before encoding: the
// parent and link relations can cycle, so pointers are replaced by ids
// and the relation slices keep their order as id lists. CBOR carries
// the flat form; rebuild rewires the pointers.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/dairiki/g2-metadata/pkg/types"
)

const formatVersion = 1

var ErrVersionMismatch = errors.New("unsupported snapshot version")

// Manifest identifies one snapshot.
type Manifest struct {
	Version   int
	CreatedAt time.Time
	RunID     string
}

type commonRec struct {
	ID               int
	CreationTime     time.Time
	ModificationTime time.Time
	SerialNumber     int
	IsLinkable       bool
	LinkID           int
}

type itemRec struct {
	commonRec
	ParentID      int
	PathComponent string

	Title       string
	Summary     string
	Description string
	Keywords    string

	OwnerID         int
	OrderWeight     int
	ViewCount       int
	OriginationTime time.Time
	Hidden          bool

	Kind      types.ItemKind
	Album     *types.AlbumPayload
	Photo     *types.PhotoPayload
	Movie     *types.MoviePayload
	Animation *types.AnimationPayload
	Data      *types.DataPayload
	External  *types.LinkPayload

	CommentIDs    []int
	DerivativeIDs []int
	SubitemIDs    []int
	AccessListID  int
	HilightID     int
}

type commentRec struct {
	commonRec
	ParentID      int
	CommenterID   int
	Host          string
	Subject       string
	Body          string
	Date          time.Time
	Author        string
	PublishStatus int
}

type derivativeRec struct {
	commonRec
	ParentID             int
	SourceID             int
	Operations           string
	Order                int
	Size                 int
	Type                 int
	MimeType             string
	PostFilterOperations string
	Broken               bool
	Image                *types.DerivativeImagePayload
}

type userRec struct {
	commonRec
	UserName         string
	FullName         string
	Email            string
	Language         string
	Locked           bool
	PluginParameters types.Parameters
}

type groupRec struct {
	commonRec
	GroupType int
	GroupName string
	UserIDs   []int
}

type accessRec struct {
	ID      int
	Entries []accessEntryRec
}

type accessEntryRec struct {
	Permission  int
	PrincipalID int
}

type snapshot struct {
	Manifest         Manifest
	Groups           []groupRec
	Users            []userRec
	Items            []itemRec
	Comments         []commentRec
	Derivatives      []derivativeRec
	AccessLists      []accessRec
	PluginParameters types.Parameters
	RootID           int
}

// Write flattens and encodes the document.
func Write(w io.Writer, doc *types.Document) error {
	snap, err := flatten(doc)
	if err != nil {
		return err
	}
	snap.Manifest = Manifest{
		Version:   formatVersion,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		RunID:     uuid.NewString(),
	}
	if err := cbor.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Read decodes and rewires a snapshot written by Write.
func Read(r io.Reader) (*types.Document, error) {
	mode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := mode.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Manifest.Version != formatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d",
			ErrVersionMismatch, snap.Manifest.Version, formatVersion)
	}
	return snap.rebuild()
}

func flatten(doc *types.Document) (*snapshot, error) {
	snap := &snapshot{
		PluginParameters: doc.PluginParameters,
		RootID:           doc.Album.ID,
	}
	for _, g := range doc.Groups {
		rec := groupRec{
			commonRec: flattenCommon(&g.Common),
			GroupType: g.GroupType,
			GroupName: g.GroupName,
		}
		for _, u := range g.Users {
			rec.UserIDs = append(rec.UserIDs, u.ID)
		}
		snap.Groups = append(snap.Groups, rec)
	}
	for _, u := range doc.Users {
		snap.Users = append(snap.Users, userRec{
			commonRec:        flattenCommon(&u.Common),
			UserName:         u.UserName,
			FullName:         u.FullName,
			Email:            u.Email,
			Language:         u.Language,
			Locked:           u.Locked,
			PluginParameters: u.PluginParameters,
		})
	}

	lists := make(map[int]bool)
	seenDerivs := make(map[int]bool)
	for _, it := range types.WalkItems(doc.Album) {
		rec := itemRec{
			commonRec:       flattenCommon(&it.Common),
			ParentID:        it.ParentID,
			PathComponent:   it.PathComponent,
			Title:           it.Title,
			Summary:         it.Summary,
			Description:     it.Description,
			Keywords:        it.Keywords,
			OwnerID:         it.OwnerID,
			OrderWeight:     it.OrderWeight,
			ViewCount:       it.ViewCount,
			OriginationTime: it.OriginationTime,
			Hidden:          it.Hidden,
			Kind:            it.Kind,
			Album:           it.Album,
			Photo:           it.Photo,
			Movie:           it.Movie,
			Animation:       it.Animation,
			Data:            it.Data,
			External:        it.External,
		}
		for _, c := range it.Comments {
			rec.CommentIDs = append(rec.CommentIDs, c.ID)
			snap.Comments = append(snap.Comments, commentRec{
				commonRec:     flattenCommon(&c.Common),
				ParentID:      c.ParentID,
				CommenterID:   c.CommenterID,
				Host:          c.Host,
				Subject:       c.Subject,
				Body:          c.Body,
				Date:          c.Date,
				Author:        c.Author,
				PublishStatus: c.PublishStatus,
			})
		}
		for _, dv := range it.Derivatives {
			rec.DerivativeIDs = append(rec.DerivativeIDs, dv.ID)
			snap.flattenDerivative(dv, seenDerivs)
		}
		for _, sub := range it.Subitems {
			rec.SubitemIDs = append(rec.SubitemIDs, sub.ID)
		}
		if it.AccessList != nil {
			rec.AccessListID = it.AccessList.ID
			if !lists[it.AccessList.ID] {
				lists[it.AccessList.ID] = true
				list := accessRec{ID: it.AccessList.ID}
				for _, entry := range it.AccessList.Entries {
					list.Entries = append(list.Entries, accessEntryRec{
						Permission:  entry.Permission,
						PrincipalID: entry.Principal.Base().ID,
					})
				}
				snap.AccessLists = append(snap.AccessLists, list)
			}
		}
		hilight, err := it.Hilight()
		if err != nil {
			return nil, err
		}
		if hilight != nil {
			rec.HilightID = hilight.ID
		}
		snap.Items = append(snap.Items, rec)
	}
	return snap, nil
}

// flattenDerivative records a derivative and any chained derivative
// sources reachable from it.
func (snap *snapshot) flattenDerivative(dv *types.Derivative, seen map[int]bool) {
	if seen[dv.ID] {
		return
	}
	seen[dv.ID] = true
	snap.Derivatives = append(snap.Derivatives, derivativeRec{
		commonRec:            flattenCommon(&dv.Common),
		ParentID:             dv.ParentID,
		SourceID:             dv.SourceID,
		Operations:           dv.Operations,
		Order:                dv.Order,
		Size:                 dv.Size,
		Type:                 dv.Type,
		MimeType:             dv.MimeType,
		PostFilterOperations: dv.PostFilterOperations,
		Broken:               dv.Broken,
		Image:                dv.Image,
	})
	if chained, ok := dv.Source.(*types.Derivative); ok {
		snap.flattenDerivative(chained, seen)
	}
}

func flattenCommon(c *types.Common) commonRec {
	return commonRec{
		ID:               c.ID,
		CreationTime:     c.CreationTime,
		ModificationTime: c.ModificationTime,
		SerialNumber:     c.SerialNumber,
		IsLinkable:       c.IsLinkable,
		LinkID:           c.LinkID,
	}
}

func (snap *snapshot) rebuild() (*types.Document, error) {
	users := make(map[int]*types.User, len(snap.Users))
	items := make(map[int]*types.Item, len(snap.Items))
	comments := make(map[int]*types.Comment, len(snap.Comments))
	derivs := make(map[int]*types.Derivative, len(snap.Derivatives))
	lists := make(map[int]*types.AccessList, len(snap.AccessLists))

	doc := &types.Document{
		PluginParameters: normalizeParams(snap.PluginParameters),
	}
	for _, rec := range snap.Users {
		u := &types.User{
			Common:           rec.common(),
			UserName:         rec.UserName,
			FullName:         rec.FullName,
			Email:            rec.Email,
			Language:         rec.Language,
			Locked:           rec.Locked,
			PluginParameters: normalizeParams(rec.PluginParameters),
		}
		users[u.ID] = u
		doc.Users = append(doc.Users, u)
	}
	groups := make(map[int]*types.Group, len(snap.Groups))
	for _, rec := range snap.Groups {
		g := &types.Group{
			Common:    rec.common(),
			GroupType: rec.GroupType,
			GroupName: rec.GroupName,
		}
		for _, id := range rec.UserIDs {
			if u, ok := users[id]; ok {
				g.Users = append(g.Users, u)
			}
		}
		groups[g.ID] = g
		doc.Groups = append(doc.Groups, g)
	}
	for i := range snap.Items {
		rec := &snap.Items[i]
		items[rec.ID] = &types.Item{
			Common:          rec.common(),
			ParentID:        rec.ParentID,
			PathComponent:   rec.PathComponent,
			Title:           rec.Title,
			Summary:         rec.Summary,
			Description:     rec.Description,
			Keywords:        rec.Keywords,
			OwnerID:         rec.OwnerID,
			OrderWeight:     rec.OrderWeight,
			ViewCount:       rec.ViewCount,
			OriginationTime: rec.OriginationTime,
			Hidden:          rec.Hidden,
			Kind:            rec.Kind,
			Album:           rec.Album,
			Photo:           rec.Photo,
			Movie:           rec.Movie,
			Animation:       rec.Animation,
			Data:            rec.Data,
			External:        rec.External,
		}
		if rec.Album != nil {
			rec.Album.PluginParameters = normalizeParams(rec.Album.PluginParameters)
		}
	}
	for _, rec := range snap.Comments {
		comments[rec.ID] = &types.Comment{
			Common:        rec.common(),
			ParentID:      rec.ParentID,
			CommenterID:   rec.CommenterID,
			Host:          rec.Host,
			Subject:       rec.Subject,
			Body:          rec.Body,
			Date:          rec.Date,
			Author:        rec.Author,
			PublishStatus: rec.PublishStatus,
		}
	}
	for _, rec := range snap.Derivatives {
		derivs[rec.ID] = &types.Derivative{
			Common:               rec.common(),
			ParentID:             rec.ParentID,
			SourceID:             rec.SourceID,
			Operations:           rec.Operations,
			Order:                rec.Order,
			Size:                 rec.Size,
			Type:                 rec.Type,
			MimeType:             rec.MimeType,
			PostFilterOperations: rec.PostFilterOperations,
			Broken:               rec.Broken,
			Image:                rec.Image,
		}
	}
	for _, rec := range snap.AccessLists {
		list := &types.AccessList{ID: rec.ID}
		for _, entry := range rec.Entries {
			var principal types.Entity
			switch {
			case users[entry.PrincipalID] != nil:
				principal = users[entry.PrincipalID]
			case groups[entry.PrincipalID] != nil:
				principal = groups[entry.PrincipalID]
			case items[entry.PrincipalID] != nil:
				principal = items[entry.PrincipalID]
			default:
				return nil, fmt.Errorf("%w: entity %d",
					types.ErrUnknownPrincipal, entry.PrincipalID)
			}
			list.Entries = append(list.Entries, types.AccessEntry{
				Permission: entry.Permission,
				Principal:  principal,
			})
		}
		lists[list.ID] = list
	}

	for _, rec := range snap.Derivatives {
		dv := derivs[rec.ID]
		if rec.SourceID == 0 {
			continue
		}
		if it, ok := items[rec.SourceID]; ok {
			dv.Source = it
		} else if chained, ok := derivs[rec.SourceID]; ok {
			dv.Source = chained
		}
	}
	for i := range snap.Items {
		rec := &snap.Items[i]
		it := items[rec.ID]
		if rec.OwnerID != 0 {
			it.Owner = users[rec.OwnerID]
		}
		if rec.LinkID != 0 {
			it.Link = items[rec.LinkID]
		}
		for _, id := range rec.CommentIDs {
			if c, ok := comments[id]; ok {
				it.Comments = append(it.Comments, c)
			}
		}
		for _, id := range rec.DerivativeIDs {
			if dv, ok := derivs[id]; ok {
				it.Derivatives = append(it.Derivatives, dv)
			}
		}
		for _, id := range rec.SubitemIDs {
			if sub, ok := items[id]; ok {
				sub.Parent = it
				it.Subitems = append(it.Subitems, sub)
			}
		}
		if rec.AccessListID != 0 {
			it.AccessList = lists[rec.AccessListID]
		}
		if rec.HilightID != 0 && len(rec.DerivativeIDs) == 0 {
			it.HilightTarget = items[rec.HilightID]
		}
	}

	root, ok := items[snap.RootID]
	if !ok {
		return nil, types.ErrNoRootAlbum
	}
	doc.Album = root
	return doc, nil
}

func (r commonRec) common() types.Common {
	return types.Common{
		ID:               r.ID,
		CreationTime:     r.CreationTime,
		ModificationTime: r.ModificationTime,
		SerialNumber:     r.SerialNumber,
		IsLinkable:       r.IsLinkable,
		LinkID:           r.LinkID,
	}
}

// normalizeParams rewrites decoded CBOR leaves to the shapes the rest
// of the system expects; in particular positive integers come back as
// uint64 and must be int64 again.
func normalizeParams(params types.Parameters) types.Parameters {
	for _, byID := range params {
		for _, byName := range byID {
			for name, value := range byName {
				byName[name] = normalizeValue(value)
			}
		}
	}
	return params
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case uint64:
		return int64(v)
	case []any:
		for i, elem := range v {
			v[i] = normalizeValue(elem)
		}
		return v
	case map[string]any:
		for k, elem := range v {
			v[k] = normalizeValue(elem)
		}
		return v
	default:
		return v
	}
}
