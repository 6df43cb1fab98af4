package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dairiki/g2-metadata/internal/phpser"
	"github.com/dairiki/g2-metadata/pkg/types"
)

// Load materializes the whole gallery graph: every item reachable from
// the root album with its comments, derivatives, owner, access list
// and plugin parameters, plus the full user and group tables and the
// global plugin parameters.
func Load(ctx context.Context, db *sql.DB) (*types.Document, error) {
	g := newGraph()
	if err := g.fetch(ctx, db); err != nil {
		return nil, err
	}
	return g.assemble()
}

// Gallery2 polymorphic discriminators.
const (
	typeAlbumItem       = "GalleryAlbumItem"
	typePhotoItem       = "GalleryPhotoItem"
	typeMovieItem       = "GalleryMovieItem"
	typeLinkItem        = "GalleryLinkItem"
	typeAnimationItem   = "GalleryAnimationItem"
	typeDataItem        = "GalleryDataItem"
	typeUnknownItem     = "GalleryUnknownItem"
	typeComment         = "GalleryComment"
	typeUser            = "GalleryUser"
	typeGroup           = "GalleryGroup"
	typeDerivative      = "GalleryDerivative"
	typeDerivativeImage = "GalleryDerivativeImage"
	typeThumbnailImage  = "ThumbnailImage"
)

var itemKinds = map[string]types.ItemKind{
	typeAlbumItem:     types.KindAlbum,
	typePhotoItem:     types.KindPhoto,
	typeMovieItem:     types.KindMovie,
	typeLinkItem:      types.KindLink,
	typeAnimationItem: types.KindAnimation,
	typeDataItem:      types.KindData,
	typeUnknownItem:   types.KindUnknown,
}

// Raw row shapes, one per source table.

type entityRow struct {
	id           int
	entityType   string
	creation     int64
	modification int64
	serial       int
	linkable     bool
	linkID       int
}

type itemRow struct {
	id          int
	title       string
	summary     string
	description string
	keywords    string
	ownerID     int
	origination int64
	viewCount   int
	orderWeight int
	hidden      bool
}

type albumRow struct {
	theme          string
	orderBy        string
	orderDirection string
}

type dimsRow struct {
	width    int
	height   int
	duration int
}

type dataRow struct {
	mimeType string
	size     int
}

type commentRow struct {
	commenterID   int
	host          string
	subject       string
	body          string
	date          int64
	author        string
	publishStatus int
}

type derivativeRow struct {
	sourceID   int
	operations string
	order      int
	size       int
	derivType  int
	mimeType   string
	postFilter string
	broken     bool
}

type userRow struct {
	userName string
	fullName string
	email    string
	language string
	locked   bool
}

type groupRow struct {
	groupType int
	groupName string
}

type accessRow struct {
	listID      int
	permission  int
	principalID int
}

type paramRow struct {
	itemID int
	row    phpser.Row
}

type prefRow struct {
	itemID     int
	derivType  int
	operations string
}

// graph holds the raw tables between fetch and assemble.
type graph struct {
	entities    map[int]entityRow
	parents     map[int]int
	components  map[int]string
	items       map[int]itemRow
	albums      map[int]albumRow
	dims        map[int]dimsRow // photo, movie, animation payloads
	data        map[int]dataRow
	links       map[int]string
	comments    map[int]commentRow
	derivatives map[int]derivativeRow
	derivImages map[int]dimsRow
	users       map[int]userRow
	groups      map[int]groupRow
	userGroups  [][2]int // (groupID, userID) in query order
	access      []accessRow
	subscribers map[int]int // itemID -> access list id
	params      []paramRow
	prefs       []prefRow
}

func newGraph() *graph {
	return &graph{
		entities:    make(map[int]entityRow),
		parents:     make(map[int]int),
		components:  make(map[int]string),
		items:       make(map[int]itemRow),
		albums:      make(map[int]albumRow),
		dims:        make(map[int]dimsRow),
		data:        make(map[int]dataRow),
		links:       make(map[int]string),
		comments:    make(map[int]commentRow),
		derivatives: make(map[int]derivativeRow),
		derivImages: make(map[int]dimsRow),
		users:       make(map[int]userRow),
		groups:      make(map[int]groupRow),
		subscribers: make(map[int]int),
	}
}

func (g *graph) fetch(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		name string
		fn   func(context.Context, *sql.DB) error
	}{
		{"entities", g.fetchEntities},
		{"child entities", g.fetchChildEntities},
		{"filesystem entities", g.fetchFileSystemEntities},
		{"items", g.fetchItems},
		{"albums", g.fetchAlbums},
		{"photos", g.fetchPhotos},
		{"movies", g.fetchMovies},
		{"animations", g.fetchAnimations},
		{"data items", g.fetchDataItems},
		{"link items", g.fetchLinkItems},
		{"comments", g.fetchComments},
		{"derivatives", g.fetchDerivatives},
		{"derivative images", g.fetchDerivativeImages},
		{"derivative prefs", g.fetchDerivativePrefs},
		{"users", g.fetchUsers},
		{"groups", g.fetchGroups},
		{"user-group map", g.fetchUserGroups},
		{"access map", g.fetchAccessMap},
		{"access subscribers", g.fetchSubscribers},
		{"plugin parameters", g.fetchPluginParameters},
	}
	for _, step := range steps {
		if err := step.fn(ctx, db); err != nil {
			return fmt.Errorf("load %s: %w", step.name, err)
		}
	}
	return nil
}

func (g *graph) fetchEntities(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_id, g_entityType, g_creationTimestamp,
		       g_modificationTimestamp, g_serialNumber,
		       g_isLinkable, g_linkId
		FROM g2_Entity`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r entityRow
		var linkable int
		var linkID sql.NullInt64
		if err := rows.Scan(&r.id, &r.entityType, &r.creation,
			&r.modification, &r.serial, &linkable, &linkID); err != nil {
			return err
		}
		r.linkable = linkable != 0
		r.linkID = int(linkID.Int64)
		g.entities[r.id] = r
	}
	return rows.Err()
}

func (g *graph) fetchChildEntities(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT g_id, g_parentId FROM g2_ChildEntity`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, parentID int
		if err := rows.Scan(&id, &parentID); err != nil {
			return err
		}
		g.parents[id] = parentID
	}
	return rows.Err()
}

func (g *graph) fetchFileSystemEntities(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT g_id, g_pathComponent FROM g2_FileSystemEntity`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var component sql.NullString
		if err := rows.Scan(&id, &component); err != nil {
			return err
		}
		g.components[id] = component.String
	}
	return rows.Err()
}

func (g *graph) fetchItems(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT i.g_id, i.g_title, i.g_summary, i.g_description,
		       i.g_keywords, i.g_ownerId, i.g_originationTimestamp,
		       a.g_viewCount, a.g_orderWeight, h.g_itemId
		FROM g2_Item i
		LEFT JOIN g2_ItemAttributesMap a ON a.g_itemId = i.g_id
		LEFT JOIN g2_ItemHiddenMap h ON h.g_itemId = i.g_id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r itemRow
		var title, summary, description, keywords sql.NullString
		var viewCount, orderWeight, hiddenID sql.NullInt64
		if err := rows.Scan(&r.id, &title, &summary, &description,
			&keywords, &r.ownerID, &r.origination,
			&viewCount, &orderWeight, &hiddenID); err != nil {
			return err
		}
		r.title = title.String
		r.summary = summary.String
		r.description = description.String
		r.keywords = keywords.String
		r.viewCount = int(viewCount.Int64)
		r.orderWeight = int(orderWeight.Int64)
		r.hidden = hiddenID.Valid
		g.items[r.id] = r
	}
	return rows.Err()
}

func (g *graph) fetchAlbums(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT g_id, g_theme, g_orderBy, g_orderDirection FROM g2_AlbumItem`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var theme, orderBy, orderDirection sql.NullString
		if err := rows.Scan(&id, &theme, &orderBy, &orderDirection); err != nil {
			return err
		}
		g.albums[id] = albumRow{
			theme:          theme.String,
			orderBy:        orderBy.String,
			orderDirection: orderDirection.String,
		}
	}
	return rows.Err()
}

func (g *graph) fetchPhotos(ctx context.Context, db *sql.DB) error {
	return g.fetchDims(ctx, db,
		`SELECT g_id, g_width, g_height FROM g2_PhotoItem`, false)
}

func (g *graph) fetchMovies(ctx context.Context, db *sql.DB) error {
	return g.fetchDims(ctx, db,
		`SELECT g_id, g_width, g_height, g_duration FROM g2_MovieItem`, true)
}

func (g *graph) fetchAnimations(ctx context.Context, db *sql.DB) error {
	return g.fetchDims(ctx, db,
		`SELECT g_id, g_width, g_height FROM g2_AnimationItem`, false)
}

func (g *graph) fetchDims(ctx context.Context, db *sql.DB, query string, withDuration bool) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var width, height, duration sql.NullInt64
		var dest []any
		if withDuration {
			dest = []any{&id, &width, &height, &duration}
		} else {
			dest = []any{&id, &width, &height}
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		g.dims[id] = dimsRow{
			width:    int(width.Int64),
			height:   int(height.Int64),
			duration: int(duration.Int64),
		}
	}
	return rows.Err()
}

func (g *graph) fetchDataItems(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT g_id, g_mimeType, g_size FROM g2_DataItem`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var mimeType sql.NullString
		var size sql.NullInt64
		if err := rows.Scan(&id, &mimeType, &size); err != nil {
			return err
		}
		g.data[id] = dataRow{mimeType: mimeType.String, size: int(size.Int64)}
	}
	return rows.Err()
}

func (g *graph) fetchLinkItems(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT g_id, g_link FROM g2_LinkItem`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var url string
		if err := rows.Scan(&id, &url); err != nil {
			return err
		}
		g.links[id] = url
	}
	return rows.Err()
}

func (g *graph) fetchComments(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_id, g_commenterId, g_host, g_subject, g_comment,
		       g_date, g_author, g_publishStatus
		FROM g2_Comment`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var r commentRow
		var subject, body, author sql.NullString
		if err := rows.Scan(&id, &r.commenterID, &r.host, &subject,
			&body, &r.date, &author, &r.publishStatus); err != nil {
			return err
		}
		r.subject = subject.String
		r.body = body.String
		r.author = author.String
		g.comments[id] = r
	}
	return rows.Err()
}

func (g *graph) fetchDerivatives(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_id, g_derivativeSourceId, g_derivativeOperations,
		       g_derivativeOrder, g_derivativeSize, g_derivativeType,
		       g_mimeType, g_postFilterOperations, g_isBroken
		FROM g2_Derivative`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var r derivativeRow
		var operations, postFilter sql.NullString
		var size, broken sql.NullInt64
		if err := rows.Scan(&id, &r.sourceID, &operations, &r.order,
			&size, &r.derivType, &r.mimeType, &postFilter, &broken); err != nil {
			return err
		}
		r.operations = operations.String
		r.postFilter = postFilter.String
		r.size = int(size.Int64)
		r.broken = broken.Int64 != 0
		g.derivatives[id] = r
	}
	return rows.Err()
}

func (g *graph) fetchDerivativeImages(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT g_id, g_width, g_height FROM g2_DerivativeImage`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var width, height sql.NullInt64
		if err := rows.Scan(&id, &width, &height); err != nil {
			return err
		}
		g.derivImages[id] = dimsRow{width: int(width.Int64), height: int(height.Int64)}
	}
	return rows.Err()
}

func (g *graph) fetchDerivativePrefs(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_itemId, g_derivativeType, g_derivativeOperations
		FROM g2_DerivativePrefsMap
		ORDER BY g_itemId, g_derivativeType, g_order`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r prefRow
		var operations sql.NullString
		if err := rows.Scan(&r.itemID, &r.derivType, &operations); err != nil {
			return err
		}
		r.operations = operations.String
		g.prefs = append(g.prefs, r)
	}
	return rows.Err()
}

func (g *graph) fetchUsers(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_id, g_userName, g_fullName, g_email, g_language, g_locked
		FROM g2_User`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var r userRow
		var fullName, email, language sql.NullString
		var locked sql.NullInt64
		if err := rows.Scan(&id, &r.userName, &fullName, &email,
			&language, &locked); err != nil {
			return err
		}
		r.fullName = fullName.String
		r.email = email.String
		r.language = language.String
		r.locked = locked.Int64 != 0
		g.users[id] = r
	}
	return rows.Err()
}

func (g *graph) fetchGroups(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT g_id, g_groupType, g_groupName FROM g2_Group`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var r groupRow
		var groupName sql.NullString
		if err := rows.Scan(&id, &r.groupType, &groupName); err != nil {
			return err
		}
		r.groupName = groupName.String
		g.groups[id] = r
	}
	return rows.Err()
}

func (g *graph) fetchUserGroups(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_groupId, g_userId FROM g2_UserGroupMap
		ORDER BY g_groupId, g_userId`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var groupID, userID int
		if err := rows.Scan(&groupID, &userID); err != nil {
			return err
		}
		g.userGroups = append(g.userGroups, [2]int{groupID, userID})
	}
	return rows.Err()
}

func (g *graph) fetchAccessMap(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_accessListId, g_permission, g_userOrGroupId
		FROM g2_AccessMap
		ORDER BY g_accessListId, g_userOrGroupId`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r accessRow
		if err := rows.Scan(&r.listID, &r.permission, &r.principalID); err != nil {
			return err
		}
		g.access = append(g.access, r)
	}
	return rows.Err()
}

func (g *graph) fetchSubscribers(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT g_itemId, g_accessListId FROM g2_AccessSubscriberMap`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID, listID int
		if err := rows.Scan(&itemID, &listID); err != nil {
			return err
		}
		g.subscribers[itemID] = listID
	}
	return rows.Err()
}

func (g *graph) fetchPluginParameters(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT g_pluginType, g_pluginId, g_itemId, g_parameterName,
		       g_parameterValue
		FROM g2_PluginParameterMap`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r paramRow
		if err := rows.Scan(&r.row.PluginType, &r.row.PluginID,
			&r.itemID, &r.row.Name, &r.row.Value); err != nil {
			return err
		}
		g.params = append(g.params, r)
	}
	return rows.Err()
}

func unixTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
