// Package discovery composes keyword resolution, geo expansion, ranking,
// interleaving and suggestions into the search and timeline entry points.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/kuchikomi/internal/feed"
	"github.com/onnwee/kuchikomi/internal/geo"
	"github.com/onnwee/kuchikomi/internal/keyword"
	"github.com/onnwee/kuchikomi/internal/post"
	"github.com/onnwee/kuchikomi/internal/ranking"
	"github.com/onnwee/kuchikomi/internal/social"
	"github.com/onnwee/kuchikomi/internal/tracing"
	"github.com/onnwee/kuchikomi/internal/validate"
)

// Paging and radius defaults.
const (
	DefaultPageLimit     = 20
	MaxPageLimit         = 50
	DefaultRadiusMeters  = 1500.0
	MaxRadiusMeters      = 20000.0
	outcomeOK            = "ok"
	outcomeInvalidInput  = "invalid_input"
	outcomeUpstreamError = "upstream_error"
	outcomeError         = "error"
)

// Config holds request limits and feed tuning.
type Config struct {
	DefaultLimit        int
	MaxLimit            int
	DefaultRadiusMeters float64
	MaxRadiusMeters     float64
	InterleaveWindow    int
}

// DefaultConfig returns the reference limits.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        DefaultPageLimit,
		MaxLimit:            MaxPageLimit,
		DefaultRadiusMeters: DefaultRadiusMeters,
		MaxRadiusMeters:     MaxRadiusMeters,
		InterleaveWindow:    feed.DefaultWindow,
	}
}

// Dependencies are the collaborators a Service reads from.
type Dependencies struct {
	Content  post.ContentStore
	Graph    social.Graph
	Geo      *geo.Resolver
	Keywords *keyword.Dictionary
	Ranker   *ranking.Ranker
	Injector *feed.Injector
	Metrics  *Metrics
}

// Service implements the discovery entry points. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	cfg      Config
	content  post.ContentStore
	graph    social.Graph
	geo      *geo.Resolver
	keywords *keyword.Dictionary
	ranker   *ranking.Ranker
	injector *feed.Injector
	metrics  *Metrics
}

// NewService creates a Service. Zero config values fall back to DefaultConfig.
func NewService(cfg Config, deps Dependencies) *Service {
	defaults := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaults.MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.DefaultRadiusMeters <= 0 {
		cfg.DefaultRadiusMeters = defaults.DefaultRadiusMeters
	}
	if cfg.MaxRadiusMeters <= 0 {
		cfg.MaxRadiusMeters = defaults.MaxRadiusMeters
	}
	if cfg.InterleaveWindow < 0 {
		cfg.InterleaveWindow = defaults.InterleaveWindow
	}
	if deps.Ranker == nil {
		deps.Ranker = ranking.New(ranking.DefaultConfig())
	}
	return &Service{
		cfg:      cfg,
		content:  deps.Content,
		graph:    deps.Graph,
		geo:      deps.Geo,
		keywords: deps.Keywords,
		ranker:   deps.Ranker,
		injector: deps.Injector,
		metrics:  deps.Metrics,
	}
}

// paging is the validated cursor and page size of a request.
type paging struct {
	cursor *post.FeedCursor
	limit  int
}

// first reports whether the request is for the first page.
func (p paging) first() bool {
	return p.cursor == nil
}

func (s *Service) parsePaging(rawCursor string, limit *int) (paging, error) {
	cursor, err := post.DecodeCursor(rawCursor)
	if err != nil {
		return paging{}, invalid("cursor", "malformed cursor")
	}

	n := s.cfg.DefaultLimit
	if limit != nil {
		if *limit < 1 {
			return paging{}, invalid("limit", "limit must be at least 1")
		}
		// Values above the maximum are capped rather than rejected.
		n = min(*limit, s.cfg.MaxLimit)
	}
	return paging{cursor: cursor, limit: n}, nil
}

func checkRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validate.Errors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &InputError{Field: fieldErrs[0].Field, Message: fieldErrs[0].Message}
	}
	return &InputError{Field: "request", Message: err.Error()}
}

// observe records metrics and logs for a finished request.
func (s *Service) observe(ctx context.Context, op string, start time.Time, page *Page, err error) {
	outcome := outcomeOK
	items := 0
	var upErr *UpstreamError
	switch {
	case err == nil:
		items = len(page.Items)
	case errors.Is(err, ErrInvalidInput):
		outcome = outcomeInvalidInput
	case errors.As(err, &upErr):
		outcome = outcomeUpstreamError
		s.metrics.incUpstreamFailure(upErr.Source)
		slog.ErrorContext(ctx, "discovery upstream failure",
			"operation", op, "source", upErr.Source, "error", upErr.Err)
	default:
		outcome = outcomeError
		if !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "discovery request failed", "operation", op, "error", err)
		}
	}
	s.metrics.observeRequest(op, outcome, time.Since(start), items)
}

// viewerGraph is what a request knows about the viewer's follows.
type viewerGraph struct {
	followees   []string
	followCount int
}

// loadViewerGraph fetches followees, and the follow count when withCount is
// set, concurrently. An anonymous viewer has an empty graph.
func (s *Service) loadViewerGraph(ctx context.Context, viewerID string, withCount bool) (viewerGraph, error) {
	var vg viewerGraph
	if viewerID == "" {
		return vg, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := s.graph.AcceptedFolloweesOf(gctx, viewerID)
		if err != nil {
			return upstream(SourceSocialGraph, err)
		}
		vg.followees = ids
		return nil
	})
	if withCount {
		g.Go(func() error {
			n, err := s.graph.FollowCountOf(gctx, viewerID)
			if err != nil {
				return upstream(SourceSocialGraph, err)
			}
			vg.followCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return viewerGraph{}, err
	}
	return vg, nil
}

// resolveKeyword extracts the category facet from query using the labels
// present in the content store.
func (s *Service) resolveKeyword(ctx context.Context, query string, categories []string) keyword.Resolution {
	res := s.keywords.Resolve(query, categories)
	s.metrics.incKeyword(res.Kind.String())
	if res.Matched() {
		slog.DebugContext(ctx, "resolved keyword facet",
			"label", res.Label, "kind", res.Kind.String(), "remainder", res.Remainder)
	}
	return res
}

// fetchCategories loads the canonical labels used for keyword resolution.
func (s *Service) fetchCategories(ctx context.Context, query string) ([]string, error) {
	if query == "" {
		return nil, nil
	}
	labels, err := s.content.Categories(ctx)
	if err != nil {
		return nil, upstream(SourceContentStore, err)
	}
	return labels, nil
}

// authorsWithViewer returns followees plus the viewer.
func authorsWithViewer(followees []string, viewerID string) []string {
	authors := make([]string, 0, len(followees)+1)
	authors = append(authors, followees...)
	return append(authors, viewerID)
}

// buildPage turns ranked posts into a page and encodes the next cursor.
func buildPage(ranked []ranking.Ranked, next *post.FeedCursor) *Page {
	page := emptyPage()
	for _, r := range ranked {
		page.Items = append(page.Items, Item{Post: r.Post, RankScore: r.Score})
	}
	if next != nil {
		encoded := next.Encode()
		page.NextCursor = &encoded
	}
	return page
}

// chronological wraps posts in store order without reordering.
func (s *Service) chronological(posts []*post.Post) []ranking.Ranked {
	out := make([]ranking.Ranked, len(posts))
	for i, p := range posts {
		out[i] = ranking.Ranked{Post: p, Score: s.ranker.Score(p, false)}
	}
	return out
}

// SearchByText returns posts matching a free-text query. A leading category
// facet is resolved from the query; the remaining text filters post bodies.
// With FollowOnly only posts by the viewer and their followees are searched.
//
// Ranking applies within each page: pages follow creation order through the
// cursor, so concatenated pages are not one globally ranked list.
func (s *Service) SearchByText(ctx context.Context, req TextSearchRequest) (page *Page, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "discovery.search_text")
	defer func() {
		endSpan(err)
		s.observe(ctx, OpSearchText, start, page, err)
	}()

	if err := checkRequest(&req); err != nil {
		return nil, err
	}
	pg, err := s.parsePaging(req.Cursor, req.Limit)
	if err != nil {
		return nil, err
	}
	if req.FollowOnly && req.ViewerID == "" {
		return nil, invalid("viewer_id", "follow_only requires an authenticated viewer")
	}
	query, _ := validate.SearchQuery(req.Query)

	var (
		vg         viewerGraph
		categories []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		vg, err = s.loadViewerGraph(gctx, req.ViewerID, false)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.fetchCategories(gctx, query)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var res keyword.Resolution
	if query != "" {
		res = s.resolveKeyword(ctx, query, categories)
	}
	tq := post.TextQuery{Text: res.Remainder, Category: res.Label}
	following := social.Set(vg.followees)
	if req.FollowOnly {
		tq.AuthorIDs = authorsWithViewer(vg.followees, req.ViewerID)
		// Every candidate is already followed, so no bonus applies.
		following = nil
	}

	rows, err := s.content.QueryByText(ctx, tq, pg.cursor, pg.limit+1)
	if err != nil {
		return nil, upstream(SourceContentStore, err)
	}
	posts, next := post.Page(rows, pg.limit)

	tracing.SetAttributes(ctx,
		attribute.String("discovery.category", res.Label),
		attribute.Int("discovery.candidates", len(posts)),
	)

	page = buildPage(s.ranker.Rank(posts, following), next)
	page.MatchedCategory = res.Label
	if res.Matched() {
		page.RemainderText = res.Remainder
	}
	return page, nil
}

// SearchByLandmark returns posts at places within a radius of a landmark.
// Without a query the posts are listed newest first; with a query the text
// and category filters are intersected with the place set and ranked.
// Items carry the place distance and an estimated walking time.
func (s *Service) SearchByLandmark(ctx context.Context, req LandmarkSearchRequest) (page *Page, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "discovery.search_landmark")
	defer func() {
		endSpan(err)
		s.observe(ctx, OpSearchLandmark, start, page, err)
	}()

	if err := checkRequest(&req); err != nil {
		return nil, err
	}
	pg, err := s.parsePaging(req.Cursor, req.Limit)
	if err != nil {
		return nil, err
	}
	radius := s.cfg.DefaultRadiusMeters
	if req.RadiusMeters != nil {
		if *req.RadiusMeters > s.cfg.MaxRadiusMeters {
			return nil, invalid("radius", "radius must be at most %g meters", s.cfg.MaxRadiusMeters)
		}
		radius = *req.RadiusMeters
	}
	if req.FollowOnly && req.ViewerID == "" {
		return nil, invalid("viewer_id", "follow_only requires an authenticated viewer")
	}
	query, _ := validate.SearchQuery(req.Query)

	var (
		places     []geo.NearbyPlace
		vg         viewerGraph
		categories []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		places, err = s.geo.PlacesNear(gctx, req.LandmarkID, radius)
		return upstream(SourceGeoIndex, err)
	})
	g.Go(func() (err error) {
		vg, err = s.loadViewerGraph(gctx, req.ViewerID, false)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.fetchCategories(gctx, query)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracing.SetAttributes(ctx,
		attribute.String("discovery.landmark_id", req.LandmarkID),
		attribute.Int("discovery.places", len(places)),
	)
	if len(places) == 0 {
		return emptyPage(), nil
	}
	placeIDs := geo.PlaceIDs(places)

	var authors []string
	if req.FollowOnly {
		authors = authorsWithViewer(vg.followees, req.ViewerID)
	}

	var (
		rows   []*post.Post
		res    keyword.Resolution
		ranked []ranking.Ranked
	)
	switch {
	case query == "" && authors == nil:
		rows, err = s.content.QueryByIDSet(ctx, placeIDs, pg.cursor, pg.limit+1)
	case query == "":
		rows, err = s.content.QueryByText(ctx, post.TextQuery{PlaceIDs: placeIDs, AuthorIDs: authors}, pg.cursor, pg.limit+1)
	default:
		res = s.resolveKeyword(ctx, query, categories)
		tq := post.TextQuery{Text: res.Remainder, Category: res.Label, PlaceIDs: placeIDs, AuthorIDs: authors}
		rows, err = s.content.QueryByText(ctx, tq, pg.cursor, pg.limit+1)
	}
	if err != nil {
		return nil, upstream(SourceContentStore, err)
	}
	posts, next := post.Page(rows, pg.limit)

	if query == "" {
		ranked = s.chronological(posts)
	} else {
		following := social.Set(vg.followees)
		if req.FollowOnly {
			following = nil
		}
		ranked = s.ranker.Rank(posts, following)
	}

	page = buildPage(ranked, next)
	page.MatchedCategory = res.Label
	if res.Matched() {
		page.RemainderText = res.Remainder
	}

	distances := make(map[string]*float64, len(places))
	for _, p := range places {
		distances[p.PlaceID] = p.DistanceMeters
	}
	for i := range page.Items {
		if page.Items[i].PlaceID == nil {
			continue
		}
		d := distances[*page.Items[i].PlaceID]
		page.Items[i].DistanceMeters = d
		page.Items[i].WalkMinutes = s.geo.WalkMinutes(d)
	}
	return page, nil
}

// TimelinePersonalized returns posts by the viewer and the users they follow,
// ranked and then interleaved for author diversity. The first page carries a
// suggestion block for viewers who follow at most one user.
func (s *Service) TimelinePersonalized(ctx context.Context, req TimelineRequest) (page *Page, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "discovery.timeline")
	defer func() {
		endSpan(err)
		s.observe(ctx, OpTimeline, start, page, err)
	}()

	if err := checkRequest(&req); err != nil {
		return nil, err
	}
	if req.ViewerID == "" {
		return nil, invalid("viewer_id", "an authenticated viewer is required")
	}
	pg, err := s.parsePaging(req.Cursor, req.Limit)
	if err != nil {
		return nil, err
	}

	vg, err := s.loadViewerGraph(ctx, req.ViewerID, pg.first())
	if err != nil {
		return nil, err
	}

	rows, err := s.content.QueryByAuthors(ctx, authorsWithViewer(vg.followees, req.ViewerID), pg.cursor, pg.limit+1)
	if err != nil {
		return nil, upstream(SourceContentStore, err)
	}
	posts, next := post.Page(rows, pg.limit)

	return s.assembleTimeline(ctx, req.ViewerID, vg, pg, posts, next)
}

// TimelineDiscovery returns recent posts from users the viewer does not
// follow, excluding the viewer's own posts. Anonymous viewers see all recent
// posts and never receive suggestions.
func (s *Service) TimelineDiscovery(ctx context.Context, req TimelineRequest) (page *Page, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "discovery.discover")
	defer func() {
		endSpan(err)
		s.observe(ctx, OpDiscover, start, page, err)
	}()

	if err := checkRequest(&req); err != nil {
		return nil, err
	}
	pg, err := s.parsePaging(req.Cursor, req.Limit)
	if err != nil {
		return nil, err
	}

	vg, err := s.loadViewerGraph(ctx, req.ViewerID, pg.first())
	if err != nil {
		return nil, err
	}

	var excluded []string
	if req.ViewerID != "" {
		excluded = authorsWithViewer(vg.followees, req.ViewerID)
	}
	rows, err := s.content.QueryRecentExcluding(ctx, excluded, pg.cursor, pg.limit+1)
	if err != nil {
		return nil, upstream(SourceContentStore, err)
	}
	posts, next := post.Page(rows, pg.limit)

	return s.assembleTimeline(ctx, req.ViewerID, vg, pg, posts, next)
}

// assembleTimeline ranks, interleaves and attaches suggestions to a timeline page.
func (s *Service) assembleTimeline(ctx context.Context, viewerID string, vg viewerGraph, pg paging, posts []*post.Post, next *post.FeedCursor) (*Page, error) {
	ranked := s.ranker.Rank(posts, nil)
	ranked = feed.Interleave(ranked, s.cfg.InterleaveWindow, func(r ranking.Ranked) string {
		return r.Post.AuthorID
	})
	page := buildPage(ranked, next)

	if !pg.first() || viewerID == "" || s.injector == nil {
		return page, nil
	}
	exclude := social.Set(authorsWithViewer(vg.followees, viewerID))
	block, err := s.injector.MaybeInject(ctx, vg.followCount, exclude)
	if err != nil {
		return nil, upstream(SourceProfileDirectory, err)
	}
	if block != nil {
		s.metrics.incSuggestionBlock()
		tracing.AddEvent(ctx, "suggestions_injected", attribute.Int("profiles", len(block.Profiles)))
		page.Suggestions = block
	}
	return page, nil
}

// String implements fmt.Stringer for log output.
func (c Config) String() string {
	return fmt.Sprintf("limit=%d/%d radius=%g/%g window=%d",
		c.DefaultLimit, c.MaxLimit, c.DefaultRadiusMeters, c.MaxRadiusMeters, c.InterleaveWindow)
}

// Config returns the effective configuration after defaults were applied.
func (s *Service) Config() Config {
	return s.cfg
}
