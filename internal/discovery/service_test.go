package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/onnwee/kuchikomi/internal/feed"
	"github.com/onnwee/kuchikomi/internal/geo"
	"github.com/onnwee/kuchikomi/internal/keyword"
	"github.com/onnwee/kuchikomi/internal/post"
	"github.com/onnwee/kuchikomi/internal/profile"
	"github.com/onnwee/kuchikomi/internal/ranking"
	"github.com/onnwee/kuchikomi/internal/social"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

// fixture wires a Service to in-memory collaborators.
type fixture struct {
	content    *post.InMemoryContentStore
	graph      *social.InMemoryGraph
	profiles   *profile.InMemoryDirectory
	geoIndex   *geo.InMemoryIndex
	metrics    *Metrics
	svc        *Service
	nextMinute int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		content:  post.NewInMemoryContentStore(),
		graph:    social.NewInMemoryGraph(),
		profiles: profile.NewInMemoryDirectory(),
		geoIndex: geo.NewInMemoryIndex(0),
		metrics:  NewMetrics(),
	}
	f.svc = NewService(DefaultConfig(), Dependencies{
		Content:  f.content,
		Graph:    f.graph,
		Geo:      geo.NewResolver(f.geoIndex, 0),
		Keywords: keyword.NewDictionary(keyword.DefaultEntries()),
		Ranker:   ranking.New(ranking.DefaultConfig()),
		Injector: feed.NewInjector(f.profiles, 0, 1),
		Metrics:  f.metrics,
	})
	return f
}

// addPost stores a post; each call is one minute newer than the previous one.
func (f *fixture) addPost(t *testing.T, p *post.Post) *post.Post {
	t.Helper()
	if p.CreatedAt.IsZero() {
		f.nextMinute++
		p.CreatedAt = baseTime.Add(time.Duration(f.nextMinute) * time.Minute)
	}
	if err := f.content.Create(p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return p
}

func itemIDs(page *Page) []string {
	ids := make([]string, len(page.Items))
	for i, it := range page.Items {
		ids[i] = it.ID
	}
	return ids
}

func assertInputError(t *testing.T, err error, field string) {
	t.Helper()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	var inErr *InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected *InputError, got %T", err)
	}
	if inErr.Field != field {
		t.Errorf("Field = %q, want %q (message %q)", inErr.Field, field, inErr.Message)
	}
}

func TestSearchByText_ResolvesCategoryAndFiltersRemainder(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, &post.Post{ID: "p1", AuthorID: "a", Body: "渋谷の豚骨", Category: "ラーメン", Score: 7})
	f.addPost(t, &post.Post{ID: "p2", AuthorID: "b", Body: "新宿の醤油", Category: "ラーメン", Score: 9})
	f.addPost(t, &post.Post{ID: "p3", AuthorID: "c", Body: "渋谷の回転", Category: "寿司", Score: 8})

	page, err := f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "ラーメン 渋谷"})
	if err != nil {
		t.Fatalf("SearchByText() error = %v", err)
	}
	if page.MatchedCategory != "ラーメン" || page.RemainderText != "渋谷" {
		t.Errorf("facet = %q / %q, want ラーメン / 渋谷", page.MatchedCategory, page.RemainderText)
	}
	ids := itemIDs(page)
	if len(ids) != 1 || ids[0] != "p1" {
		t.Errorf("items = %v, want [p1]", ids)
	}
	if page.NextCursor != nil {
		t.Error("expected terminal page")
	}
}

func TestSearchByText_AliasAndUnresolved(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, &post.Post{ID: "p1", AuthorID: "a", Body: "銀座 best", Category: "寿司", Score: 7})
	f.addPost(t, &post.Post{ID: "p2", AuthorID: "a", Body: "銀座 noodles", Category: "ラーメン", Score: 7})

	page, err := f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "SUSHI 銀座"})
	if err != nil {
		t.Fatal(err)
	}
	if page.MatchedCategory != "寿司" || len(page.Items) != 1 || page.Items[0].ID != "p1" {
		t.Errorf("alias search: category %q items %v", page.MatchedCategory, itemIDs(page))
	}

	page, err = f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "銀座"})
	if err != nil {
		t.Fatal(err)
	}
	if page.MatchedCategory != "" || page.RemainderText != "" || len(page.Items) != 2 {
		t.Errorf("free text search: %+v", page)
	}
}

func TestSearchByText_WidthFoldingIndependentOfFacet(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, &post.Post{ID: "p1", AuthorID: "a", Body: "ＳＨＩＢＵＹＡの豚骨", Category: "ラーメン", Score: 7})
	f.addPost(t, &post.Post{ID: "p2", AuthorID: "b", Body: "shibuyaの回転", Category: "寿司", Score: 7})

	tests := []struct {
		query    string
		category string
		want     []string
	}{
		{"ＳＨＩＢＵＹＡ", "", []string{"p1", "p2"}},
		{"shibuya", "", []string{"p1", "p2"}},
		{"ラーメン ＳＨＩＢＵＹＡ", "ラーメン", []string{"p1"}},
		{"ラーメン Shibuya", "ラーメン", []string{"p1"}},
		{"寿司 ＳＨＩＢＵＹＡ", "寿司", []string{"p2"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			page, err := f.svc.SearchByText(context.Background(), TextSearchRequest{Query: tt.query})
			if err != nil {
				t.Fatalf("SearchByText() error = %v", err)
			}
			if page.MatchedCategory != tt.category {
				t.Errorf("category = %q, want %q", page.MatchedCategory, tt.category)
			}
			got := itemIDs(page)
			sort.Strings(got)
			if len(got) != len(tt.want) {
				t.Fatalf("items = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("items = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSearchByText_FollowBonus(t *testing.T) {
	f := newFixture(t)
	if err := f.graph.Follow("viewer", "friend"); err != nil {
		t.Fatal(err)
	}
	f.addPost(t, &post.Post{ID: "a", AuthorID: "stranger", Body: "ramen", Score: 8})
	f.addPost(t, &post.Post{ID: "b", AuthorID: "friend", Body: "ramen", Score: 6})

	page, err := f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "ramen", ViewerID: "viewer"})
	if err != nil {
		t.Fatal(err)
	}
	ids := itemIDs(page)
	if len(ids) != 2 || ids[0] != "b" {
		t.Fatalf("items = %v, want b first", ids)
	}
	if page.Items[0].RankScore != 8.5 || page.Items[1].RankScore != 8 {
		t.Errorf("scores = %v, %v", page.Items[0].RankScore, page.Items[1].RankScore)
	}
}

func TestSearchByText_FollowOnly(t *testing.T) {
	f := newFixture(t)
	if err := f.graph.Follow("viewer", "friend"); err != nil {
		t.Fatal(err)
	}
	if err := f.graph.RequestFollow("viewer", "pending"); err != nil {
		t.Fatal(err)
	}
	f.addPost(t, &post.Post{ID: "own", AuthorID: "viewer", Body: "ramen"})
	f.addPost(t, &post.Post{ID: "friend", AuthorID: "friend", Body: "ramen"})
	f.addPost(t, &post.Post{ID: "pending", AuthorID: "pending", Body: "ramen"})
	f.addPost(t, &post.Post{ID: "stranger", AuthorID: "stranger", Body: "ramen"})

	page, err := f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "ramen", ViewerID: "viewer", FollowOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	ids := itemIDs(page)
	if len(ids) != 2 || ids[0] != "friend" || ids[1] != "own" {
		t.Errorf("items = %v, want [friend own]", ids)
	}

	_, err = f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "ramen", FollowOnly: true})
	assertInputError(t, err, "viewer_id")
}

func TestSearchByText_InvalidInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		req   TextSearchRequest
		field string
	}{
		{"malformed cursor", TextSearchRequest{Cursor: "!!!"}, "cursor"},
		{"zero limit", TextSearchRequest{Limit: intPtr(0)}, "limit"},
		{"negative limit", TextSearchRequest{Limit: intPtr(-5)}, "limit"},
		{"bad viewer", TextSearchRequest{ViewerID: "not valid"}, "viewer_id"},
		{"control characters", TextSearchRequest{Query: "ramen\x07"}, "q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SearchByText(context.Background(), tt.req)
			assertInputError(t, err, tt.field)
		})
	}
}

func TestSearchByText_LimitIsCapped(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < MaxPageLimit+5; i++ {
		f.addPost(t, &post.Post{ID: fmt.Sprintf("p%03d", i), AuthorID: "a", Body: "ramen"})
	}

	page, err := f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "ramen", Limit: intPtr(500)})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != MaxPageLimit {
		t.Errorf("got %d items, want %d", len(page.Items), MaxPageLimit)
	}
	if page.NextCursor == nil {
		t.Error("expected a next cursor")
	}
}

func TestSearchByText_EmptyResultIsNotAnError(t *testing.T) {
	f := newFixture(t)
	page, err := f.svc.SearchByText(context.Background(), TextSearchRequest{Query: "nothing"})
	if err != nil {
		t.Fatalf("SearchByText() error = %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 || page.NextCursor != nil {
		t.Errorf("expected empty terminal page, got %+v", page)
	}
}

// TestPagination_NoDuplicatesNoSkips pages through discovery with a small
// limit while new posts arrive and checks every original post is seen once.
func TestPagination_NoDuplicatesNoSkips(t *testing.T) {
	f := newFixture(t)
	shared := baseTime.Add(time.Hour)
	for i := 0; i < 11; i++ {
		p := &post.Post{ID: fmt.Sprintf("p%02d", i), AuthorID: fmt.Sprintf("u%d", i%3), Score: float64(i % 4)}
		if i%2 == 0 {
			p.CreatedAt = shared
		}
		f.addPost(t, p)
	}

	ctx := context.Background()
	seen := make(map[string]int)
	var cursor string
	for pages := 0; ; pages++ {
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
		page, err := f.svc.TimelineDiscovery(ctx, TimelineRequest{Cursor: cursor, Limit: intPtr(3)})
		if err != nil {
			t.Fatalf("TimelineDiscovery() error = %v", err)
		}
		for _, id := range itemIDs(page) {
			seen[id]++
		}
		if pages == 0 {
			// Posts created after the first page only appear ahead of the cursor.
			f.addPost(t, &post.Post{ID: "late", AuthorID: "u9", CreatedAt: baseTime.Add(48 * time.Hour)})
		}
		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}

	if len(seen) != 11 {
		t.Errorf("saw %d distinct posts, want 11", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("post %s returned %d times", id, n)
		}
	}
	if seen["late"] != 0 {
		t.Error("post created mid-session appeared behind the cursor")
	}
}

func TestSearchByText_RanksWithinPageOnly(t *testing.T) {
	f := newFixture(t)
	f.addPost(t, &post.Post{ID: "old-best", AuthorID: "u1", Body: "濃厚味噌", Score: 9, CreatedAt: baseTime})
	f.addPost(t, &post.Post{ID: "new-weak", AuthorID: "u2", Body: "あっさり味噌", Score: 2, CreatedAt: baseTime.Add(time.Hour)})

	ctx := context.Background()
	first, err := f.svc.SearchByText(ctx, TextSearchRequest{Query: "味噌", Limit: intPtr(1)})
	if err != nil {
		t.Fatalf("SearchByText() error = %v", err)
	}
	if got := itemIDs(first); len(got) != 1 || got[0] != "new-weak" {
		t.Fatalf("first page = %v, want the newest post regardless of score", got)
	}
	if first.NextCursor == nil {
		t.Fatal("expected a second page")
	}

	second, err := f.svc.SearchByText(ctx, TextSearchRequest{Query: "味噌", Limit: intPtr(1), Cursor: *first.NextCursor})
	if err != nil {
		t.Fatalf("SearchByText() error = %v", err)
	}
	if got := itemIDs(second); len(got) != 1 || got[0] != "old-best" {
		t.Errorf("second page = %v, want old-best", got)
	}
}

func TestSearchByLandmark(t *testing.T) {
	f := newFixture(t)
	f.geoIndex.ReplacePlace("near", []geo.Link{{LandmarkID: "shibuya", DistanceMeters: floatPtr(200)}})
	f.geoIndex.ReplacePlace("far", []geo.Link{{LandmarkID: "shibuya", DistanceMeters: floatPtr(3500)}})
	f.geoIndex.ReplacePlace("unknown", []geo.Link{{LandmarkID: "shibuya"}})

	f.addPost(t, &post.Post{ID: "near-ramen", AuthorID: "a", PlaceID: strPtr("near"), Category: "ラーメン", Body: "豚骨", Score: 5})
	f.addPost(t, &post.Post{ID: "far-ramen", AuthorID: "a", PlaceID: strPtr("far"), Category: "ラーメン", Body: "味噌", Score: 9})
	f.addPost(t, &post.Post{ID: "unknown-sushi", AuthorID: "b", PlaceID: strPtr("unknown"), Category: "寿司", Body: "握り", Score: 9})
	f.addPost(t, &post.Post{ID: "near-ramen-2", AuthorID: "b", PlaceID: strPtr("near"), Category: "ラーメン", Body: "醤油", Score: 2})

	ctx := context.Background()

	t.Run("chronological without query", func(t *testing.T) {
		page, err := f.svc.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "shibuya", RadiusMeters: floatPtr(3000)})
		if err != nil {
			t.Fatal(err)
		}
		ids := itemIDs(page)
		want := []string{"near-ramen-2", "unknown-sushi", "near-ramen"}
		if fmt.Sprint(ids) != fmt.Sprint(want) {
			t.Fatalf("items = %v, want %v", ids, want)
		}
		if d := page.Items[0].DistanceMeters; d == nil || *d != 200 {
			t.Errorf("distance = %v, want 200", d)
		}
		if w := page.Items[0].WalkMinutes; w == nil || *w != 3 {
			t.Errorf("walk minutes = %v, want 3", w)
		}
		if page.Items[1].DistanceMeters != nil || page.Items[1].WalkMinutes != nil {
			t.Error("unknown distance should have no distance or walk minutes")
		}
	})

	t.Run("ranked with query", func(t *testing.T) {
		page, err := f.svc.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "shibuya", Query: "ラーメン", RadiusMeters: floatPtr(5000)})
		if err != nil {
			t.Fatal(err)
		}
		ids := itemIDs(page)
		want := []string{"far-ramen", "near-ramen", "near-ramen-2"}
		if fmt.Sprint(ids) != fmt.Sprint(want) {
			t.Errorf("items = %v, want %v", ids, want)
		}
		if page.MatchedCategory != "ラーメン" {
			t.Errorf("MatchedCategory = %q", page.MatchedCategory)
		}
	})

	t.Run("default radius", func(t *testing.T) {
		page, err := f.svc.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "shibuya"})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 3 {
			t.Errorf("items = %v, want the three posts within 1500m or unknown", itemIDs(page))
		}
	})

	t.Run("unknown landmark is empty", func(t *testing.T) {
		page, err := f.svc.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "nowhere"})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 0 || page.NextCursor != nil {
			t.Errorf("expected empty page, got %+v", page)
		}
	})

	t.Run("invalid radius", func(t *testing.T) {
		_, err := f.svc.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "shibuya", RadiusMeters: floatPtr(MaxRadiusMeters + 1)})
		assertInputError(t, err, "radius")

		_, err = f.svc.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "shibuya", RadiusMeters: floatPtr(-1)})
		assertInputError(t, err, "radius")
	})

	t.Run("missing landmark", func(t *testing.T) {
		_, err := f.svc.SearchByLandmark(ctx, LandmarkSearchRequest{})
		assertInputError(t, err, "landmark_id")
	})
}

func TestTimelinePersonalized(t *testing.T) {
	f := newFixture(t)
	if err := f.graph.Follow("viewer", "friend"); err != nil {
		t.Fatal(err)
	}
	f.addPost(t, &post.Post{ID: "own", AuthorID: "viewer", Score: 3})
	f.addPost(t, &post.Post{ID: "friend-1", AuthorID: "friend", Score: 5})
	f.addPost(t, &post.Post{ID: "friend-2", AuthorID: "friend", Score: 5})
	f.addPost(t, &post.Post{ID: "stranger", AuthorID: "stranger", Score: 10})

	page, err := f.svc.TimelinePersonalized(context.Background(), TimelineRequest{ViewerID: "viewer"})
	if err != nil {
		t.Fatal(err)
	}
	// Ranked: friend-2, friend-1, own. Interleaving moves own between the friend posts.
	want := []string{"friend-2", "own", "friend-1"}
	if fmt.Sprint(itemIDs(page)) != fmt.Sprint(want) {
		t.Errorf("items = %v, want %v", itemIDs(page), want)
	}

	_, err = f.svc.TimelinePersonalized(context.Background(), TimelineRequest{})
	assertInputError(t, err, "viewer_id")
}

func TestTimelineDiscovery_ExcludesViewerAndFollowees(t *testing.T) {
	f := newFixture(t)
	if err := f.graph.Follow("viewer", "friend"); err != nil {
		t.Fatal(err)
	}
	f.addPost(t, &post.Post{ID: "own", AuthorID: "viewer"})
	f.addPost(t, &post.Post{ID: "friend", AuthorID: "friend"})
	f.addPost(t, &post.Post{ID: "stranger", AuthorID: "stranger"})

	page, err := f.svc.TimelineDiscovery(context.Background(), TimelineRequest{ViewerID: "viewer"})
	if err != nil {
		t.Fatal(err)
	}
	if ids := itemIDs(page); len(ids) != 1 || ids[0] != "stranger" {
		t.Errorf("items = %v, want [stranger]", ids)
	}

	anon, err := f.svc.TimelineDiscovery(context.Background(), TimelineRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(anon.Items) != 3 {
		t.Errorf("anonymous discovery items = %v, want all three", itemIDs(anon))
	}
	if anon.Suggestions != nil {
		t.Error("anonymous viewers must not receive suggestions")
	}
}

// TestTimeline_SuggestionsOnFirstPageOnly covers a cold-start viewer: the
// first page carries suggestions and the next page never does.
func TestTimeline_SuggestionsOnFirstPageOnly(t *testing.T) {
	f := newFixture(t)
	f.profiles.Upsert(profile.Profile{ID: "viewer", DisplayName: "Viewer", IsPublic: true, CreatedAt: baseTime.Add(time.Hour)})
	f.profiles.Upsert(profile.Profile{ID: "creator", DisplayName: "Creator", IsPublic: true, CreatedAt: baseTime})
	for i := 0; i < 5; i++ {
		f.addPost(t, &post.Post{ID: fmt.Sprintf("p%d", i), AuthorID: "viewer"})
	}

	ctx := context.Background()
	first, err := f.svc.TimelinePersonalized(ctx, TimelineRequest{ViewerID: "viewer", Limit: intPtr(2)})
	if err != nil {
		t.Fatal(err)
	}
	if first.Suggestions == nil {
		t.Fatal("expected suggestions on the first page")
	}
	if len(first.Suggestions.Profiles) != 1 || first.Suggestions.Profiles[0].ID != "creator" {
		t.Errorf("suggested profiles = %+v, want only creator", first.Suggestions.Profiles)
	}
	if first.Suggestions.Position != 1 {
		t.Errorf("Position = %d, want 1", first.Suggestions.Position)
	}
	if first.NextCursor == nil {
		t.Fatal("expected a next cursor")
	}

	second, err := f.svc.TimelinePersonalized(ctx, TimelineRequest{ViewerID: "viewer", Cursor: *first.NextCursor, Limit: intPtr(2)})
	if err != nil {
		t.Fatal(err)
	}
	if second.Suggestions != nil {
		t.Error("suggestions must only appear on the first page")
	}

	// Following two users ends the cold start.
	if err := f.graph.Follow("viewer", "creator"); err != nil {
		t.Fatal(err)
	}
	if err := f.graph.Follow("viewer", "other"); err != nil {
		t.Fatal(err)
	}
	warm, err := f.svc.TimelineDiscovery(ctx, TimelineRequest{ViewerID: "viewer"})
	if err != nil {
		t.Fatal(err)
	}
	if warm.Suggestions != nil {
		t.Error("viewer with two follows should not receive suggestions")
	}
}

// failingContent fails every read.
type failingContent struct{ err error }

func (f failingContent) QueryByText(context.Context, post.TextQuery, *post.FeedCursor, int) ([]*post.Post, error) {
	return nil, f.err
}
func (f failingContent) QueryByIDSet(context.Context, []string, *post.FeedCursor, int) ([]*post.Post, error) {
	return nil, f.err
}
func (f failingContent) QueryRecentExcluding(context.Context, []string, *post.FeedCursor, int) ([]*post.Post, error) {
	return nil, f.err
}
func (f failingContent) QueryByAuthors(context.Context, []string, *post.FeedCursor, int) ([]*post.Post, error) {
	return nil, f.err
}
func (f failingContent) Categories(context.Context) ([]string, error) {
	return nil, f.err
}

type failingGraph struct{ err error }

func (f failingGraph) AcceptedFolloweesOf(context.Context, string) ([]string, error) { return nil, f.err }
func (f failingGraph) FollowCountOf(context.Context, string) (int, error)            { return 0, f.err }

type failingIndex struct{ err error }

func (f failingIndex) LinksForLandmark(context.Context, string) ([]geo.Link, error) { return nil, f.err }

type failingDirectory struct{ err error }

func (f failingDirectory) RecentPublicProfiles(context.Context, int) ([]profile.Profile, error) {
	return nil, f.err
}

func TestUpstreamFailuresAreSurfaced(t *testing.T) {
	storeErr := errors.New("connection refused")
	ctx := context.Background()

	healthy := newFixture(t)
	healthy.geoIndex.ReplacePlace("p", []geo.Link{{LandmarkID: "lm", DistanceMeters: floatPtr(10)}})

	tests := []struct {
		name   string
		deps   Dependencies
		call   func(*Service) error
		source string
	}{
		{
			name: "content store on text search",
			deps: Dependencies{Content: failingContent{storeErr}, Graph: healthy.graph},
			call: func(s *Service) error {
				_, err := s.SearchByText(ctx, TextSearchRequest{Query: "ramen"})
				return err
			},
			source: SourceContentStore,
		},
		{
			name: "social graph on personalized timeline",
			deps: Dependencies{Content: healthy.content, Graph: failingGraph{storeErr}},
			call: func(s *Service) error {
				_, err := s.TimelinePersonalized(ctx, TimelineRequest{ViewerID: "viewer"})
				return err
			},
			source: SourceSocialGraph,
		},
		{
			name: "geo index on landmark search",
			deps: Dependencies{Content: healthy.content, Graph: healthy.graph, Geo: geo.NewResolver(failingIndex{storeErr}, 0)},
			call: func(s *Service) error {
				_, err := s.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "lm"})
				return err
			},
			source: SourceGeoIndex,
		},
		{
			name: "content store on landmark search",
			deps: Dependencies{Content: failingContent{storeErr}, Graph: healthy.graph, Geo: geo.NewResolver(healthy.geoIndex, 0)},
			call: func(s *Service) error {
				_, err := s.SearchByLandmark(ctx, LandmarkSearchRequest{LandmarkID: "lm"})
				return err
			},
			source: SourceContentStore,
		},
		{
			name: "profile directory on discovery",
			deps: Dependencies{Content: healthy.content, Graph: healthy.graph, Injector: feed.NewInjector(failingDirectory{storeErr}, 0, 1)},
			call: func(s *Service) error {
				_, err := s.TimelineDiscovery(ctx, TimelineRequest{ViewerID: "viewer"})
				return err
			},
			source: SourceProfileDirectory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(NewService(DefaultConfig(), tt.deps))
			if !errors.Is(err, ErrUpstreamUnavailable) {
				t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
			}
			if !errors.Is(err, storeErr) {
				t.Errorf("cause not preserved: %v", err)
			}
			var upErr *UpstreamError
			if !errors.As(err, &upErr) || upErr.Source != tt.source {
				t.Errorf("source = %v, want %s", upErr, tt.source)
			}
		})
	}
}

func TestCanceledContextIsNotUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.TimelineDiscovery(ctx, TimelineRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("cancellation must not be reported as an upstream failure")
	}
}

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_RecordsOutcomes(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	if err := f.metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	f.addPost(t, &post.Post{ID: "p1", AuthorID: "a", Category: "ラーメン", Body: "渋谷"})

	ctx := context.Background()
	if _, err := f.svc.SearchByText(ctx, TextSearchRequest{Query: "ラーメン 渋谷"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SearchByText(ctx, TextSearchRequest{Cursor: "%%%"}); err == nil {
		t.Fatal("expected error")
	}

	if got := counterValue(t, f.metrics.requests.WithLabelValues(OpSearchText, outcomeOK)); got != 1 {
		t.Errorf("ok requests = %v, want 1", got)
	}
	if got := counterValue(t, f.metrics.requests.WithLabelValues(OpSearchText, outcomeInvalidInput)); got != 1 {
		t.Errorf("invalid requests = %v, want 1", got)
	}
	if got := counterValue(t, f.metrics.keywordResolutions.WithLabelValues("direct")); got != 1 {
		t.Errorf("direct resolutions = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() == MetricRequestsTotal {
			found = true
		}
	}
	if !found {
		t.Errorf("%s not gathered", MetricRequestsTotal)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	f := newFixture(t)
	svc := NewService(DefaultConfig(), Dependencies{Content: f.content, Graph: f.graph})
	if _, err := svc.TimelineDiscovery(context.Background(), TimelineRequest{}); err != nil {
		t.Fatalf("TimelineDiscovery() error = %v", err)
	}
}
