package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/kuchikomi/internal/discovery"
	"github.com/onnwee/kuchikomi/internal/middleware"
)

// Discoverer is the subset of discovery.Service the handlers use.
type Discoverer interface {
	SearchByText(ctx context.Context, req discovery.TextSearchRequest) (*discovery.Page, error)
	SearchByLandmark(ctx context.Context, req discovery.LandmarkSearchRequest) (*discovery.Page, error)
	TimelinePersonalized(ctx context.Context, req discovery.TimelineRequest) (*discovery.Page, error)
	TimelineDiscovery(ctx context.Context, req discovery.TimelineRequest) (*discovery.Page, error)
}

// DiscoveryHandlers serves search and timeline requests. The viewer is
// taken from the authenticated request context, never from the query.
type DiscoveryHandlers struct {
	svc Discoverer
}

// NewDiscoveryHandlers creates discovery handlers backed by svc.
func NewDiscoveryHandlers(svc Discoverer) *DiscoveryHandlers {
	return &DiscoveryHandlers{svc: svc}
}

// Register mounts the discovery routes on mux. requireViewer guards the
// personalized timeline.
func (h *DiscoveryHandlers) Register(mux *http.ServeMux, requireViewer func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /landmarks/{id}/search", h.SearchLandmark)
	mux.Handle("GET /timeline", requireViewer(http.HandlerFunc(h.Timeline)))
	mux.HandleFunc("GET /discover", h.Discover)
}

// Search handles GET /search?q=&cursor=&limit=&follow_only=.
func (h *DiscoveryHandlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	followOnly, ok := boolParam(w, r, "follow_only")
	if !ok {
		return
	}

	page, err := h.svc.SearchByText(r.Context(), discovery.TextSearchRequest{
		Query:      q.Get("q"),
		ViewerID:   middleware.GetViewerID(r.Context()),
		FollowOnly: followOnly,
		Cursor:     q.Get("cursor"),
		Limit:      limit,
	})
	h.respond(w, r, page, err)
}

// SearchLandmark handles GET /landmarks/{id}/search?q=&radius=&cursor=&limit=&follow_only=.
func (h *DiscoveryHandlers) SearchLandmark(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}
	radius, ok := floatParam(w, r, "radius")
	if !ok {
		return
	}
	followOnly, ok := boolParam(w, r, "follow_only")
	if !ok {
		return
	}

	page, err := h.svc.SearchByLandmark(r.Context(), discovery.LandmarkSearchRequest{
		LandmarkID:   r.PathValue("id"),
		Query:        q.Get("q"),
		RadiusMeters: radius,
		ViewerID:     middleware.GetViewerID(r.Context()),
		FollowOnly:   followOnly,
		Cursor:       q.Get("cursor"),
		Limit:        limit,
	})
	h.respond(w, r, page, err)
}

// Timeline handles GET /timeline?cursor=&limit= for an authenticated viewer.
func (h *DiscoveryHandlers) Timeline(w http.ResponseWriter, r *http.Request) {
	req, ok := timelineRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.TimelinePersonalized(r.Context(), req)
	h.respond(w, r, page, err)
}

// Discover handles GET /discover?cursor=&limit=. Anonymous viewers are allowed.
func (h *DiscoveryHandlers) Discover(w http.ResponseWriter, r *http.Request) {
	req, ok := timelineRequest(w, r)
	if !ok {
		return
	}
	page, err := h.svc.TimelineDiscovery(r.Context(), req)
	h.respond(w, r, page, err)
}

func (h *DiscoveryHandlers) respond(w http.ResponseWriter, r *http.Request, page *discovery.Page, err error) {
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func timelineRequest(w http.ResponseWriter, r *http.Request) (discovery.TimelineRequest, bool) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return discovery.TimelineRequest{}, false
	}
	return discovery.TimelineRequest{
		ViewerID: middleware.GetViewerID(r.Context()),
		Cursor:   r.URL.Query().Get("cursor"),
		Limit:    limit,
	}, true
}

// intParam parses an optional integer query parameter. Range checks are left
// to the service so that absent and out-of-range values are told apart.
func intParam(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeCode(w, r, ErrCodeValidation, "invalid "+name+": must be an integer")
		return nil, false
	}
	return &v, true
}

func floatParam(w http.ResponseWriter, r *http.Request, name string) (*float64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeCode(w, r, ErrCodeValidation, "invalid "+name+": must be a number")
		return nil, false
	}
	return &v, true
}

func boolParam(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeCode(w, r, ErrCodeValidation, "invalid "+name+": must be true or false")
		return false, false
	}
	return v, true
}
