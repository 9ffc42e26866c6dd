package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/jobs"
	"github.com/kozaktomas/visagevault/internal/scheduler"
	"github.com/rs/zerolog"
)

// Viewport session kinds.
const (
	viewportThumbnail = "thumbnail"
	viewportFace      = "face"
)

// viewportSession tracks one scroll surface of a client. Load results are
// queued until an event stream drains them, so a terminal item is reported
// exactly once no matter when the client connects or how slowly it reads.
type viewportSession struct {
	ID     string
	Kind   string
	loader *scheduler.Loader

	mu       sync.Mutex
	queue    []jobs.Event
	notify   chan struct{}
	done     chan struct{}
	closed   bool
	streams  int
	lastSeen time.Time
}

func newViewportSession(kind string, now time.Time) *viewportSession {
	return &viewportSession{
		ID:       uuid.New().String(),
		Kind:     kind,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		lastSeen: now,
	}
}

func (s *viewportSession) push(ev jobs.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// drain hands out every queued event and empties the queue.
func (s *viewportSession) drain() []jobs.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.queue
	s.queue = nil
	return evs
}

func (s *viewportSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *viewportSession) attach() {
	s.mu.Lock()
	s.streams++
	s.mu.Unlock()
}

func (s *viewportSession) detach(now time.Time) {
	s.mu.Lock()
	s.streams--
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *viewportSession) idleSince(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams == 0 && now.Sub(s.lastSeen) > ttl
}

func (s *viewportSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
}

// ViewportsHandler schedules preview generation for what a client has on screen.
// Each session owns a tracker so an item is generated at most once per session;
// results arrive as SSE events.
type ViewportsHandler struct {
	app      *app.App
	log      zerolog.Logger
	idle     time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	sessions map[string]*viewportSession
}

// NewViewportsHandler creates a new viewports handler.
func NewViewportsHandler(a *app.App, log zerolog.Logger) *ViewportsHandler {
	idle := a.Config.Scheduler.ViewportIdle
	if idle <= 0 {
		idle = constants.DefaultViewportIdleTimeout
	}
	return &ViewportsHandler{
		app:      a,
		log:      log,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*viewportSession),
	}
}

// expire closes sessions that have had no stream and no request for longer
// than the idle timeout.
func (h *ViewportsHandler) expire() {
	now := h.now()
	h.mu.Lock()
	var expired []*viewportSession
	for id, s := range h.sessions {
		if s.idleSince(now, h.idle) {
			delete(h.sessions, id)
			expired = append(expired, s)
		}
	}
	h.mu.Unlock()
	for _, s := range expired {
		s.close()
		h.log.Debug().Str("viewport", s.ID).Msg("viewport session expired")
	}
}

type createViewportRequest struct {
	Kind string `json:"kind"`
}

// Create opens a viewport session for thumbnails (keys are asset paths) or
// faces (keys are face ids).
func (h *ViewportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createViewportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.expire()

	s := newViewportSession(req.Kind, h.now())
	var load scheduler.LoadFunc
	switch req.Kind {
	case viewportThumbnail:
		load = h.loadThumbnail
	case viewportFace:
		load = h.loadFace
	default:
		respondError(w, http.StatusBadRequest, "kind must be thumbnail or face")
		return
	}
	s.loader = scheduler.NewLoader(h.app.Pool, load, func(res scheduler.Result) {
		s.push(resultEvent(s.Kind, res))
	})

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, map[string]string{"id": s.ID, "kind": s.Kind})
}

func resultEvent(kind string, res scheduler.Result) jobs.Event {
	status := "loaded"
	if !res.OK {
		status = "failed"
	}
	data := map[string]string{"key": res.Key}
	if res.OK {
		if kind == viewportFace {
			data["url"] = "/api/v1/faces/" + res.Key + "/crop"
		} else {
			data["url"] = "/api/v1/thumbnails?path=" + url.QueryEscape(res.Key)
		}
	}
	return jobs.Event{Type: kind + "-" + status, Data: data}
}

func (h *ViewportsHandler) loadThumbnail(ctx context.Context, path string) string {
	if _, err := h.app.Catalog.GetAsset(ctx, path); err != nil {
		return ""
	}
	return h.app.Thumbs.GetOrCreate(ctx, path)
}

func (h *ViewportsHandler) loadFace(ctx context.Context, key string) string {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return ""
	}
	face, err := h.app.Catalog.GetFace(ctx, id)
	if err != nil {
		return ""
	}
	return h.app.Thumbs.FaceCrop(ctx, *face)
}

func (h *ViewportsHandler) lookup(w http.ResponseWriter, r *http.Request) *viewportSession {
	h.expire()
	h.mu.RLock()
	s := h.sessions[chi.URLParam(r, "id")]
	h.mu.RUnlock()
	if s == nil {
		respondError(w, http.StatusNotFound, "viewport not found")
		return nil
	}
	s.touch(h.now())
	return s
}

type updateViewportRequest struct {
	Visible scheduler.Rect   `json:"visible"`
	Margin  *int             `json:"margin,omitempty"`
	Items   []scheduler.Item `json:"items"`
}

// Update reports the visible rectangle and the laid-out items. Items that
// intersect the visible area plus the preload margin and were never requested
// are dispatched to the worker pool.
func (h *ViewportsHandler) Update(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	var req updateViewportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	margin := h.app.Config.Scheduler.PreloadMarginPx
	if req.Margin != nil {
		margin = *req.Margin
	}

	dispatched := s.loader.Update(req.Visible, margin, req.Items)
	if dispatched == nil {
		dispatched = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"dispatched": dispatched,
		"pending":    h.app.Pool.Pending(),
	})
}

// Events streams load results of a viewport session, starting with every
// result queued since the last stream ended.
func (h *ViewportsHandler) Events(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	flusher, ok := setupSSE(w)
	if !ok {
		return
	}
	s.attach()
	defer func() { s.detach(h.now()) }()

	sendSSEEvent(w, flusher, "status", map[string]string{"id": s.ID, "kind": s.Kind})
	for {
		for _, ev := range s.drain() {
			sendSSEEvent(w, flusher, ev.Type, ev)
		}
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-s.notify:
		}
	}
}

// Delete closes a viewport session.
func (h *ViewportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	s.close()
	w.WriteHeader(http.StatusNoContent)
}
