package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/keepsake/pkg/types"
)

// DefaultSlideInterval is the autoplay period.
const DefaultSlideInterval = 5 * time.Second

// ErrShareUnsupported is returned by Share when no share base URL is
// configured.
var ErrShareUnsupported = errors.New("sharing is not configured")

// Slide load states reported by the client per slide, orthogonal to the
// reconciler's availability pre-check.
const (
	LoadPending = "pending"
	LoadLoaded  = "loaded"
	LoadFailed  = "failed"
)

// SlideshowState is the full externally visible controller state, sent to
// clients over the API and the WebSocket hub.
type SlideshowState struct {
	Index      int           `json:"index"`
	Count      int           `json:"count"`
	Current    *types.Memory `json:"current,omitempty"`
	Autoplay   bool          `json:"autoplay"`
	Fullscreen bool          `json:"fullscreen"`
	ShowInfo   bool          `json:"show_info"`
	Refreshing bool          `json:"refreshing"`
	Empty      bool          `json:"empty"`
	Error      string        `json:"error,omitempty"`
	Bookmarked bool          `json:"bookmarked"`
	Bookmarks  []string      `json:"bookmarks,omitempty"`

	// LoadState maps memory ids to their reported client-side load state.
	LoadState map[string]string `json:"load_state,omitempty"`
}

// Slideshow is the server-held presentation state machine over one
// reconciled snapshot. All mutation goes through its methods behind one
// mutex; the memory list itself is never mutated, only replaced wholesale
// when a refresh completes.
//
// Navigation wraps in both directions. Keyboard input only applies while
// fullscreen. An empty list or a failed refresh disables autoplay and all
// navigation until the next successful refresh.
type Slideshow struct {
	mu         sync.Mutex
	memories   []types.Memory
	index      int
	autoplay   bool
	fullscreen bool
	showInfo   bool
	refreshing bool
	errMsg     string
	bookmarks  map[string]bool
	loadState  map[string]string

	interval time.Duration
	shareURL string
	onChange func(SlideshowState)
}

// NewSlideshow builds a controller with the given autoplay interval.
// shareURL is the base address slides are shared under; empty disables
// sharing. The onChange callback, if set, receives a state copy after
// every visible change and must not call back into the controller.
func NewSlideshow(interval time.Duration, shareURL string, onChange func(SlideshowState)) *Slideshow {
	if interval <= 0 {
		interval = DefaultSlideInterval
	}
	return &Slideshow{
		bookmarks: make(map[string]bool),
		loadState: make(map[string]string),
		interval:  interval,
		shareURL:  shareURL,
		onChange:  onChange,
	}
}

// SetOnChange replaces the change callback. Safe to call while the
// controller is live.
func (s *Slideshow) SetOnChange(fn func(SlideshowState)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Run drives autoplay until ctx is cancelled. The ticker always runs; the
// tick itself is a no-op unless autoplay is enabled and the controller is
// in a navigable state.
func (s *Slideshow) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances one slide when autoplay applies.
func (s *Slideshow) Tick() {
	s.mu.Lock()
	if !s.autoplay || !s.navigable() {
		s.mu.Unlock()
		return
	}
	s.index = (s.index + 1) % len(s.memories)
	s.notifyLocked()
}

// navigable reports whether navigation inputs apply. Callers hold the lock.
func (s *Slideshow) navigable() bool {
	return len(s.memories) > 0 && s.errMsg == "" && !s.refreshing
}

// State returns a copy of the current state.
func (s *Slideshow) State() SlideshowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Slideshow) stateLocked() SlideshowState {
	st := SlideshowState{
		Index:      s.index,
		Count:      len(s.memories),
		Autoplay:   s.autoplay,
		Fullscreen: s.fullscreen,
		ShowInfo:   s.showInfo,
		Refreshing: s.refreshing,
		Empty:      len(s.memories) == 0 && s.errMsg == "",
		Error:      s.errMsg,
	}
	if s.index < len(s.memories) {
		current := s.memories[s.index]
		st.Current = &current
		st.Bookmarked = s.bookmarks[current.ID]
	}
	if len(s.bookmarks) > 0 {
		ids := make([]string, 0, len(s.bookmarks))
		for id := range s.bookmarks {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		st.Bookmarks = ids
	}
	if len(s.loadState) > 0 {
		ls := make(map[string]string, len(s.loadState))
		for k, v := range s.loadState {
			ls[k] = v
		}
		st.LoadState = ls
	}
	return st
}

// notifyLocked snapshots state, releases the lock, and fires onChange.
func (s *Slideshow) notifyLocked() {
	st := s.stateLocked()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// Next advances one slide, wrapping at the end.
func (s *Slideshow) Next() {
	s.step(1)
}

// Prev steps back one slide, wrapping at the start.
func (s *Slideshow) Prev() {
	s.step(-1)
}

func (s *Slideshow) step(delta int) {
	s.mu.Lock()
	if !s.navigable() {
		s.mu.Unlock()
		return
	}
	n := len(s.memories)
	s.index = (s.index + delta + n) % n
	s.notifyLocked()
}

// GoTo jumps to a slide by index. Out-of-range indexes are ignored.
func (s *Slideshow) GoTo(i int) {
	s.mu.Lock()
	if !s.navigable() || i < 0 || i >= len(s.memories) {
		s.mu.Unlock()
		return
	}
	s.index = i
	s.notifyLocked()
}

// SetAutoplay turns autoplay on or off. Turning it on in an empty or
// errored state is ignored.
func (s *Slideshow) SetAutoplay(on bool) {
	s.mu.Lock()
	if on && !s.navigable() {
		s.mu.Unlock()
		return
	}
	s.autoplay = on
	s.notifyLocked()
}

// ToggleFullscreen enters or exits fullscreen, preserving the index.
// Exiting also hides the info overlay.
func (s *Slideshow) ToggleFullscreen() {
	s.mu.Lock()
	s.fullscreen = !s.fullscreen
	if !s.fullscreen {
		s.showInfo = false
	}
	s.notifyLocked()
}

// ToggleInfo shows or hides the info overlay.
func (s *Slideshow) ToggleInfo() {
	s.mu.Lock()
	s.showInfo = !s.showInfo
	s.notifyLocked()
}

// ToggleBookmark flips the bookmark on the current slide. Bookmarks live
// in memory only and are keyed by memory id.
func (s *Slideshow) ToggleBookmark() {
	s.mu.Lock()
	if s.index >= len(s.memories) {
		s.mu.Unlock()
		return
	}
	id := s.memories[s.index].ID
	if s.bookmarks[id] {
		delete(s.bookmarks, id)
	} else {
		s.bookmarks[id] = true
	}
	s.notifyLocked()
}

// Swipe handles a gesture: left advances, right goes back.
func (s *Slideshow) Swipe(direction string) {
	switch direction {
	case "left":
		s.Next()
	case "right":
		s.Prev()
	}
}

// HandleKey processes a keyboard event. Keys only apply in fullscreen:
// arrows navigate, Escape exits, Space toggles autoplay, "i" toggles the
// info overlay. Returns whether the key was consumed.
func (s *Slideshow) HandleKey(key string) bool {
	s.mu.Lock()
	if !s.fullscreen {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	switch key {
	case "ArrowRight":
		s.Next()
	case "ArrowLeft":
		s.Prev()
	case "Escape":
		s.mu.Lock()
		s.fullscreen = false
		s.showInfo = false
		s.notifyLocked()
	case " ", "Space":
		s.mu.Lock()
		if s.navigable() || s.autoplay {
			s.autoplay = !s.autoplay
		}
		s.notifyLocked()
	case "i", "I":
		s.ToggleInfo()
	default:
		return false
	}
	return true
}

// MarkLoaded records that the client rendered a slide's image.
func (s *Slideshow) MarkLoaded(id string) {
	s.setLoadState(id, LoadLoaded)
}

// MarkFailed records that a slide's image failed to render; the client
// shows the unavailable placeholder for it.
func (s *Slideshow) MarkFailed(id string) {
	s.setLoadState(id, LoadFailed)
}

func (s *Slideshow) setLoadState(id, state string) {
	s.mu.Lock()
	if id == "" {
		s.mu.Unlock()
		return
	}
	s.loadState[id] = state
	s.notifyLocked()
}

// Current returns the memory under the cursor, or nil in empty and error
// states.
func (s *Slideshow) Current() *types.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.memories) {
		return nil
	}
	current := s.memories[s.index]
	return &current
}

// Share returns the share address for the current slide. Fails with
// ErrShareUnsupported when no share base URL is configured.
func (s *Slideshow) Share() (string, error) {
	if s.shareURL == "" {
		return "", ErrShareUnsupported
	}
	current := s.Current()
	if current == nil {
		return "", errors.New("no slide to share")
	}
	return s.shareURL + "/memories/" + current.ID, nil
}

// BeginRefresh marks a reconciliation pass in flight: autoplay pauses and
// navigation is held until the pass completes.
func (s *Slideshow) BeginRefresh() {
	s.mu.Lock()
	s.refreshing = true
	s.notifyLocked()
}

// CompleteRefresh installs the result of a reconciliation pass. On error
// the previous list is discarded and the controller enters the error
// state with autoplay off. On success the cursor follows the current
// memory's id into the new list when it survives, otherwise resets to the
// start; bookmarks for ids no longer present are dropped.
func (s *Slideshow) CompleteRefresh(snap *Snapshot, err error) {
	s.mu.Lock()
	s.refreshing = false

	if err != nil {
		s.errMsg = err.Error()
		s.memories = nil
		s.index = 0
		s.autoplay = false
		s.notifyLocked()
		return
	}

	var currentID string
	if s.index < len(s.memories) {
		currentID = s.memories[s.index].ID
	}

	s.errMsg = ""
	s.memories = snap.Memories
	s.index = 0
	s.loadState = make(map[string]string)

	kept := make(map[string]bool)
	for i, m := range s.memories {
		if m.ID == currentID {
			s.index = i
		}
		if s.bookmarks[m.ID] {
			kept[m.ID] = true
		}
	}
	s.bookmarks = kept

	if len(s.memories) == 0 {
		s.autoplay = false
	}
	s.notifyLocked()
}
