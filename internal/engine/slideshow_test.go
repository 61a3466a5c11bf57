package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/pkg/types"
)

func threeSlides() *Snapshot {
	return &Snapshot{
		Memories: []types.Memory{
			{ID: "a", URL: "https://cdn.example.test/memories/a.jpg", DisplayName: "A"},
			{ID: "b", URL: "https://cdn.example.test/memories/b.jpg", DisplayName: "B"},
			{ID: "c", URL: "https://cdn.example.test/memories/c.jpg", DisplayName: "C"},
		},
		Generation: 1,
	}
}

func loadedSlideshow(t *testing.T) *Slideshow {
	t.Helper()
	s := NewSlideshow(0, "", nil)
	s.CompleteRefresh(threeSlides(), nil)
	return s
}

func TestSlideshowWrapAround(t *testing.T) {
	s := loadedSlideshow(t)

	s.Next()
	s.Next()
	assert.Equal(t, 2, s.State().Index)
	s.Next()
	assert.Equal(t, 0, s.State().Index, "forward wrap")

	s.Prev()
	assert.Equal(t, 2, s.State().Index, "backward wrap")
}

func TestSlideshowAutoplayWrapLaw(t *testing.T) {
	s := loadedSlideshow(t)
	s.SetAutoplay(true)

	start := s.State().Index
	for i := 0; i < 3; i++ {
		s.Tick()
	}
	assert.Equal(t, start, s.State().Index, "after n ticks over n slides the index returns to its start")
}

func TestSlideshowGoTo(t *testing.T) {
	s := loadedSlideshow(t)

	s.GoTo(1)
	assert.Equal(t, 1, s.State().Index)

	s.GoTo(99)
	assert.Equal(t, 1, s.State().Index, "out-of-range jump is ignored")
	s.GoTo(-1)
	assert.Equal(t, 1, s.State().Index)
}

func TestSlideshowEmptyStateDisablesEverything(t *testing.T) {
	s := NewSlideshow(0, "", nil)
	s.CompleteRefresh(&Snapshot{}, nil)

	st := s.State()
	assert.True(t, st.Empty)
	assert.Zero(t, st.Count)

	s.SetAutoplay(true)
	assert.False(t, s.State().Autoplay, "autoplay cannot be enabled on an empty list")
	s.Next()
	s.Tick()
	assert.Equal(t, 0, s.State().Index)
}

func TestSlideshowErrorState(t *testing.T) {
	s := loadedSlideshow(t)
	s.SetAutoplay(true)

	s.BeginRefresh()
	s.CompleteRefresh(nil, &types.FetchError{Store: "memory_timeline", Err: errors.New("boom")})

	st := s.State()
	assert.Contains(t, st.Error, "memory_timeline")
	assert.False(t, st.Autoplay)
	assert.False(t, st.Empty, "error state is distinct from empty state")

	s.Next()
	assert.Equal(t, 0, s.State().Index, "navigation is held in the error state")

	// Recovery: a later successful refresh clears the error.
	s.CompleteRefresh(threeSlides(), nil)
	assert.Empty(t, s.State().Error)
}

func TestSlideshowRefreshPausesAutoplay(t *testing.T) {
	s := loadedSlideshow(t)
	s.SetAutoplay(true)

	s.BeginRefresh()
	s.Tick()
	assert.Equal(t, 0, s.State().Index, "ticks do not advance during a refresh")

	s.CompleteRefresh(threeSlides(), nil)
	s.Tick()
	assert.Equal(t, 1, s.State().Index)
}

func TestSlideshowFullscreenKeys(t *testing.T) {
	s := loadedSlideshow(t)

	assert.False(t, s.HandleKey("ArrowRight"), "keys are ignored outside fullscreen")
	assert.Equal(t, 0, s.State().Index)

	s.ToggleFullscreen()
	assert.True(t, s.HandleKey("ArrowRight"))
	assert.Equal(t, 1, s.State().Index)
	assert.True(t, s.HandleKey("ArrowLeft"))
	assert.Equal(t, 0, s.State().Index)

	assert.True(t, s.HandleKey(" "))
	assert.True(t, s.State().Autoplay)

	assert.True(t, s.HandleKey("i"))
	assert.True(t, s.State().ShowInfo)

	assert.True(t, s.HandleKey("Escape"))
	st := s.State()
	assert.False(t, st.Fullscreen)
	assert.False(t, st.ShowInfo, "leaving fullscreen hides the info overlay")

	assert.False(t, s.HandleKey("x"))
}

func TestSlideshowFullscreenPreservesIndex(t *testing.T) {
	s := loadedSlideshow(t)
	s.GoTo(2)

	s.ToggleFullscreen()
	assert.Equal(t, 2, s.State().Index)
	s.ToggleFullscreen()
	assert.Equal(t, 2, s.State().Index)
}

func TestSlideshowBookmarks(t *testing.T) {
	s := loadedSlideshow(t)

	s.ToggleBookmark()
	st := s.State()
	assert.True(t, st.Bookmarked)
	assert.Equal(t, []string{"a"}, st.Bookmarks)

	s.Next()
	assert.False(t, s.State().Bookmarked)

	s.Prev()
	s.ToggleBookmark()
	assert.Empty(t, s.State().Bookmarks)
}

func TestSlideshowRefreshKeepsSurvivingBookmarksAndCursor(t *testing.T) {
	s := loadedSlideshow(t)
	s.GoTo(1)
	s.ToggleBookmark() // bookmark "b"

	// New snapshot drops "a"; "b" survives under the same id.
	s.CompleteRefresh(&Snapshot{
		Memories: []types.Memory{
			{ID: "b", URL: "https://cdn.example.test/memories/b.jpg"},
			{ID: "c", URL: "https://cdn.example.test/memories/c.jpg"},
		},
		Generation: 2,
	}, nil)

	st := s.State()
	assert.Equal(t, 0, st.Index, "cursor follows the current id")
	assert.Equal(t, []string{"b"}, st.Bookmarks)

	// A snapshot with entirely new id provenance clears the bookmarks.
	s.CompleteRefresh(&Snapshot{
		Memories:   []types.Memory{{ID: "z", URL: "https://cdn.example.test/memories/z.jpg"}},
		Generation: 3,
	}, nil)
	assert.Empty(t, s.State().Bookmarks)
	assert.Equal(t, 0, s.State().Index)
}

func TestSlideshowLoadTracking(t *testing.T) {
	s := loadedSlideshow(t)

	s.MarkLoaded("a")
	s.MarkFailed("b")

	st := s.State()
	assert.Equal(t, LoadLoaded, st.LoadState["a"])
	assert.Equal(t, LoadFailed, st.LoadState["b"])

	// A refresh resets per-slide tracking.
	s.CompleteRefresh(threeSlides(), nil)
	assert.Empty(t, s.State().LoadState)
}

func TestSlideshowShare(t *testing.T) {
	s := loadedSlideshow(t)
	_, err := s.Share()
	assert.ErrorIs(t, err, ErrShareUnsupported)

	shared := NewSlideshow(0, "https://keepsake.example.test", nil)
	shared.CompleteRefresh(threeSlides(), nil)
	url, err := shared.Share()
	require.NoError(t, err)
	assert.Equal(t, "https://keepsake.example.test/memories/a", url)
}

func TestSlideshowOnChange(t *testing.T) {
	var events []SlideshowState
	s := NewSlideshow(0, "", func(st SlideshowState) { events = append(events, st) })
	s.CompleteRefresh(threeSlides(), nil)
	s.Next()

	require.Len(t, events, 2)
	assert.Equal(t, 1, events[1].Index)
}
