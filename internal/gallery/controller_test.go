package gallery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgallery/internal/events"
	"fluxgallery/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	images    []models.GalleryImage
	listErr   error
	deleteErr error
	loads     int
	loaded    chan struct{}
	deleteGo  chan struct{}
}

func (s *fakeStore) GetUserImages(_ context.Context, _ string) ([]models.GalleryImage, error) {
	s.mu.Lock()
	s.loads++
	images := make([]models.GalleryImage, len(s.images))
	copy(images, s.images)
	err := s.listErr
	loaded := s.loaded
	s.mu.Unlock()

	if loaded != nil {
		loaded <- struct{}{}
	}
	return images, err
}

func (s *fakeStore) DeleteUserImage(_ context.Context, id string) error {
	if s.deleteGo != nil {
		<-s.deleteGo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	kept := s.images[:0]
	for _, img := range s.images {
		if img.ID != id {
			kept = append(kept, img)
		}
	}
	s.images = kept
	return nil
}

func (s *fakeStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) WriteText(_ context.Context, text string) error {
	c.text = text
	return c.err
}

type fakeSaver struct {
	url      string
	filename string
}

func (s *fakeSaver) Save(_ context.Context, url string, filename string) error {
	s.url = url
	s.filename = filename
	return nil
}

type fakeRef struct {
	url      string
	released bool
}

func (r *fakeRef) URL() string    { return r.url }
func (r *fakeRef) Release() error { r.released = true; return nil }

type fakeViewer struct {
	opened       []string
	materialized *fakeRef
	openErr      error
}

func (v *fakeViewer) Open(_ context.Context, url string) error {
	v.opened = append(v.opened, url)
	return v.openErr
}

func (v *fakeViewer) Materialize(_ context.Context, _ string) (ViewerRef, error) {
	v.materialized = &fakeRef{url: "blob://materialized"}
	return v.materialized, nil
}

func sampleImages() []models.GalleryImage {
	return []models.GalleryImage{
		{ID: "img-1", UserID: "u1", ImageURL: "https://fal.media/a.png", Prompt: "a castle"},
		{ID: "img-2", UserID: "u1", ImageURL: "https://fal.media/b.png", Prompt: "a forest"},
	}
}

func newTestController(userID string, store *fakeStore, opts Options) *Controller {
	opts.Store = store
	opts.Log = zerolog.Nop()
	return NewController(userID, opts)
}

func TestStartWithoutUser(t *testing.T) {
	store := &fakeStore{images: sampleImages()}
	c := newTestController("", store, Options{})
	defer c.Close()

	c.Start(context.Background())

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Zero(t, store.loadCount())
}

func TestLoadPopulatesImages(t *testing.T) {
	store := &fakeStore{images: sampleImages()}
	c := newTestController("u1", store, Options{})
	defer c.Close()

	c.Start(context.Background())

	assert.Equal(t, StateLoaded, c.State())
	assert.Len(t, c.Images(), 2)
	assert.Empty(t, c.InlineError())
}

func TestLoadFailureKeepsLastKnownGood(t *testing.T) {
	store := &fakeStore{images: sampleImages()}
	c := newTestController("u1", store, Options{})
	defer c.Close()

	c.Start(context.Background())
	require.Len(t, c.Images(), 2)

	store.mu.Lock()
	store.listErr = errors.New("db down")
	store.mu.Unlock()

	c.Load(context.Background())

	assert.Equal(t, StateLoaded, c.State())
	assert.Len(t, c.Images(), 2)
	assert.Equal(t, loadErrorMessage, c.InlineError())

	store.mu.Lock()
	store.listErr = nil
	store.mu.Unlock()

	c.Load(context.Background())
	assert.Empty(t, c.InlineError())
}

func TestSelectUnknownIDIgnored(t *testing.T) {
	store := &fakeStore{images: sampleImages()}
	c := newTestController("u1", store, Options{})
	defer c.Close()
	c.Start(context.Background())

	c.Select("nope")
	_, ok := c.Selected()
	assert.False(t, ok)

	c.Select("img-1")
	selected, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "img-1", selected.ID)

	c.Deselect()
	_, ok = c.Selected()
	assert.False(t, ok)
}

func TestDeleteRemovesAndDeselects(t *testing.T) {
	store := &fakeStore{images: sampleImages()}
	c := newTestController("u1", store, Options{})
	defer c.Close()
	c.Start(context.Background())

	c.Select("img-1")
	require.NoError(t, c.Delete(context.Background(), "img-1"))

	images := c.Images()
	require.Len(t, images, 1)
	assert.Equal(t, "img-2", images[0].ID)

	_, ok := c.Selected()
	assert.False(t, ok)
	assert.False(t, c.IsDeleting("img-1"))
}

func TestDeleteFailureKeepsList(t *testing.T) {
	store := &fakeStore{images: sampleImages(), deleteErr: errors.New("forbidden")}
	c := newTestController("u1", store, Options{})
	defer c.Close()
	c.Start(context.Background())

	err := c.Delete(context.Background(), "img-1")
	require.Error(t, err)

	assert.Len(t, c.Images(), 2)
	assert.Equal(t, deleteErrorMessage, c.InlineError())
	assert.False(t, c.IsDeleting("img-1"))
}

func TestDeleteInFlightGuard(t *testing.T) {
	store := &fakeStore{images: sampleImages(), deleteGo: make(chan struct{})}
	c := newTestController("u1", store, Options{})
	defer c.Close()
	c.Start(context.Background())

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Delete(context.Background(), "img-1")
	}()

	require.Eventually(t, func() bool {
		return c.IsDeleting("img-1")
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.Delete(context.Background(), "img-1"), ErrDeleteInFlight)

	// Deselecting the image mid-delete is a safe no-op.
	c.Deselect()

	close(store.deleteGo)
	require.NoError(t, <-firstDone)
	assert.Len(t, c.Images(), 1)
}

func TestBroadcastTriggersReloadForOwnUserOnly(t *testing.T) {
	bus := events.NewBus()
	store := &fakeStore{images: sampleImages(), loaded: make(chan struct{}, 8)}
	c := newTestController("u1", store, Options{Bus: bus})
	defer c.Close()

	c.Start(context.Background())
	<-store.loaded // initial load

	bus.Publish(events.GalleryUpdate{UserID: "u2"})
	bus.Publish(events.GalleryUpdate{UserID: "u1"})

	select {
	case <-store.loaded:
	case <-time.After(time.Second):
		t.Fatal("expected reload after own-user broadcast")
	}

	// Only the initial load and the u1 broadcast hit the store.
	assert.Equal(t, 2, store.loadCount())
}

func TestCloseStopsBroadcastReloads(t *testing.T) {
	bus := events.NewBus()
	store := &fakeStore{images: sampleImages()}
	c := newTestController("u1", store, Options{Bus: bus})

	c.Start(context.Background())
	c.Close()
	c.Close() // idempotent

	before := store.loadCount()
	bus.Publish(events.GalleryUpdate{UserID: "u1"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, store.loadCount())
}

func TestCopyPromptCopiesDisplayText(t *testing.T) {
	store := &fakeStore{}
	clip := &fakeClipboard{}
	var notices []Notice
	c := newTestController("u1", store, Options{
		Clipboard: clip,
		Notify:    func(n Notice) { notices = append(notices, n) },
	})
	defer c.Close()

	c.CopyPrompt(context.Background(), "한국어 설명 English Prompt: a castle at dusk")

	assert.Equal(t, "a castle at dusk", clip.text)
	assert.False(t, c.IsCopying())
	require.Len(t, notices, 1)
	assert.Equal(t, SeverityInfo, notices[0].Severity)
}

func TestCopyPromptFailureNotifies(t *testing.T) {
	store := &fakeStore{}
	clip := &fakeClipboard{err: errors.New("denied")}
	var notices []Notice
	c := newTestController("u1", store, Options{
		Clipboard: clip,
		Notify:    func(n Notice) { notices = append(notices, n) },
	})
	defer c.Close()

	c.CopyPrompt(context.Background(), "a castle")

	assert.False(t, c.IsCopying())
	require.Len(t, notices, 1)
	assert.Equal(t, SeverityError, notices[0].Severity)
}

func TestDownloadBuildsFilename(t *testing.T) {
	store := &fakeStore{}
	saver := &fakeSaver{}
	c := newTestController("u1", store, Options{Saver: saver})
	defer c.Close()

	require.NoError(t, c.Download(context.Background(), "https://fal.media/a.png", "a castle"))
	assert.Equal(t, "https://fal.media/a.png", saver.url)
	assert.Contains(t, saver.filename, "flux-a-castle-")
	assert.Contains(t, saver.filename, ".png")
}

func TestOpenExternalHostedURL(t *testing.T) {
	store := &fakeStore{}
	viewer := &fakeViewer{}
	c := newTestController("u1", store, Options{Viewer: viewer})
	defer c.Close()

	c.OpenExternal(context.Background(), "https://fal.media/a.png")

	assert.Equal(t, []string{"https://fal.media/a.png"}, viewer.opened)
	assert.Nil(t, viewer.materialized)
}

func TestOpenExternalMaterializesDataURL(t *testing.T) {
	store := &fakeStore{}
	viewer := &fakeViewer{}
	c := newTestController("u1", store, Options{Viewer: viewer})

	c.OpenExternal(context.Background(), "data:image/png;base64,AAAA")

	require.NotNil(t, viewer.materialized)
	assert.Equal(t, []string{"blob://materialized"}, viewer.opened)
	assert.False(t, viewer.materialized.released)

	c.Close()
	assert.True(t, viewer.materialized.released)
}

func TestDisplayPrompt(t *testing.T) {
	assert.Equal(t, "a castle", DisplayPrompt("번역 English Prompt: a castle"))
	assert.Equal(t, "a castle", DisplayPrompt("English Prompt:   a castle  "))
	assert.Equal(t, "plain prompt", DisplayPrompt("plain prompt"))
}

func TestDownloadFilename(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	name := DownloadFilename("a beautiful sunset over the ocean", now)
	assert.Equal(t, "flux-a-beautiful-sunset-o-1700000000000.png", name)

	name = DownloadFilename("short", now)
	assert.Equal(t, "flux-short-1700000000000.png", name)
}
