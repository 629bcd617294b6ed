package gallery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fluxgallery/internal/events"
	"fluxgallery/internal/models"
)

// promptDelimiter marks where the English prompt starts inside a stored
// prompt that still carries its pre-translation text.
const promptDelimiter = "English Prompt:"

const (
	loadErrorMessage   = "이미지를 불러오는 중 오류가 발생했습니다."
	deleteErrorMessage = "이미지를 삭제하는 중 오류가 발생했습니다."
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ErrDeleteInFlight is returned when a delete is requested for an image whose
// previous delete has not finished; the UI disables the control, this is the
// backstop.
var ErrDeleteInFlight = errors.New("delete already in flight")

// Store is the backend data service the controller reads from. Ordering of
// the returned list is the service's responsibility.
type Store interface {
	GetUserImages(ctx context.Context, userID string) ([]models.GalleryImage, error)
	DeleteUserImage(ctx context.Context, id string) error
}

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Saver persists a remote image to a local file.
type Saver interface {
	Save(ctx context.Context, url string, filename string) error
}

// ViewerRef is a transient reference to a materialized data URL. Release is
// tied to controller teardown, never to a timer, so a still-open viewer can't
// have its image revoked out from under it.
type ViewerRef interface {
	URL() string
	Release() error
}

// Viewer opens images in an external viewing context.
type Viewer interface {
	Open(ctx context.Context, url string) error
	Materialize(ctx context.Context, dataURL string) (ViewerRef, error)
}

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Notice is a transient user-facing notification.
type Notice struct {
	Title    string
	Message  string
	Severity Severity
}

type Notifier func(Notice)

type State int

const (
	StateUninitialized State = iota
	StateUnauthenticated
	StateLoading
	StateLoaded
)

// Controller owns one user's gallery view: the in-memory image list, the
// current selection, per-image delete flags and the inline error message. All
// I/O goes through the injected collaborators so every transition is
// observable in tests. Loads triggered concurrently (mount plus broadcast
// bursts) are not serialized; whichever response applies last wins, and
// nothing cancels an in-flight load.
type Controller struct {
	mu        sync.Mutex
	userID    string
	state     State
	images    []models.GalleryImage
	selected  string
	deleting  map[string]bool
	copying   bool
	inlineErr string

	store  Store
	clip   Clipboard
	saver  Saver
	viewer Viewer
	bus    *events.Bus
	notify Notifier
	log    zerolog.Logger

	sub    *events.Subscription
	refs   []ViewerRef
	done   chan struct{}
	closed bool
}

type Options struct {
	Store     Store
	Clipboard Clipboard
	Saver     Saver
	Viewer    Viewer
	Bus       *events.Bus
	Notify    Notifier
	Log       zerolog.Logger
}

func NewController(userID string, opts Options) *Controller {
	notify := opts.Notify
	if notify == nil {
		notify = func(Notice) {}
	}
	return &Controller{
		userID:   userID,
		state:    StateUninitialized,
		deleting: make(map[string]bool),
		store:    opts.Store,
		clip:     opts.Clipboard,
		saver:    opts.Saver,
		viewer:   opts.Viewer,
		bus:      opts.Bus,
		notify:   notify,
		log:      opts.Log,
		done:     make(chan struct{}),
	}
}

// Start performs the initial load and subscribes to gallery updates. With no
// bound user the controller parks in Unauthenticated and never touches the
// backend.
func (c *Controller) Start(ctx context.Context) {
	if c.userID == "" {
		c.mu.Lock()
		c.state = StateUnauthenticated
		c.mu.Unlock()
		return
	}

	if c.bus != nil {
		c.sub = c.bus.Subscribe(16)
		go c.watchUpdates(ctx)
	}

	c.Load(ctx)
}

func (c *Controller) watchUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case event := <-c.sub.C:
			if event.UserID != c.userID {
				continue
			}
			c.Load(ctx)
		}
	}
}

// Load fetches the user's image list. On failure the inline error is set and
// the list keeps its last-known-good contents.
func (c *Controller) Load(ctx context.Context) {
	if c.userID == "" {
		c.mu.Lock()
		c.state = StateUnauthenticated
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	// Fetch outside the lock: overlapping loads may finish out of order and
	// the last one to apply wins.
	images, err := c.store.GetUserImages(ctx, c.userID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateLoaded
	if err != nil {
		c.log.Error().Err(err).Str("user_id", c.userID).Msg("gallery load failed")
		c.inlineErr = loadErrorMessage
		return
	}

	c.inlineErr = ""
	c.images = images
	if c.selected != "" && c.findImage(c.selected) == nil {
		c.selected = ""
	}
}

// Select marks the image as the detail view. Unknown ids are ignored.
func (c *Controller) Select(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findImage(id) != nil {
		c.selected = id
	}
}

// Deselect clears the detail view. Safe to call for an image that a
// concurrent delete already removed.
func (c *Controller) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = ""
}

// Delete removes the image from the backend and, on success, from the
// in-memory list. The image's delete flag stays set for the duration of the
// request; a second Delete for the same id is refused while the first one is
// in flight. On failure the list is left unchanged and the inline error set.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.deleting[id] {
		c.mu.Unlock()
		return ErrDeleteInFlight
	}
	c.deleting[id] = true
	c.mu.Unlock()

	err := c.store.DeleteUserImage(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deleting, id)

	if err != nil {
		c.log.Error().Err(err).Str("image_id", id).Msg("gallery delete failed")
		c.inlineErr = deleteErrorMessage
		return err
	}

	kept := c.images[:0]
	for _, img := range c.images {
		if img.ID != id {
			kept = append(kept, img)
		}
	}
	c.images = kept
	if c.selected == id {
		c.selected = ""
	}
	c.inlineErr = ""
	return nil
}

// CopyPrompt copies the display text of the prompt (delimiter prefix
// stripped, matching what the user sees) to the clipboard and reports the
// outcome as a transient notice. The copy flag clears when the write
// completes rather than on a detached timer.
func (c *Controller) CopyPrompt(ctx context.Context, prompt string) {
	c.mu.Lock()
	c.copying = true
	c.mu.Unlock()

	err := c.clip.WriteText(ctx, DisplayPrompt(prompt))

	c.mu.Lock()
	c.copying = false
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("prompt copy failed")
		c.notify(Notice{Title: "복사 실패", Message: "프롬프트를 클립보드에 복사하지 못했습니다.", Severity: SeverityError})
		return
	}
	c.notify(Notice{Title: "프롬프트 복사 완료", Message: "프롬프트가 클립보드에 복사되었습니다.", Severity: SeverityInfo})
}

// Download saves the image under a filename derived from the prompt. Pure
// side effect, no state change.
func (c *Controller) Download(ctx context.Context, url string, prompt string) error {
	return c.saver.Save(ctx, url, DownloadFilename(prompt, time.Now()))
}

// OpenExternal opens the image in a new viewing context. Embedded data URLs
// are first materialized into a transient reference that lives until Close.
func (c *Controller) OpenExternal(ctx context.Context, url string) {
	if !strings.HasPrefix(url, "data:") {
		if err := c.viewer.Open(ctx, url); err != nil {
			c.reportOpenFailure(err)
		}
		return
	}

	ref, err := c.viewer.Materialize(ctx, url)
	if err != nil {
		c.reportOpenFailure(err)
		return
	}

	c.mu.Lock()
	c.refs = append(c.refs, ref)
	c.mu.Unlock()

	if err := c.viewer.Open(ctx, ref.URL()); err != nil {
		c.reportOpenFailure(err)
	}
}

func (c *Controller) reportOpenFailure(err error) {
	c.log.Error().Err(err).Msg("open image failed")
	c.notify(Notice{Title: "이미지 열기 실패", Message: "이미지를 새 창에서 열 수 없습니다.", Severity: SeverityError})
}

// Close unsubscribes from updates and releases any materialized viewer
// references. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	refs := c.refs
	c.refs = nil
	close(c.done)
	c.mu.Unlock()

	if c.sub != nil {
		c.sub.Close()
	}
	for _, ref := range refs {
		if err := ref.Release(); err != nil {
			c.log.Warn().Err(err).Msg("viewer ref release failed")
		}
	}
}

func (c *Controller) findImage(id string) *models.GalleryImage {
	for i := range c.images {
		if c.images[i].ID == id {
			return &c.images[i]
		}
	}
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Images returns a copy of the current list.
func (c *Controller) Images() []models.GalleryImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.GalleryImage, len(c.images))
	copy(out, c.images)
	return out
}

// Selected returns the selected image, if any.
func (c *Controller) Selected() (models.GalleryImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img := c.findImage(c.selected); img != nil {
		return *img, true
	}
	return models.GalleryImage{}, false
}

func (c *Controller) IsDeleting(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleting[id]
}

func (c *Controller) IsCopying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copying
}

// InlineError returns the current recoverable error message, empty when the
// last operation succeeded.
func (c *Controller) InlineError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inlineErr
}

// DisplayPrompt strips the pre-translation prefix so only the English prompt
// shows.
func DisplayPrompt(prompt string) string {
	if idx := strings.Index(prompt, promptDelimiter); idx >= 0 {
		return strings.TrimSpace(prompt[idx+len(promptDelimiter):])
	}
	return prompt
}

// DownloadFilename builds a filename from the first 20 characters of the
// prompt with whitespace runs collapsed to dashes, plus a millisecond
// timestamp.
func DownloadFilename(prompt string, now time.Time) string {
	slug := prompt
	if runes := []rune(slug); len(runes) > 20 {
		slug = string(runes[:20])
	}
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	return fmt.Sprintf("flux-%s-%d.png", slug, now.UnixMilli())
}
