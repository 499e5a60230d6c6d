package feed

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrEmptyFile   = errors.New("empty file")
)

// Store is the object and document store the feed reads and writes.
type Store interface {
	ListBlobs(ctx context.Context, prefix string) ([]domain.BlobRef, error)
	ResolveURL(ctx context.Context, ref domain.BlobRef) (string, error)
	PutBlob(ctx context.Context, prefix, name, contentType string, data []byte) (domain.BlobRef, error)
	FetchCaptions(ctx context.Context, userKey string) (map[string]string, error)
	SaveCaption(ctx context.Context, userKey string, ref domain.BlobRef, caption string) error
}

// EventPublisher hands events to the outbound queue.
type EventPublisher interface {
	Publish(ev domain.Event) bool
}

// Controller holds one user's image listing. Store failures never change the
// listing.
type Controller struct {
	userKey string
	store   Store
	events  EventPublisher
	logger  *log.Logger

	mu      sync.Mutex
	entries []domain.ImageEntry
}

// NewController creates a controller scoped to userKey. events may be nil.
func NewController(userKey string, store Store, events EventPublisher, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{userKey: userKey, store: store, events: events, logger: logger}
}

// Load lists the user's images and replaces the listing with them.
func (c *Controller) Load(ctx context.Context) ([]domain.ImageEntry, error) {
	refs, err := c.store.ListBlobs(ctx, c.userKey)
	if err != nil {
		return nil, &domain.StoreError{Op: "list images", Err: err}
	}
	captions, err := c.store.FetchCaptions(ctx, c.userKey)
	if err != nil {
		return nil, &domain.StoreError{Op: "fetch captions", Err: err}
	}

	entries := make([]domain.ImageEntry, 0, len(refs))
	for _, ref := range refs {
		url, err := c.store.ResolveURL(ctx, ref)
		if err != nil {
			return nil, &domain.StoreError{Op: "resolve url", Err: err}
		}
		entries = append(entries, domain.ImageEntry{Name: ref.Name, URL: url, Caption: captions[ref.Name]})
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return cloneEntries(entries), nil
}

// Upload stores data under the user's namespace keyed by the base of
// fileName, records the caption and appends the new entry. An existing image
// with the same name is overwritten.
func (c *Controller) Upload(ctx context.Context, fileName, contentType string, data []byte, caption string) (domain.ImageEntry, error) {
	name := BaseName(fileName)
	if name == "" {
		return domain.ImageEntry{}, ErrInvalidName
	}
	if len(data) == 0 {
		return domain.ImageEntry{}, ErrEmptyFile
	}

	// The blob goes last: a listing only shows blobs, so a caption written
	// before a failed put stays invisible.
	ref := domain.BlobRef{Prefix: c.userKey, Name: name}
	url, err := c.store.ResolveURL(ctx, ref)
	if err != nil {
		return domain.ImageEntry{}, &domain.StoreError{Op: "resolve url", Err: err}
	}
	captions, err := c.store.FetchCaptions(ctx, c.userKey)
	if err != nil {
		return domain.ImageEntry{}, &domain.StoreError{Op: "fetch captions", Err: err}
	}
	if err := c.store.SaveCaption(ctx, c.userKey, ref, caption); err != nil {
		return domain.ImageEntry{}, &domain.StoreError{Op: "save caption", Err: err}
	}
	if _, err := c.store.PutBlob(ctx, c.userKey, name, contentType, data); err != nil {
		if rerr := c.store.SaveCaption(ctx, c.userKey, ref, captions[name]); rerr != nil {
			c.logger.WithError(rerr).WithField("key", ref.Key()).Error("failed to restore caption")
		}
		return domain.ImageEntry{}, &domain.StoreError{Op: "upload image", Err: err}
	}

	entry := domain.ImageEntry{Name: ref.Name, URL: url, Caption: caption}
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	c.publishUploaded(ref, caption, len(data))
	return entry, nil
}

// Entries returns a copy of the current listing.
func (c *Controller) Entries() []domain.ImageEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEntries(c.entries)
}

func (c *Controller) publishUploaded(ref domain.BlobRef, caption string, size int) {
	if c.events == nil {
		return
	}
	ev, err := domain.NewEvent(domain.EventImageUploaded, c.userKey, map[string]any{
		"key":     ref.Key(),
		"name":    ref.Name,
		"caption": caption,
		"size":    size,
	})
	if err != nil {
		c.logger.WithError(err).Error("failed to encode upload event")
		return
	}
	if !c.events.Publish(ev) {
		c.logger.WithField("key", ref.Key()).Warn("upload event not published")
	}
}

// BaseName strips any directory part a client sent with the file name.
func BaseName(fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

func cloneEntries(in []domain.ImageEntry) []domain.ImageEntry {
	out := make([]domain.ImageEntry, len(in))
	copy(out, in)
	return out
}
