package featuredsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/featured-sync/pkg/featuredsync"
	"github.com/tendant/featured-sync/pkg/featuredsync/repo/memory"
)

// gatedStore holds featured reference changes until release is closed.
type gatedStore struct {
	*featuredsync.RepositoryStore

	mu      sync.Mutex
	calls   []featuredsync.MediaID
	results []error
	release chan struct{}
	fail    error
	// failID limits fail to writes of one media id. Zero fails every write.
	failID featuredsync.MediaID
}

func (g *gatedStore) SetFeaturedReference(ctx context.Context, documentID featuredsync.DocumentID, id featuredsync.MediaID) error {
	g.mu.Lock()
	g.calls = append(g.calls, id)
	release := g.release
	g.mu.Unlock()

	if release != nil {
		<-release
	}
	var err error
	if g.fail != nil && (g.failID == 0 || g.failID == id) {
		err = g.fail
	} else {
		err = g.RepositoryStore.SetFeaturedReference(ctx, documentID, id)
	}

	g.mu.Lock()
	g.results = append(g.results, err)
	g.mu.Unlock()
	return err
}

func (g *gatedStore) Results() []error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]error(nil), g.results...)
}

func (g *gatedStore) Calls() []featuredsync.MediaID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]featuredsync.MediaID(nil), g.calls...)
}

type countingNotifier struct {
	mu      sync.Mutex
	notices []featuredsync.Notice
}

func (n *countingNotifier) ReportUserError(ctx context.Context, message string, notice featuredsync.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	notice.Message = message
	n.notices = append(n.notices, notice)
}

func (n *countingNotifier) Notices() []featuredsync.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]featuredsync.Notice(nil), n.notices...)
}

type fixture struct {
	ctx      context.Context
	repo     *memory.Repository
	store    *gatedStore
	notifier *countingNotifier
	doc      featuredsync.DocumentID
	editor   featuredsync.BlockEditor
	rec      *featuredsync.Reconciler
}

type fixtureOption func(*featuredsync.ReconcilerConfig)

func media(id featuredsync.MediaID) *featuredsync.MediaObject {
	name := map[featuredsync.MediaID]string{5: "five", 7: "seven", 9: "nine"}[id]
	return &featuredsync.MediaObject{
		ID:      id,
		Link:    "https://example.org/?attachment_id=" + name,
		Caption: "caption " + name,
		AltText: "alt " + name,
		URL:     "https://example.org/uploads/" + name + ".jpg",
		Sizes: featuredsync.MediaSizes{
			Large: &featuredsync.MediaSize{URL: "https://example.org/uploads/" + name + "-1024.jpg"},
		},
	}
}

func newFixture(t *testing.T, featured featuredsync.MediaID, attrs featuredsync.BlockAttributes, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := memory.New()
	require.NoError(t, repo.PutPostType(ctx, &featuredsync.PostType{
		Slug:         "post",
		Capabilities: featuredsync.TypeCapabilities{SupportsFeaturedImage: true},
	}))
	require.NoError(t, repo.PutPostType(ctx, &featuredsync.PostType{Slug: "page"}))
	for _, id := range []featuredsync.MediaID{5, 7, 9} {
		require.NoError(t, repo.PutMedia(ctx, media(id)))
	}

	doc := &featuredsync.Document{ID: uuid.New(), PostType: "post", FeaturedMedia: featured}
	require.NoError(t, repo.CreateDocument(ctx, doc))

	store := &gatedStore{RepositoryStore: featuredsync.NewRepositoryStore(repo)}
	notifier := &countingNotifier{}
	editor := featuredsync.NewBlockEditor(featuredsync.Block{ID: uuid.New(), DocumentID: doc.ID, Attributes: attrs}, nil)

	cfg := featuredsync.ReconcilerConfig{
		DocumentID: doc.ID,
		BlockID:    uuid.New(),
		Editor:     editor,
		Store:      store,
		Notifier:   notifier,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	rec, err := featuredsync.NewReconciler(cfg)
	require.NoError(t, err)

	return &fixture{ctx: ctx, repo: repo, store: store, notifier: notifier, doc: doc.ID, editor: editor, rec: rec}
}

func (f *fixture) featured(t *testing.T) featuredsync.MediaID {
	t.Helper()
	doc, err := f.repo.GetDocument(f.ctx, f.doc)
	require.NoError(t, err)
	return doc.FeaturedMedia
}

func syncedBlock(id featuredsync.MediaID) featuredsync.BlockAttributes {
	return featuredsync.BlockAttributes{
		ID:              id,
		URL:             media(id).URL,
		LinkDestination: featuredsync.LinkDestinationNone,
		ShouldSync:      true,
	}
}

func imageChange(id featuredsync.MediaID) featuredsync.AttributeChange {
	m := media(id)
	return featuredsync.AttributeChange{
		ID:      featuredsync.SomeID(id),
		URL:     &m.URL,
		Alt:     &m.AltText,
		Caption: &m.Caption,
	}
}

func TestNewReconciler_Validation(t *testing.T) {
	_, err := featuredsync.NewReconciler(featuredsync.ReconcilerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "editor is required")

	_, err = featuredsync.NewReconciler(featuredsync.ReconcilerConfig{
		Editor: featuredsync.NewBlockEditor(featuredsync.Block{}, nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document store is required")
}

func TestOnFeaturedOrAttributeChanged(t *testing.T) {
	t.Run("PullsFeaturedImage", func(t *testing.T) {
		f := newFixture(t, 7, syncedBlock(5))

		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.True(t, changed)

		attrs := f.rec.Attributes()
		assert.Equal(t, featuredsync.MediaID(7), attrs.ID)
		assert.Equal(t, "https://example.org/uploads/seven-1024.jpg", attrs.URL)
		assert.Equal(t, "alt seven", attrs.Alt)
		assert.Equal(t, "caption seven", attrs.Caption)
		assert.Equal(t, "https://example.org/?attachment_id=seven", attrs.Link)
		assert.Equal(t, "large", attrs.SizeSlug)
		assert.False(t, attrs.SyncLocked)
		assert.Empty(t, f.store.Calls(), "the feedback pass never writes the featured reference")
	})

	t.Run("Idempotent", func(t *testing.T) {
		f := newFixture(t, 7, syncedBlock(5))

		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		require.True(t, changed)
		first := f.rec.Attributes()

		changed, err = f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, first, f.rec.Attributes())
	})

	t.Run("ResetsDimensions", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.Width = 300
		attrs.Height = 200
		attrs.SizeSlug = "medium"
		f := newFixture(t, 7, attrs)

		_, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)

		got := f.rec.Attributes()
		assert.Zero(t, got.Width)
		assert.Zero(t, got.Height)
		assert.Equal(t, featuredsync.DefaultSizeSlug, got.SizeSlug)
	})

	t.Run("LockedBlockNeverChanges", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.SyncLocked = true
		f := newFixture(t, 7, attrs)

		for i := 0; i < 3; i++ {
			changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
			require.NoError(t, err)
			assert.False(t, changed)
		}
		assert.Equal(t, attrs, f.rec.Attributes())
	})

	t.Run("UnsyncedBlockIgnored", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.ShouldSync = false
		f := newFixture(t, 7, attrs)

		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, attrs, f.rec.Attributes())
	})

	t.Run("NoFeaturedImage", func(t *testing.T) {
		f := newFixture(t, 0, syncedBlock(5))

		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("UnresolvedMediaRetriedLater", func(t *testing.T) {
		f := newFixture(t, 42, syncedBlock(5))

		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Empty(t, f.notifier.Notices(), "unresolved media is never surfaced")

		m := media(7)
		m.ID = 42
		require.NoError(t, f.repo.PutMedia(f.ctx, m))

		changed, err = f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, featuredsync.MediaID(42), f.rec.Attributes().ID)
	})

	t.Run("PostTypeWithoutFeaturedImage", func(t *testing.T) {
		f := newFixture(t, 7, syncedBlock(5))
		require.NoError(t, f.repo.PutPostType(f.ctx, &featuredsync.PostType{Slug: "post"}))

		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("LinkDestinationAttachment", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.LinkDestination = featuredsync.LinkDestinationAttachment
		f := newFixture(t, 7, attrs)

		_, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://example.org/?attachment_id=seven", f.rec.Attributes().Href)
	})

	t.Run("LinkDestinationMedia", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.LinkDestination = featuredsync.LinkDestinationMedia
		f := newFixture(t, 7, attrs)

		_, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://example.org/uploads/seven.jpg", f.rec.Attributes().Href)
	})
}

func TestRequestAttributeChange(t *testing.T) {
	t.Run("UnsyncedPassThrough", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.ShouldSync = false
		f := newFixture(t, 5, attrs)

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		f.rec.Wait()

		got := f.rec.Attributes()
		assert.Equal(t, featuredsync.MediaID(7), got.ID)
		assert.False(t, got.SyncLocked)
		assert.Empty(t, f.store.Calls())
		assert.Equal(t, featuredsync.MediaID(5), f.featured(t))
	})

	t.Run("ExplicitShouldSyncWins", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))

		change := imageChange(7)
		change.ShouldSync = new(bool)
		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, change))
		f.rec.Wait()

		got := f.rec.Attributes()
		assert.Equal(t, featuredsync.MediaID(7), got.ID)
		assert.False(t, got.ShouldSync)
		assert.Empty(t, f.store.Calls())
	})

	t.Run("CaptionEditNeverWritesFeatured", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))

		caption := "a new caption"
		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, featuredsync.AttributeChange{Caption: &caption}))
		f.rec.Wait()

		assert.Equal(t, caption, f.rec.Attributes().Caption)
		assert.Empty(t, f.store.Calls())
	})

	t.Run("SameIDPassThrough", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(5)))
		f.rec.Wait()

		assert.Equal(t, "alt five", f.rec.Attributes().Alt)
		assert.Empty(t, f.store.Calls())
	})

	t.Run("ExternalSourceRejected", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		before := f.rec.Attributes()

		url := "https://example.com/x.jpg"
		err := f.rec.RequestAttributeChange(f.ctx, featuredsync.AttributeChange{
			ID:  featuredsync.UndefinedID(),
			URL: &url,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, featuredsync.ErrExternalSource))

		var blockErr *featuredsync.BlockError
		require.ErrorAs(t, err, &blockErr)
		assert.Equal(t, "request_attribute_change", blockErr.Op)

		assert.Equal(t, before, f.rec.Attributes())
		notices := f.notifier.Notices()
		require.Len(t, notices, 1)
		assert.Equal(t, featuredsync.NoticeExternalURL, notices[0].ID)
		assert.Equal(t, featuredsync.NoticeKindSnackbar, notices[0].Kind)
		assert.Equal(t, f.doc, notices[0].DocumentID)
		assert.Empty(t, f.store.Calls())
	})

	t.Run("NewImageLocksAndUpdatesFeatured", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		f.store.release = make(chan struct{})

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))

		got := f.rec.Attributes()
		assert.Equal(t, featuredsync.MediaID(7), got.ID)
		assert.Equal(t, "alt seven", got.Alt)
		assert.True(t, got.SyncLocked)
		assert.Equal(t, featuredsync.StateSyncedLocked, f.rec.State())
		assert.Eventually(t, func() bool { return len(f.store.Calls()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []featuredsync.MediaID{7}, f.store.Calls())

		// Nothing propagates while locked, whatever the featured side says.
		require.NoError(t, f.repo.SetFeaturedMedia(f.ctx, f.doc, 9))
		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
		require.NoError(t, f.repo.SetFeaturedMedia(f.ctx, f.doc, 5))

		close(f.store.release)
		f.rec.Wait()

		assert.False(t, f.rec.Attributes().SyncLocked)
		assert.Equal(t, featuredsync.StateSyncedIdle, f.rec.State())
		assert.Equal(t, featuredsync.MediaID(7), f.featured(t))

		// The echo of our own write is a no-op.
		changed, err = f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, featuredsync.MediaID(7), f.rec.Attributes().ID)
	})

	t.Run("IncomingEqualsFeaturedNeedsNoLock", func(t *testing.T) {
		f := newFixture(t, 7, syncedBlock(5))

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		f.rec.Wait()

		got := f.rec.Attributes()
		assert.Equal(t, featuredsync.MediaID(7), got.ID)
		assert.False(t, got.SyncLocked)
		assert.Empty(t, f.store.Calls())
	})

	t.Run("NewerChangeWaitsForInflightWrite", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		f.store.release = make(chan struct{})

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(9)))

		got := f.rec.Attributes()
		assert.Equal(t, featuredsync.MediaID(9), got.ID)
		assert.True(t, got.SyncLocked)
		assert.Eventually(t, func() bool { return len(f.store.Calls()) == 1 }, time.Second, 5*time.Millisecond)

		close(f.store.release)
		f.rec.Wait()

		assert.Equal(t, []featuredsync.MediaID{7, 9}, f.store.Calls())
		assert.Equal(t, featuredsync.MediaID(9), f.featured(t))
		assert.False(t, f.rec.Attributes().SyncLocked)
		assert.Equal(t, featuredsync.MediaID(9), f.rec.Attributes().ID)
	})

	t.Run("ChangeBackToInflightTargetDropsDeferred", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		f.store.release = make(chan struct{})

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(9)))
		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))

		close(f.store.release)
		f.rec.Wait()

		assert.Equal(t, []featuredsync.MediaID{7}, f.store.Calls())
		assert.Equal(t, featuredsync.MediaID(7), f.featured(t))
		assert.False(t, f.rec.Attributes().SyncLocked)
	})

	t.Run("FailedWriteClearsLockAndReconverges", func(t *testing.T) {
		var failures []string
		hooks := &featuredsync.Hooks{
			OnError: []featuredsync.ErrorHook{
				func(hctx *featuredsync.HookContext, operation string, err error) {
					failures = append(failures, operation)
				},
			},
		}
		f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) { cfg.Hooks = hooks })
		f.store.fail = errors.New("store unavailable")

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		f.rec.Wait()

		got := f.rec.Attributes()
		assert.False(t, got.SyncLocked)
		assert.Equal(t, featuredsync.MediaID(5), got.ID, "block follows the featured image that is still in place")
		assert.Equal(t, featuredsync.MediaID(5), f.featured(t))
		assert.Contains(t, failures, "set_featured_reference")

		notices := f.notifier.Notices()
		require.Len(t, notices, 1)
		assert.Equal(t, featuredsync.NoticeFeaturedUpdateFailed, notices[0].ID)
	})

	t.Run("StalledWriteWithoutTimeoutStaysLocked", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		f.store.release = make(chan struct{})
		t.Cleanup(func() { close(f.store.release) })

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		time.Sleep(20 * time.Millisecond)

		assert.True(t, f.rec.Attributes().SyncLocked)
		assert.Equal(t, featuredsync.StateSyncedLocked, f.rec.State())
	})

	t.Run("StalledWriteTimesOut", func(t *testing.T) {
		var mu sync.Mutex
		var hookErr error
		hooks := &featuredsync.Hooks{
			OnError: []featuredsync.ErrorHook{
				func(hctx *featuredsync.HookContext, operation string, err error) {
					mu.Lock()
					defer mu.Unlock()
					if operation == "set_featured_reference" {
						hookErr = err
					}
				},
			},
		}
		f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) {
			cfg.AckTimeout = 20 * time.Millisecond
			cfg.Hooks = hooks
		})
		f.store.release = make(chan struct{})
		t.Cleanup(func() { close(f.store.release) })

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		f.rec.Wait()

		assert.False(t, f.rec.Attributes().SyncLocked)
		mu.Lock()
		defer mu.Unlock()
		assert.ErrorIs(t, hookErr, featuredsync.ErrAcknowledgmentTimeout)
	})

	t.Run("PlaceholderBlockTakesLocalImageVerbatim", func(t *testing.T) {
		attrs := syncedBlock(0)
		attrs.URL = featuredsync.PlaceholderURLPrefix + "/placeholder.jpg"
		f := newFixture(t, 5, attrs)

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		f.rec.Wait()

		assert.Empty(t, f.store.Calls())
		assert.Equal(t, featuredsync.MediaID(5), f.featured(t))
		assert.Equal(t, featuredsync.MediaID(7), f.rec.Attributes().ID)
		assert.False(t, f.rec.Attributes().SyncLocked)

		// Eligible from now on, so the next pass pulls the featured image.
		changed, err := f.rec.OnFeaturedOrAttributeChanged(f.ctx)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, featuredsync.MediaID(5), f.rec.Attributes().ID)
	})

	t.Run("ExternalPlaceholderURLRejected", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		before := f.rec.Attributes()

		url := featuredsync.PlaceholderURLPrefix + "/x.jpg"
		err := f.rec.RequestAttributeChange(f.ctx, featuredsync.AttributeChange{
			ID:  featuredsync.UndefinedID(),
			URL: &url,
		})
		require.ErrorIs(t, err, featuredsync.ErrExternalSource)
		f.rec.Wait()

		assert.Equal(t, before, f.rec.Attributes())
		assert.Empty(t, f.store.Calls())
		notices := f.notifier.Notices()
		require.Len(t, notices, 1)
		assert.Equal(t, featuredsync.NoticeExternalURL, notices[0].ID)
	})

	t.Run("FailedWriteReportedBeforeDeferredOne", func(t *testing.T) {
		var mu sync.Mutex
		var failures []string
		hooks := &featuredsync.Hooks{
			OnError: []featuredsync.ErrorHook{
				func(hctx *featuredsync.HookContext, operation string, err error) {
					mu.Lock()
					defer mu.Unlock()
					failures = append(failures, operation)
				},
			},
		}
		f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) { cfg.Hooks = hooks })
		f.store.release = make(chan struct{})
		f.store.fail = errors.New("store unavailable")
		f.store.failID = 7

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(9)))
		close(f.store.release)
		f.rec.Wait()

		assert.Equal(t, []featuredsync.MediaID{7, 9}, f.store.Calls())
		assert.Equal(t, featuredsync.MediaID(9), f.featured(t))
		assert.Equal(t, featuredsync.MediaID(9), f.rec.Attributes().ID)
		assert.False(t, f.rec.Attributes().SyncLocked)

		mu.Lock()
		assert.Equal(t, []string{"set_featured_reference"}, failures)
		mu.Unlock()
		notices := f.notifier.Notices()
		require.Len(t, notices, 1)
		assert.Equal(t, featuredsync.NoticeFeaturedUpdateFailed, notices[0].ID)
	})

	t.Run("TimedOutWriteDoesNotLandLater", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) {
			cfg.AckTimeout = 20 * time.Millisecond
		})
		f.store.release = make(chan struct{})

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
		f.rec.Wait()
		assert.Equal(t, featuredsync.MediaID(5), f.rec.Attributes().ID)

		close(f.store.release)
		require.Eventually(t, func() bool { return len(f.store.Results()) == 1 }, time.Second, 5*time.Millisecond)

		assert.ErrorIs(t, f.store.Results()[0], context.Canceled)
		assert.Equal(t, featuredsync.MediaID(5), f.featured(t))
	})

	t.Run("WaitContextHonorsCancellation", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		f.store.release = make(chan struct{})
		t.Cleanup(func() { close(f.store.release) })

		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))

		ctx, cancel := context.WithTimeout(f.ctx, 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, f.rec.WaitContext(ctx), context.DeadlineExceeded)
		assert.True(t, f.rec.Attributes().SyncLocked)
	})

	t.Run("IneligibleBlockPassThrough", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		require.NoError(t, f.repo.CreateDocument(f.ctx, &featuredsync.Document{ID: f.doc, PostType: "page", FeaturedMedia: 5}))

		url := "https://example.com/x.jpg"
		require.NoError(t, f.rec.RequestAttributeChange(f.ctx, featuredsync.AttributeChange{
			ID:  featuredsync.UndefinedID(),
			URL: &url,
		}))
		f.rec.Wait()

		assert.Equal(t, url, f.rec.Attributes().URL)
		assert.Zero(t, f.rec.Attributes().ID)
		assert.Empty(t, f.notifier.Notices())
		assert.Empty(t, f.store.Calls())
	})
}

func TestToggleSync(t *testing.T) {
	t.Run("OffAndOnWithMatchingFeatured", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		initial := f.rec.Attributes()

		require.NoError(t, f.rec.ToggleSync(f.ctx))
		off := f.rec.Attributes()
		assert.False(t, off.ShouldSync)
		off.ShouldSync = true
		assert.Equal(t, initial, off, "toggling off changes nothing but the toggle")

		require.NoError(t, f.rec.ToggleSync(f.ctx))
		f.rec.Wait()
		assert.Equal(t, initial, f.rec.Attributes())
		assert.Empty(t, f.store.Calls())
	})

	t.Run("OnPushesToEmptyFeatured", func(t *testing.T) {
		attrs := syncedBlock(7)
		attrs.ShouldSync = false
		f := newFixture(t, 0, attrs)

		require.NoError(t, f.rec.ToggleSync(f.ctx))
		f.rec.Wait()

		assert.Equal(t, []featuredsync.MediaID{7}, f.store.Calls())
		assert.Equal(t, featuredsync.MediaID(7), f.featured(t))
		assert.False(t, f.rec.Attributes().SyncLocked)
	})

	t.Run("OnWithoutImageLeavesFeaturedEmpty", func(t *testing.T) {
		f := newFixture(t, 0, featuredsync.BlockAttributes{})

		require.NoError(t, f.rec.ToggleSync(f.ctx))
		f.rec.Wait()

		assert.True(t, f.rec.Attributes().ShouldSync)
		assert.Empty(t, f.store.Calls())
	})

	t.Run("OnPullsFeatured", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.ShouldSync = false
		f := newFixture(t, 7, attrs)

		require.NoError(t, f.rec.ToggleSync(f.ctx))
		f.rec.Wait()

		got := f.rec.Attributes()
		assert.True(t, got.ShouldSync)
		assert.Equal(t, featuredsync.MediaID(7), got.ID)
	})
}

func TestIsEligible(t *testing.T) {
	t.Run("Eligible", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		ok, err := f.rec.IsEligible(f.ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("PlaceholderImage", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.URL = "https://s.w.org/images/core/5.3/MtBlanc1.jpg"
		f := newFixture(t, 5, attrs)
		ok, err := f.rec.IsEligible(f.ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("PostTypeWithoutSupport", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		require.NoError(t, f.repo.PutPostType(f.ctx, &featuredsync.PostType{Slug: "post"}))
		ok, err := f.rec.IsEligible(f.ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UnknownPostType", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))
		require.NoError(t, f.repo.CreateDocument(f.ctx, &featuredsync.Document{ID: f.doc, PostType: "product"}))
		ok, err := f.rec.IsEligible(f.ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NotAnImageBlock", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) { cfg.Name = "core/gallery" })
		ok, err := f.rec.IsEligible(f.ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("MissingDocument", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) { cfg.DocumentID = uuid.New() })
		_, err := f.rec.IsEligible(f.ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, featuredsync.ErrDocumentNotFound)
	})
}

func TestSyncState(t *testing.T) {
	tests := []struct {
		name     string
		featured featuredsync.MediaID
		attrs    featuredsync.BlockAttributes
		want     string
	}{
		{"Synced", 7, syncedBlock(5), featuredsync.HelpSynced},
		{"SameByChance", 5, featuredsync.BlockAttributes{ID: 5}, featuredsync.HelpSameByChance},
		{"FeaturedExists", 7, featuredsync.BlockAttributes{ID: 5}, featuredsync.HelpWillReceive},
		{"NoFeatured", 0, featuredsync.BlockAttributes{ID: 5}, featuredsync.HelpWillPushToPost},
		{"EmptyBlockNoFeatured", 0, featuredsync.BlockAttributes{}, featuredsync.HelpWillPushToPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.featured, tt.attrs)
			status, err := f.rec.SyncState(f.ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status.HelpText)
			assert.Equal(t, tt.attrs.ShouldSync, status.ShouldSync)
		})
	}
}

func TestDecorate(t *testing.T) {
	t.Run("EligibleBlockGetsSyncEditor", func(t *testing.T) {
		f := newFixture(t, 5, syncedBlock(5))

		editor, err := featuredsync.Decorate(f.ctx, f.editor, f.rec)
		require.NoError(t, err)
		syncEditor, ok := editor.(*featuredsync.SyncEditor)
		require.True(t, ok)

		panel, err := syncEditor.Panel(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, featuredsync.PanelTitle, panel.Title)
		assert.True(t, panel.Checked)
		assert.Equal(t, featuredsync.HelpSynced, panel.Help)

		url := "https://example.com/x.jpg"
		err = editor.SetAttributes(f.ctx, featuredsync.AttributeChange{ID: featuredsync.UndefinedID(), URL: &url})
		assert.ErrorIs(t, err, featuredsync.ErrExternalSource)
	})

	t.Run("IneligibleBlockKeepsBase", func(t *testing.T) {
		attrs := syncedBlock(5)
		attrs.URL = featuredsync.PlaceholderURLPrefix + "/x.jpg"
		f := newFixture(t, 5, attrs)

		editor, err := featuredsync.Decorate(f.ctx, f.editor, f.rec)
		require.NoError(t, err)
		assert.Same(t, f.editor, editor)
	})
}

func TestHooks(t *testing.T) {
	var events []string
	hooks := &featuredsync.Hooks{
		BeforeAttributeChange: []featuredsync.BeforeAttributeChangeHook{
			func(hctx *featuredsync.HookContext, blockID featuredsync.BlockID, change *featuredsync.AttributeChange) error {
				events = append(events, "before")
				return nil
			},
		},
		OnFeaturedRequest: []featuredsync.FeaturedRequestHook{
			func(hctx *featuredsync.HookContext, documentID featuredsync.DocumentID, blockID featuredsync.BlockID, mediaID featuredsync.MediaID) error {
				events = append(events, "featured")
				return nil
			},
		},
		OnLockChange: []featuredsync.LockChangeHook{
			func(hctx *featuredsync.HookContext, blockID featuredsync.BlockID, locked bool) {
				if locked {
					events = append(events, "locked")
				} else {
					events = append(events, "unlocked")
				}
			},
		},
	}
	f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) { cfg.Hooks = hooks })

	require.NoError(t, f.rec.RequestAttributeChange(f.ctx, imageChange(7)))
	f.rec.Wait()

	assert.Equal(t, []string{"before", "locked", "featured", "before", "unlocked"}, events)
}

func TestHooks_BeforeChangeCancelsWrite(t *testing.T) {
	hooks := &featuredsync.Hooks{
		BeforeAttributeChange: []featuredsync.BeforeAttributeChangeHook{
			func(hctx *featuredsync.HookContext, blockID featuredsync.BlockID, change *featuredsync.AttributeChange) error {
				return errors.New("read only")
			},
		},
	}
	f := newFixture(t, 5, syncedBlock(5), func(cfg *featuredsync.ReconcilerConfig) { cfg.Hooks = hooks })
	before := f.rec.Attributes()

	err := f.rec.RequestAttributeChange(f.ctx, imageChange(7))
	require.Error(t, err)
	f.rec.Wait()

	assert.Equal(t, before, f.rec.Attributes())
	assert.Empty(t, f.store.Calls())
}
