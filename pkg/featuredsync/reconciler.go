package featuredsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Notice ids reported to the editing UI.
const (
	NoticeExternalURL          = "image-sync-can-not-set-url"
	NoticeFeaturedUpdateFailed = "image-sync-featured-update-failed"

	messageExternalURL          = "Image block is synchronized with featured image. Impossible to use an external URL as image source."
	messageFeaturedUpdateFailed = "Image block is synchronized with featured image, but the featured image could not be updated."
)

// Help texts shown next to the sync toggle.
const (
	HelpSynced         = "This Image Block is synchronized with the featured image. They update each other."
	HelpSameByChance   = "This Image Block is not synchronized with the featured image. But by chance they are the same."
	HelpWillReceive    = "This Image Block is not synchronized with the featured image. On synchronize, this block will receive the featured image."
	HelpWillPushToPost = "This Image Block is not synchronized with the featured image. No featured image is set. On synchronize, the featured image will receive this block image."
)

// ReconcilerConfig holds the collaborators of a Reconciler.
type ReconcilerConfig struct {
	DocumentID DocumentID
	BlockID    BlockID
	// Name is the block type. Empty means ImageBlockName.
	Name   string
	Editor BlockEditor
	Store  DocumentStore

	Notifier Notifier
	Hooks    *Hooks
	Logger   *slog.Logger
	// AckTimeout bounds how long a featured reference change may stay
	// unacknowledged. Zero waits forever.
	AckTimeout time.Duration
}

// Reconciler keeps one block and its document's featured image consistent.
//
// Evaluations for the same block are serialized. The only suspension point is
// the acknowledgment of a featured reference change, during which the block
// stays SyncedLocked and neither direction propagates.
type Reconciler struct {
	mu sync.Mutex

	documentID DocumentID
	blockID    BlockID
	name       string
	editor     BlockEditor
	store      DocumentStore
	notifier   Notifier
	hooks      *Hooks
	logger     *slog.Logger
	ackTimeout time.Duration

	// inflight is the featured id awaiting acknowledgment, deferred the id a
	// newer write wants once it lands. Zero means none.
	inflight MediaID
	deferred MediaID

	// pending counts unfinished acknowledgments; idle is closed while it is zero.
	waitMu  sync.Mutex
	pending int
	idle    chan struct{}
}

// NewReconciler creates the reconciler for one block.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Editor == nil {
		return nil, errors.New("editor is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("document store is required")
	}
	if cfg.Name == "" {
		cfg.Name = ImageBlockName
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NoopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	idle := make(chan struct{})
	close(idle)

	return &Reconciler{
		idle:       idle,
		documentID: cfg.DocumentID,
		blockID:    cfg.BlockID,
		name:       cfg.Name,
		editor:     cfg.Editor,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		hooks:      cfg.Hooks,
		logger:     cfg.Logger.With("document_id", cfg.DocumentID, "block_id", cfg.BlockID),
		ackTimeout: cfg.AckTimeout,
	}, nil
}

// BlockID returns the id of the reconciled block.
func (r *Reconciler) BlockID() BlockID {
	return r.blockID
}

// DocumentID returns the id of the document the block belongs to.
func (r *Reconciler) DocumentID() DocumentID {
	return r.documentID
}

// Attributes returns the block's current attributes.
func (r *Reconciler) Attributes() BlockAttributes {
	return r.editor.Attributes()
}

// State returns the block's current sync state.
func (r *Reconciler) State() State {
	return StateOf(r.editor.Attributes())
}

// Wait blocks until every in-flight featured reference change has been
// acknowledged and its lock handling has run.
func (r *Reconciler) Wait() {
	_ = r.WaitContext(context.Background())
}

// WaitContext is Wait bounded by ctx.
func (r *Reconciler) WaitContext(ctx context.Context) error {
	r.waitMu.Lock()
	idle := r.idle
	r.waitMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) addPending() {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()
	if r.pending == 0 {
		r.idle = make(chan struct{})
	}
	r.pending++
}

func (r *Reconciler) donePending() {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()
	r.pending--
	if r.pending == 0 {
		close(r.idle)
	}
}

// IsEligible reports whether the block may take part in synchronization: the
// document type supports a featured image and the block does not show a
// placeholder image.
func (r *Reconciler) IsEligible(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eligible(ctx, r.editor.Attributes())
}

func (r *Reconciler) eligible(ctx context.Context, attrs BlockAttributes) (bool, error) {
	if r.name != ImageBlockName {
		return false, nil
	}
	if strings.HasPrefix(attrs.URL, PlaceholderURLPrefix) {
		return false, nil
	}
	return r.supportsFeaturedImage(ctx)
}

func (r *Reconciler) supportsFeaturedImage(ctx context.Context) (bool, error) {
	typeID, err := r.store.GetCurrentDocumentType(ctx, r.documentID)
	if err != nil {
		return false, fmt.Errorf("failed to get document type: %w", err)
	}
	caps, err := r.store.GetTypeCapabilities(ctx, typeID)
	if err != nil {
		if errors.Is(err, ErrPostTypeNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get capabilities of %q: %w", typeID, err)
	}
	return caps.SupportsFeaturedImage, nil
}

// SyncState returns what the sync toggle shows for the block.
func (r *Reconciler) SyncState(ctx context.Context) (SyncStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attrs := r.editor.Attributes()
	status := SyncStatus{
		ShouldSync: attrs.ShouldSync,
		Locked:     attrs.SyncLocked,
		State:      StateOf(attrs).String(),
	}

	if attrs.ShouldSync {
		status.HelpText = HelpSynced
		return status, nil
	}

	featured, err := r.store.GetFeaturedReference(ctx, r.documentID)
	if err != nil {
		return SyncStatus{}, &BlockError{BlockID: r.blockID, Op: "sync_state", Err: err}
	}

	switch {
	case attrs.ID != 0 && attrs.ID == featured:
		status.HelpText = HelpSameByChance
	case featured != 0:
		status.HelpText = HelpWillReceive
	default:
		status.HelpText = HelpWillPushToPost
	}
	return status, nil
}

// ToggleSync flips shouldSync and re-evaluates the block. Enabling sync on a
// block that shows a local image while the document has no featured image
// makes that image the featured one.
func (r *Reconciler) ToggleSync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := !r.editor.Attributes().ShouldSync
	if err := r.requestAttributeChange(ctx, AttributeChange{ShouldSync: &next}); err != nil {
		return err
	}
	if !next {
		return nil
	}
	return r.pushToEmptyFeatured(ctx)
}

func (r *Reconciler) pushToEmptyFeatured(ctx context.Context) error {
	attrs := r.editor.Attributes()
	if attrs.ID == 0 || attrs.SyncLocked || r.inflight != 0 {
		return nil
	}

	featured, err := r.store.GetFeaturedReference(ctx, r.documentID)
	if err != nil {
		return &BlockError{BlockID: r.blockID, Op: "toggle_sync", Err: err}
	}
	if featured != 0 {
		return nil
	}
	eligible, err := r.eligible(ctx, attrs)
	if err != nil {
		return &BlockError{BlockID: r.blockID, Op: "toggle_sync", Err: err}
	}
	if !eligible {
		return nil
	}

	if err := r.apply(ctx, AttributeChange{SyncLocked: ptr(true)}); err != nil {
		return err
	}
	r.issue(ctx, attrs.ID)
	return nil
}

// OnFeaturedOrAttributeChanged propagates the document's featured image into
// the block when the block is synced, unlocked and shows a different image.
// It reports whether the block attributes changed.
func (r *Reconciler) OnFeaturedOrAttributeChanged(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pullFeatured(ctx)
}

func (r *Reconciler) pullFeatured(ctx context.Context) (bool, error) {
	attrs := r.editor.Attributes()
	if attrs.SyncLocked || !attrs.ShouldSync {
		return false, nil
	}

	featured, err := r.store.GetFeaturedReference(ctx, r.documentID)
	if err != nil {
		return false, &BlockError{BlockID: r.blockID, Op: "pull_featured", Err: err}
	}
	if featured == 0 {
		return false, nil
	}

	eligible, err := r.eligible(ctx, attrs)
	if err != nil {
		return false, &BlockError{BlockID: r.blockID, Op: "pull_featured", Err: err}
	}
	if !eligible || attrs.ID == featured {
		return false, nil
	}

	media, err := r.store.GetMedia(ctx, featured)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			r.logger.DebugContext(ctx, "Featured media not resolved, skipping", "media_id", featured)
			return false, nil
		}
		return false, &BlockError{BlockID: r.blockID, Op: "pull_featured", Err: err}
	}
	if media == nil {
		return false, nil
	}
	resolved := *media
	if resolved.ID == 0 {
		resolved.ID = featured
	}

	if err := r.apply(ctx, MergeMediaAttributes(&resolved, attrs.LinkDestination)); err != nil {
		return false, err
	}
	r.logger.InfoContext(ctx, "Block received featured image", "media_id", resolved.ID)
	return true, nil
}

// RequestAttributeChange is the intercepted write path of the block. It
// applies change and, when a synced block switches to another local media
// item, also changes the document's featured image.
func (r *Reconciler) RequestAttributeChange(ctx context.Context, change AttributeChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestAttributeChange(ctx, change)
}

func (r *Reconciler) requestAttributeChange(ctx context.Context, change AttributeChange) error {
	attrs := r.editor.Attributes()

	shouldSync := attrs.ShouldSync
	if change.ShouldSync != nil {
		shouldSync = *change.ShouldSync
	}
	if !shouldSync {
		return r.apply(ctx, change)
	}

	eligible, err := r.eligible(ctx, attrs)
	if err != nil {
		return &BlockError{BlockID: r.blockID, Op: "request_attribute_change", Err: err}
	}
	if !eligible {
		return r.apply(ctx, change)
	}

	if !change.ID.Set || change.ID.ID == attrs.ID {
		if err := r.apply(ctx, change); err != nil {
			return err
		}
		return r.settle(ctx)
	}

	if change.ID.ID == 0 {
		r.notifier.ReportUserError(ctx, messageExternalURL, Notice{
			ID:         NoticeExternalURL,
			Kind:       NoticeKindSnackbar,
			DocumentID: r.documentID,
			BlockID:    r.blockID,
		})
		return &BlockError{BlockID: r.blockID, Op: "request_attribute_change", Err: ErrExternalSource}
	}

	incoming := change.ID.ID
	var issue bool
	if r.inflight != 0 {
		// Outbound writes wait for the in-flight one; only the latest wish is kept.
		change.SyncLocked = ptr(true)
		if incoming != r.inflight {
			r.deferred = incoming
		} else {
			r.deferred = 0
		}
	} else {
		featured, err := r.store.GetFeaturedReference(ctx, r.documentID)
		if err != nil {
			return &BlockError{BlockID: r.blockID, Op: "request_attribute_change", Err: err}
		}
		issue = incoming != featured
		change.SyncLocked = ptr(issue)
	}

	if err := r.apply(ctx, change); err != nil {
		return err
	}
	if issue {
		r.issue(ctx, incoming)
		return nil
	}
	return r.settle(ctx)
}

// settle runs the feedback pass that follows every applied write. Failures
// degrade to no propagation this pass.
func (r *Reconciler) settle(ctx context.Context) error {
	if _, err := r.pullFeatured(ctx); err != nil {
		r.logger.WarnContext(ctx, "Feedback pass failed", "error", err)
		r.hooks.executeOnError(ctx, "pull_featured", err)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, change AttributeChange) error {
	if err := r.hooks.executeBeforeAttributeChange(ctx, r.blockID, &change); err != nil {
		return &BlockError{BlockID: r.blockID, Op: "set_attributes", Err: err}
	}
	if change.IsEmpty() {
		return nil
	}

	before := r.editor.Attributes()
	if err := r.editor.SetAttributes(ctx, change); err != nil {
		r.hooks.executeOnError(ctx, "set_attributes", err)
		return &BlockError{BlockID: r.blockID, Op: "set_attributes", Err: err}
	}
	after := r.editor.Attributes()

	if before.SyncLocked != after.SyncLocked {
		r.hooks.executeOnLockChange(ctx, r.blockID, after.SyncLocked)
	}
	if err := r.hooks.executeAfterAttributeChange(ctx, r.blockID, after); err != nil {
		r.logger.WarnContext(ctx, "After attribute change hook failed", "error", err)
	}
	return nil
}

// issue starts a featured reference change. Callers hold r.mu.
func (r *Reconciler) issue(ctx context.Context, target MediaID) {
	r.inflight = target
	if err := r.hooks.executeOnFeaturedRequest(ctx, r.documentID, r.blockID, target); err != nil {
		r.logger.WarnContext(ctx, "Featured request hook failed", "error", err)
	}

	r.addPending()
	go r.awaitAck(context.WithoutCancel(ctx), target)
}

func (r *Reconciler) awaitAck(ctx context.Context, target MediaID) {
	defer r.donePending()

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timeout <-chan time.Time
	if r.ackTimeout > 0 {
		timer := time.NewTimer(r.ackTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	done := make(chan error, 1)
	go func() {
		done <- r.store.SetFeaturedReference(callCtx, r.documentID, target)
	}()

	var err error
	select {
	case err = <-done:
	case <-timeout:
		// A write that lands after this point must not overwrite what the
		// block converges to next.
		cancel()
		err = fmt.Errorf("%w after %s", ErrAcknowledgmentTimeout, r.ackTimeout)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.acknowledge(ctx, target, err)
}

// acknowledge handles the outcome of a featured reference change. Callers hold r.mu.
func (r *Reconciler) acknowledge(ctx context.Context, target MediaID, ackErr error) {
	r.inflight = 0

	if ackErr != nil {
		r.logger.ErrorContext(ctx, "Featured image update failed", "media_id", target, "error", ackErr)
		r.hooks.executeOnError(ctx, "set_featured_reference", ackErr)
		r.notifier.ReportUserError(ctx, messageFeaturedUpdateFailed, Notice{
			ID:         NoticeFeaturedUpdateFailed,
			Kind:       NoticeKindSnackbar,
			DocumentID: r.documentID,
			BlockID:    r.blockID,
		})
	}

	if next := r.deferred; next != 0 {
		r.deferred = 0
		if next != target || ackErr != nil {
			r.issue(ctx, next)
			return
		}
	}

	if err := r.apply(ctx, AttributeChange{SyncLocked: ptr(false)}); err != nil {
		r.logger.ErrorContext(ctx, "Failed to clear sync lock", "error", err)
		return
	}
	_ = r.settle(ctx)
}
