package featuredsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	store      DocumentStore
	media      MediaResolver
	notifier   Notifier
	hooks      *Hooks
	logger     *slog.Logger
	ackTimeout time.Duration

	mu          sync.Mutex
	blocks      map[BlockID]*blockEntry
	unsubscribe func()
}

type blockEntry struct {
	editor     BlockEditor
	reconciler *Reconciler
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithDocumentStore replaces the repository-backed document store
func WithDocumentStore(store DocumentStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithMediaSource resolves media through resolver instead of the repository
func WithMediaSource(resolver MediaResolver) Option {
	return func(s *service) {
		s.media = resolver
	}
}

// WithNotifier sets where user-facing notices go
func WithNotifier(notifier Notifier) Option {
	return func(s *service) {
		s.notifier = notifier
	}
}

// WithHooks sets the sync hooks
func WithHooks(hooks *Hooks) Option {
	return func(s *service) {
		s.hooks = hooks
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithAckTimeout bounds how long a featured image change may stay unacknowledged
func WithAckTimeout(timeout time.Duration) Option {
	return func(s *service) {
		s.ackTimeout = timeout
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blocks: make(map[BlockID]*blockEntry),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	if s.store == nil {
		s.store = NewRepositoryStore(s.repository,
			WithMediaResolver(s.media),
			WithStoreLogger(s.logger),
		)
	}

	s.unsubscribe = s.store.Subscribe(s.onDocumentEvent)
	return s, nil
}

// Post type operations

func (s *service) PutPostType(ctx context.Context, req PutPostTypeRequest) (*PostType, error) {
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: post type slug is required", ErrInvalidArgument)
	}
	postType := &PostType{
		Slug:         slug,
		Capabilities: TypeCapabilities{SupportsFeaturedImage: req.SupportsFeaturedImage},
	}
	if err := s.repository.PutPostType(ctx, postType); err != nil {
		return nil, fmt.Errorf("failed to put post type %s: %w", slug, err)
	}
	return postType, nil
}

func (s *service) GetPostType(ctx context.Context, slug string) (*PostType, error) {
	return s.repository.GetPostType(ctx, slug)
}

// Media operations

func (s *service) PutMedia(ctx context.Context, media *MediaObject) error {
	if media == nil || media.ID <= 0 {
		return fmt.Errorf("%w: media id must be positive", ErrInvalidArgument)
	}
	if err := s.repository.PutMedia(ctx, media); err != nil {
		return fmt.Errorf("failed to put media %d: %w", media.ID, err)
	}
	if publisher, ok := s.store.(EventPublisher); ok {
		publisher.Publish(ctx, DocumentEvent{Kind: EventMediaChanged, MediaID: media.ID})
	}
	return nil
}

func (s *service) GetMedia(ctx context.Context, id MediaID) (*MediaObject, error) {
	return s.store.GetMedia(ctx, id)
}

// Document operations

func (s *service) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	if req.PostType == "" {
		return nil, fmt.Errorf("%w: post type is required", ErrInvalidArgument)
	}
	if req.FeaturedMedia < 0 {
		return nil, fmt.Errorf("%w: featured media must not be negative", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	doc := &Document{
		ID:            uuid.New(),
		PostType:      req.PostType,
		FeaturedMedia: req.FeaturedMedia,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repository.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

func (s *service) GetDocument(ctx context.Context, id DocumentID) (*Document, error) {
	return s.repository.GetDocument(ctx, id)
}

func (s *service) SetFeaturedMedia(ctx context.Context, id DocumentID, mediaID MediaID) error {
	if mediaID < 0 {
		return fmt.Errorf("%w: featured media must not be negative", ErrInvalidArgument)
	}
	if _, err := s.repository.GetDocument(ctx, id); err != nil {
		return err
	}
	return s.store.SetFeaturedReference(ctx, id, mediaID)
}

func (s *service) ReconcileDocument(ctx context.Context, id DocumentID) (int, error) {
	blocks, err := s.repository.ListBlocks(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to list blocks of document %s: %w", id, err)
	}

	changed := 0
	var errs []error
	for _, block := range blocks {
		entry, err := s.entry(ctx, block.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ok, err := entry.reconciler.OnFeaturedOrAttributeChanged(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// Block operations

func (s *service) CreateBlock(ctx context.Context, req CreateBlockRequest) (*Block, error) {
	if _, err := s.repository.GetDocument(ctx, req.DocumentID); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = ImageBlockName
	}
	attrs := req.Attributes
	// A new block never has a featured change in flight.
	attrs.SyncLocked = false

	now := time.Now().UTC()
	block := &Block{
		ID:         uuid.New(),
		DocumentID: req.DocumentID,
		Name:       name,
		Attributes: attrs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repository.CreateBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}

	entry, err := s.entry(ctx, block.ID)
	if err != nil {
		return nil, err
	}
	if _, err := entry.reconciler.OnFeaturedOrAttributeChanged(ctx); err != nil {
		s.logger.WarnContext(ctx, "Initial sync pass failed", "block_id", block.ID, "error", err)
	}
	return s.repository.GetBlock(ctx, block.ID)
}

func (s *service) GetBlock(ctx context.Context, id BlockID) (*Block, error) {
	return s.repository.GetBlock(ctx, id)
}

func (s *service) ListBlocks(ctx context.Context, documentID DocumentID) ([]*Block, error) {
	if _, err := s.repository.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.repository.ListBlocks(ctx, documentID)
}

func (s *service) RequestAttributeChange(ctx context.Context, id BlockID, change AttributeChange) (*Block, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	editor, err := Decorate(ctx, entry.editor, entry.reconciler)
	if err != nil {
		return nil, &BlockError{BlockID: id, Op: "request_attribute_change", Err: err}
	}
	if err := editor.SetAttributes(ctx, change); err != nil {
		return nil, err
	}
	return s.repository.GetBlock(ctx, id)
}

func (s *service) ToggleSync(ctx context.Context, id BlockID) (*Block, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	editor, err := Decorate(ctx, entry.editor, entry.reconciler)
	if err != nil {
		return nil, &BlockError{BlockID: id, Op: "toggle_sync", Err: err}
	}
	syncEditor, ok := editor.(*SyncEditor)
	if !ok {
		return nil, &BlockError{BlockID: id, Op: "toggle_sync", Err: ErrIneligible}
	}
	if err := syncEditor.ToggleSync(ctx); err != nil {
		return nil, err
	}
	return s.repository.GetBlock(ctx, id)
}

func (s *service) IsEligible(ctx context.Context, id BlockID) (bool, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return false, err
	}
	return entry.reconciler.IsEligible(ctx)
}

func (s *service) GetSyncState(ctx context.Context, id BlockID) (*BlockSyncInfo, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	info := &BlockSyncInfo{BlockID: id}
	status, err := entry.reconciler.SyncState(ctx)
	if err != nil {
		return nil, err
	}
	info.Status = status

	editor, err := Decorate(ctx, entry.editor, entry.reconciler)
	if err != nil {
		return nil, &BlockError{BlockID: id, Op: "sync_state", Err: err}
	}
	if syncEditor, ok := editor.(*SyncEditor); ok {
		info.Eligible = true
		if info.Panel, err = syncEditor.Panel(ctx); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func (s *service) WaitBlock(ctx context.Context, id BlockID) error {
	s.mu.Lock()
	entry, ok := s.blocks[id]
	s.mu.Unlock()
	if !ok {
		// Not loaded in this process, so nothing of it is in flight.
		return nil
	}
	return entry.reconciler.WaitContext(ctx)
}

func (s *service) Wait() {
	s.mu.Lock()
	entries := make([]*blockEntry, 0, len(s.blocks))
	for _, entry := range s.blocks {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	for _, entry := range entries {
		entry.reconciler.Wait()
	}
}

func (s *service) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Wait()
	return nil
}

// entry returns the loaded editor and reconciler of a block, loading it from
// the repository on first use.
func (s *service) entry(ctx context.Context, id BlockID) (*blockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.blocks[id]; ok {
		return entry, nil
	}

	block, err := s.repository.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}

	// Nothing can be in flight for a block this process has not loaded yet,
	// so a persisted lock is left over from an earlier run.
	if block.Attributes.SyncLocked {
		block.Attributes.SyncLocked = false
		block.UpdatedAt = time.Now().UTC()
		if err := s.repository.UpdateBlock(ctx, block); err != nil {
			return nil, &BlockError{BlockID: id, Op: "clear_stale_lock", Err: err}
		}
		s.logger.InfoContext(ctx, "Cleared stale sync lock", "block_id", id)
	}

	editor := NewBlockEditor(*block, s.repository.UpdateBlock)
	reconciler, err := NewReconciler(ReconcilerConfig{
		DocumentID: block.DocumentID,
		BlockID:    block.ID,
		Name:       block.Name,
		Editor:     editor,
		Store:      s.store,
		Notifier:   s.notifier,
		Hooks:      s.hooks,
		Logger:     s.logger,
		AckTimeout: s.ackTimeout,
	})
	if err != nil {
		return nil, err
	}

	entry := &blockEntry{editor: editor, reconciler: reconciler}
	s.blocks[id] = entry
	return entry, nil
}

func (s *service) onDocumentEvent(ctx context.Context, event DocumentEvent) {
	switch event.Kind {
	case EventFeaturedChanged:
		if _, err := s.ReconcileDocument(ctx, event.DocumentID); err != nil {
			s.logger.WarnContext(ctx, "Document reconcile failed", "document_id", event.DocumentID, "error", err)
		}
	case EventMediaChanged:
		s.mu.Lock()
		entries := make([]*blockEntry, 0, len(s.blocks))
		for _, entry := range s.blocks {
			entries = append(entries, entry)
		}
		s.mu.Unlock()

		for _, entry := range entries {
			if _, err := entry.reconciler.OnFeaturedOrAttributeChanged(ctx); err != nil {
				s.logger.WarnContext(ctx, "Block reconcile failed", "block_id", entry.reconciler.BlockID(), "error", err)
			}
		}
	}
}
