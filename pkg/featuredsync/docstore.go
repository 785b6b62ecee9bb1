package featuredsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// EventPublisher is implemented by stores that can broadcast document events.
type EventPublisher interface {
	Publish(ctx context.Context, event DocumentEvent)
}

// RepositoryStore implements DocumentStore on top of a Repository. Featured
// reference changes made through it are broadcast to subscribers.
type RepositoryStore struct {
	repo    Repository
	media   MediaResolver
	backend string
	logger  *slog.Logger

	mu          sync.RWMutex
	subscribers map[int]func(ctx context.Context, event DocumentEvent)
	nextID      int
}

// StoreOption represents a functional option for configuring a RepositoryStore
type StoreOption func(*RepositoryStore)

// WithMediaResolver resolves media through resolver instead of the repository
func WithMediaResolver(resolver MediaResolver) StoreOption {
	return func(s *RepositoryStore) {
		if resolver != nil {
			s.media = resolver
		}
	}
}

// WithBackendName names the store in errors and logs
func WithBackendName(name string) StoreOption {
	return func(s *RepositoryStore) {
		s.backend = name
	}
}

// WithStoreLogger sets the logger of the store
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *RepositoryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRepositoryStore creates a DocumentStore backed by repo
func NewRepositoryStore(repo Repository, opts ...StoreOption) *RepositoryStore {
	s := &RepositoryStore{
		repo:        repo,
		media:       repositoryMedia{repo: repo},
		backend:     "repository",
		logger:      slog.Default(),
		subscribers: make(map[int]func(ctx context.Context, event DocumentEvent)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RepositoryStore) GetFeaturedReference(ctx context.Context, documentID DocumentID) (MediaID, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return 0, &StoreError{Backend: s.backend, Op: "get_featured_reference", Err: err}
	}
	return doc.FeaturedMedia, nil
}

func (s *RepositoryStore) GetMedia(ctx context.Context, id MediaID) (*MediaObject, error) {
	media, err := s.media.ResolveMedia(ctx, id)
	if err != nil {
		return nil, &StoreError{Backend: s.backend, Op: "get_media", Err: err}
	}
	return media, nil
}

func (s *RepositoryStore) GetCurrentDocumentType(ctx context.Context, documentID DocumentID) (string, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return "", &StoreError{Backend: s.backend, Op: "get_document_type", Err: err}
	}
	return doc.PostType, nil
}

func (s *RepositoryStore) GetTypeCapabilities(ctx context.Context, typeID string) (TypeCapabilities, error) {
	postType, err := s.repo.GetPostType(ctx, typeID)
	if err != nil {
		return TypeCapabilities{}, &StoreError{Backend: s.backend, Op: "get_type_capabilities", Err: err}
	}
	return postType.Capabilities, nil
}

func (s *RepositoryStore) SetFeaturedReference(ctx context.Context, documentID DocumentID, id MediaID) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Backend: s.backend, Op: "set_featured_reference", Err: err}
	}
	if err := s.repo.SetFeaturedMedia(ctx, documentID, id); err != nil {
		return &StoreError{Backend: s.backend, Op: "set_featured_reference", Err: err}
	}
	s.logger.DebugContext(ctx, "Featured reference set", "document_id", documentID, "media_id", id)
	s.Publish(ctx, DocumentEvent{Kind: EventFeaturedChanged, DocumentID: documentID, MediaID: id})
	return nil
}

func (s *RepositoryStore) Subscribe(fn func(ctx context.Context, event DocumentEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers event to every subscriber in registration order.
func (s *RepositoryStore) Publish(ctx context.Context, event DocumentEvent) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(ctx context.Context, event DocumentEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, event)
	}
}

type repositoryMedia struct {
	repo Repository
}

func (m repositoryMedia) ResolveMedia(ctx context.Context, id MediaID) (*MediaObject, error) {
	media, err := m.repo.GetMedia(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve media %d: %w", id, err)
	}
	return media, nil
}
