package featuredsync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// NoopNotifier drops every notice
type NoopNotifier struct{}

func (NoopNotifier) ReportUserError(ctx context.Context, message string, notice Notice) {}

// LogNotifier writes notices to a structured logger
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) ReportUserError(ctx context.Context, message string, notice Notice) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, message, "notice_id", notice.ID, "kind", notice.Kind, "document_id", notice.DocumentID, "block_id", notice.BlockID)
}

// MultiNotifier fans a notice out to several notifiers
type MultiNotifier []Notifier

func (m MultiNotifier) ReportUserError(ctx context.Context, message string, notice Notice) {
	for _, n := range m {
		if n != nil {
			n.ReportUserError(ctx, message, notice)
		}
	}
}

// NoticeBoard keeps pending notices per document until the UI drains them.
// A notice replaces an earlier one with the same id on the same block.
type NoticeBoard struct {
	mu      sync.Mutex
	notices map[DocumentID][]Notice
	now     func() time.Time
}

// NewNoticeBoard creates an empty notice board
func NewNoticeBoard() *NoticeBoard {
	return &NoticeBoard{
		notices: make(map[DocumentID][]Notice),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (b *NoticeBoard) ReportUserError(ctx context.Context, message string, notice Notice) {
	notice.Message = message
	if notice.Kind == "" {
		notice.Kind = NoticeKindDefault
	}
	notice.CreatedAt = b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	pending := b.notices[notice.DocumentID]
	for i := range pending {
		if pending[i].ID == notice.ID && pending[i].BlockID == notice.BlockID {
			pending[i] = notice
			return
		}
	}
	b.notices[notice.DocumentID] = append(pending, notice)
}

// List returns the pending notices of a document
func (b *NoticeBoard) List(documentID DocumentID) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice(nil), b.notices[documentID]...)
}

// Drain returns and removes the pending notices of a document
func (b *NoticeBoard) Drain(documentID DocumentID) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending := b.notices[documentID]
	delete(b.notices, documentID)
	return pending
}
