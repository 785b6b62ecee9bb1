package featuredsync

import (
	"context"
	"log/slog"
)

// Hook system lets callers subscribe to reconciler events without modifying core code.
// Hooks are called at specific points of a block's sync lifecycle.

// Hooks defines all available sync hooks
type Hooks struct {
	// Attribute write hooks
	BeforeAttributeChange []BeforeAttributeChangeHook
	AfterAttributeChange  []AfterAttributeChangeHook

	// Featured reference hooks
	OnFeaturedRequest []FeaturedRequestHook

	// Lock hooks
	OnLockChange []LockChangeHook

	// Error hooks
	OnError []ErrorHook
}

// HookContext carries information through the hook chain
type HookContext struct {
	Context   context.Context
	Metadata  map[string]interface{} // Custom metadata passed between hooks
	StopChain bool                   // Set to true to stop processing remaining hooks
}

// NewHookContext creates a new hook context
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{
		Context:  ctx,
		Metadata: make(map[string]interface{}),
	}
}

// BeforeAttributeChangeHook is called before a write is applied to a block.
// Returning an error cancels the write.
type BeforeAttributeChangeHook func(hctx *HookContext, blockID BlockID, change *AttributeChange) error

// AfterAttributeChangeHook is called after a write is applied
type AfterAttributeChangeHook func(hctx *HookContext, blockID BlockID, attrs BlockAttributes) error

// FeaturedRequestHook is called when a block issues a featured reference change
type FeaturedRequestHook func(hctx *HookContext, documentID DocumentID, blockID BlockID, mediaID MediaID) error

// LockChangeHook is called when a block's sync lock is set or cleared
type LockChangeHook func(hctx *HookContext, blockID BlockID, locked bool)

// ErrorHook is called when an error occurs
type ErrorHook func(hctx *HookContext, operation string, err error)

// Combine merges several hook sets into one, preserving order.
func Combine(sets ...*Hooks) *Hooks {
	out := &Hooks{}
	for _, h := range sets {
		if h == nil {
			continue
		}
		out.BeforeAttributeChange = append(out.BeforeAttributeChange, h.BeforeAttributeChange...)
		out.AfterAttributeChange = append(out.AfterAttributeChange, h.AfterAttributeChange...)
		out.OnFeaturedRequest = append(out.OnFeaturedRequest, h.OnFeaturedRequest...)
		out.OnLockChange = append(out.OnLockChange, h.OnLockChange...)
		out.OnError = append(out.OnError, h.OnError...)
	}
	return out
}

func (h *Hooks) executeBeforeAttributeChange(ctx context.Context, blockID BlockID, change *AttributeChange) error {
	if h == nil || len(h.BeforeAttributeChange) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.BeforeAttributeChange {
		if err := hook(hctx, blockID, change); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterAttributeChange(ctx context.Context, blockID BlockID, attrs BlockAttributes) error {
	if h == nil || len(h.AfterAttributeChange) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterAttributeChange {
		if err := hook(hctx, blockID, attrs); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeOnFeaturedRequest(ctx context.Context, documentID DocumentID, blockID BlockID, mediaID MediaID) error {
	if h == nil || len(h.OnFeaturedRequest) == 0 {
		return nil
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.OnFeaturedRequest {
		if err := hook(hctx, documentID, blockID, mediaID); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeOnLockChange(ctx context.Context, blockID BlockID, locked bool) {
	if h == nil || len(h.OnLockChange) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.OnLockChange {
		hook(hctx, blockID, locked)
		if hctx.StopChain {
			break
		}
	}
}

func (h *Hooks) executeOnError(ctx context.Context, operation string, err error) {
	if h == nil || len(h.OnError) == 0 {
		return
	}

	hctx := NewHookContext(ctx)
	for _, hook := range h.OnError {
		hook(hctx, operation, err)
		if hctx.StopChain {
			break
		}
	}
}

// LoggingHook logs writes, featured requests, lock changes and errors
func LoggingHook(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		AfterAttributeChange: []AfterAttributeChangeHook{
			func(hctx *HookContext, blockID BlockID, attrs BlockAttributes) error {
				logger.DebugContext(hctx.Context, "Block attributes updated", "block_id", blockID, "media_id", attrs.ID, "state", StateOf(attrs).String())
				return nil
			},
		},
		OnFeaturedRequest: []FeaturedRequestHook{
			func(hctx *HookContext, documentID DocumentID, blockID BlockID, mediaID MediaID) error {
				logger.InfoContext(hctx.Context, "Featured image change requested", "document_id", documentID, "block_id", blockID, "media_id", mediaID)
				return nil
			},
		},
		OnLockChange: []LockChangeHook{
			func(hctx *HookContext, blockID BlockID, locked bool) {
				logger.DebugContext(hctx.Context, "Sync lock changed", "block_id", blockID, "locked", locked)
			},
		},
		OnError: []ErrorHook{
			func(hctx *HookContext, operation string, err error) {
				logger.ErrorContext(hctx.Context, "Sync error", "operation", operation, "error", err)
			},
		},
	}
}
