package featuredsync

import (
	"context"
	"sync"
	"time"
)

// Panel labels of the sync toggle.
const (
	PanelTitle  = "Synchronize with Featured image"
	ToggleLabel = "Synchronize with Featured image"
)

// SyncPanel describes the inspector panel holding the sync toggle.
type SyncPanel struct {
	Title       string `json:"title"`
	Label       string `json:"label"`
	Checked     bool   `json:"checked"`
	Help        string `json:"help"`
	InitialOpen bool   `json:"initial_open"`
}

// attributeEditor is the plain edit capability: it holds a block and writes
// attribute changes through save, if any.
type attributeEditor struct {
	mu    sync.RWMutex
	block Block
	save  func(ctx context.Context, block *Block) error
}

// NewBlockEditor creates the base edit capability of block. save persists the
// block after every write; nil keeps it in memory only.
func NewBlockEditor(block Block, save func(ctx context.Context, block *Block) error) BlockEditor {
	return &attributeEditor{block: block, save: save}
}

func (e *attributeEditor) Attributes() BlockAttributes {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.block.Attributes
}

func (e *attributeEditor) SetAttributes(ctx context.Context, change AttributeChange) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.block
	next.Attributes = change.Apply(e.block.Attributes)
	next.UpdatedAt = time.Now().UTC()

	if e.save != nil {
		if err := e.save(ctx, &next); err != nil {
			return err
		}
	}
	e.block = next
	return nil
}

// SyncEditor decorates a base edit capability with featured image sync.
// Writes go through the reconciler's interception path.
type SyncEditor struct {
	base       BlockEditor
	reconciler *Reconciler
}

// Decorate wraps base with sync behavior when the block passes the
// eligibility gate, and returns base unchanged otherwise.
func Decorate(ctx context.Context, base BlockEditor, reconciler *Reconciler) (BlockEditor, error) {
	eligible, err := reconciler.IsEligible(ctx)
	if err != nil {
		return base, err
	}
	if !eligible {
		return base, nil
	}
	return &SyncEditor{base: base, reconciler: reconciler}, nil
}

func (e *SyncEditor) Attributes() BlockAttributes {
	return e.base.Attributes()
}

func (e *SyncEditor) SetAttributes(ctx context.Context, change AttributeChange) error {
	return e.reconciler.RequestAttributeChange(ctx, change)
}

// ToggleSync flips the sync toggle.
func (e *SyncEditor) ToggleSync(ctx context.Context) error {
	return e.reconciler.ToggleSync(ctx)
}

// Panel returns the inspector panel of the block.
func (e *SyncEditor) Panel(ctx context.Context) (*SyncPanel, error) {
	status, err := e.reconciler.SyncState(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncPanel{
		Title:       PanelTitle,
		Label:       ToggleLabel,
		Checked:     status.ShouldSync,
		Help:        status.HelpText,
		InitialOpen: true,
	}, nil
}
