package ports

import (
	"context"
	"encoding/json"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
)

// Window is the description handed to the approval surface.
type Window struct {
	Kind      domain.WindowKind
	RequestID uint64
	Request   json.RawMessage
}

// OpenWindow is a window currently presented by the approval surface.
type OpenWindow struct {
	ID string
	Window
}

// WindowManager opens and closes approval surface windows. At most one
// window is open for a given kind and request id.
type WindowManager interface {
	Open(ctx context.Context, w Window) (windowID string, err error)
	Close(windowID string)
	List() []OpenWindow
}

// Indicator is the visible count of requests waiting for a decision.
type Indicator interface {
	SetPending(kind domain.WindowKind, count int)
}
