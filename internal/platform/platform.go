package platform

import (
	"context"
	"errors"
)

// ErrBulkUnsupported signals that the platform has no bulk inline-comment
// call. The poster falls back to posting comments one at a time.
var ErrBulkUnsupported = errors.New("bulk inline comments unsupported")

// Comment is a comment as stored by the platform. Body carries any embedded
// markers used for dedup and summary updates.
type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

// InlineComment pairs a rendered comment body with its position.
type InlineComment struct {
	Body     string
	Position Position
}

// API is the surface the poster needs from a platform adapter. Adapters are
// bound to a single target (one PR or MR) at construction time.
type API interface {
	// GetComments returns all existing discussion comments on the target.
	GetComments(ctx context.Context) ([]Comment, error)
	// CreateComment posts a new top-level comment.
	CreateComment(ctx context.Context, body string) error
	// UpdateComment replaces the body of an existing comment.
	UpdateComment(ctx context.Context, id int64, body string) error
	// CreateInlineComment posts one comment at a diff position.
	CreateInlineComment(ctx context.Context, c InlineComment) error
	// CreateBulkInlineComments posts all comments in one call. Adapters
	// without a bulk endpoint return ErrBulkUnsupported.
	CreateBulkInlineComments(ctx context.Context, comments []InlineComment) error
	// AddLabels attaches labels to the target.
	AddLabels(ctx context.Context, labels []string) error
}
