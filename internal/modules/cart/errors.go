package cart

import "errors"

var (
	ErrNotLoaded        = errors.New("cart not loaded")
	ErrInvalidItem      = errors.New("invalid cart item")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	// ErrReplaceRequired means the item belongs to another restaurant; the
	// caller must confirm or cancel the pending replacement.
	ErrReplaceRequired  = errors.New("cart holds items from another restaurant")
	ErrNoPendingReplace = errors.New("no pending cart replacement")
)
