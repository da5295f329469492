package pagination

import "gorm.io/gorm"

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Window holds limit/offset parameters for list queries, parsed from
// query strings by the handlers.
type Window struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Normalize fills in the default limit and clamps out-of-range values.
func (w *Window) Normalize() {
	if w.Limit <= 0 {
		w.Limit = defaultLimit
	}
	if w.Limit > maxLimit {
		w.Limit = maxLimit
	}
	if w.Offset < 0 {
		w.Offset = 0
	}
}

// Scope returns a GORM scope applying the window's OFFSET and LIMIT.
func Scope(w Window) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(w.Offset).Limit(w.Limit)
	}
}
