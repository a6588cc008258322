package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Recoverable error values. Handlers compare with errors.Is and convert every
// one of them into a re-render or a fresh session; none of them may crash the
// dispatch path.
var (
	ErrNotFound          = errors.New("catalog entry not found")
	ErrInvalidTransition = errors.New("selection is not reachable from the current node")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is closed")
	ErrSessionBusy       = errors.New("session is busy")
	ErrPermissionDenied  = errors.New("missing permission to manage browsers")
)

// CatalogLoadError is the only fatal error in the taxonomy: without a valid
// catalog the process cannot serve menus and must not start.
type CatalogLoadError struct {
	Catalog  CatalogKind
	Problems []string
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("catalog %s failed to load: %s", e.Catalog, strings.Join(e.Problems, "; "))
}
