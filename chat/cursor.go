package chat

// CursorResult pairs a page of results with the continuation cursor.
//
// Cursor conventions: passing an empty cursor to a fetch means "start from
// the beginning"; HasMore reports whether another page exists, so callers
// never need to infer termination from an empty returned cursor.
type CursorResult[T any] struct {
	Items  []T
	Cursor string
	// HasMore is false on the terminal page.
	HasMore bool
}

// SearchDirection orders paginated message traversal by compare timestamp.
type SearchDirection int

const (
	// SearchDescending walks from newer to older messages.
	SearchDescending SearchDirection = iota
	// SearchAscending walks from older to newer messages.
	SearchAscending
)

func (d SearchDirection) String() string {
	if d == SearchAscending {
		return "asc"
	}
	return "desc"
}
