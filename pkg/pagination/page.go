package pagination

// Page wraps one page of rows with the cursor for the next page, if any.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// BuildPage trims a buffered row slice down to the requested limit and
// derives the next cursor from the last visible row. The rows slice must
// have been fetched with LimitWithBuffer.
func BuildPage[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = EncodeCursor(cursorOf(page.Items[limit-1]))
	}
	return page
}
