package shared

// Filter carries paging, ordering and free-text search for list queries.
// Repositories whitelist OrderBy; a zero Page or PageSize lists everything.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}
