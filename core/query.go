package core

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// QueryOptions controls ordering and windowing of repository queries.
// A zero Limit returns every matching record.
type QueryOptions struct {
	Orderings []DBOrdering
	Offset    int
	Limit     int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Options(orderings ...DBOrdering) QueryOptions {
	return QueryOptions{
		Orderings: orderings,
		Offset:    (p.Number - 1) * p.Size,
		Limit:     p.Size,
	}
}

func (p Page) TotalPages(total int) int {
	if p.Size <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}
