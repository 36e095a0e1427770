package inmemdb

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/user"
)

type (
	// DB is a process-local database. Records are stored by value; callers always get copies.
	DB struct {
		user       *userTable
		course     *courseTable
		enrollment *enrollmentTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	courseTable struct {
		table map[string]*course.Course
		mutex sync.RWMutex
	}

	enrollmentTable struct {
		table map[string]*enrollment.Enrollment
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		course:     &courseTable{table: make(map[string]*course.Course)},
		enrollment: &enrollmentTable{table: make(map[string]*enrollment.Enrollment)},
	}
}

func newID() string { return uuid.NewString() }

// comparators map a sortable field name to a three-way comparison.
type comparators[T any] map[string]func(a, b T) int

func sortRecords[T any](records []T, orderings []core.DBOrdering, cmps comparators[T]) {
	if len(orderings) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, ord := range orderings {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			c := cmp(records[i], records[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func paginate[T any](records []T, opts core.QueryOptions) []T {
	if opts.Offset >= len(records) {
		return []T{}
	}
	if opts.Offset > 0 {
		records = records[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}
	return records
}
