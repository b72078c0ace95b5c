package inmemdb

import (
	"sync"

	"github.com/academia/lms/core/headline"
)

type (
	// DB keeps tables in memory. Safe for concurrent use.
	DB struct {
		headlines *headlineTable
	}

	headlineTable struct {
		table map[int]*headline.Headline
		pk    int
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		headlines: &headlineTable{table: make(map[int]*headline.Headline)},
	}
}
