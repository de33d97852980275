package client

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

func NewBoltClient(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return db, nil
}
