package repository

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
)

const deadlineBucket = "deadlines"

type boltDeadlineRepo struct {
	db        *bolt.DB
	keyPrefix string
}

// NewBoltDeadlineRepository makes sure the deadlines bucket exists.
func NewBoltDeadlineRepository(db *bolt.DB, keyPrefix string) (DeadlineRepository, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(deadlineBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &boltDeadlineRepo{
		db:        db,
		keyPrefix: keyPrefix,
	}, nil
}

func (r *boltDeadlineRepo) key(orderNumber string) []byte {
	return []byte(r.keyPrefix + orderNumber)
}

func (r *boltDeadlineRepo) Get(ctx context.Context, orderNumber string) (time.Time, error) {
	var expiresAt time.Time

	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(deadlineBucket)).Get(r.key(orderNumber))
		if len(v) != 8 {
			return ErrNotFound
		}
		expiresAt = time.UnixMilli(int64(binary.BigEndian.Uint64(v)))
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return expiresAt, nil
}

func (r *boltDeadlineRepo) Save(ctx context.Context, orderNumber string, expiresAt time.Time) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(expiresAt.UnixMilli()))

	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(deadlineBucket)).Put(r.key(orderNumber), buf)
	})
}

// Delete of a missing key is a no-op in bolt.
func (r *boltDeadlineRepo) Delete(ctx context.Context, orderNumber string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(deadlineBucket)).Delete(r.key(orderNumber))
	})
}
