package storage

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// PebbleStorage backs Storage with a pebble.DB, the way chotki backs its
// object log with one (chotki.go's Open/Create).
type PebbleStorage struct {
	db *pebble.DB
}

var WriteOptions = pebble.WriteOptions{Sync: false}

func OpenPebble(dir string) (*PebbleStorage, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "storage: open %s", dir)
	}
	return &PebbleStorage{db: db}, nil
}

func (p *PebbleStorage) Close() error {
	return p.db.Close()
}

func (p *PebbleStorage) Read(ctx context.Context, key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: read")
	}
	out := append([]byte(nil), val...)
	if cerr := closer.Close(); cerr != nil {
		return nil, errors.Wrap(cerr, "storage: read close")
	}
	return out, nil
}

func (p *PebbleStorage) Write(ctx context.Context, key, value []byte) error {
	if err := p.db.Set(key, value, &WriteOptions); err != nil {
		return errors.Wrap(err, "storage: write")
	}
	return nil
}
