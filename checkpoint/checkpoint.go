// Package checkpoint keeps partially rendered images in a badger key-value
// store so that interrupted renders can pick up where they stopped.
package checkpoint

import (
	"encoding/binary"
	"fmt"

	"glint/rgbimage"

	"github.com/dgraph-io/badger"
	"golang.org/x/xerrors"
)

// Key prefixes that denote different tables in the key-value store.
const (
	KeyTypeImage uint32 = 0
)

func ImageKey(name string) []byte {
	key := make([]byte, 4+len(name))
	binary.BigEndian.PutUint32(key[0:4], KeyTypeImage)
	copy(key[4:], name)
	return key
}

func ImageKeyPrefixAllImage() []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key[0:4], KeyTypeImage)
	return key
}

func DecodeImageKey(key []byte) (string, error) {
	if len(key) < 4 {
		return "", xerrors.Errorf("key has wrong length; got %d, want at least 4", len(key))
	}
	if kt := binary.BigEndian.Uint32(key[0:4]); kt != KeyTypeImage {
		return "", xerrors.Errorf("key has type %d, want %d", kt, KeyTypeImage)
	}
	return string(key[4:]), nil
}

// CorruptError reports a stored value that could not be decoded.
type CorruptError struct {
	Key string

	inner error
	frame xerrors.Frame
}

func newCorruptError(key string, inner error) *CorruptError {
	return &CorruptError{
		Key:   key,
		inner: inner,
		frame: xerrors.Caller(1),
	}
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("checkpoint %q is corrupt: %v", e.Key, e.inner)
}

func (e *CorruptError) Format(f fmt.State, c rune) { // implements fmt.Formatter
	xerrors.FormatError(e, f, c)
}

func (e *CorruptError) FormatError(p xerrors.Printer) error { // implements xerrors.Formatter
	p.Print(fmt.Sprintf("checkpoint %q is corrupt", e.Key))
	if p.Detail() {
		e.frame.Format(p)
	}
	return e.inner
}

func (e *CorruptError) Unwrap() error {
	return e.inner
}

type Store struct {
	DB *badger.DB
}

// Open opens (creating if needed) the store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, xerrors.Errorf("while opening badger kv dir: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if err := s.DB.Close(); err != nil {
		return xerrors.Errorf("while closing badger kv dir: %w", err)
	}
	return nil
}

// Put replaces the image stored under name.
func (s *Store) Put(name string, img *rgbimage.RGBImage) error {
	data, err := img.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("while marshaling image: %w", err)
	}

	err = s.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(ImageKey(name), data)
	})
	if err != nil {
		return xerrors.Errorf("while writing checkpoint %q: %w", name, err)
	}
	return nil
}

// Get returns the image stored under name.  The second return is false if
// there is none.
func (s *Store) Get(name string) (*rgbimage.RGBImage, bool, error) {
	var data []byte
	err := s.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ImageKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if xerrors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, xerrors.Errorf("while reading checkpoint %q: %w", name, err)
	}

	img := &rgbimage.RGBImage{}
	if err := img.UnmarshalBinary(data); err != nil {
		return nil, false, newCorruptError(name, err)
	}
	return img, true, nil
}

// Delete removes the image stored under name.  Deleting a missing image is not
// an error.
func (s *Store) Delete(name string) error {
	err := s.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete(ImageKey(name))
	})
	if err != nil {
		return xerrors.Errorf("while deleting checkpoint %q: %w", name, err)
	}
	return nil
}

// Keys lists the names of all stored images, in key order.
func (s *Store) Keys() ([]string, error) {
	names := []string{}
	err := s.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := ImageKeyPrefixAllImage()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name, err := DecodeImageKey(it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("while listing checkpoints: %w", err)
	}
	return names, nil
}
