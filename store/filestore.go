package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32
)

// KDFParams are the argon2id parameters used to derive the sealing key from
// the passphrase.
type KDFParams struct {
	Time   uint32
	MemKiB uint32
	Par    uint8
}

func (p KDFParams) withDefaults() KDFParams {
	if p.Time == 0 {
		p.Time = 1
	}
	if p.MemKiB == 0 {
		p.MemKiB = 64 * 1024
	}
	if p.Par == 0 {
		p.Par = 4
	}
	return p
}

// FileStore is a Store persisted as a single encrypted blob on disk. The
// whole keyspace is held in memory and flushed with a write-temp-then-rename
// on every mutation, so a crash never leaves a partially written file.
//
// File layout: [16-byte salt][24-byte nonce][secretbox ciphertext].
type FileStore struct {
	path string
	kdf  KDFParams
	salt []byte
	key  [keyLength]byte
	log  zerolog.Logger

	mu   sync.Mutex
	data map[string][]byte
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithLogger sets the logger used for non-fatal store events.
func WithLogger(log zerolog.Logger) FileOption {
	return func(fs *FileStore) { fs.log = log }
}

var _ Store = (*FileStore)(nil)

// OpenFile opens (or creates) the encrypted store at path, deriving the
// sealing key from passphrase with argon2id. Opening an existing file with
// the wrong passphrase fails.
func OpenFile(path, passphrase string, kdf KDFParams, opts ...FileOption) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		kdf:  kdf.withDefaults(),
		log:  zerolog.Nop(),
		data: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(fs)
	}
	if err := fs.load(passphrase); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load(passphrase string) error {
	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		fs.salt = make([]byte, saltLength)
		if _, err := rand.Read(fs.salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		fs.deriveKey(passphrase)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}
	if len(raw) < saltLength+nonceLength+secretbox.Overhead {
		return fmt.Errorf("store file %s is truncated", fs.path)
	}

	fs.salt = raw[:saltLength]
	fs.deriveKey(passphrase)

	var nonce [nonceLength]byte
	copy(nonce[:], raw[saltLength:saltLength+nonceLength])
	plain, ok := secretbox.Open(nil, raw[saltLength+nonceLength:], &nonce, &fs.key)
	if !ok {
		return fmt.Errorf("open store file %s: wrong passphrase or corrupt data", fs.path)
	}
	if err := json.Unmarshal(plain, &fs.data); err != nil {
		return fmt.Errorf("decode store contents: %w", err)
	}
	return nil
}

func (fs *FileStore) deriveKey(passphrase string) {
	derived := argon2.IDKey([]byte(passphrase), fs.salt, fs.kdf.Time, fs.kdf.MemKiB, fs.kdf.Par, keyLength)
	copy(fs.key[:], derived)
}

// persist seals the current map and atomically replaces the store file.
// Caller must hold fs.mu.
func (fs *FileStore) persist() error {
	plain, err := json.Marshal(fs.data)
	if err != nil {
		return fmt.Errorf("encode store contents: %w", err)
	}

	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nil, plain, &nonce, &fs.key)

	blob := make([]byte, 0, saltLength+nonceLength+len(sealed))
	blob = append(blob, fs.salt...)
	blob = append(blob, nonce[:]...)
	blob = append(blob, sealed...)

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".store-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close store file: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

func (fs *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	value, ok := fs.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (fs *FileStore) Set(_ context.Context, key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	fs.data[key] = stored
	return fs.persist()
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.data[key]; !ok {
		return nil
	}
	delete(fs.data, key)
	return fs.persist()
}

func (fs *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	keys := make([]string, 0, len(fs.data))
	for k := range fs.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
