package storage

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	fileFormatVersion = 1
	fileSaltLength    = 16

	argonTime    uint32 = 1
	argonMemory  uint32 = 32 * 1024
	argonThreads uint8  = 2
)

// ErrBadPassphrase is returned when an encrypted state file cannot be
// opened with the configured passphrase.
var ErrBadPassphrase = errors.New("storage: state file passphrase mismatch")

// FileStore keeps entries in a single JSON document on disk. With a
// passphrase the document body is sealed with XChaCha20-Poly1305 under an
// argon2id-derived key.
//
// Every write replaces the file through a temp file and rename, so a crash
// leaves either the old or the new document.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
	key        []byte
	salt       []byte
	entries    map[string][]byte
	closed     bool
}

type fileEnvelope struct {
	Version int               `json:"v"`
	Salt    []byte            `json:"salt,omitempty"`
	Nonce   []byte            `json:"nonce,omitempty"`
	Sealed  []byte            `json:"sealed,omitempty"`
	Entries map[string][]byte `json:"entries,omitempty"`
}

// OpenFileStore loads path or starts empty when it does not exist. An empty
// passphrase stores entries in clear text.
func OpenFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("storage: file path is required")
	}
	s := &FileStore{
		path:       path,
		passphrase: []byte(passphrase),
		entries:    make(map[string][]byte),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read %s: %w", s.path, err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("storage: decode %s: %w", s.path, err)
	}
	if env.Version != fileFormatVersion {
		return fmt.Errorf("storage: unsupported state file version %d", env.Version)
	}

	if env.Sealed == nil {
		if len(s.passphrase) > 0 && len(env.Entries) > 0 {
			return errors.New("storage: state file is not encrypted but a passphrase is configured")
		}
		if env.Entries != nil {
			s.entries = env.Entries
		}
		return nil
	}

	if len(s.passphrase) == 0 {
		return errors.New("storage: state file is encrypted and no passphrase is configured")
	}
	s.salt = env.Salt
	s.key = deriveKey(s.passphrase, s.salt)
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return err
	}
	plain, err := aead.Open(nil, env.Nonce, env.Sealed, nil)
	if err != nil {
		return ErrBadPassphrase
	}
	if err := json.Unmarshal(plain, &s.entries); err != nil {
		return fmt.Errorf("storage: decode sealed entries: %w", err)
	}
	if s.entries == nil {
		s.entries = make(map[string][]byte)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	v, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

func (s *FileStore) SetMany(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := make(map[string][]byte, len(s.entries)+len(entries))
	for k, v := range s.entries {
		next[k] = v
	}
	for k, v := range entries {
		next[k] = cloneBytes(v)
	}
	if err := s.flush(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := make(map[string][]byte, len(s.entries))
	for k, v := range s.entries {
		next[k] = v
	}
	for _, k := range keys {
		delete(next, k)
	}
	if err := s.flush(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *FileStore) flush(entries map[string][]byte) error {
	env := fileEnvelope{Version: fileFormatVersion}
	if len(s.passphrase) == 0 {
		env.Entries = entries
	} else {
		if s.key == nil {
			s.salt = make([]byte, fileSaltLength)
			if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
				return err
			}
			s.key = deriveKey(s.passphrase, s.salt)
		}
		aead, err := chacha20poly1305.NewX(s.key)
		if err != nil {
			return err
		}
		plain, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return err
		}
		env.Salt = s.salt
		env.Nonce = nonce
		env.Sealed = aead.Seal(nil, nonce, plain, nil)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("storage: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
