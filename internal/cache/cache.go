// Package cache is a content-addressed, fingerprint-keyed store for
// generated mini-summaries. One JSON file per logical key lives under
// .whatsnew/cache/ inside the target repository; a matching fingerprint is
// a hit and the generator is never invoked, anything else regenerates and
// overwrites. Writes are temp-file-then-rename so a reader never observes a
// partial entry, and a per-key mutex keeps concurrent map workers from
// interleaving writes on one key.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// warnLogger receives corrupt-entry notices. Defaults to a no-op.
var warnLogger func(format string, args ...any)

// SetWarnLogger configures where cache corruption is reported.
func SetWarnLogger(logger func(format string, args ...any)) {
	warnLogger = logger
}

func logWarn(format string, args ...any) {
	if warnLogger != nil {
		warnLogger(format, args...)
	}
}

// Entry is one cached summarization result.
type Entry struct {
	InputFingerprint string `json:"input_fingerprint"`
	MiniSummary      string `json:"mini_summary"`
	Model            string `json:"model,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// Generated is what a generator must yield: a non-empty summary payload
// and an optional model identifier.
type Generated struct {
	MiniSummary string
	Model       string
}

// GeneratorFunc produces a fresh summary when the cache cannot serve one.
type GeneratorFunc func() (Generated, error)

// Store persists entries under <repoRoot>/.whatsnew/cache.
type Store struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates (if needed) the cache directory scoped to repoRoot.
func NewStore(repoRoot string) (*Store, error) {
	dir := filepath.Join(repoRoot, ".whatsnew", "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &Store{
		dir:   dir,
		now:   func() time.Time { return time.Now().UTC() },
		locks: map[string]*sync.Mutex{},
	}, nil
}

// SetClock overrides the timestamp source (used in tests).
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// GetOrGenerate returns the cached entry for key when its fingerprint
// matches the canonical serialization of input; otherwise it invokes the
// generator, stores the result (replacing any prior entry for the key),
// and returns it. An empty summary from the generator is a hard failure.
func (s *Store) GetOrGenerate(key string, input any, generator GeneratorFunc) (Entry, error) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	fingerprint, err := Fingerprint(input)
	if err != nil {
		return Entry{}, fmt.Errorf("fingerprinting input for %s: %w", key, err)
	}

	if existing, ok := s.readEntry(key); ok && existing.InputFingerprint == fingerprint {
		return existing, nil
	}

	generated, err := generator()
	if err != nil {
		return Entry{}, err
	}
	if generated.MiniSummary == "" {
		return Entry{}, fmt.Errorf("generator for %s returned an empty mini-summary", key)
	}

	entry := Entry{
		InputFingerprint: fingerprint,
		MiniSummary:      generated.MiniSummary,
		Model:            generated.Model,
		Timestamp:        s.now().Format(time.RFC3339),
	}
	if err := s.writeEntry(key, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Invalidate removes the entry for key if present. Removing an absent
// entry is a no-op.
func (s *Store) Invalidate(key string) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.pathForKey(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("invalidating cache entry %s: %w", key, err)
	}
	return nil
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// readEntry returns the stored entry, treating missing or corrupt files as
// a miss.
func (s *Store) readEntry(key string) (Entry, bool) {
	data, err := os.ReadFile(s.pathForKey(key))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logWarn("corrupt cache entry for %s treated as miss: %v", key, err)
		return Entry{}, false
	}
	return entry, true
}

// writeEntry persists atomically: write a temp file, then rename over the
// final path.
func (s *Store) writeEntry(key string, entry Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	final := s.pathForKey(key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache entry %s: %w", key, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing cache entry %s: %w", key, err)
	}
	return nil
}

// pathForKey maps a logical key (commit:<sha>, pr:<n>) to its file.
// Path separators in keys are flattened so entries stay inside the cache
// directory.
func (s *Store) pathForKey(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	if !strings.HasSuffix(safe, ".json") {
		safe += ".json"
	}
	return filepath.Join(s.dir, safe)
}

// Fingerprint hashes a canonical serialization of input: JSON with sorted
// object keys and no incidental whitespace.
func Fingerprint(input any) (string, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	// Round-trip through a generic value: encoding/json emits map keys in
	// sorted order, which canonicalizes the payload.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
