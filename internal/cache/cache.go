// Package cache implements the on-disk, ticket-keyed directory cache.
//
// Each ticket owns one directory below the cache root holding its downloaded
// (and extracted) attachments, a metadata document with the structured
// fields, and a completion marker. Only a directory that carries the marker
// counts as cached: a directory without it is the remains of an interrupted
// download.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/danielolaszy/triage/internal/filesystem"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/pkg/models"
)

const (
	// CompleteMarker is written into a ticket directory once its attachments
	// are downloaded and extracted.
	CompleteMarker = ".complete"
	metadataSuffix = ".metadata.json"
)

// ErrNotCached is returned when a ticket has no complete cache entry.
var ErrNotCached = errors.New("ticket not in cache")

// ErrInvalidKey is returned for keys that cannot name a cache directory.
var ErrInvalidKey = errors.New("invalid ticket key")

// Error describes a failed cache operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// metadata is the flat document persisted per ticket.
type metadata struct {
	OpenShiftVersion   string   `json:"openshift_version"`
	PlatformType       string   `json:"platform_type"`
	OlmOperators       []string `json:"olm_operators"`
	ConfiguredFeatures []string `json:"configured_features"`
}

// DirectoryCache stores ticket entries below a root directory.
type DirectoryCache struct {
	root string
}

// NewDirectoryCache returns a cache rooted at root, creating the directory
// if needed.
func NewDirectoryCache(root string) (*DirectoryCache, error) {
	if root == "" {
		return nil, &Error{Op: "open", Err: errors.New("cache root not set")}
	}
	if err := filesystem.Mkdir(root); err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	return &DirectoryCache{root: root}, nil
}

// Root returns the cache root directory.
func (c *DirectoryCache) Root() string {
	return c.root
}

// Path returns the directory of a ticket entry.
func (c *DirectoryCache) Path(key string) string {
	return filepath.Join(c.root, key)
}

func (c *DirectoryCache) metadataPath(key string) string {
	return filepath.Join(c.Path(key), key+metadataSuffix)
}

func (c *DirectoryCache) markerPath(key string) string {
	return filepath.Join(c.Path(key), CompleteMarker)
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || !filepath.IsLocal(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Exists reports whether key has a complete cache entry. Lookup failures are
// logged and reported as a miss.
func (c *DirectoryCache) Exists(key string) bool {
	if err := validateKey(key); err != nil {
		logging.Warn("cache lookup with invalid key", "ticket", key, "error", err)
		return false
	}
	exists, err := filesystem.Exists(c.markerPath(key))
	if err != nil {
		logging.Warn("error checking cache, treating as not cached",
			"ticket", key,
			"error", err)
		return false
	}
	if exists {
		logging.Debug("ticket found in cache", "ticket", key)
	} else {
		logging.Debug("ticket not found in cache", "ticket", key)
	}
	return exists
}

// Incomplete reports whether key has a directory without a completion
// marker.
func (c *DirectoryCache) Incomplete(key string) bool {
	if validateKey(key) != nil {
		return false
	}
	return filesystem.IsDir(c.Path(key)) && !c.Exists(key)
}

// Claim creates the ticket directory exclusively. It returns false when the
// directory already exists, meaning some other run owns or owned it.
func (c *DirectoryCache) Claim(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &Error{Op: "claim", Key: key, Err: err}
	}
	claimed, err := filesystem.MkdirExclusive(c.Path(key))
	if err != nil {
		return false, &Error{Op: "claim", Key: key, Err: err}
	}
	return claimed, nil
}

// Discard deletes a ticket directory and everything in it.
func (c *DirectoryCache) Discard(key string) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "discard", Key: key, Err: err}
	}
	if err := filesystem.RemoveAll(c.Path(key)); err != nil {
		return &Error{Op: "discard", Key: key, Err: err}
	}
	return nil
}

// Reserved reports whether name is used by the cache itself inside key's
// directory. Hidden names cover the completion marker and extraction staging
// directories.
func (c *DirectoryCache) Reserved(key, name string) bool {
	return strings.HasPrefix(name, ".") || name == key+metadataSuffix
}

// Commit finalizes a claimed entry: the metadata document is written first
// and the completion marker last, so every complete entry has metadata.
func (c *DirectoryCache) Commit(ticket *models.Ticket) error {
	if ticket == nil {
		return &Error{Op: "commit", Err: errors.New("nil ticket")}
	}
	if err := validateKey(ticket.Key); err != nil {
		return &Error{Op: "commit", Key: ticket.Key, Err: err}
	}
	if !filesystem.IsDir(c.Path(ticket.Key)) {
		return &Error{Op: "commit", Key: ticket.Key, Err: filesystem.ErrNotExist}
	}
	if err := c.writeMetadata(ticket); err != nil {
		return &Error{Op: "commit", Key: ticket.Key, Err: err}
	}
	return c.MarkComplete(ticket.Key)
}

// MarkComplete records that key's attachments are fully downloaded and
// extracted.
func (c *DirectoryCache) MarkComplete(key string) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "mark complete", Key: key, Err: err}
	}
	if !filesystem.IsDir(c.Path(key)) {
		return &Error{Op: "mark complete", Key: key, Err: filesystem.ErrNotExist}
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := filesystem.WriteFile(c.markerPath(key), []byte(stamp)); err != nil {
		return &Error{Op: "mark complete", Key: key, Err: err}
	}
	return nil
}

// LoadMetadata returns a ticket populated with the cached structured fields.
// The description and attachments are not part of the cache.
func (c *DirectoryCache) LoadMetadata(key string) (*models.Ticket, error) {
	if !c.Exists(key) {
		return nil, &Error{Op: "load metadata", Key: key, Err: ErrNotCached}
	}

	content, err := filesystem.ReadFile(c.metadataPath(key))
	if err != nil {
		return nil, &Error{Op: "load metadata", Key: key, Err: err}
	}

	var doc metadata
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, &Error{Op: "load metadata", Key: key, Err: fmt.Errorf("decode: %w", err)}
	}

	return &models.Ticket{
		Key:          key,
		Version:      doc.OpenShiftVersion,
		PlatformType: doc.PlatformType,
		Operators:    nonNil(doc.OlmOperators),
		Features:     nonNil(doc.ConfiguredFeatures),
	}, nil
}

// SaveMetadata writes the ticket's structured fields into its cache entry.
// The entry must already exist.
func (c *DirectoryCache) SaveMetadata(ticket *models.Ticket) error {
	if ticket == nil {
		return &Error{Op: "save metadata", Err: errors.New("nil ticket")}
	}
	if !c.Exists(ticket.Key) {
		return &Error{Op: "save metadata", Key: ticket.Key, Err: ErrNotCached}
	}

	if err := c.writeMetadata(ticket); err != nil {
		return &Error{Op: "save metadata", Key: ticket.Key, Err: err}
	}
	return nil
}

func (c *DirectoryCache) writeMetadata(ticket *models.Ticket) error {
	content, err := json.Marshal(metadata{
		OpenShiftVersion:   ticket.Version,
		PlatformType:       ticket.PlatformType,
		OlmOperators:       nonNil(ticket.Operators),
		ConfiguredFeatures: nonNil(ticket.Features),
	})
	if err != nil {
		return err
	}
	return filesystem.WriteFile(c.metadataPath(ticket.Key), content)
}

// CachedIssueIDs lists the keys of all complete cache entries, sorted.
func (c *DirectoryCache) CachedIssueIDs() ([]string, error) {
	entries, err := filesystem.ListDir(c.root)
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}

	var keys []string
	for _, entry := range entries {
		if validateKey(entry) != nil || !filesystem.IsDir(c.Path(entry)) {
			continue
		}
		if c.Exists(entry) {
			keys = append(keys, entry)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
