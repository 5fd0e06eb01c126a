// Package blob stores screenshot objects in a gocloud.dev bucket and issues
// time-limited signed URLs for them.
//
// The bucket is a fileblob directory at {root}/{bucket}. Keys have the form
// {userID}/{unixMillis}-{base36}.{ext} and are never overwritten.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// MaxUploadSize is the largest accepted object.
const MaxUploadSize = 25 << 20

// DefaultBucket holds trade screenshots.
const DefaultBucket = "screenshots"

// DefaultTTL is the lifetime of signed URLs.
const DefaultTTL = time.Hour

const defaultContentType = "image/png"

// Sentinel errors.
var (
	ErrTooLarge         = errors.New("object exceeds maximum upload size")
	ErrUnsupportedType  = errors.New("content type must be an image")
	ErrEmpty            = errors.New("no file uploaded")
	ErrNotFound         = errors.New("object not found")
	ErrAlreadyExists    = errors.New("object already exists")
	ErrInvalidKey       = errors.New("invalid object key")
	ErrInvalidSignature = errors.New("invalid or expired signature")
)

// Config configures a Store.
type Config struct {
	Root   string
	Bucket string
	// BaseURL is the public origin prefixed to signed URLs.
	BaseURL string
	Secret  string
	TTL     time.Duration
}

// Store is a bucket of screenshot objects.
type Store struct {
	bucket *blob.Bucket
	name   string
	signer fileblob.URLSigner
	ttl    time.Duration
	now    func() time.Time
}

// Object describes a stored object.
type Object struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// New opens the bucket under cfg.Root, creating its directory.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("blob root is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if !validSegment(cfg.Bucket) {
		return nil, fmt.Errorf("invalid bucket name %q", cfg.Bucket)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + SignPrefix + cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	signer := fileblob.NewURLSignerHMAC(base, []byte(cfg.Secret))

	bucket, err := fileblob.OpenBucket(filepath.Join(filepath.Clean(cfg.Root), cfg.Bucket), &fileblob.Options{
		URLSigner: signer,
		CreateDir: true,
		NoTempDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}

	return &Store{
		bucket: bucket,
		name:   cfg.Bucket,
		signer: signer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.name
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Put stores r as a new object owned by userID.
// contentType defaults to image/png; the extension comes from filename.
func (s *Store) Put(ctx context.Context, userID, filename, contentType string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if !validSegment(userID) {
		return Object{}, fmt.Errorf("%w: user id", ErrInvalidKey)
	}
	if r == nil {
		return Object{}, ErrEmpty
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return Object{}, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	key := NewKey(userID, filename, s.now())
	size, err := s.writeNew(ctx, key, mediaType, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return Object{}, err
	}
	return Object{Bucket: s.name, Key: key, ContentType: mediaType, Size: size}, nil
}

// writeNew copies src into a new object at key. Oversized or empty input
// aborts the write so nothing becomes visible.
func (s *Store) writeNew(ctx context.Context, key, contentType string, src io.Reader) (int64, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("check object: %w", err)
	}
	if exists {
		return 0, ErrAlreadyExists
	}

	wctx, abort := context.WithCancel(ctx)
	defer abort()
	w, err := s.bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("create object: %w", err)
	}

	n, err := io.Copy(w, src)
	switch {
	case err != nil:
		err = fmt.Errorf("write object: %w", err)
	case n > MaxUploadSize:
		err = ErrTooLarge
	case n == 0:
		err = ErrEmpty
	}
	if err != nil {
		abort()
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("finalize object: %w", err)
	}
	return n, nil
}

// Info describes an open object.
type Info struct {
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Open returns a reader for key. The reader supports seeking.
func (s *Store) Open(ctx context.Context, key string) (*blob.Reader, Info, error) {
	if err := validKey(key); err != nil {
		return nil, Info{}, err
	}
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, fmt.Errorf("open object: %w", err)
	}

	ct := r.ContentType()
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(key))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return r, Info{ContentType: ct, Size: r.Size(), ModTime: r.ModTime()}, nil
}

// validKey rejects keys that are not clean slash-separated segments.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") || path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if !validSegment(seg) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// NewKey builds {userID}/{unixMillis}-{base36}.{ext}. The extension is the
// lower-cased suffix of filename, or png.
func NewKey(userID, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s.%s", userID, now.UnixMilli(), randomBase36(), extension(filename))
}

func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return "png"
	}
	ext := strings.ToLower(filename[i+1:])
	if ext == "attrs" {
		return "png"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "png"
		}
	}
	return ext
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." || len(s) > 255 {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

func randomBase36() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 36)
}
