package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gocloud.dev/blob"
)

// SignPrefix is the path under which signed objects are served. The bucket
// name follows it; the key travels in the obj query parameter.
const SignPrefix = "/storage/v1/object/sign/"

const signMarker = "/object/sign/"

// SignedURL returns a URL granting read access to key for ttl.
// A non-positive ttl uses the store default.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	signed, err := s.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{Expiry: ttl})
	if err != nil {
		return "", fmt.Errorf("sign object url: %w", err)
	}
	return signed, nil
}

// KeyFromURL returns the key a signed URL grants access to. Only the query
// is inspected, so a request URI is enough.
func (s *Store) KeyFromURL(ctx context.Context, u *url.URL) (string, error) {
	key, err := s.signer.KeyFromURL(ctx, u)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if err := validKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ref classifies a screenshot reference. ours is true when value names an
// object in this store's bucket, either as a bare key or as a signed URL
// from this or another deployment.
func (s *Store) ref(value string) (key string, ours bool) {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" {
		return strings.TrimPrefix(value, "/"), true
	}

	i := strings.Index(u.Path, signMarker)
	if i < 0 {
		return "", false
	}
	rest := u.Path[i+len(signMarker):]
	if obj := u.Query().Get("obj"); obj != "" {
		return obj, strings.Trim(rest, "/") == s.name
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok {
		// Malformed signed paths are treated as ours so they never resolve.
		return "", true
	}
	return key, bucket == s.name
}

// Reference normalizes a screenshot reference submitted by owner for
// storage. Objects in this bucket come back as bare keys and must belong to
// owner; external URLs are kept as given.
func (s *Store) Reference(owner, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	key, ours := s.ref(value)
	if !ours {
		return value, nil
	}
	if err := s.owned(owner, key); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) owned(owner, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if !validSegment(owner) || !strings.HasPrefix(key, owner+"/") {
		return fmt.Errorf("%w: %q is not owned by the caller", ErrInvalidKey, key)
	}
	return nil
}

// Resolve turns a stored screenshot reference into a URL owner can open.
//
//   - "" resolves to "".
//   - A key or signed URL in this bucket is re-signed when the object
//     belongs to owner, and resolves to "" otherwise.
//   - Any other URL is returned unchanged.
func (s *Store) Resolve(ctx context.Context, owner, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	key, ours := s.ref(value)
	if !ours {
		return value
	}
	if s.owned(owner, key) != nil {
		return ""
	}
	signed, err := s.SignedURL(ctx, key, 0)
	if err != nil {
		return ""
	}
	return signed
}
