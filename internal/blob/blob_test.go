package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/driver"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		Root:    t.TempDir(),
		BaseURL: "https://app.example.com/",
		Secret:  "signing-secret",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var keyPattern = regexp.MustCompile(`^user_1/\d+-[0-9a-z]+\.(png|jpg)$`)

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{Secret: "s"})
	assert.Error(t, err)
	_, err = New(Config{Root: t.TempDir()})
	assert.Error(t, err)
	_, err = New(Config{Root: t.TempDir(), Secret: "s", Bucket: "../up"})
	assert.Error(t, err)

	s, err := New(Config{Root: t.TempDir(), Secret: "s"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, DefaultBucket, s.Bucket())
	assert.Equal(t, DefaultTTL, s.ttl)
}

func TestNewKey(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)

	assert.Regexp(t, `^u/1700000000123-[0-9a-z]+\.jpg$`, NewKey("u", "Chart.JPG", now))
	assert.Regexp(t, `\.png$`, NewKey("u", "noext", now))
	assert.Regexp(t, `\.png$`, NewKey("u", "trailing.", now))
	assert.Regexp(t, `\.png$`, NewKey("u", "weird.p$g", now))
	assert.Regexp(t, `\.png$`, NewKey("u", "sidecar.attrs", now))
	assert.NotEqual(t, NewKey("u", "a.png", now), NewKey("u", "a.png", now))
}

func TestPut_AndOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	payload := []byte("\x89PNG fake image bytes")

	obj, err := s.Put(ctx, "user_1", "shot.png", "", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Regexp(t, keyPattern, obj.Key)
	assert.Equal(t, DefaultBucket, obj.Bucket)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, int64(len(payload)), obj.Size)

	r, info, err := s.Open(ctx, obj.Key)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, int64(len(payload)), info.Size)

	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)
}

func TestPut_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "user_1", "a.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Put(ctx, "user_1", "a.png", "image/png", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = s.Put(ctx, "user_1", "a.png", "image/png", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = s.Put(ctx, "../x", "a.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	big := io.LimitReader(zeroReader{}, MaxUploadSize+1)
	_, err = s.Put(ctx, "user_1", "big.png", "image/png", big)
	assert.ErrorIs(t, err, ErrTooLarge)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Put(cancelled, "user_1", "a.png", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)

	var keys []string
	iter := s.bucket.List(nil)
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		keys = append(keys, obj.Key)
	}
	assert.Empty(t, keys, "rejected uploads leave no objects")
}

func TestPut_NeverOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.writeNew(ctx, "user_1/existing.png", "image/png", strings.NewReader("original"))
	require.NoError(t, err)

	_, err = s.writeNew(ctx, "user_1/existing.png", "image/png", strings.NewReader("replacement"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	data, err := s.bucket.ReadAll(ctx, "user_1/existing.png")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestOpen_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "../secret", "/etc/passwd", "a/../../b", "a\\b", "a//b"} {
		_, _, err := s.Open(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	_, _, err := s.Open(ctx, "user_1/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignedURL_KeyFromURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw, err := s.SignedURL(ctx, "user_1/1-abc.png", 0)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", u.Host)
	assert.Equal(t, "/storage/v1/object/sign/screenshots", u.Path)
	assert.Equal(t, "user_1/1-abc.png", u.Query().Get("obj"))
	assert.NotEmpty(t, u.Query().Get("signature"))

	key, err := s.KeyFromURL(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "user_1/1-abc.png", key)

	tampered := *u
	q := u.Query()
	q.Set("obj", "user_2/1-abc.png")
	tampered.RawQuery = q.Encode()
	_, err = s.KeyFromURL(ctx, &tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	expired, err := s.signer.URLFromKey(ctx, "user_1/1-abc.png", &driver.SignedURLOptions{
		Expiry: -time.Minute,
		Method: http.MethodGet,
	})
	require.NoError(t, err)
	_, err = s.KeyFromURL(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidSignature, "expired")

	_, err = s.SignedURL(ctx, "../x", 0)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestReference(t *testing.T) {
	s := newTestStore(t)
	signed, err := s.SignedURL(context.Background(), "user_1/1-abc.png", 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "empty", value: "  ", want: ""},
		{name: "own key", value: "user_1/1-abc.png", want: "user_1/1-abc.png"},
		{name: "own key with slash", value: "/user_1/1-abc.png", want: "user_1/1-abc.png"},
		{name: "own signed url", value: signed, want: "user_1/1-abc.png"},
		{name: "legacy signed path", value: "https://xyz.supabase.co/storage/v1/object/sign/screenshots/user_1/1-abc.png?token=old", want: "user_1/1-abc.png"},
		{name: "external url", value: "https://cdn.example.com/a.png", want: "https://cdn.example.com/a.png"},
		{name: "other bucket", value: "https://xyz.supabase.co/storage/v1/object/sign/avatars/user_2/me.png?token=t", want: "https://xyz.supabase.co/storage/v1/object/sign/avatars/user_2/me.png?token=t"},
		{name: "another user's key", value: "user_2/1-abc.png", wantErr: true},
		{name: "prefix is not ownership", value: "user_10/1-abc.png", wantErr: true},
		{name: "traversal", value: "user_1/../user_2/1-abc.png", wantErr: true},
		{name: "malformed signed path", value: "https://xyz.supabase.co/storage/v1/object/sign/screenshots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Reference("user_1", tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const signedPrefix = "https://app.example.com/storage/v1/object/sign/screenshots?"

	assert.Equal(t, "", s.Resolve(ctx, "user_1", ""))
	assert.Equal(t, "https://cdn.example.com/a.png", s.Resolve(ctx, "user_1", "https://cdn.example.com/a.png"))

	fromKey := s.Resolve(ctx, "user_1", "user_1/1-abc.png")
	require.True(t, strings.HasPrefix(fromKey, signedPrefix), fromKey)
	u, err := url.Parse(fromKey)
	require.NoError(t, err)
	assert.Equal(t, "user_1/1-abc.png", u.Query().Get("obj"))
	assert.NotEmpty(t, u.Query().Get("signature"))

	legacy := "https://xyz.supabase.co/storage/v1/object/sign/screenshots/user_1/1-abc.png?token=old"
	resigned := s.Resolve(ctx, "user_1", legacy)
	assert.True(t, strings.HasPrefix(resigned, signedPrefix), resigned)

	t.Run("other owners resolve to nothing", func(t *testing.T) {
		assert.Equal(t, "", s.Resolve(ctx, "user_2", "user_1/1-abc.png"))
		assert.Equal(t, "", s.Resolve(ctx, "user_2", legacy))
		assert.Equal(t, "", s.Resolve(ctx, "user_2", fromKey))
		assert.Equal(t, "", s.Resolve(ctx, "", "user_1/1-abc.png"))
	})

	assert.Equal(t, "", s.Resolve(ctx, "user_1", "https://xyz.supabase.co/storage/v1/object/sign/screenshots"))
	assert.Equal(t, "", s.Resolve(ctx, "user_1", "../etc"))
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
