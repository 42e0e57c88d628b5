package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/services"
)

// SignPrefix is the URL prefix LocalStore hands out for signed downloads.
const SignPrefix = "/storage/v1/object/sign/"

// PublicPrefix is the URL prefix of the reference URL returned by Put. It is
// not served: recordings are private and only reachable through signed URLs.
const PublicPrefix = "/storage/v1/object/public/"

var (
	ErrInvalidKey   = errors.New("invalid object key")
	ErrInvalidToken = errors.New("invalid or expired download token")
)

// LocalStore keeps objects on the local filesystem and signs download URLs
// with short-lived HS256 tokens.
type LocalStore struct {
	root    string
	bucket  string
	baseURL string
	key     []byte
	now     func() time.Time
	logger  *zap.Logger
}

func NewLocalStore(root, bucket, baseURL string, signingKey []byte, logger *zap.Logger) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local storage dir is required")
	}
	if len(signingKey) == 0 {
		return nil, errors.New("signing key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		root:    root,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     signingKey,
		now:     time.Now,
		logger:  logger.Named("storage.local"),
	}, nil
}

// CleanKey rejects keys that are absolute, non-canonical or escape the
// bucket.
func CleanKey(key string) (string, error) {
	if !services.ValidObjectKey(key) {
		return "", ErrInvalidKey
	}
	return key, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (s *LocalStore) filePath(key string) string {
	return filepath.Join(s.root, s.bucket, filepath.FromSlash(key))
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	p := s.filePath(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	s.logger.Debug("object stored", zap.String("key", key), zap.Int("bytes", len(data)), zap.String("content_type", contentType))
	return s.baseURL + PublicPrefix + s.bucket + "/" + escapeKey(key), nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	key, err := CleanKey(key)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(s.filePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object: %w", err)
	}
	return !info.IsDir(), nil
}

func (s *LocalStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		Audience:  jwt.ClaimStrings{s.bucket},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}
	return s.baseURL + SignPrefix + s.bucket + "/" + escapeKey(key) + "?token=" + url.QueryEscape(token), nil
}

func (s *LocalStore) verify(key, raw string) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(s.bucket),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.Subject != key {
		return ErrInvalidToken
	}
	return nil
}

// Handler serves objects addressed by URLs from SignedURL. Mount it at
// SignPrefix.
func (s *LocalStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, SignPrefix)
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket != s.bucket {
			http.NotFound(w, r)
			return
		}
		key, err := CleanKey(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if err := s.verify(key, r.URL.Query().Get("token")); err != nil {
			s.logger.Info("rejected download", zap.String("key", key), zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := os.ReadFile(s.filePath(key))
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.logger.Error("read object", zap.String("key", key), zap.Error(err))
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", ContentTypeFor(key, data))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
		http.ServeContent(w, r, path.Base(key), time.Time{}, bytes.NewReader(data))
	})
}

// ContentTypeFor maps the recording extensions to their media types and
// falls back to sniffing.
func ContentTypeFor(key string, data []byte) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".wav":
		return "audio/wav"
	case ".au":
		return "audio/basic"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	}
	return http.DetectContentType(data)
}
