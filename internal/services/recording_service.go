package services

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultSignedURLTTL = 60 * time.Second

type UploadRequest struct {
	UserID      string
	QuestionID  int
	ContentType string
	Data        []byte
}

// DownloadRequest names the object to sign. The first non-empty field wins:
// FilePath (object key), RecordingID, then AudioURL.
type DownloadRequest struct {
	FilePath    string
	RecordingID string
	AudioURL    string
}

type RecordingService struct {
	store     RecordingStore
	blobs     BlobStore
	bucket    string
	questions int
	signTTL   time.Duration
	now       func() time.Time
	idGen     func() string
	logger    *zap.Logger
}

func NewRecordingService(store RecordingStore, blobs BlobStore, bucket string, signTTL time.Duration, logger *zap.Logger) *RecordingService {
	if signTTL <= 0 {
		signTTL = DefaultSignedURLTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingService{
		store:     store,
		blobs:     blobs,
		bucket:    bucket,
		questions: QuestionCount,
		signTTL:   signTTL,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		logger:    logger,
	}
}

func (s *RecordingService) List(ctx context.Context) ([]*Recording, error) {
	rs, err := s.store.ListRecordings(ctx)
	if err != nil {
		s.logger.Error("fetch recordings", zap.Error(err))
		return nil, NewStorageError("Failed to fetch recordings")
	}
	if rs == nil {
		rs = []*Recording{}
	}
	return rs, nil
}

// Upload stores one answer. An empty payload is accepted and stored as a
// zero-byte object.
func (s *RecordingService) Upload(ctx context.Context, req UploadRequest) (*Recording, error) {
	if _, err := uuid.Parse(req.UserID); err != nil {
		return nil, NewInvalidError("user_id must be a uuid")
	}
	if req.QuestionID < 0 || req.QuestionID > s.questions {
		return nil, NewInvalidError(fmt.Sprintf("question_id must be between 0 and %d", s.questions))
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}
	now := s.now()
	key := fmt.Sprintf("%s/%d-%d.%s", req.UserID, req.QuestionID, now.UnixMilli(), extensionFor(req.ContentType))
	publicURL, err := s.blobs.Put(ctx, key, req.ContentType, req.Data)
	if err != nil {
		s.logger.Error("store recording blob", zap.String("key", key), zap.Error(err))
		return nil, NewStorageError("Failed to store recording")
	}
	rec := &Recording{
		ID:          s.idGen(),
		UserID:      req.UserID,
		QuestionID:  req.QuestionID,
		ObjectKey:   key,
		AudioURL:    publicURL,
		ContentType: req.ContentType,
		SizeBytes:   int64(len(req.Data)),
		CreatedAt:   now,
	}
	if err := s.store.InsertRecording(ctx, rec); err != nil {
		s.logger.Error("insert recording", zap.String("key", key), zap.Error(err))
		return nil, NewStorageError("Failed to save recording")
	}
	return rec, nil
}

// SignDownload issues a short-lived URL for a stored object. The signing
// credential bypasses the bucket's access policy.
func (s *RecordingService) SignDownload(ctx context.Context, req DownloadRequest) (string, error) {
	key, err := s.resolveKey(ctx, req)
	if HasCode(err, ErrorNotFound) {
		// The download shim only distinguishes a bad request from a failed
		// signing; an unknown object is the latter.
		s.logger.Warn("download of unknown recording", zap.Error(err))
		return "", NewStorageError("Failed to create download URL")
	}
	if err != nil {
		return "", err
	}
	if !ValidObjectKey(key) {
		s.logger.Warn("download with invalid object key", zap.String("key", key))
		return "", NewStorageError("Failed to create download URL")
	}
	ok, err := s.blobs.Exists(ctx, key)
	if err != nil {
		s.logger.Error("stat recording blob", zap.String("key", key), zap.Error(err))
		return "", NewStorageError("Failed to create download URL")
	}
	if !ok {
		s.logger.Warn("download of missing object", zap.String("key", key))
		return "", NewStorageError("Failed to create download URL")
	}
	signed, err := s.blobs.SignedURL(ctx, key, s.signTTL)
	if err != nil {
		s.logger.Error("sign recording url", zap.String("key", key), zap.Error(err))
		return "", NewStorageError("Failed to create download URL")
	}
	if signed == "" {
		return "", NewStorageError("No signed URL generated")
	}
	return signed, nil
}

func (s *RecordingService) resolveKey(ctx context.Context, req DownloadRequest) (string, error) {
	switch {
	case strings.TrimSpace(req.FilePath) != "":
		return strings.TrimSpace(req.FilePath), nil
	case strings.TrimSpace(req.RecordingID) != "":
		rec, err := s.store.GetRecording(ctx, strings.TrimSpace(req.RecordingID))
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", NewNotFoundError("Recording not found")
		}
		return rec.ObjectKey, nil
	case strings.TrimSpace(req.AudioURL) != "":
		key, err := ObjectKeyFromURL(req.AudioURL, s.bucket)
		if err != nil {
			return "", NewNotFoundError(err.Error())
		}
		return key, nil
	}
	return "", NewInvalidError("File path is required")
}

// ObjectKeyFromURL recovers the object key from a public or signed object URL
// by taking the path segments after the bucket name. Rows written by Upload
// carry the key directly; this exists for URLs stored before that.
func ObjectKeyFromURL(raw, bucket string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid audio url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == bucket && i+1 < len(parts) {
			return strings.Join(parts[i+1:], "/"), nil
		}
	}
	return "", fmt.Errorf("audio url has no %q segment", bucket)
}

// ValidObjectKey reports whether key is a canonical relative object key that
// stays inside its bucket. Names that merely start with dots are allowed.
func ValidObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	clean := path.Clean(key)
	return clean == key && clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

func extensionFor(contentType string) string {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/basic", "audio/x-alaw-basic":
		return "au"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4":
		return "m4a"
	}
	return "bin"
}
