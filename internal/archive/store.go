package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives inbound webhook payloads to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time

	manifestMu sync.Mutex
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveWebhook stores the raw payload, scrubbed of emails and phone numbers,
// under a date-partitioned key and appends it to the monthly manifest.
func (s *Store) ArchiveWebhook(ctx context.Context, raw []byte, record WebhookRecord) error {
	if !s.Enabled() {
		return nil
	}

	if record.Version == "" {
		record.Version = "1.0"
	}
	if record.RequestID == "" {
		record.RequestID = uuid.NewString()
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = s.now().UTC()
	}
	record.PayloadSHA256 = HashValue(string(raw))
	record.Payload = ScrubPayload(raw)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	at := record.ReceivedAt
	s3Key := fmt.Sprintf("webhooks/v1/by-date/%d/%02d/%02d/%s.json",
		at.Year(), at.Month(), at.Day(), record.RequestID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Debug("archived webhook payload", "request_id", record.RequestID, "lead_id", record.LeadID, "s3_key", s3Key)

	entry := ManifestEntry{
		RequestID:  record.RequestID,
		LeadID:     record.LeadID,
		S3Key:      s3Key,
		Status:     record.Status,
		ArchivedAt: at.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		// the payload itself is already stored
		s.logger.Warn("failed to append manifest", "error", err, "request_id", record.RequestID)
	}
	return nil
}

// manifestAttempts bounds the conditional-write retries of one append.
const manifestAttempts = 5

// AppendManifest appends a JSONL line to the monthly manifest file. S3 has no
// append, so the object is read and rewritten with If-Match on the ETag read
// (If-None-Match when it did not exist). A concurrent writer makes the put fail
// with a precondition error and the append starts over from a fresh read.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now().UTC()
	manifestKey := fmt.Sprintf("webhooks/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	// Writers in this process queue up instead of racing on S3.
	s.manifestMu.Lock()
	defer s.manifestMu.Unlock()

	for attempt := 1; ; attempt++ {
		err := s.appendOnce(ctx, manifestKey, line)
		if !isWriteConflict(err) {
			return err
		}
		if attempt == manifestAttempts {
			return fmt.Errorf("archive: manifest %s still contended after %d attempts: %w", manifestKey, attempt, err)
		}
		s.logger.Debug("manifest changed concurrently, retrying", "key", manifestKey, "attempt", attempt)
	}
}

func (s *Store) appendOnce(ctx context.Context, manifestKey string, line []byte) error {
	var (
		existing []byte
		etag     *string
	)
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
		etag = getResp.ETag
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	put := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	}
	if etag != nil {
		put.IfMatch = etag
	} else {
		put.IfNoneMatch = aws.String("*")
	}
	if _, err := s.s3Client.PutObject(ctx, put); err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// isWriteConflict reports a failed If-Match/If-None-Match precondition.
func isWriteConflict(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
