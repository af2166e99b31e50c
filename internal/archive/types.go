package archive

import (
	"encoding/json"
	"time"
)

// Webhook archive outcomes.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// WebhookRecord is one inbound lead webhook archived to S3 for mapping audits.
type WebhookRecord struct {
	Version       string          `json:"version"` // "1.0"
	RequestID     string          `json:"request_id"`
	LeadID        string          `json:"lead_id,omitempty"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
	PayloadSHA256 string          `json:"payload_sha256"`
	Payload       json.RawMessage `json:"payload"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	RequestID  string `json:"request_id"`
	LeadID     string `json:"lead_id,omitempty"`
	S3Key      string `json:"s3_key"`
	Status     string `json:"status"`
	ArchivedAt string `json:"archived_at"`
}
