package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeReceiptDelivery JobType = "receipt_delivery"
	JobTypeExpiryNotice    JobType = "expiry_notice"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ReceiptDeliveryJobPayload carries the sankalp whose receipt must be
// rendered, archived, and sent. The financial state is already committed by
// the time this job exists; delivery retries independently.
type ReceiptDeliveryJobPayload struct {
	SankalpID uint `json:"sankalp_id"`
}

// ToMap converts the payload to a map for storage
func (p ReceiptDeliveryJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"sankalp_id": p.SankalpID,
	}
}

// FromMap creates a payload from a map
func ReceiptDeliveryJobPayloadFromMap(data map[string]interface{}) (*ReceiptDeliveryJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ReceiptDeliveryJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ExpiryNoticeJobPayload carries a user whose payment link lapsed unpaid.
type ExpiryNoticeJobPayload struct {
	UserID      uint   `json:"user_id"`
	SankalpUUID string `json:"sankalp_uuid"`
}

// ToMap converts the payload to a map for storage
func (p ExpiryNoticeJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      p.UserID,
		"sankalp_uuid": p.SankalpUUID,
	}
}

// FromMap creates a payload from a map
func ExpiryNoticeJobPayloadFromMap(data map[string]interface{}) (*ExpiryNoticeJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ExpiryNoticeJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
