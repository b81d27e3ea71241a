package api

import (
	"errors"
	"fmt"
	"time"
)

// UnlimitedTranslations marks a tier without a monthly cap.
const UnlimitedTranslations = -1

// Subscription tiers known to the service.
const (
	TierFree         = "free"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

type User struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Tier              string `json:"tier"`
	TranslationsUsed  int    `json:"translations_used"`
	TranslationsLimit int    `json:"translations_limit"`
}

// Credentials is the payload of a successful sign-in.
type Credentials struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Document is a server-owned record; the client only caches it.
type Document struct {
	DocID      string    `json:"doc_id"`
	Filename   string    `json:"filename"`
	UploadTime time.Time `json:"upload_time"`
	Status     string    `json:"status"`
}

// Document status values reported by the service.
const (
	DocStatusUploaded    = "uploaded"
	DocStatusQueued      = "queued"
	DocStatusTranslating = "translating"
	DocStatusCompleted   = "completed"
	DocStatusFailed      = "failed"
)

// TranslateResponse is the answer to POST /translate. A non-empty TaskID
// means the job was backgrounded and must be tracked via TaskStatus.
type TranslateResponse struct {
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Background returns true when the server deferred the job to a task.
func (r *TranslateResponse) Background() bool {
	return r.TaskID != ""
}

// TaskStatus is one poll result for a background task.
type TaskStatus struct {
	Progress  int    `json:"progress"`
	Message   string `json:"message"`
	Completed bool   `json:"completed"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// PaymentRedirect describes the external provider hand-off: the page to
// open and the form fields to post to it.
type PaymentRedirect struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// VerifyResponse reflects an applied upgrade.
type VerifyResponse struct {
	Tier string `json:"tier"`
	User User   `json:"user"`
}

// ErrUnauthorized is returned for any authorization-rejected response.
// Callers must abandon the current operation; the forced sign-out hook
// has already fired by the time they see it.
var ErrUnauthorized = errors.New("authentication required")

// APIError is a non-2xx response with the server-provided detail message.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Detail)
}
