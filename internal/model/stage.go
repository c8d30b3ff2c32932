package model

import "time"

// StageResult is the uniform outcome of one external stage. Adapters build it
// once and the orchestrator only reads it.
type StageResult[T any] struct {
	Success   bool      `json:"success"`
	Data      T         `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Succeeded builds a successful StageResult.
func Succeeded[T any](data T) StageResult[T] {
	return StageResult[T]{Success: true, Data: data, Timestamp: time.Now().UTC()}
}

// Failed builds a failed StageResult from an error message and kind.
func Failed[T any](msg, kind string) StageResult[T] {
	return StageResult[T]{Error: msg, ErrorKind: kind, Timestamp: time.Now().UTC()}
}

// PipelineState is the per-identifier position of the orchestrator.
type PipelineState string

const (
	StateIdle               PipelineState = "idle"
	StateConsultingRegistry PipelineState = "consulting_registry"
	StateProcessingDocument PipelineState = "processing_document"
	StateLookingUpCompany   PipelineState = "looking_up_company"
	StatePersisting         PipelineState = "persisting"
	StateRegisteringERP     PipelineState = "registering_erp"
	StateCompleted          PipelineState = "completed"
	StateFailed             PipelineState = "failed"
)

// StageStatus is the outcome of one tracked stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageReport records how a single stage went within a run.
type StageReport struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Attempts int            `json:"attempts,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Document is the PDF produced by the registry-query stage.
type Document struct {
	CNPJ            string `json:"cnpj"`
	FilePath        string `json:"file_path"`
	FileName        string `json:"file_name"`
	InvalidDocument bool   `json:"invalid_document,omitempty"`
	Strategy        string `json:"strategy,omitempty"`
}

// CacheEntry remembers the last registry-query attempt for an identifier.
type CacheEntry struct {
	CNPJ        string    `json:"cnpj"`
	FileName    string    `json:"file_name,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	Success     bool      `json:"success"`
	ConsultedAt time.Time `json:"consulted_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Error       string    `json:"error,omitempty"`
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// RegistrationStatus tracks the ERP registration of a company.
type RegistrationStatus string

const (
	RegistrationPending    RegistrationStatus = "pending"
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationExisting   RegistrationStatus = "existing"
	RegistrationFailed     RegistrationStatus = "failed"
	RegistrationSkipped    RegistrationStatus = "skipped"
)

// ERPRegistration is the outcome of the ERP stage.
type ERPRegistration struct {
	CustomerID string             `json:"customer_id,omitempty"`
	Kind       string             `json:"kind,omitempty"`
	Status     RegistrationStatus `json:"status"`
	Note       string             `json:"note,omitempty"`
	Error      string             `json:"error,omitempty"`
}
