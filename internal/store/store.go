package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/onboard-cli/internal/model"
)

// Store defines the persistence interface for the onboarding pipeline.
type Store interface {
	// SaveConsulta writes one run for one company in a single transaction.
	SaveConsulta(ctx context.Context, in SaveInput) (*SaveResult, error)
	// UpdateRegistration records the ERP outcome for a company.
	UpdateRegistration(ctx context.Context, cnpj string, reg model.ERPRegistration) error
	GetRegistration(ctx context.Context, cnpj string) (*Registration, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// SaveInput is everything persisted for one identifier in one run.
type SaveInput struct {
	Record      model.ConsolidatedRecord
	Operator    string
	Product     string
	TessText    string
	CNPJAJSON   string
	Credits     decimal.Decimal
	ConsultedAt time.Time
}

// SaveResult carries the ids written by SaveConsulta.
type SaveResult struct {
	Protocol          string `json:"protocol"`
	ConsultaID        int64  `json:"consulta_id"`
	EmpresaID         int64  `json:"empresa_id"`
	ConsultaEmpresaID int64  `json:"consulta_empresa_id"`
	EmpresaCreated    bool   `json:"empresa_created"`
}

// Registration is a client_registrations row.
type Registration struct {
	EmpresaID  int64
	CNPJ       string
	Status     model.RegistrationStatus
	CustomerID string
	Kind       string
	Note       string
	Error      string
	Attempts   int
	UpdatedAt  time.Time
}
