// Package erp registers consolidated companies as ERP customers.
package erp

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/pkg/atak"
)

// Notes recorded on the registration row.
const (
	NoteExisting = "cliente já cadastrado no ERP"
	NoteUpdated  = "cliente já cadastrado no ERP; cadastro atualizado"
	NoteCreated  = "cliente cadastrado no ERP"
)

// Options configures a Registrar.
type Options struct {
	// CustomerKinds are searched in order; new customers use the first.
	CustomerKinds  []string
	Defaults       Defaults
	UpdateExisting bool

	// Retry governs every Atak call. A zero Service means
	// resilience.DefaultPolicy.
	Retry resilience.Policy
}

// Registrar searches for and creates ERP customers.
type Registrar struct {
	client atak.Client
	opts   Options
	table  *MunicipalTable
	log    *zap.Logger
}

// NewRegistrar builds a Registrar over client. A nil table disables
// municipality codes.
func NewRegistrar(client atak.Client, opts Options, table *MunicipalTable, log *zap.Logger) *Registrar {
	if log == nil {
		log = zap.L()
	}
	if opts.Retry.Service == "" {
		opts.Retry = resilience.DefaultPolicy("atak", "")
	}
	log = log.With(zap.String("component", "erp"))
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = log
	}
	return &Registrar{client: client, opts: opts, table: table, log: log}
}

// callAtak runs fn under the registrar's retry policy. The returned error
// keeps the kind of the last failed attempt.
func callAtak[T any](ctx context.Context, r *Registrar, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p := r.opts.Retry
	p.Operation = op

	var lastErr error
	res := resilience.Call(ctx, p, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil {
			lastErr = err
		}
		return v, err
	})
	if res.Success {
		return res.Data, nil
	}
	var zero T
	if lastErr == nil {
		// Rejected by the breaker before any attempt ran.
		return zero, resilience.NewTransportError("atak", 0, eris.New(res.Error))
	}
	return zero, lastErr
}

// Register ensures rec exists as an ERP customer. An existing customer under
// any configured kind short-circuits creation. The returned registration is
// always populated, including on error.
func (r *Registrar) Register(ctx context.Context, rec model.ConsolidatedRecord) (model.ERPRegistration, error) {
	cnpj := model.NormalizeCNPJ(rec.CNPJ)
	log := r.log.With(zap.String("cnpj", cnpj))

	if len(r.opts.CustomerKinds) == 0 {
		err := eris.New("erp: no customer kinds configured")
		return failed("", err), err
	}

	for _, kind := range r.opts.CustomerKinds {
		found, err := callAtak(ctx, r, "find_customers", func(ctx context.Context) ([]atak.Customer, error) {
			return r.client.FindCustomers(ctx, cnpj, kind)
		})
		if err != nil {
			err = eris.Wrapf(err, "erp: search kind %s", kind)
			return failed(kind, err), err
		}
		if len(found) == 0 {
			continue
		}

		existing := found[0]
		id := existing.ID.String()
		log.Info("erp: customer already registered", zap.String("customer_id", id), zap.String("kind", kind))
		if !r.opts.UpdateExisting {
			return model.ERPRegistration{CustomerID: id, Kind: kind, Status: model.RegistrationExisting, Note: NoteExisting}, nil
		}
		return r.update(ctx, rec, existing, kind)
	}

	return r.create(ctx, rec, r.opts.CustomerKinds[0])
}

func (r *Registrar) create(ctx context.Context, rec model.ConsolidatedRecord, kind string) (model.ERPRegistration, error) {
	payload, err := BuildCustomer(rec, kind, r.opts.Defaults, r.table)
	if err != nil {
		err = resilience.NewValidationError("atak", false, err)
		return failed(kind, err), err
	}

	// A create that failed after reaching Atak may still have stored the
	// customer, so retries search first.
	attempt := 0
	created, err := callAtak(ctx, r, "create_customer", func(ctx context.Context) (*atak.Customer, error) {
		attempt++
		if attempt > 1 {
			found, err := r.client.FindCustomers(ctx, payload.CNPJ, kind)
			if err != nil {
				return nil, err
			}
			if len(found) > 0 {
				return &found[0], nil
			}
		}
		return r.client.CreateCustomer(ctx, payload)
	})
	if err != nil {
		err = eris.Wrap(err, "erp: create customer")
		return failed(kind, err), err
	}
	id := created.ID.String()
	if id == "" {
		err := resilience.NewValidationError("atak", false, eris.New("erp: create returned no customer id"))
		return failed(kind, err), err
	}

	reg := model.ERPRegistration{CustomerID: id, Kind: kind, Status: model.RegistrationRegistered, Note: NoteCreated}

	// The create response is not authoritative; read the customer back.
	confirmed, err := callAtak(ctx, r, "get_customer", func(ctx context.Context) (*atak.Customer, error) {
		return r.client.GetCustomer(ctx, id)
	})
	switch {
	case err != nil:
		reg.Error = eris.Wrap(err, "erp: confirm customer").Error()
		r.log.Warn("erp: customer created but confirmation failed", zap.String("customer_id", id), zap.Error(err))
	case confirmed == nil || model.NormalizeCNPJ(confirmed.CNPJ) != payload.CNPJ:
		reg.Error = "erp: confirmation returned a different customer"
		r.log.Warn("erp: confirmation mismatch", zap.String("customer_id", id))
	default:
		r.log.Info("erp: customer registered", zap.String("customer_id", id), zap.String("kind", kind))
	}
	return reg, nil
}

func (r *Registrar) update(ctx context.Context, rec model.ConsolidatedRecord, existing atak.Customer, kind string) (model.ERPRegistration, error) {
	id := existing.ID.String()
	payload, err := BuildCustomer(rec, kind, r.opts.Defaults, r.table)
	if err != nil {
		err = resilience.NewValidationError("atak", false, err)
		return failed(kind, err), err
	}
	// Commercial codes already agreed with the customer are kept.
	payload.BranchCode = firstNonEmpty(existing.BranchCode, payload.BranchCode)
	payload.WalletCode = firstNonEmpty(existing.WalletCode, payload.WalletCode)
	payload.PricingCode = firstNonEmpty(existing.PricingCode, payload.PricingCode)

	_, err = callAtak(ctx, r, "update_customer", func(ctx context.Context) (*atak.Customer, error) {
		return r.client.UpdateCustomer(ctx, id, payload)
	})
	if err != nil {
		err = eris.Wrapf(err, "erp: update customer %s", id)
		reg := failed(kind, err)
		reg.CustomerID = id
		return reg, err
	}
	r.log.Info("erp: customer updated", zap.String("customer_id", id))
	return model.ERPRegistration{CustomerID: id, Kind: kind, Status: model.RegistrationExisting, Note: NoteUpdated}, nil
}

func failed(kind string, err error) model.ERPRegistration {
	return model.ERPRegistration{Kind: kind, Status: model.RegistrationFailed, Error: strings.TrimSpace(err.Error())}
}
