package erp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/resilience"
	"github.com/sells-group/onboard-cli/pkg/atak"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Login(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockClient) FindCustomers(ctx context.Context, cnpj, kind string) ([]atak.Customer, error) {
	args := m.Called(ctx, cnpj, kind)
	if v := args.Get(0); v != nil {
		return v.([]atak.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) GetCustomer(ctx context.Context, id string) (*atak.Customer, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*atak.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) CreateCustomer(ctx context.Context, c atak.Customer) (*atak.Customer, error) {
	args := m.Called(ctx, c)
	if v := args.Get(0); v != nil {
		return v.(*atak.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) UpdateCustomer(ctx context.Context, id string, c atak.Customer) (*atak.Customer, error) {
	args := m.Called(ctx, id, c)
	if v := args.Get(0); v != nil {
		return v.(*atak.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

const testCNPJ = "11222333000181"

func testRecord() model.ConsolidatedRecord {
	return model.ConsolidatedRecord{
		CNPJ:      testCNPJ,
		LegalName: "ACME INDUSTRIA LTDA",
		TradeName: "ACME",
		Suframa:   "200400500",
		Address: model.Address{
			Street: "Av. Djalma Batista", Number: "1200", District: "Chapada",
			City: "MANAUS", State: "am", PostalCode: "69050-010",
		},
		Phones: []string{"(92) 3333-4444"},
		Emails: []string{"fiscal@acme.com.br"},
	}
}

func testOptions() Options {
	return Options{
		CustomerKinds: []string{"01", "02", "03"},
		Defaults:      Defaults{BranchCode: "1", WalletCode: "CART01", PricingCode: "TAB10"},
	}
}

func newTestRegistrar(t *testing.T, c atak.Client, opts Options) *Registrar {
	t.Helper()
	table, err := DefaultMunicipalTable()
	require.NoError(t, err)
	if opts.Retry.Service == "" {
		opts.Retry = resilience.DefaultPolicy("atak", "")
	}
	opts.Retry.Sleep = func(context.Context, time.Duration) error { return nil }
	return NewRegistrar(c, opts, table, zap.NewNop())
}

func TestRegister_ExistingOnThirdKind(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").Return(nil, nil).Once()
	m.On("FindCustomers", mock.Anything, testCNPJ, "02").Return([]atak.Customer{}, nil).Once()
	m.On("FindCustomers", mock.Anything, testCNPJ, "03").Return([]atak.Customer{{ID: "77", Kind: "03", CNPJ: testCNPJ}}, nil).Once()

	reg, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, model.RegistrationExisting, reg.Status)
	assert.Equal(t, "77", reg.CustomerID)
	assert.Equal(t, "03", reg.Kind)
	assert.Equal(t, NoteExisting, reg.Note)
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "UpdateCustomer", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_CreatesAndConfirms(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, mock.Anything).Return(nil, nil).Times(3)

	var sent atak.Customer
	m.On("CreateCustomer", mock.Anything, mock.AnythingOfType("atak.Customer")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(atak.Customer) }).
		Return(&atak.Customer{ID: "1001"}, nil).Once()
	m.On("GetCustomer", mock.Anything, "1001").Return(&atak.Customer{ID: "1001", CNPJ: testCNPJ}, nil).Once()

	reg, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, model.RegistrationRegistered, reg.Status)
	assert.Equal(t, "1001", reg.CustomerID)
	assert.Equal(t, "01", reg.Kind)
	assert.Empty(t, reg.Error)

	assert.Equal(t, "01", sent.Kind)
	assert.Equal(t, "CART01", sent.WalletCode)
	assert.True(t, sent.Active)
	require.Len(t, sent.Addresses, 5)
	for i, a := range sent.Addresses {
		assert.Equal(t, atak.AddressKinds[i], a.Kind)
		assert.Equal(t, "1302603", a.MunicipalityCode)
		assert.Equal(t, "AM", a.State)
		assert.Equal(t, "69050010", a.PostalCode)
	}
	m.AssertExpectations(t)
}

func TestRegister_ConfirmFailureKeepsRegistration(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	m.On("CreateCustomer", mock.Anything, mock.Anything).Return(&atak.Customer{ID: "1001"}, nil)
	m.On("GetCustomer", mock.Anything, "1001").Return(nil, errors.New("gateway timeout"))

	reg, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationRegistered, reg.Status)
	assert.Contains(t, reg.Error, "gateway timeout")
}

func TestRegister_SearchFailure(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").
		Return(nil, resilience.NewAuthError("atak", errors.New("token inválido")))

	reg, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, resilience.KindAuth, resilience.KindOf(err))
	assert.Equal(t, model.RegistrationFailed, reg.Status)
	assert.Contains(t, reg.Error, "token inválido")
	m.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestRegister_CreateFailure(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	m.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransportError("atak", 500, errors.New("campo codigo_municipio obrigatório")))

	reg, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, model.RegistrationFailed, reg.Status)
	assert.Contains(t, reg.Error, "campo codigo_municipio obrigatório")
}

func TestRegister_NoName(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	_, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), model.ConsolidatedRecord{CNPJ: testCNPJ})
	require.Error(t, err)
	assert.Equal(t, resilience.KindValidation, resilience.KindOf(err))
	m.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestRegister_UpdateExisting(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").
		Return([]atak.Customer{{ID: "55", WalletCode: "CART99"}}, nil)

	var sent atak.Customer
	m.On("UpdateCustomer", mock.Anything, "55", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(atak.Customer) }).
		Return(&atak.Customer{ID: "55"}, nil)

	opts := testOptions()
	opts.UpdateExisting = true
	reg, err := newTestRegistrar(t, m, opts).Register(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, model.RegistrationExisting, reg.Status)
	assert.Equal(t, NoteUpdated, reg.Note)
	assert.Equal(t, "CART99", sent.WalletCode)
	assert.Equal(t, "TAB10", sent.PricingCode)
	m.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestRegister_NoKinds(t *testing.T) {
	m := new(mockClient)
	reg, err := newTestRegistrar(t, m, Options{}).Register(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, model.RegistrationFailed, reg.Status)
	m.AssertNotCalled(t, "FindCustomers", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_SearchRetriesServerError(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").
		Return(nil, resilience.NewTransportError("atak", 503, errors.New("service unavailable"))).Once()
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").
		Return([]atak.Customer{{ID: "77", Kind: "01", CNPJ: testCNPJ}}, nil).Once()

	reg, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, model.RegistrationExisting, reg.Status)
	assert.Equal(t, "77", reg.CustomerID)
	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "FindCustomers", 2)
}

func TestRegister_SearchGivesUpAfterMaxAttempts(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").
		Return(nil, resilience.NewTransportError("atak", 503, errors.New("service unavailable")))

	opts := testOptions()
	opts.Retry = resilience.DefaultPolicy("atak", "")
	opts.Retry.MaxAttempts = 2
	reg, err := newTestRegistrar(t, m, opts).Register(context.Background(), testRecord())
	require.Error(t, err)

	assert.Equal(t, resilience.KindTransport, resilience.KindOf(err))
	assert.Equal(t, model.RegistrationFailed, reg.Status)
	m.AssertNumberOfCalls(t, "FindCustomers", 2)
}

func TestRegister_CreateRetryFindsStoredCustomer(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, mock.Anything).Return(nil, nil).Times(3)
	m.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransportError("atak", 502, errors.New("bad gateway"))).Once()
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").
		Return([]atak.Customer{{ID: "1001", Kind: "01", CNPJ: testCNPJ}}, nil).Once()
	m.On("GetCustomer", mock.Anything, "1001").Return(&atak.Customer{ID: "1001", CNPJ: testCNPJ}, nil).Once()

	reg, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, model.RegistrationRegistered, reg.Status)
	assert.Equal(t, "1001", reg.CustomerID)
	m.AssertNumberOfCalls(t, "CreateCustomer", 1)
	m.AssertNumberOfCalls(t, "FindCustomers", 4)
}

func TestRegister_AuthFailureIsNotRetried(t *testing.T) {
	m := new(mockClient)
	m.On("FindCustomers", mock.Anything, testCNPJ, "01").
		Return(nil, resilience.NewAuthError("atak", errors.New("token inválido")))

	_, err := newTestRegistrar(t, m, testOptions()).Register(context.Background(), testRecord())
	require.Error(t, err)
	m.AssertNumberOfCalls(t, "FindCustomers", 1)
}
