package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/store"
	"github.com/sells-group/onboard-cli/pkg/cnpja"
	"github.com/sells-group/onboard-cli/pkg/tess"
)

// --- Registry Mock ---

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Query(ctx context.Context, cnpj string) (*model.Document, error) {
	args := m.Called(ctx, cnpj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

// --- Document Extractor Mock ---

type mockDocuments struct {
	mock.Mock
}

func (m *mockDocuments) Extract(ctx context.Context, doc model.Document) model.StageResult[*DocumentOutput] {
	args := m.Called(ctx, doc)
	return args.Get(0).(model.StageResult[*DocumentOutput])
}

// --- Company Lookup Mock ---

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) Lookup(ctx context.Context, cnpj string) model.StageResult[*LookupOutput] {
	args := m.Called(ctx, cnpj)
	return args.Get(0).(model.StageResult[*LookupOutput])
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveConsulta(ctx context.Context, in store.SaveInput) (*store.SaveResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.SaveResult), args.Error(1)
}

func (m *mockStore) UpdateRegistration(ctx context.Context, cnpj string, reg model.ERPRegistration) error {
	args := m.Called(ctx, cnpj, reg)
	return args.Error(0)
}

func (m *mockStore) GetRegistration(ctx context.Context, cnpj string) (*store.Registration, error) {
	args := m.Called(ctx, cnpj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Registration), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Cache Mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, cnpj string) (*model.CacheEntry, error) {
	args := m.Called(ctx, cnpj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CacheEntry), args.Error(1)
}

func (m *mockCache) Put(ctx context.Context, entry model.CacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, cnpj string) error {
	args := m.Called(ctx, cnpj)
	return args.Error(0)
}

func (m *mockCache) List(ctx context.Context) ([]model.CacheEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CacheEntry), args.Error(1)
}

func (m *mockCache) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Registrar Mock ---

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) Register(ctx context.Context, rec model.ConsolidatedRecord) (model.ERPRegistration, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(model.ERPRegistration), args.Error(1)
}

// --- Runner Mock ---

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, cnpj string, opts RunOptions) (*Result, error) {
	args := m.Called(ctx, cnpj, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

// --- TESS Client Mock ---

type mockTessClient struct {
	mock.Mock
}

func (m *mockTessClient) UploadFile(ctx context.Context, path string) (*tess.File, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tess.File), args.Error(1)
}

func (m *mockTessClient) ProcessFile(ctx context.Context, id int64) (*tess.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tess.File), args.Error(1)
}

func (m *mockTessClient) GetFile(ctx context.Context, id int64) (*tess.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tess.File), args.Error(1)
}

func (m *mockTessClient) ExecuteAgent(ctx context.Context, agentID string, req tess.ExecuteRequest) (*tess.ExecuteResponse, error) {
	args := m.Called(ctx, agentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tess.ExecuteResponse), args.Error(1)
}

// --- CNPJA Client Mock ---

type mockCNPJAClient struct {
	mock.Mock
}

func (m *mockCNPJAClient) Office(ctx context.Context, cnpj string, opts cnpja.OfficeOptions) (*cnpja.Office, []byte, error) {
	args := m.Called(ctx, cnpj, opts)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	raw, _ := args.Get(1).([]byte)
	return args.Get(0).(*cnpja.Office), raw, args.Error(2)
}
