package export_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/userdata"
)

type exportEnv struct {
	orchestrator *export.Orchestrator
	registry     *export.Registry
	requests     *dsr.Service
	delivery     *export.DeliveryManager
	store        *userdata.InMemoryRepository
	auditRepo    *audit.InMemoryRepository
}

func newExportEnv(t *testing.T) *exportEnv {
	t.Helper()

	auditRepo := audit.NewInMemoryRepository()
	auditSvc := audit.NewService(auditRepo, zerolog.Nop())
	requests := dsr.NewService(dsr.ServiceConfig{
		Repository: dsr.NewInMemoryRepository(),
		Audit:      auditSvc,
		Logger:     zerolog.Nop(),
	})

	store := userdata.NewInMemoryRepository()
	registry := export.NewRegistry()
	require.NoError(t, export.RegisterBuiltins(registry, store))

	packager, err := export.NewPackager(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	delivery := export.NewDeliveryManager(export.NewInMemoryDeliveryRepository(), auditSvc, zerolog.Nop())

	orchestrator := export.NewOrchestrator(export.OrchestratorConfig{
		Registry: registry,
		Requests: requests,
		Audit:    auditSvc,
		Packager: packager,
		Delivery: delivery,
		Logger:   zerolog.Nop(),
	})

	return &exportEnv{
		orchestrator: orchestrator,
		registry:     registry,
		requests:     requests,
		delivery:     delivery,
		store:        store,
		auditRepo:    auditRepo,
	}
}

func (e *exportEnv) accessRequest(t *testing.T, email string) *dsr.Request {
	t.Helper()
	ctx := context.Background()
	req, err := e.requests.Submit(ctx, dsr.SubmitInput{
		Type:       dsr.TypeAccess,
		Email:      email,
		Regulation: dsr.RegulationGDPR,
	})
	require.NoError(t, err)
	out, err := e.requests.VerifyEmail(ctx, req.VerificationToken, audit.RequestMeta{})
	require.NoError(t, err)
	return out
}

func (e *exportEnv) seedSubject() {
	e.store.SeedAccount(userdata.Account{ID: "usr_1", Email: "alice@example.com", DisplayName: "Alice", CreatedAt: time.Now()})
	e.store.SeedComment(userdata.Comment{ID: "cmt_1", AuthorID: "usr_1", Body: "hello", CreatedAt: time.Now()})
	e.store.SeedConsent(userdata.ConsentRecord{ID: "cns_1", UserID: "usr_1", Purpose: "marketing", Granted: true, RecordedAt: time.Now()})
}

func TestOrchestrator_RequestExport_InlineEndToEnd(t *testing.T) {
	env := newExportEnv(t)
	ctx := context.Background()
	env.seedSubject()
	req := env.accessRequest(t, "alice@example.com")
	actor := dsr.Actor{ID: "stf_1", Role: "agent"}

	token, err := env.orchestrator.RequestExport(ctx, req.ID, actor, audit.RequestMeta{})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The request completed and the package is downloadable exactly once.
	final, err := env.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, dsr.StatusCompleted, final.Status)
	assert.Contains(t, final.AdminNotes, "Export package generated")

	dl, err := env.delivery.HandleDownload(ctx, req.ID, token, audit.RequestMeta{})
	require.NoError(t, err)
	body, err := io.ReadAll(dl)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
	require.NoError(t, dl.Close())

	_, err = env.delivery.HandleDownload(ctx, req.ID, token, audit.RequestMeta{})
	assert.ErrorIs(t, err, export.ErrDeliveryNotFound)

	generated, _, err := env.auditRepo.Query(ctx, audit.Filters{RequestID: req.ID, Action: audit.ActionExportGenerated})
	require.NoError(t, err)
	require.Len(t, generated, 1)
	assert.Equal(t, []string{"profile", "comments", "consent_logs"}, toStrings(generated[0].Metadata["sections"]))
}

func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, _ := e.(string)
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

func TestOrchestrator_RequestExport_NotExportable(t *testing.T) {
	env := newExportEnv(t)
	ctx := context.Background()

	req, err := env.requests.Submit(ctx, dsr.SubmitInput{
		Type:       dsr.TypeAccess,
		Email:      "alice@example.com",
		Regulation: dsr.RegulationGDPR,
	})
	require.NoError(t, err)

	_, err = env.orchestrator.RequestExport(ctx, req.ID, dsr.Actor{}, audit.RequestMeta{})
	assert.ErrorIs(t, err, dsr.ErrNotExportable)
}

func TestOrchestrator_Generate_ProviderFailureIsolated(t *testing.T) {
	env := newExportEnv(t)
	ctx := context.Background()
	env.seedSubject()
	req := env.accessRequest(t, "alice@example.com")
	actor := dsr.Actor{ID: "stf_1", Role: "agent"}

	require.NoError(t, env.registry.Register(export.Provider{
		Key:      "orders",
		Label:    "Order history",
		Priority: 40,
		Fn: func(context.Context, *dsr.Request) (map[string]interface{}, error) {
			return nil, errors.New("orders service down")
		},
	}))

	token, err := env.delivery.Issue(ctx, req.ID)
	require.NoError(t, err)

	result, err := env.orchestrator.Generate(ctx, req.ID, token, actor, audit.RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, []string{"profile", "comments", "consent_logs"}, result.Sections)
	assert.Equal(t, []string{"orders"}, result.Failed)
	require.NotNil(t, result.Archive)

	failed, _, err := env.auditRepo.Query(ctx, audit.Filters{RequestID: req.ID, Action: audit.ActionHandlerFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "export", failed[0].Metadata["stage"])
	assert.Equal(t, "orders", failed[0].Metadata["provider"])
}

func TestOrchestrator_Generate_EmptySectionsOmitted(t *testing.T) {
	env := newExportEnv(t)
	ctx := context.Background()

	// Account exists but has no comments or consents.
	env.store.SeedAccount(userdata.Account{ID: "usr_1", Email: "alice@example.com", DisplayName: "Alice"})
	req := env.accessRequest(t, "alice@example.com")

	token, err := env.delivery.Issue(ctx, req.ID)
	require.NoError(t, err)

	result, err := env.orchestrator.Generate(ctx, req.ID, token, dsr.Actor{ID: "stf_1"}, audit.RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, []string{"profile"}, result.Sections)
	assert.Empty(t, result.Failed)
}

func TestRegistry_ProviderOrdering(t *testing.T) {
	reg := export.NewRegistry()
	fn := func(context.Context, *dsr.Request) (map[string]interface{}, error) { return nil, nil }

	require.NoError(t, reg.Register(export.Provider{Key: "consent_logs", Priority: 30, Fn: fn}))
	require.NoError(t, reg.Register(export.Provider{Key: "profile", Priority: 10, Fn: fn}))
	require.NoError(t, reg.Register(export.Provider{Key: "comments", Priority: 20, Fn: fn}))

	var keys []string
	for _, p := range reg.Providers() {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"profile", "comments", "consent_logs"}, keys)

	err := reg.Register(export.Provider{Key: "profile", Priority: 99, Fn: fn})
	assert.ErrorContains(t, err, "already registered")
}
