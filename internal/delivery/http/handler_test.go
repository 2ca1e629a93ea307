package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/cascade"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/impact"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/integrity"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/memory"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	sched  *scheduler.Scheduler
}

func setupTestRouter(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	store := memory.NewStore()
	audits := memory.NewAuditRepository()
	locks := memory.NewLockStore()
	sink := notify.NewSink(64, m, logger)

	sched := scheduler.New(scheduler.Config{Workers: 1, BatchLimit: 50}, memory.NewJobRepository(), locks, sink, m, logger)
	engine := cascade.NewEngine(store, store, audits, locks, sink, m, 50, logger)
	auditor := integrity.NewAuditor(store, store, m, logger)
	analyzer := impact.NewAnalyzer(store, domain.DefaultThresholds, logger)

	sched.Register(domain.JobCascadeDeletion, cascade.DeletionHandler(engine))
	sched.Register(domain.JobBatchCascadeDeletion, cascade.BatchDeletionHandler(engine))
	sched.Register(domain.JobOrphanedReferenceCleanup, integrity.CleanupHandler(auditor))
	sched.Register(domain.JobIntegrityValidation, integrity.ValidationHandler(auditor))

	statusUC := usecase.NewSystemStatusUsecase(sched, sink, func() map[string]any {
		return map[string]any{"driver": "memory"}
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := NewRouter(ctx, &RouterDeps{
		DeleteUC:      usecase.NewQueueDeletionUsecase(sched, analyzer, store, sink, logger),
		BatchUC:       usecase.NewQueueBatchUsecase(sched, analyzer, sink, logger),
		GetJobUC:      usecase.NewGetJobUsecase(sched, logger),
		CancelUC:      usecase.NewCancelJobUsecase(sched),
		AuditUC:       usecase.NewAuditHistoryUsecase(audits),
		RestoreUC:     usecase.NewRestoreUsecase(engine, logger),
		MaintenanceUC: usecase.NewMaintenanceUsecase(sched, logger),
		StatusUC:      statusUC,
		Hub:           notify.NewHub(func() any { return statusUC.Status() }, logger),
		HealthChecks: map[string]HealthCheck{
			"store": func(context.Context) error { return nil },
		},
		Gatherer:  registry,
		Logger:    logger,
		BodyLimit: 1 << 20,
	})
	return &testServer{router: router, store: store, sched: sched}
}

func (s *testServer) do(method, path, role string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-User-ID", role+"-1")
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// runAll drains the queue on the calling goroutine.
func (s *testServer) runAll(t *testing.T) {
	t.Helper()
	for s.sched.QueueStatus().TotalQueued > 0 {
		job, err := s.sched.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		s.sched.Run(context.Background(), job)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response: %v (%s)", err, w.Body.String())
	}
	return v
}

func TestDeleteHandler_Accepted(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{Teachers: 3, Orchestras: 2, ExamRecords: 1})

	w := s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", map[string]string{"reason": "left school"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[usecase.DeletionResponse](t, w)
	if resp.ImpactAnalysis.TotalDocuments != 6 || resp.ImpactAnalysis.Severity != domain.SeverityLow {
		t.Errorf("unexpected impact %+v", resp.ImpactAnalysis)
	}
	if resp.EstimatedProcessingTime == "" {
		t.Error("expected a processing time estimate")
	}
}

func TestDeleteHandler_EmptyBody(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{})

	w := s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeleteHandler_BackToBackConflict(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{Teachers: 1})

	first := s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", nil)
	if first.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", first.Code)
	}
	firstID := decode[usecase.DeletionResponse](t, first).JobID

	second := s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", nil)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", second.Code, second.Body.String())
	}
	body := decode[map[string]string](t, second)
	if body["jobId"] != firstID.String() {
		t.Errorf("expected original job id %s, got %s", firstID, body["jobId"])
	}
}

func TestDeleteHandler_NotFound(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(http.MethodPost, "/api/v1/cascade/delete/ghost", "teacher", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestDeleteHandler_InvalidPriority(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{})

	w := s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", map[string]string{"priority": "urgent"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestDeleteHandler_MissingIdentity(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestBatchHandler_TooManyIDs(t *testing.T) {
	s := setupTestRouter(t)

	ids := make([]string, 51)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i)
		s.store.SeedStudent(ids[i], memory.Seed{})
	}

	w := s.do(http.MethodPost, "/api/v1/cascade/delete/batch", "admin", map[string]any{"ids": ids})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	if st := s.sched.QueueStatus(); st.TotalQueued != 0 {
		t.Errorf("expected nothing queued, got %d", st.TotalQueued)
	}
}

func TestBatchHandler_Accepted(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("a", memory.Seed{Teachers: 1})
	s.store.SeedStudent("b", memory.Seed{Rehearsals: 2})

	w := s.do(http.MethodPost, "/api/v1/cascade/delete/batch", "admin", map[string]any{"ids": []string{"a", "b"}})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[usecase.BatchDeletionResponse](t, w)
	if resp.BatchImpact.TotalDocuments != 3 {
		t.Errorf("expected batch impact 3, got %d", resp.BatchImpact.TotalDocuments)
	}
}

func TestBatchHandler_MalformedBody(t *testing.T) {
	s := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cascade/delete/batch", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-User-Role", "admin")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetJobHandler_Lifecycle(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{Teachers: 3, Orchestras: 2, ExamRecords: 1})

	accepted := decode[usecase.DeletionResponse](t, s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", nil))
	path := "/api/v1/cascade/job/" + accepted.JobID.String()

	w := s.do(http.MethodGet, path, "teacher", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	queued := decode[map[string]any](t, w)
	if queued["status"] != "queued" || queued["position"] != float64(1) {
		t.Errorf("expected queued at position 1, got %v", queued)
	}

	s.runAll(t)

	w = s.do(http.MethodGet, path, "teacher", nil)
	var done struct {
		Status domain.JobState `json:"status"`
		Result struct {
			Operations []domain.CascadeOperation `json:"cascadeOperations"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &done); err != nil {
		t.Fatal(err)
	}
	if done.Status != domain.StateCompleted {
		t.Fatalf("expected completed, got %s: %s", done.Status, w.Body.String())
	}
	counts := []int{}
	for _, op := range done.Result.Operations {
		counts = append(counts, op.AffectedCount)
	}
	if fmt.Sprint(counts) != "[3 2 1]" {
		t.Errorf("expected operation counts [3 2 1], got %v", counts)
	}
}

func TestGetJobHandler_Errors(t *testing.T) {
	s := setupTestRouter(t)

	if w := s.do(http.MethodGet, "/api/v1/cascade/job/not-a-uuid", "teacher", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/cascade/job/0190b3c4-0000-7000-8000-000000000000", "teacher", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	s := setupTestRouter(t)

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/cascade/queue/status"},
		{http.MethodGet, "/api/v1/cascade/metrics"},
		{http.MethodPost, "/api/v1/cascade/cleanup/orphans"},
		{http.MethodPost, "/api/v1/cascade/integrity/validate"},
		{http.MethodPost, "/api/v1/cascade/restore/s1"},
	}
	for _, r := range routes {
		if w := s.do(r.method, r.path, "teacher", nil); w.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected status 403, got %d", r.method, r.path, w.Code)
		}
	}
}

func TestMaintenanceHandlers(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{Teachers: 1})

	w := s.do(http.MethodPost, "/api/v1/cascade/cleanup/orphans", "admin", map[string]any{"dryRun": true})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	if decode[map[string]string](t, w)["jobId"] == "" {
		t.Error("expected jobId")
	}

	w = s.do(http.MethodPost, "/api/v1/cascade/integrity/validate", "admin", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", w.Code)
	}

	status := decode[usecase.SystemStatus](t, s.do(http.MethodGet, "/api/v1/cascade/queue/status", "admin", nil))
	if status.Queue.TotalQueued != 2 {
		t.Errorf("expected 2 queued jobs, got %+v", status.Queue)
	}

	s.runAll(t)

	report := decode[usecase.MetricsReport](t, s.do(http.MethodGet, "/api/v1/cascade/metrics", "admin", nil))
	if report.Processing.JobsProcessed != 2 || report.Store["driver"] != "memory" {
		t.Errorf("unexpected metrics %+v", report)
	}
}

func TestRestoreHandler(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{Teachers: 2, ExamRecords: 1})

	s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", nil)
	s.runAll(t)

	page := decode[usecase.AuditPage](t, s.do(http.MethodGet, "/api/v1/cascade/audit/s1", "teacher", nil))
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one audit record, got %+v", page)
	}
	if page.Items[0].SnapshotCounts["teachers"] != 2 {
		t.Errorf("expected snapshot counts in audit summary, got %+v", page.Items[0])
	}
	auditID := page.Items[0].ID.String()

	w := s.do(http.MethodPost, "/api/v1/cascade/restore/s1", "admin", map[string]string{"auditId": auditID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/api/v1/cascade/restore/s1", "admin", map[string]string{"auditId": auditID})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422 for second restore, got %d", w.Code)
	}

	w = s.do(http.MethodPost, "/api/v1/cascade/restore/s1", "admin", map[string]string{"auditId": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad audit id, got %d", w.Code)
	}
}

func TestAuditHandler_InvalidQuery(t *testing.T) {
	s := setupTestRouter(t)

	if w := s.do(http.MethodGet, "/api/v1/cascade/audit/s1?limit=abc", "teacher", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/cascade/audit/s1?offset=-1", "teacher", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestCancelHandler(t *testing.T) {
	s := setupTestRouter(t)
	s.store.SeedStudent("s1", memory.Seed{})

	accepted := decode[usecase.DeletionResponse](t, s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", nil))
	path := "/api/v1/cascade/job/" + accepted.JobID.String() + "/cancel"

	if w := s.do(http.MethodPost, path, "admin", nil); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodPost, path, "admin", nil); w.Code != http.StatusConflict {
		t.Errorf("expected status 409 for second cancel, got %d", w.Code)
	}

	// The entity is free again.
	if w := s.do(http.MethodPost, "/api/v1/cascade/delete/s1", "teacher", nil); w.Code != http.StatusAccepted {
		t.Errorf("expected status 202 after cancel, got %d", w.Code)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	w = s.do(http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("cascade_")) {
		t.Errorf("expected prometheus exposition, got %d", w.Code)
	}
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrEmptyBatch, http.StatusBadRequest},
		{domain.ErrJobNotFound, http.StatusNotFound},
		{&domain.ConflictError{EntityID: "s1", JobID: "j1"}, http.StatusConflict},
		{domain.ErrAdminRequired, http.StatusForbidden},
		{domain.ErrNoSnapshot, http.StatusUnprocessableEntity},
		{domain.TransientStoreError("teachers", errors.New("reset")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, zap.NewNop(), tt.err)
		if w.Code != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, w.Code)
		}
	}
}
