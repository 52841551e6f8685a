package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/brand-sync/internal/auth"
	apperrors "github.com/Kamar-Folarin/brand-sync/internal/errors"
	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) GetJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncJob), args.Error(1)
}

func (m *MockJobService) GetJobsForOwner(ctx context.Context, owner models.Owner, filter models.JobFilter) ([]*models.SyncJob, error) {
	args := m.Called(ctx, owner, filter)
	return args.Get(0).([]*models.SyncJob), args.Error(1)
}

func (m *MockJobService) CancelJob(ctx context.Context, jobID string) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobService) Submit(ctx context.Context, syncType models.SyncType, owner models.Owner, params models.JobParameters, work jobs.WorkFunc) (*models.SyncJob, error) {
	args := m.Called(ctx, syncType, owner, params, mock.Anything)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncJob), args.Error(1)
}

// MockWorkflows is a mock implementation of WorkflowProvider
type MockWorkflows struct {
	mock.Mock
}

func (m *MockWorkflows) WorkFor(syncType models.SyncType) (jobs.WorkFunc, error) {
	args := m.Called(syncType)
	return func(*jobs.Task) (*models.JobResult, error) { return nil, nil }, args.Error(0)
}

var testOwner = models.Owner{UserID: "alice", Email: "alice@example.com"}

func setupTestHandler() (*Handler, *MockJobService, *MockWorkflows) {
	mockJobs := new(MockJobService)
	mockWorkflows := new(MockWorkflows)
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil)) // Discard logs during tests

	return NewHandler(mockJobs, mockWorkflows, nil, logger), mockJobs, mockWorkflows
}

// setupTestRouter authenticates every request as testOwner
func setupTestRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		auth.WithOwner(c, testOwner)
		c.Next()
	})
	router.GET("/sync/jobs", handler.ListJobs)
	router.GET("/sync/jobs/:id", handler.GetJob)
	router.POST("/sync/jobs/:id/cancel", handler.CancelJob)
	router.POST("/sync/all", handler.SyncAll)
	router.POST("/sync/ga4", handler.SyncGA4)
	router.POST("/sync/agency-analytics", handler.SyncAgencyAnalytics)
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetJob(t *testing.T) {
	tests := []struct {
		name           string
		job            *models.SyncJob
		err            error
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "own job",
			job:            &models.SyncJob{JobID: "j1", SyncType: models.SyncTypeGA4, Owner: testOwner, Status: models.JobStatusRunning, Progress: 45},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "job not found",
			err:            apperrors.NewNotFoundError("sync job j1 not found", nil),
			expectedStatus: http.StatusNotFound,
			expectedType:   "NOT_FOUND",
		},
		{
			name:           "someone else's job",
			job:            &models.SyncJob{JobID: "j1", Owner: models.Owner{UserID: "bob"}},
			expectedStatus: http.StatusForbidden,
			expectedType:   "FORBIDDEN",
		},
		{
			name:           "store failure",
			err:            errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   "INTERNAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mockJobs, _ := setupTestHandler()
			router := setupTestRouter(handler)
			mockJobs.On("GetJob", mock.Anything, "j1").Return(tt.job, tt.err)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/sync/jobs/j1", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var resp SyncJob
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "j1", resp.JobID)
				assert.Equal(t, 45, resp.Progress)
				assert.Equal(t, "running", resp.Status)
			} else {
				resp := decodeError(t, w)
				assert.Equal(t, tt.expectedType, resp.Type)
				if tt.expectedStatus == http.StatusInternalServerError {
					assert.Equal(t, "internal server error", resp.Error)
				}
			}
			mockJobs.AssertExpectations(t)
		})
	}
}

func TestListJobs(t *testing.T) {
	handler, mockJobs, _ := setupTestHandler()
	router := setupTestRouter(handler)

	expected := []*models.SyncJob{
		{JobID: "j2", SyncType: models.SyncTypeGA4, Owner: testOwner, Status: models.JobStatusCompleted},
		{JobID: "j1", SyncType: models.SyncTypeGA4, Owner: testOwner, Status: models.JobStatusCompleted},
	}
	mockJobs.On("GetJobsForOwner", mock.Anything, testOwner, models.JobFilter{
		Status:   models.JobStatusCompleted,
		SyncType: models.SyncTypeGA4,
		Limit:    100,
	}).Return(expected, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/sync/jobs?status=completed&sync_type=sync_ga4&limit=500", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "j2", resp.Data[0].JobID)
	assert.Equal(t, 100, resp.Limit)
	mockJobs.AssertExpectations(t)
}

func TestListJobs_InvalidQuery(t *testing.T) {
	for _, query := range []string{"status=done", "sync_type=rebuild", "limit=abc", "limit=-1"} {
		t.Run(query, func(t *testing.T) {
			handler, mockJobs, _ := setupTestHandler()
			router := setupTestRouter(handler)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/sync/jobs?"+query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_INPUT", decodeError(t, w).Type)
			mockJobs.AssertNotCalled(t, "GetJobsForOwner", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCancelJob(t *testing.T) {
	running := &models.SyncJob{JobID: "j1", Owner: testOwner, Status: models.JobStatusRunning}

	tests := []struct {
		name           string
		job            *models.SyncJob
		getErr         error
		confirmed      bool
		cancelErr      error
		expectCancel   bool
		expectedStatus int
	}{
		{name: "confirmed", job: running, confirmed: true, expectCancel: true, expectedStatus: http.StatusOK},
		{name: "not yet stopped", job: running, confirmed: false, expectCancel: true, expectedStatus: http.StatusAccepted},
		{
			name:           "already finished",
			job:            running,
			cancelErr:      apperrors.NewValidationError("job j1 is already completed", nil),
			expectCancel:   true,
			expectedStatus: http.StatusBadRequest,
		},
		{name: "unknown job", getErr: apperrors.NewNotFoundError("sync job j1 not found", nil), expectedStatus: http.StatusNotFound},
		{name: "not the owner", job: &models.SyncJob{JobID: "j1", Owner: models.Owner{UserID: "bob"}}, expectedStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mockJobs, _ := setupTestHandler()
			router := setupTestRouter(handler)
			mockJobs.On("GetJob", mock.Anything, "j1").Return(tt.job, tt.getErr)
			if tt.expectCancel {
				mockJobs.On("CancelJob", mock.Anything, "j1").Return(tt.confirmed, tt.cancelErr)
			}

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/sync/jobs/j1/cancel", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if w.Code == http.StatusOK || w.Code == http.StatusAccepted {
				var resp CancelResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.True(t, resp.Cancelled)
				assert.Equal(t, tt.confirmed, resp.Confirmed)
				assert.Equal(t, "j1", resp.JobID)
			}
			if !tt.expectCancel {
				mockJobs.AssertNotCalled(t, "CancelJob", mock.Anything, mock.Anything)
			}
			mockJobs.AssertExpectations(t)
		})
	}
}

func TestStartSync(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		syncType       models.SyncType
		body           string
		params         models.JobParameters
		submitErr      error
		expectSubmit   bool
		expectedStatus int
	}{
		{
			name:           "sync all without body",
			path:           "/sync/all",
			syncType:       models.SyncTypeAll,
			expectSubmit:   true,
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "ga4 for one brand",
			path:           "/sync/ga4",
			syncType:       models.SyncTypeGA4,
			body:           `{"brand_id":"42","start_date":"2026-01-01","end_date":"2026-01-31"}`,
			params:         models.JobParameters{BrandID: "42", StartDate: "2026-01-01", EndDate: "2026-01-31"},
			expectSubmit:   true,
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "sync already running",
			path:           "/sync/agency-analytics",
			syncType:       models.SyncTypeAgencyAnalytics,
			submitErr:      apperrors.NewSyncInProgressError("sync_agency_analytics", "", "j0"),
			expectSubmit:   true,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "malformed body",
			path:           "/sync/all",
			syncType:       models.SyncTypeAll,
			body:           `{"brand_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad date",
			path:           "/sync/ga4",
			syncType:       models.SyncTypeGA4,
			body:           `{"start_date":"January 1st"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mockJobs, mockWorkflows := setupTestHandler()
			router := setupTestRouter(handler)
			if tt.expectSubmit {
				mockWorkflows.On("WorkFor", tt.syncType).Return(nil)
				if tt.submitErr != nil {
					mockJobs.On("Submit", mock.Anything, tt.syncType, testOwner, tt.params, mock.Anything).Return(nil, tt.submitErr)
				} else {
					mockJobs.On("Submit", mock.Anything, tt.syncType, testOwner, tt.params, mock.Anything).
						Return(&models.SyncJob{JobID: "new-job", SyncType: tt.syncType, Status: models.JobStatusPending}, nil)
				}
			}

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", tt.path, bytes.NewBufferString(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			switch w.Code {
			case http.StatusAccepted:
				var resp SyncAcceptedResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "new-job", resp.JobID)
				assert.Equal(t, "pending", resp.Status)
				assert.Equal(t, string(tt.syncType), resp.SyncType)
			case http.StatusConflict:
				assert.Equal(t, "CONFLICT", decodeError(t, w).Type)
			}
			if !tt.expectSubmit {
				mockJobs.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			mockJobs.AssertExpectations(t)
			mockWorkflows.AssertExpectations(t)
		})
	}
}

func TestUnauthenticatedRequest(t *testing.T) {
	handler, _, _ := setupTestHandler()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/sync/jobs", handler.ListJobs)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/sync/jobs", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Type)
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))

	for _, tt := range []struct {
		name   string
		err    error
		status int
	}{
		{"healthy", nil, http.StatusOK},
		{"store down", errors.New("dial tcp: refused"), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(nil, nil, failingPinger{tt.err}, logger)
			router := gin.New()
			router.GET("/healthz", h.Health)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/healthz", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
