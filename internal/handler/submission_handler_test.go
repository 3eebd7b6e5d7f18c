package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/artdirector-api/internal/config"
	"github.com/noah-isme/artdirector-api/internal/dto"
	"github.com/noah-isme/artdirector-api/internal/grading"
	"github.com/noah-isme/artdirector-api/internal/handler"
	"github.com/noah-isme/artdirector-api/internal/models"
	"github.com/noah-isme/artdirector-api/internal/queue"
	"github.com/noah-isme/artdirector-api/internal/repository"
	"github.com/noah-isme/artdirector-api/internal/router"
	"github.com/noah-isme/artdirector-api/internal/service"
	"github.com/noah-isme/artdirector-api/pkg/storage"
)

const testSecret = "secret"

var (
	student = dto.Identity{Subject: "student-1", Email: "ada@example.com", Name: "Ada"}
	mentor  = dto.Identity{Subject: "mentor-1", Email: "mentor@example.com", Name: "Mentor"}
	other   = dto.Identity{Subject: "other-1", Email: "eve@example.com"}
)

type testApp struct {
	app   *fiber.App
	db    *gorm.DB
	repo  repository.SubmissionRepository
	store *storage.MemoryStore
	jobs  *queue.MemoryQueue
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Submission{}, &models.User{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	submissionRepo := repository.NewSubmissionRepository(db)
	userRepo := repository.NewUserRepository(db)
	store := storage.NewMemory("https://blobs.test/")
	jobs := queue.NewMemory(16)
	lifecycle := grading.NewLifecycle(submissionRepo, nil, logger)

	submissionService := service.NewSubmissionService(submissionRepo, store, jobs, lifecycle, nil, validate, logger, service.SubmissionServiceConfig{
		MaxBytes: 1 << 20,
		URLTTL:   time.Hour,
	})
	userService := service.NewUserService(userRepo, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: testSecret, UploadRateLimit: 100}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, nil, logger, time.Second),
		UserHandler:       handler.NewUserHandler(userService, logger),
	})

	return &testApp{app: app, db: db, repo: submissionRepo, store: store, jobs: jobs}
}

func bearer(t *testing.T, identity dto.Identity) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   identity.Subject,
		"email": identity.Email,
		"name":  identity.Name,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (a *testApp) do(t *testing.T, req *http.Request, identity *dto.Identity) (*http.Response, envelope) {
	t.Helper()
	if identity != nil {
		req.Header.Set("Authorization", bearer(t, *identity))
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

type uploadForm struct {
	title       string
	contentType string
	partType    string
	reviewerKey string
	data        []byte
}

func uploadRequest(t *testing.T, form uploadForm) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if form.title != "" {
		require.NoError(t, writer.WriteField("title", form.title))
	}
	if form.contentType != "" {
		require.NoError(t, writer.WriteField("content_type", form.contentType))
	}
	if form.reviewerKey != "" {
		require.NoError(t, writer.WriteField("reviewer_key", form.reviewerKey))
	}
	if form.data != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="artifact"`)
		partType := form.partType
		if partType == "" {
			partType = "application/octet-stream"
		}
		header.Set("Content-Type", partType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(form.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func pngBytes(size int) []byte {
	header := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	return append(header, bytes.Repeat([]byte{0}, size-len(header))...)
}

func (a *testApp) upload(t *testing.T, identity dto.Identity, title string) dto.SubmissionCreateResponse {
	t.Helper()
	resp, payload := a.do(t, uploadRequest(t, uploadForm{
		title:       title,
		contentType: "image/png",
		reviewerKey: mentor.Email,
		data:        pngBytes(4096),
	}), &identity)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var created dto.SubmissionCreateResponse
	require.NoError(t, json.Unmarshal(payload.Data, &created))
	return created
}

func TestSubmissionUploadReturnsAcceptedAndQueuesJob(t *testing.T) {
	ta := setupTestApp(t)

	created := ta.upload(t, student, "Poster draft")
	require.NotEqual(t, uuid.Nil, created.ID)
	require.Equal(t, models.SubmissionStatusPending, created.Status)
	require.Equal(t, 1, ta.jobs.Len())

	stored, err := ta.repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, student.Subject, stored.OwnerID)
	require.Equal(t, "Ada", stored.OwnerName)
	require.True(t, ta.store.Has(stored.StorageHandle))
}

func TestSubmissionUploadFallsBackToPartContentType(t *testing.T) {
	ta := setupTestApp(t)

	resp, _ := ta.do(t, uploadRequest(t, uploadForm{
		title:    "Icon set",
		partType: "image/png",
		data:     pngBytes(1024),
	}), &student)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}

func TestSubmissionUploadRejectsInvalidInput(t *testing.T) {
	ta := setupTestApp(t)

	cases := []struct {
		name string
		form uploadForm
	}{
		{name: "missing file", form: uploadForm{title: "x", contentType: "image/png"}},
		{name: "missing title", form: uploadForm{contentType: "image/png", data: pngBytes(512)}},
		{name: "unsupported type", form: uploadForm{title: "doc", contentType: "application/pdf", data: []byte("%PDF-1.4 body")}},
		{name: "empty file", form: uploadForm{title: "empty", contentType: "image/png", data: []byte{}}},
		{name: "oversized", form: uploadForm{title: "big", contentType: "image/png", data: pngBytes(2 << 20)}},
		{name: "content mismatch", form: uploadForm{title: "fake", contentType: "video/mp4", data: pngBytes(512)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, payload := ta.do(t, uploadRequest(t, tc.form), &student)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			require.False(t, payload.Success)
		})
	}

	require.Equal(t, 0, ta.jobs.Len())
	require.Equal(t, 0, ta.store.Len())
}

func TestSubmissionUploadReportsValidationDetails(t *testing.T) {
	ta := setupTestApp(t)

	resp, payload := ta.do(t, uploadRequest(t, uploadForm{
		title:       "Poster",
		contentType: "image/png",
		reviewerKey: "not-an-email",
		data:        pngBytes(512),
	}), &student)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "email", payload.Details["reviewerkey"])
}

func TestSubmissionRoutesRequireToken(t *testing.T) {
	ta := setupTestApp(t)

	resp, payload := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil), nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.False(t, payload.Success)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, _ = ta.do(t, req, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSubmissionListingsSeparateOwnerAndReviewer(t *testing.T) {
	ta := setupTestApp(t)

	ta.upload(t, student, "First")
	ta.upload(t, student, "Second")

	resp, payload := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var mine []dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(payload.Data, &mine))
	require.Len(t, mine, 2)
	require.ElementsMatch(t, []string{"First", "Second"}, []string{mine[0].Title, mine[1].Title})
	require.NotEmpty(t, mine[0].FileURL)

	resp, payload = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/submissions/reviewing", nil), &mentor)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var reviewing []dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(payload.Data, &reviewing))
	require.Len(t, reviewing, 2)

	resp, payload = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil), &other)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var none []dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(payload.Data, &none))
	require.Empty(t, none)
}

func TestSubmissionGetEnforcesAccess(t *testing.T) {
	ta := setupTestApp(t)
	created := ta.upload(t, student, "Poster")
	path := "/api/v1/submissions/" + created.ID.String()

	resp, payload := ta.do(t, httptest.NewRequest(http.MethodGet, path, nil), &mentor)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got dto.SubmissionResponse
	require.NoError(t, json.Unmarshal(payload.Data, &got))
	require.Equal(t, created.ID, got.ID)
	require.Nil(t, got.Grade)

	resp, _ = ta.do(t, httptest.NewRequest(http.MethodGet, path, nil), &other)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+uuid.NewString(), nil), &student)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/submissions/not-a-uuid", nil), &student)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionDeleteRemovesRecordAndBlob(t *testing.T) {
	ta := setupTestApp(t)
	created := ta.upload(t, student, "Poster")
	path := "/api/v1/submissions/" + created.ID.String()

	resp, _ := ta.do(t, httptest.NewRequest(http.MethodDelete, path, nil), &mentor)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, payload := ta.do(t, httptest.NewRequest(http.MethodDelete, path, nil), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, payload.Success)
	require.Equal(t, 0, ta.store.Len())

	resp, _ = ta.do(t, httptest.NewRequest(http.MethodGet, path, nil), &student)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpointReportsApplication(t *testing.T) {
	ta := setupTestApp(t)

	resp, payload := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Test", resp.Header.Get("X-Application"))

	var health handler.HealthResponse
	require.NoError(t, json.Unmarshal(payload.Data, &health))
	require.Equal(t, "ok", health.Status)
}
