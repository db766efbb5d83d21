package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/config"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/middleware"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/services"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/testutil"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

type recordingMailer struct {
	verifications []string
	confirmations []string
}

func (m *recordingMailer) SendVerification(_ context.Context, _, url string) error {
	m.verifications = append(m.verifications, url)
	return nil
}

func (m *recordingMailer) SendPasswordReset(context.Context, string, string) error { return nil }

func (m *recordingMailer) SendPaymentConfirmed(_ context.Context, _, url string) error {
	m.confirmations = append(m.confirmations, url)
	return nil
}

type stubProvider struct{}

func (stubProvider) CancelSubscription(context.Context, string, bool) error { return nil }

type testServer struct {
	app       *fiber.App
	db        *gorm.DB
	cfg       *config.Config
	mailer    *recordingMailer
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	uploadDir := t.TempDir()
	cfg := &config.Config{
		AppBaseURL:   "https://ai-fcard.com",
		JWTSecret:    "test-secret",
		TokenExpires: time.Hour,
		Storage: config.StorageConfig{
			Provider:       "local",
			LocalDir:       uploadDir,
			PublicPrefix:   "backend/uploads",
			MaxUploadBytes: 1 << 20,
		},
	}

	storage, err := services.NewLocalStorage(uploadDir, cfg.Storage.PublicPrefix)
	require.NoError(t, err)

	sweepLog := logrus.New()
	sweepLog.SetOutput(io.Discard)

	mailer := &recordingMailer{}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	Register(app, db, cfg, Dependencies{
		Mailer:   mailer,
		Storage:  storage,
		Provider: stubProvider{},
		Sweeper:  services.NewOverdueSweeper(db, sweepLog, nil),
	})

	return &testServer{app: app, db: db, cfg: cfg, mailer: mailer, uploadDir: uploadDir}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func sessionCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func registerUser(t *testing.T, s *testServer, email string) *http.Cookie {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/auth/register", fiber.Map{
		"email":    email,
		"password": "password123",
		"phone":    "090-1234-5678",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	return sessionCookie(t, resp, middleware.UserCookieName)
}

func TestRegisterUpdateAndGetCard(t *testing.T) {
	s := newTestServer(t)
	cookie := registerUser(t, s, "agent@example.com")

	resp, body := s.do(t, http.MethodPost, "/api/business-card/update", fiber.Map{
		"company_name": "ABC不動産",
		"greetings": []fiber.Map{
			{"title": "こんにちは", "content": "よろしく"},
		},
	}, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])

	resp, body = s.do(t, http.MethodGet, "/api/business-card", nil, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "ABC不動産", data["company_name"])
	assert.Equal(t, "00001", data["url_slug"])
	assert.Equal(t, models.CardStatusDraft, data["card_status"])
	greetings := data["greetings"].([]interface{})
	require.Len(t, greetings, 1)
	g0 := greetings[0].(map[string]interface{})
	assert.Equal(t, "こんにちは", g0["title"])
	assert.Equal(t, "よろしく", g0["content"])
	assert.EqualValues(t, 0, g0["display_order"])
}

func TestUpdateRejectsSingleTechTool(t *testing.T) {
	s := newTestServer(t)
	cookie := registerUser(t, s, "agent@example.com")

	resp, body := s.do(t, http.MethodPost, "/api/business-card/update", fiber.Map{
		"tech_tools": []fiber.Map{{"tool_type": "mdb"}},
	}, cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "テックツールは2つ以上選択してください", body["message"])

	resp, _ = s.do(t, http.MethodPost, "/api/mypage/autosave", fiber.Map{
		"tech_tools": []fiber.Map{{"tool_type": "mdb"}},
	}, cookie)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGenerateToolURLs(t *testing.T) {
	s := newTestServer(t)
	cookie := registerUser(t, s, "agent@example.com")

	resp, body := s.do(t, http.MethodPost, "/api/tech-tools/generate-urls", fiber.Map{
		"selected_tools": []string{"ai", "mdb"},
	}, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	tools := body["data"].([]interface{})
	require.Len(t, tools, 2)
	assert.Equal(t, "https://self-in.com/00001/ai/index.php", tools[0].(map[string]interface{})["tool_url"])
	assert.Equal(t, "https://self-in.com/00001/mdb/", tools[1].(map[string]interface{})["tool_url"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/business-card", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	userToken, err := utils.GenerateToken(s.cfg.JWTSecret, 1, utils.RoleUser, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, _ = s.send(t, req)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	cookie := registerUser(t, s, "agent@example.com")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("file_type", "logo"))
	part, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/business-card/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	resp, body := s.send(t, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	data := body["data"].(map[string]interface{})
	path := data["file_path"].(string)
	assert.True(t, strings.HasPrefix(path, "backend/uploads/logo/"), path)
	assert.True(t, strings.HasSuffix(path, ".png"), path)
	assert.Equal(t, false, data["was_resized"])

	stored, err := os.ReadFile(filepath.Join(s.uploadDir, filepath.FromSlash(strings.TrimPrefix(path, "backend/uploads/"))))
	require.NoError(t, err)
	assert.Equal(t, png, stored)
}

func TestAdminConfirmPaymentPublishesCard(t *testing.T) {
	s := newTestServer(t)
	registerUser(t, s, "agent@example.com")

	hash, err := utils.HashPassword("adminpass1")
	require.NoError(t, err)
	require.NoError(t, s.db.Create(&models.Admin{Email: "admin@example.com", PasswordHash: hash, Role: models.AdminRoleAdmin}).Error)

	resp, body := s.do(t, http.MethodPost, "/api/admin/login", fiber.Map{"email": "admin@example.com", "password": "adminpass1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	admin := sessionCookie(t, resp, middleware.AdminCookieName)

	var card models.BusinessCard
	require.NoError(t, s.db.First(&card).Error)

	resp, body = s.do(t, http.MethodGet, "/api/cards/"+card.URLSlug, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/admin/users", fiber.Map{"business_card_id": card.ID, "action": "update_published", "is_published": true}, admin)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)

	resp, body = s.do(t, http.MethodPost, "/api/admin/users", fiber.Map{"business_card_id": card.ID, "action": "confirm_payment"}, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, models.PaymentStatusBankPaid, data["payment_status"])
	assert.Equal(t, true, data["qr_code_issued"])
	assert.Equal(t, []string{"https://ai-fcard.com/cards/" + card.URLSlug}, s.mailer.confirmations)

	resp, body = s.do(t, http.MethodPost, "/api/admin/users", fiber.Map{"business_card_id": card.ID, "action": "update_published", "is_published": true}, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	resp, body = s.do(t, http.MethodGet, "/api/cards/"+card.URLSlug, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.NotContains(t, body["data"], "user")

	resp, body = s.do(t, http.MethodGet, "/api/admin/users?search=AGENT", nil, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	rows := body["data"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "agent@example.com", rows[0].(map[string]interface{})["email"])

	resp, body = s.do(t, http.MethodGet, "/api/admin/stats", nil, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	stats := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["published_cards"])
	assert.EqualValues(t, 1, stats["qr_issued_cards"])
}

func TestAdminUsersRejectsUnknownAction(t *testing.T) {
	s := newTestServer(t)
	token, err := utils.GenerateToken(s.cfg.JWTSecret, 1, utils.RoleAdmin, time.Hour)
	require.NoError(t, err)
	admin := &http.Cookie{Name: middleware.AdminCookieName, Value: token}

	resp, body := s.do(t, http.MethodPost, "/api/admin/users", fiber.Map{"business_card_id": 1, "action": "delete"}, admin)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "操作の値が不正です", body["message"])
}

func TestCheckOverduePayments(t *testing.T) {
	s := newTestServer(t)
	token, err := utils.GenerateToken(s.cfg.JWTSecret, 1, utils.RoleAdmin, time.Hour)
	require.NoError(t, err)
	admin := &http.Cookie{Name: middleware.AdminCookieName, Value: token}

	resp, body := s.do(t, http.MethodPost, "/api/admin/check-overdue-payments", nil, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 0, data["updated_count"])
	assert.Empty(t, data["updated_business_cards"])
}

func TestCancelWithoutSubscription(t *testing.T) {
	s := newTestServer(t)
	cookie := registerUser(t, s, "agent@example.com")

	resp, body := s.do(t, http.MethodPost, "/api/mypage/cancel", fiber.Map{"cancel_immediately": true}, cookie)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "有効なサブスクリプションが見つかりません", body["message"])
}

func TestAdminRoutesSkipUserSession(t *testing.T) {
	s := newTestServer(t)
	hash, err := utils.HashPassword("adminpass1")
	require.NoError(t, err)
	require.NoError(t, s.db.Create(&models.Admin{Email: "ops@example.com", PasswordHash: hash, Role: models.AdminRoleAdmin}).Error)

	resp, body := s.do(t, http.MethodPost, "/api/admin/login", fiber.Map{"email": "ops@example.com", "password": "adminpass1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	admin := sessionCookie(t, resp, middleware.AdminCookieName)

	for _, path := range []string{"/api/admin/stats", "/api/admin/users"} {
		resp, body = s.do(t, http.MethodGet, path, nil, admin)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "%s: %v", path, body)
	}

	resp, _ = s.do(t, http.MethodPost, "/api/admin/logout", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/business-card", nil, admin)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, body)
}

func TestAdminListUsersFiltersAndPaginates(t *testing.T) {
	s := newTestServer(t)
	for _, email := range []string{"a1@example.com", "a2@example.com", "a3@example.com"} {
		registerUser(t, s, email)
	}
	var first models.BusinessCard
	require.NoError(t, s.db.Order("id").First(&first).Error)
	require.NoError(t, s.db.Model(&first).Update("payment_status", models.PaymentStatusBankPending).Error)

	token, err := utils.GenerateToken(s.cfg.JWTSecret, 1, utils.RoleAdmin, time.Hour)
	require.NoError(t, err)
	admin := &http.Cookie{Name: middleware.AdminCookieName, Value: token}

	resp, body := s.do(t, http.MethodGet, "/api/admin/users?limit=2&page=1", nil, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Len(t, body["data"], 2)
	pagination := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, pagination["total_items"])
	assert.EqualValues(t, 2, pagination["total_pages"])

	resp, body = s.do(t, http.MethodGet, "/api/admin/users?limit=2&page=2", nil, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Len(t, body["data"], 1)

	resp, body = s.do(t, http.MethodGet, "/api/admin/users?payment_status="+models.PaymentStatusBankPending, nil, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	rows := body["data"].([]interface{})
	require.Len(t, rows, 1)
	assert.EqualValues(t, first.ID, rows[0].(map[string]interface{})["business_card_id"])
}
