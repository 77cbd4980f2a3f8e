package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"inventario/backend/internal/auth"
	"inventario/backend/internal/models"
	"inventario/backend/internal/notifications"
	"inventario/backend/internal/passwordreset"
	"inventario/backend/internal/repository"
	"inventario/backend/pkg/config"
	"inventario/backend/pkg/features"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// otherCode devolve um código de 6 dígitos diferente do informado.
func otherCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}

func (env *testEnv) requestAndValidate(t *testing.T, email string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": email})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	code := env.mailer.code(email)
	require.Len(t, code, 6)

	w = env.do(t, http.MethodPost, "/auth/password-reset/validate", "", gin.H{"email": email, "code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := decodeBody(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestPasswordReset_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ana := env.seedUser(t, "ana@example.com", "old-password", models.RoleEmployee, officePtr(models.OfficeOTIC))

	w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": " Ana@Example.com "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "ana@example.com", body["email"])
	assert.NotEmpty(t, body["expires_at"])
	assert.Nil(t, body["code"], "code must only travel by email")

	code := env.mailer.code("ana@example.com")
	w = env.do(t, http.MethodPost, "/auth/password-reset/validate", "", gin.H{"email": "ana@example.com", "code": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decodeBody(t, w)["token"].(string)

	w = env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": "ana@example.com", "token": token, "newPassword": "new-password"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Password updated successfully", decodeBody(t, w)["message"])

	// a senha antiga deixa de funcionar
	w = env.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": "ana@example.com", "password": "old-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": "ana@example.com", "password": "new-password"})
	assert.Equal(t, http.StatusOK, w.Code)

	// a mesma credencial não serve duas vezes
	w = env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": "ana@example.com", "token": token, "newPassword": "another-password"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Contains(t, env.mailer.changed, "ana@example.com")
	assert.Eventually(t, func() bool { return len(env.security.types()) == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t,
		[]notifications.SecurityEventType{notifications.EventPasswordResetRequested, notifications.EventPasswordResetCompleted},
		env.security.types())
	for _, e := range env.security.all() {
		assert.Equal(t, ana.ID, e.UserID, string(e.Type))
	}
	assert.Equal(t, ana.Name, env.mailer.changedName("ana@example.com"))
}

func TestRequestCode_UnknownOrInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	inactive := env.seedUser(t, "inactive@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	for _, email := range []string{"ghost@example.com", "inactive@example.com"} {
		w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": email})
		assert.Equal(t, http.StatusNotFound, w.Code, email)
		assert.Equal(t, msgAccountNotFound, decodeBody(t, w)["error"])
	}
	assert.Empty(t, env.mailer.codes)
}

func TestRequestCode_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/auth/password-reset/request", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// endereço malformado não corresponde a nenhuma conta
	w = env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestCode_NormalizesEmail(t *testing.T) {
	for _, email := range []string{"Ana@Example.com", " ana@example.com", "ana@example.com ", "\tANA@EXAMPLE.COM\n"} {
		t.Run(email, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedUser(t, "ana@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))

			w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": email})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "ana@example.com", decodeBody(t, w)["email"])
			code := env.mailer.code("ana@example.com")
			require.Len(t, code, 6)

			w = env.do(t, http.MethodPost, "/auth/password-reset/validate", "", gin.H{"email": email, "code": code})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			token := decodeBody(t, w)["token"].(string)

			w = env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": email, "token": token, "newPassword": "new-password"})
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}
}

func TestRequestCode_Cooldown(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ana@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))

	w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	first := env.mailer.code("ana@example.com")

	w = env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": "ana@example.com"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.EqualValues(t, 60, decodeBody(t, w)["retry_after"])
	assert.Equal(t, first, env.mailer.code("ana@example.com"), "no new code is sent during the cooldown")

	w = env.do(t, http.MethodGet, "/auth/password-reset/cooldown?email=ANA@example.com", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 60, decodeBody(t, w)["remaining_seconds"])
}

func TestRequestCode_EmailFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ana@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))
	env.mailer.err = errors.New("smtp unavailable")

	w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.PasswordResetToken{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCooldownHandler(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/auth/password-reset/cooldown", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/auth/password-reset/cooldown?email=nobody@example.com", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decodeBody(t, w)["remaining_seconds"])
}

func TestCooldownHandler_DatabaseError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	signer, err := auth.NewSigner(testSecret, "inventario-test", time.Hour)
	require.NoError(t, err)
	svc, err := passwordreset.NewService(repository.NewGormStore(db), signer, passwordreset.DefaultConfig(), nil)
	require.NoError(t, err)
	handler := NewPasswordResetHandler(svc, newRecordingMailer(), nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "password_reset_tokens"`)).
		WillReturnError(errors.New("connection refused"))

	r := gin.New()
	r.GET("/cooldown", handler.CooldownHandler)
	w := performRequest(t, r, http.MethodGet, "/cooldown?email=ana@example.com", "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgInternalError, decodeBody(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateCode_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ana@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))

	w := env.do(t, http.MethodPost, "/auth/password-reset/request", "", gin.H{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	code := env.mailer.code("ana@example.com")

	cases := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"wrong code", gin.H{"email": "ana@example.com", "code": otherCode(code)}, http.StatusBadRequest},
		{"other email", gin.H{"email": "bob@example.com", "code": code}, http.StatusBadRequest},
		{"short code", gin.H{"email": "ana@example.com", "code": "123"}, http.StatusBadRequest},
		{"missing email", gin.H{"code": code}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/auth/password-reset/validate", "", tc.body)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	// o código correto continua válido depois das tentativas erradas
	w = env.do(t, http.MethodPost, "/auth/password-reset/validate", "", gin.H{"email": "ana@example.com", "code": code})
	assert.Equal(t, http.StatusOK, w.Code)

	// e só pode ser validado uma vez
	w = env.do(t, http.MethodPost, "/auth/password-reset/validate", "", gin.H{"email": "ana@example.com", "code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgInvalidCode, decodeBody(t, w)["error"])
}

func TestConfirmReset_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ana := env.seedUser(t, "ana@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))
	token := env.requestAndValidate(t, "ana@example.com")

	t.Run("session token is not a reset credential", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": "ana@example.com", "token": env.tokenFor(t, ana), "newPassword": "new-password"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid or expired token", decodeBody(t, w)["error"])
	})
	t.Run("email mismatch", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": "bob@example.com", "token": token, "newPassword": "new-password"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("garbage token", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": "ana@example.com", "token": "not.a.jwt", "newPassword": "new-password"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("weak password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": "ana@example.com", "token": token, "newPassword": "short"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "between 8 and 72")
	})

	// nenhuma das tentativas consumiu a credencial
	w := env.do(t, http.MethodPost, "/auth/password-reset/confirm", "", gin.H{"email": "ana@example.com", "token": token, "newPassword": "new-password"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserExistsHandler_Toggle(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ana@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))

	previous := config.Cfg.FeatureToggles
	t.Cleanup(func() { config.Cfg.FeatureToggles = previous })

	config.Cfg.FeatureToggles = map[string]bool{}
	w := env.do(t, http.MethodPost, "/auth/password-reset/user-exists", "", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	config.Cfg.FeatureToggles = map[string]bool{features.UserExistsCheck: true}
	w = env.do(t, http.MethodPost, "/auth/password-reset/user-exists", "", gin.H{"email": "ANA@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["exists"])

	w = env.do(t, http.MethodPost, "/auth/password-reset/user-exists", "", gin.H{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["exists"])
}

func TestChangePasswordHandler(t *testing.T) {
	env := newTestEnv(t)
	ana := env.seedUser(t, "ana@example.com", "password1", models.RoleEmployee, officePtr(models.OfficeOTIC))
	token := env.tokenFor(t, ana)

	w := env.do(t, http.MethodPost, "/api/v1/me/password", "", gin.H{"currentPassword": "password1", "newPassword": "password2"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/me/password", token, gin.H{"currentPassword": "wrong-pass", "newPassword": "password2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Current password is incorrect", decodeBody(t, w)["error"])

	w = env.do(t, http.MethodPost, "/api/v1/me/password", token, gin.H{"currentPassword": "password1", "newPassword": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/me/password", token, gin.H{"currentPassword": "password1", "newPassword": "password2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/auth/signin", "", gin.H{"email": "ana@example.com", "password": "password2"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Eventually(t, func() bool {
		types := env.security.types()
		return len(types) == 1 && types[0] == notifications.EventPasswordChanged
	}, time.Second, 10*time.Millisecond)
}
