package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"repohub/internal/database"
	"repohub/internal/handlers"
	"repohub/internal/middleware"
	"repohub/internal/models"
	"repohub/internal/repositories"
	"repohub/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// setupApp builds a Fiber app over an isolated in-memory SQLite database.
func setupApp(t *testing.T, jwtSecret string) *fiber.App {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := database.Open(sqlite.Open(dsn), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	userService := services.NewUserService(repositories.NewGORMUserRepository(db))
	repoService := services.NewRepositoryService(repositories.NewGORMRepoRepository(db), userService)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	api := app.Group("/api", middleware.ProtectWrites(jwtSecret))
	handlers.NewUserHandler(userService).RegisterRoutes(api)
	handlers.NewRepositoryHandler(repoService).RegisterRoutes(api)
	return app
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.Logger = zerolog.New(io.Discard)
	os.Exit(m.Run())
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func createUser(t *testing.T, app *fiber.App, name, email string) models.User {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/users", map[string]string{
		"name": name, "position": "Dev", "email": email,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decode[models.User](t, body)
}

func createRepo(t *testing.T, app *fiber.App, ownerID uint, name string) models.Repository {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/repositories", map[string]interface{}{
		"name": name, "description": "d", "language": "Go", "owner_id": ownerID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decode[models.Repository](t, body)
}

func TestUsersAPI_CreateAndDuplicate(t *testing.T) {
	app := setupApp(t, "")

	ana := createUser(t, app, "Ana", "ana@x.com")
	assert.NotZero(t, ana.ID)
	assert.Equal(t, ana.CreatedAt, ana.UpdatedAt)

	resp, body := doJSON(t, app, http.MethodPost, "/api/users", map[string]string{
		"name": "Ana", "position": "Dev", "email": "ana@x.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := decode[handlers.ErrorResponse](t, body)
	assert.Equal(t, handlers.CodeDuplicateEmail, errResp.Code)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/users/%d", ana.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ana@x.com", decode[models.User](t, body).Email)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/users/email/ana@x.com", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/users/email/nobody@x.com", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.User](t, body), 1)
}

func TestUsersAPI_GetByEncodedEmail(t *testing.T) {
	app := setupApp(t, "")
	created := createUser(t, app, "Ana", "ana+1@x.com")

	for _, path := range []string{
		"/api/users/email/ana+1@x.com",
		"/api/users/email/ana%2B1%40x.com",
		"/api/users/email/ana+1%40x.com",
	} {
		resp, body := doJSON(t, app, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, created.ID, decode[models.User](t, body).ID, path)
	}
}

func TestUsersAPI_ValidationAndIDs(t *testing.T) {
	app := setupApp(t, "")

	resp, body := doJSON(t, app, http.MethodPost, "/api/users", map[string]string{
		"name": "Ana", "email": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[handlers.ErrorResponse](t, body)
	assert.Equal(t, "Validation failed", errResp.Message)
	assert.Contains(t, errResp.Errors, "Email")
	assert.Contains(t, errResp.Errors, "Position")

	resp, _ = doJSON(t, app, http.MethodGet, "/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/users/0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/users/42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRepositoriesAPI_CreateRules(t *testing.T) {
	app := setupApp(t, "")
	ana := createUser(t, app, "Ana", "ana@x.com")

	repo := createRepo(t, app, ana.ID, "repo1")
	assert.False(t, repo.IsFavorite)
	assert.Equal(t, ana.ID, repo.OwnerID)

	resp, body := doJSON(t, app, http.MethodPost, "/api/repositories", map[string]interface{}{
		"name": "repo1", "description": "d", "language": "Go", "owner_id": ana.ID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, handlers.CodeDuplicateName, decode[handlers.ErrorResponse](t, body).Code)

	resp, body = doJSON(t, app, http.MethodPost, "/api/repositories", map[string]interface{}{
		"name": "repo1", "description": "d", "language": "Go", "owner_id": 9999,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, handlers.CodeOwnerNotFound, decode[handlers.ErrorResponse](t, body).Code)

	resp, body = doJSON(t, app, http.MethodGet, "/api/repositories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[[]models.Repository](t, body)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Owner)
	assert.Equal(t, "Ana", all[0].Owner.Name)
}

func TestRepositoriesAPI_FavoriteToggle(t *testing.T) {
	app := setupApp(t, "")
	ana := createUser(t, app, "Ana", "ana@x.com")
	repo := createRepo(t, app, ana.ID, "repo1")

	resp, _ := doJSON(t, app, http.MethodPatch, "/api/repositories/9999/favorite", map[string]bool{"is_favorite": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/repositories/%d/favorite", repo.ID), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 2; i++ {
		resp, body := doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/repositories/%d/favorite", repo.ID), map[string]bool{"is_favorite": true})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		updated := decode[models.Repository](t, body)
		assert.True(t, updated.IsFavorite)
		assert.True(t, updated.UpdatedAt.After(repo.UpdatedAt))
	}

	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/repositories/%d", repo.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.Repository](t, body).IsFavorite)
}

func TestRepositoriesAPI_PartialUpdate(t *testing.T) {
	app := setupApp(t, "")
	ana := createUser(t, app, "Ana", "ana@x.com")
	repo := createRepo(t, app, ana.ID, "repo1")
	createRepo(t, app, ana.ID, "taken")

	resp, body := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/repositories/%d", repo.ID), map[string]interface{}{
		"name": "X", "language": nil,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decode[models.Repository](t, body)
	assert.Equal(t, "X", updated.Name)
	assert.Equal(t, repo.Description, updated.Description)
	assert.Equal(t, repo.Language, updated.Language)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	resp, _ = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/repositories/%d", repo.ID), map[string]string{"description": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/repositories/%d", repo.ID), map[string]string{"name": "taken"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, handlers.CodeDuplicateName, decode[handlers.ErrorResponse](t, body).Code)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/repositories/9999", map[string]string{"name": "Y"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRepositoriesAPI_ListByOwner(t *testing.T) {
	app := setupApp(t, "")
	ana := createUser(t, app, "Ana", "ana@x.com")
	bob := createUser(t, app, "Bob", "bob@x.com")

	// Owner exists but has no repositories yet.
	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/repositories/user/%d", ana.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Repository](t, body))

	resp, body = doJSON(t, app, http.MethodGet, "/api/repositories/user/9999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, handlers.CodeOwnerNotFound, decode[handlers.ErrorResponse](t, body).Code)

	fav := createRepo(t, app, ana.ID, "fav")
	createRepo(t, app, ana.ID, "plain")
	bobFav := createRepo(t, app, bob.ID, "fav")
	for _, id := range []uint{fav.ID, bobFav.ID} {
		resp, _ = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/repositories/%d/favorite", id), map[string]bool{"is_favorite": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/repositories/user/%d/favorites", ana.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	favorites := decode[[]models.Repository](t, body)
	require.Len(t, favorites, 1)
	assert.Equal(t, fav.ID, favorites[0].ID)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/repositories/user/%d", ana.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Repository](t, body), 2)
}

func TestUsersAPI_DeleteCascades(t *testing.T) {
	app := setupApp(t, "")
	ana := createUser(t, app, "Ana", "ana@x.com")
	repo := createRepo(t, app, ana.ID, "repo1")

	resp, _ := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/users/%d", ana.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/repositories/%d", repo.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/users/%d", ana.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_WritesRequireTokenWhenSecretSet(t *testing.T) {
	const secret = "test_jwt_secret"
	app := setupApp(t, secret)

	user := map[string]string{"name": "Ana", "position": "Dev", "email": "ana@x.com"}
	resp, _ := doJSON(t, app, http.MethodPost, "/api/users", user)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/users", user, "Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAPI_UnknownRoute(t *testing.T) {
	app := setupApp(t, "")
	resp, body := doJSON(t, app, http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, handlers.CodeNotFound, decode[handlers.ErrorResponse](t, body).Code)

	resp, body = doJSON(t, app, http.MethodDelete, "/api/repositories/1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, handlers.CodeBadRequest, decode[handlers.ErrorResponse](t, body).Code)
}

func TestErrorHandler_FrameworkErrors(t *testing.T) {
	tests := []struct {
		status   int
		wantCode string
	}{
		{fiber.StatusBadRequest, handlers.CodeValidation},
		{fiber.StatusUnprocessableEntity, handlers.CodeValidation},
		{fiber.StatusUnauthorized, handlers.CodeUnauthorized},
		{fiber.StatusNotFound, handlers.CodeNotFound},
		{fiber.StatusMethodNotAllowed, handlers.CodeBadRequest},
		{fiber.StatusRequestEntityTooLarge, handlers.CodeBadRequest},
		{fiber.StatusServiceUnavailable, handlers.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error {
				return fiber.NewError(tt.status, "boom")
			})

			resp, body := doJSON(t, app, http.MethodGet, "/", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			errResp := decode[handlers.ErrorResponse](t, body)
			assert.Equal(t, tt.wantCode, errResp.Code)
			assert.Equal(t, "boom", errResp.Message)
		})
	}
}
