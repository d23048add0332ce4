package transport

import (
	"encoding/json"
	"net/http"
	"testing"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feature: storefront, Property 9: Invalid sign-up data is rejected
// Validates: Auth API sign-up validation
func TestProperty_InvalidSignUpDataIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sign-up with invalid data returns validation errors", prop.ForAll(
		func(invalidCase int) bool {
			api := newTestAPI(t)

			var reqBody SignUpRequest
			switch invalidCase % 3 {
			case 0:
				reqBody = SignUpRequest{Email: "", Password: "ValidPass123"}
			case 1:
				reqBody = SignUpRequest{Email: "not-an-email", Password: "ValidPass123"}
			case 2:
				reqBody = SignUpRequest{Email: "test@example.com", Password: "short"}
			}

			w := api.do(http.MethodPost, "/api/auth/signup", "", reqBody)
			if w.Code != http.StatusBadRequest {
				t.Logf("FAIL: Expected 400 status code, got %d", w.Code)
				return false
			}

			var response map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Logf("FAIL: Could not decode error response: %v", err)
				return false
			}
			_, exists := response["error"]
			return exists && len(api.users.users) == 0
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 19: Successful sign-up and login return both tokens
// Validates: Auth API sign-up and login
func TestProperty_SignUpAndLoginReturnTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sign-up and login return access and refresh tokens for the same identity", prop.ForAll(
		func(email, password string) bool {
			api := newTestAPI(t)

			w := api.do(http.MethodPost, "/api/auth/signup", "", SignUpRequest{Email: email, Password: password})
			if w.Code != http.StatusCreated {
				t.Logf("FAIL: Sign-up returned %d: %s", w.Code, w.Body.String())
				return false
			}
			var signUp AuthResponse
			if err := json.NewDecoder(w.Body).Decode(&signUp); err != nil {
				return false
			}

			w = api.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password})
			if w.Code != http.StatusOK {
				t.Logf("FAIL: Login returned %d", w.Code)
				return false
			}
			var login AuthResponse
			if err := json.NewDecoder(w.Body).Decode(&login); err != nil {
				return false
			}

			return login.AccessToken != "" &&
				login.RefreshToken != "" &&
				login.ExpiresIn > 0 &&
				login.User.ID == signUp.User.ID &&
				login.User.Email == email
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthHandler_Login(t *testing.T) {
	api := newTestAPI(t)
	api.signUp(t, "ana@example.com")

	w := api.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, w).Message)

	w = api.do(http.MethodPost, "/api/auth/signup", "", SignUpRequest{Email: "ana@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_SessionRefreshLogout(t *testing.T) {
	api := newTestAPI(t)
	auth := api.signUp(t, "ana@example.com")

	w := api.do(http.MethodGet, "/api/auth/session", auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var identity domain.Identity
	require.NoError(t, json.NewDecoder(w.Body).Decode(&identity))
	assert.Equal(t, auth.User, identity)

	w = api.do(http.MethodGet, "/api/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: auth.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed RefreshResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)

	w = api.do(http.MethodPost, "/api/auth/logout", auth.AccessToken, RefreshRequest{RefreshToken: auth.RefreshToken})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: auth.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Profiles(t *testing.T) {
	api := newTestAPI(t)
	ana := api.signUp(t, "ana@example.com")
	bob := api.signUp(t, "bob@example.com")
	admin := api.signUpAdmin(t, "admin@example.com")

	w := api.do(http.MethodGet, "/api/profiles/"+ana.User.ID.String(), ana.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile domain.Profile
	require.NoError(t, json.NewDecoder(w.Body).Decode(&profile))
	assert.Equal(t, domain.RoleCustomer, profile.Role)
	assert.Equal(t, "Test User", profile.FullName)

	w = api.do(http.MethodGet, "/api/profiles/"+ana.User.ID.String(), bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/profiles/"+ana.User.ID.String(), admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/profiles/"+uuid.NewString(), admin.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/profiles/not-a-uuid", ana.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/auth/profile", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&profile))
	assert.Equal(t, domain.RoleAdmin, profile.Role)
}
