package apperrors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func respondWith(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Respond(c, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondKnownKind(t *testing.T) {
	w, body := respondWith(t, New(KindNotFound, "project not found"))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", body["error"])
	require.Equal(t, "project not found", body["message"])
}

func TestRespondEchoesContext(t *testing.T) {
	err := New(KindPlanUpgradeRequired, "plan upgrade required").
		With("currentPlan", "free").
		With("allowedPlans", []string{"basic", "premium"})

	w, body := respondWith(t, err)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "free", body["currentPlan"])
	require.Equal(t, []any{"basic", "premium"}, body["allowedPlans"])
}

// Raw errors must never leak driver or stack details to a caller.
func TestRespondMasksUnknownErrors(t *testing.T) {
	w, body := respondWith(t, errors.New("pq: column users.secret does not exist"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal_server_error", body["error"])
	require.NotContains(t, body["message"], "users.secret")
}

// The outermost kinded error decides the status, even when it wraps
// another kind.
func TestRespondUsesOutermostKind(t *testing.T) {
	inner := New(KindValidation, "bad input")

	w, body := respondWith(t, Wrap(KindInternal, "outer", inner))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal_server_error", body["error"])

	w, body = respondWith(t, inner)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_error", body["error"])
}

func TestStatusFallsBackToInternal(t *testing.T) {
	err := &Error{Kind: Kind("made_up"), Message: "x"}
	require.Equal(t, http.StatusInternalServerError, err.Status())
}
