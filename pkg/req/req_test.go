package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func TestHandleBody(t *testing.T) {
	log := logger.New(logger.ERROR)

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Jane","email":"jane@example.com"}`))
		w := httptest.NewRecorder()

		body, err := HandleBody[sample](w, r, log)
		require.NoError(t, err)
		assert.Equal(t, "Jane", body.Name)
	})

	t.Run("broken json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		w := httptest.NewRecorder()

		_, err := HandleBody[sample](w, r, log)
		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Jane"}`))
		w := httptest.NewRecorder()

		_, err := HandleBody[sample](w, r, log)
		assert.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Email")
	})
}

func TestIsValidReturnsFieldErrors(t *testing.T) {
	assert.NoError(t, IsValid(sample{Name: "Jane", Email: "jane@example.com"}))

	err := IsValid(sample{Email: "not-an-email"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.ElementsMatch(t, []string{"Name", "Email"}, verrs.Fields())
	assert.Equal(t, map[string]string{"Name": "required", "Email": "email"}, FieldErrors(err))
}
