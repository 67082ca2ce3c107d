package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/repositories"
	"github.com/storyreel/backend/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failWith runs the error mapper against a recorded context and returns
// the status code and decoded failure body.
func failWith(t *testing.T, err error) (int, dto.OperationResult) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fail(c, err)

	var body struct {
		Status  string              `json:"status"`
		Message string              `json:"message"`
		Data    dto.OperationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.False(t, body.Data.Success)
	assert.Equal(t, body.Message, body.Data.Error)
	return w.Code, body.Data
}

func TestFailMapsDomainErrors(t *testing.T) {
	code, result := failWith(t, repositories.ErrProjectNotFound)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Project not found", result.Error)

	code, _ = failWith(t, repositories.ErrDuplicateProjectTitle)
	assert.Equal(t, http.StatusConflict, code)

	code, result = failWith(t, fmt.Errorf("%w: completed -> draft", repositories.ErrInvalidStatusTransition))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, result.Error, "completed -> draft")

	code, _ = failWith(t, &transform.ValidationError{Field: "title", Message: "required"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = failWith(t, errors.New("unauthorized: write permission required"))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestFailNeverLeaksStoreErrors(t *testing.T) {
	code, result := failWith(t, errors.New("pq: connection refused on 10.0.0.3"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Operation failed", result.Error)
}
