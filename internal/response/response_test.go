package response

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "magic-workflow/pkg/errors"
)

func TestFromError(t *testing.T) {
	ok := FromError(nil)
	assert.Equal(t, int32(0), ok.Error)
	assert.Empty(t, ok.Kind)

	res := FromError(fmt.Errorf("merge: %w", apperrors.Newf(apperrors.CodeAdjacencyViolation, "Scenes are not adjacent", "0 and 2")))
	assert.Equal(t, int32(apperrors.CodeAdjacencyViolation), res.Error)
	assert.Equal(t, apperrors.KindAdjacencyViolation, res.Kind)
	assert.Equal(t, "0 and 2", res.Detail)

	res = FromError(fmt.Errorf("boom"))
	assert.Equal(t, int32(apperrors.CodeUnknown), res.Error)
	assert.Equal(t, "boom", res.Msg)
	assert.Equal(t, apperrors.KindCollaboratorFailure, res.Kind)
}

func TestErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ErrorResponse(c, apperrors.ErrWouldEmptyGroup)

	assert.Equal(t, 200, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int32(apperrors.CodeWouldEmptyGroup), body.Error)
	assert.Equal(t, apperrors.KindWouldEmptyGroup, body.Kind)
}
