package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/binarycomp-backend/pkg/errors"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
	"github.com/angelmondragon/binarycomp-backend/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "world", body.Data.(map[string]any)["hello"])
}

func TestWriteListOmitsEmptyCursor(t *testing.T) {
	w := httptest.NewRecorder()
	WriteList(w, []int{1, 2}, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "next_cursor")

	w = httptest.NewRecorder()
	WriteList(w, []int{}, "abc")
	var body types.ListEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "abc", body.NextCursor)
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Error.Code)
	assert.Equal(t, "bad input", body.Error.Message)
	assert.NotNil(t, body.Error.Details)
}

func TestWriteErrorStateConflict(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeStateConflict, "payout is on hold"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "payout is on hold", body.Error.Message)
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: &logs})

	w := httptest.NewRecorder()
	WriteError(context.Background(), logg, w, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.Nil(t, body.Error.Details)
	assert.Contains(t, logs.String(), "request.error")
}
