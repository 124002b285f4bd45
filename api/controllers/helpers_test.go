package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withRouteParams(req *http.Request, kv ...string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		routeCtx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h(resp, req)
	return resp
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}
