package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mbolis/quick-forms/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MapsTaxonomy(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&model.ValidationError{Msg: "name: required"}, http.StatusBadRequest},
		{fmt.Errorf("question q1: %w", model.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("form abc: %w", model.ErrNotFound), http.StatusNotFound},
		{model.ErrUnauthorized, http.StatusUnauthorized},
		{model.ErrForbidden, http.StatusForbidden},
		{model.ErrConflict, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			Error(w, httptest.NewRequest("GET", "/", nil), "test", tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestError_ValidationFields(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, httptest.NewRequest("POST", "/", nil), "test", &model.ValidationError{
		Msg:    "missing required answers: \"Email\"",
		Fields: map[string]string{"q1": "required"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"missing required answers: \"Email\"","fields":{"q1":"required"}}`, w.Body.String())
}

func TestError_InternalHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, httptest.NewRequest("GET", "/", nil), "test", errors.New("password=hunter2"))

	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestResponseBuffer_CapturesTokenResponse(t *testing.T) {
	buf := NewResponseBuffer()
	assert.Equal(t, 0, buf.Status())
	assert.False(t, buf.OK())

	buf.Header().Set("Content-Type", "application/json")
	_, err := buf.Write([]byte(`{"access_token":"abc","expires_in":120}`))
	require.NoError(t, err)
	buf.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusOK, buf.Status())
	assert.True(t, buf.OK())

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	require.NoError(t, buf.DecodeJSON(&token))
	assert.Equal(t, "abc", token.AccessToken)
	assert.Equal(t, int64(120), token.ExpiresIn)
}

func TestResponseBuffer_CapturesRejection(t *testing.T) {
	buf := NewResponseBuffer()
	buf.WriteHeader(http.StatusUnauthorized)
	buf.WriteHeader(http.StatusOK)
	_, _ = buf.Write([]byte(`"Not authorized: token expired"`))

	assert.Equal(t, http.StatusUnauthorized, buf.Status())
	assert.False(t, buf.OK())

	var reason string
	require.NoError(t, buf.DecodeJSON(&reason))
	assert.Equal(t, "Not authorized: token expired", reason)
}

type signup struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"min=6"`
}

func TestDecode(t *testing.T) {
	v := NewValidator()

	var ok signup
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Ann","email":"ann@example.com","password":"secret"}`))
	require.NoError(t, Decode(r, v, &ok))
	assert.Equal(t, "Ann", ok.Name)

	var bad signup
	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"nope","password":"123"}`))
	err := Decode(r, v, &bad)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"name":     "required",
		"email":    "must be a valid email address",
		"password": "must be at least 6 characters long",
	}, verr.Fields)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestDecode_Malformed(t *testing.T) {
	var dst signup
	err := Decode(httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`)), nil, &dst)
	assert.ErrorIs(t, err, model.ErrValidation)
}
