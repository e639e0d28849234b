package errors

import (
	"context"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMapError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *MapError
		want string
	}{
		{
			name: "without cause",
			err:  InvalidArgument("user is required"),
			want: "[INVALID_ARGUMENT] user is required",
		},
		{
			name: "with cause",
			err:  StoreUnavailable("list items", fmt.Errorf("connection refused")),
			want: "[STORE_UNAVAILABLE] list items: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestMapError_WithContext(t *testing.T) {
	err := NotFound("map not found").WithContext("user", "u1").WithContext("version", 3)
	assert.Equal(t, map[string]any{"user": "u1", "version": 3}, err.Context)
	assert.Equal(t, ErrCodeNotFound, err.GetCode())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  ErrorCode
	}{
		{"deadline", pkgerrors.Wrap(context.DeadlineExceeded, "generate map"), ErrCodeTimeout},
		{"canceled", pkgerrors.Wrap(context.Canceled, "generate map"), ErrCodeContextCanceled},
		{"other", fmt.Errorf("boom"), ErrCodeGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromContext(tt.cause, ErrCodeGenerationFailed, "generate")
			assert.Equal(t, tt.want, err.Code)
			assert.True(t, pkgerrors.Is(err, tt.cause))
		})
	}
}

func TestIsCode(t *testing.T) {
	err := pkgerrors.Wrap(RateLimitExceeded("slow down"), "regenerate")
	assert.True(t, IsCode(err, ErrCodeRateLimitExceeded))
	assert.False(t, IsCode(err, ErrCodeTimeout))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrCodeTimeout))

	assert.Equal(t, ErrCodeRateLimitExceeded, GetCodeFromError(err, ErrCodeGenerationFailed))
	assert.Equal(t, ErrCodeGenerationFailed, GetCodeFromError(fmt.Errorf("plain"), ErrCodeGenerationFailed))
}
