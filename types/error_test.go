package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	err := NewError(ErrContactBusy, "turn in flight")
	assert.Equal(t, "[CONTACT_BUSY] turn in flight", err.Error())

	cause := errors.New("lease held")
	err = err.WithCause(cause)
	assert.Contains(t, err.Error(), "lease held")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorRetryable(t *testing.T) {
	err := NewError(ErrCollaborator, "crm timeout").WithRetryable(true)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrDuplicateEvent, GetErrorCode(NewError(ErrDuplicateEvent, "seen")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.True(t, IsCode(NewError(ErrHandoffCycle, "cooldown"), ErrHandoffCycle))
}
