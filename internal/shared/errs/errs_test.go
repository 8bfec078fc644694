package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = New(KindConflict, "Slot already booked.")

func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("reserve 202501071100_tutor1: %w", errSample)

	assert.True(t, errors.Is(wrapped, errSample))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "Slot already booked.", MessageOf(wrapped))
}

func TestUnclassifiedErrorsStayPrivate(t *testing.T) {
	err := errors.New("dial tcp 10.0.0.4:6379: connection refused")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "An unexpected error occurred.", MessageOf(err))
}

func TestStorageHidesCause(t *testing.T) {
	cause := errors.New("READONLY You can't write against a read only replica")
	err := Storage(cause)

	assert.Equal(t, KindStorageUnavailable, KindOf(err))
	assert.NotContains(t, MessageOf(err), "READONLY")
	assert.True(t, errors.Is(err, cause))
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("booking: %w", RateLimited("Too many booking attempts.", 42))

	assert.Equal(t, 42, RetryAfterOf(err))
	assert.Equal(t, 0, RetryAfterOf(errors.New("x")))
}
