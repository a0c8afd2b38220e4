package errkind

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(Validation, "bad roadmap structure")
	assert.Equal(t, "validation: bad roadmap structure", err.Error())
}

func TestWithDetails(t *testing.T) {
	err := New(System, "checkpoint corrupted").WithDetails("task_id=t1")
	assert.Equal(t, "system: checkpoint corrupted (task_id=t1)", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, Recoverable, "save intent analysis")
	require.NotNil(t, err)
	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestWrapfFormatsMessage(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrapf(cause, Recoverable, "node %s exceeded %d s", "validation", 120)
	assert.Equal(t, "recoverable: node validation exceeded 120 s", err.Error())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Validation, Classify(New(Validation, "x")))
	assert.Equal(t, Unknown, Classify(errors.New("plain")))
	assert.Equal(t, Kind(""), Classify(nil))
}

func TestRollsBackWholeTransaction(t *testing.T) {
	assert.False(t, RollsBackWholeTransaction(Recoverable))
	assert.False(t, RollsBackWholeTransaction(Validation))
	assert.True(t, RollsBackWholeTransaction(System))
	assert.True(t, RollsBackWholeTransaction(Unknown))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Recoverable))
	assert.False(t, Retryable(Validation))
	assert.False(t, Retryable(System))
	assert.False(t, Retryable(Unknown))
}
