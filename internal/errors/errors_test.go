package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cause := stderrors.New("dial tcp 10.0.0.5:3306: connect: connection refused")
	wrapped := fmt.Errorf("studio-b: %w", Wrap(ConnectionFailure, "open connection", cause))

	assert.Equal(t, ConnectionFailure, KindOf(wrapped))
	assert.Equal(t, Unknown, KindOf(cause))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestIsMatchesByKind(t *testing.T) {
	sentinel := New(NoProfilesConfigured, "no database profiles configured")
	err := fmt.Errorf("read agencies: %w", Wrap(NoProfilesConfigured, "profile list is empty", nil))

	assert.True(t, stderrors.Is(err, sentinel))
	assert.False(t, stderrors.Is(err, New(ConnectionFailure, "")))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(QueryExecutionFailure, "exec", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "query_execution_failure: exec: boom", err.Error())
	assert.Equal(t, "cancellation: abandoned", New(Cancellation, "abandoned").Error())
}
