package result

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonica-labs/zircon/internal/errors"
)

func TestSuccess_NeverCarriesErrors(t *testing.T) {
	r := Success(42)

	assert.True(t, r.IsSuccess())
	assert.False(t, r.IsFailure())
	assert.Nil(t, r.Errors())
	assert.NoError(t, r.Err())

	v, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestFailure_FormattedErrors(t *testing.T) {
	t.Run("joins errors", func(t *testing.T) {
		r := Failure[int]("name is required", "age must be positive")
		assert.Equal(t, "name is required; age must be positive", r.FormattedErrors("unknown error"))
	})

	t.Run("empty list returns fallback", func(t *testing.T) {
		r := Failure[int]()
		assert.True(t, r.IsFailure())
		assert.Equal(t, "unknown error", r.FormattedErrors("unknown error"))
		assert.Nil(t, r.Errors())
	})
}

func TestFailure_ErrorsAreCopied(t *testing.T) {
	input := []string{"a"}
	r := Failure[string](input...)
	input[0] = "mutated"

	errs := r.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "a", errs[0])

	errs[0] = "changed"
	assert.Equal(t, "a", r.Errors()[0])
}

func TestFailure_ErrIsValidationError(t *testing.T) {
	err := Failure[int]("bad input").Err()
	require.Error(t, err)
	assert.Equal(t, int(errors.CodeValidation), errors.ExitCode(err))
}

func TestMapAndBind(t *testing.T) {
	doubled := Map(Success(21), func(v int) int { return v * 2 })
	v, ok := doubled.Value()
	require.True(t, ok)
	assert.Equal(t, 42, v)

	failed := Map(Failure[int]("nope"), func(v int) int { return v * 2 })
	assert.Equal(t, []string{"nope"}, failed.Errors())

	parse := func(s string) Result[int] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Failure[int]("not a number: " + s)
		}
		return Success(n)
	}
	assert.True(t, Bind(Success("7"), parse).IsSuccess())
	assert.Equal(t, []string{"not a number: x"}, Bind(Success("x"), parse).Errors())
}
