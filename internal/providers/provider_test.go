package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeshare/internal/model"
)

func TestFetchErrorMatching(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(NewFetchError("wits", "USA", model.FlowExport, cause))

	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "wits: fetch reporter=USA flow=export: connection refused", err.Error())

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "USA", fetchErr.Reporter)
}

func TestGetenvFallbacks(t *testing.T) {
	t.Setenv("TRADESHARE_TEST_INT", "x")
	t.Setenv("TRADESHARE_TEST_BOOL", "no")
	t.Setenv("TRADESHARE_TEST_STR", "  value ")

	assert.Equal(t, 7, GetenvInt("TRADESHARE_TEST_INT", 7))
	assert.False(t, GetenvBool("TRADESHARE_TEST_BOOL", true))
	assert.Equal(t, "value", Getenv("TRADESHARE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", Getenv("TRADESHARE_TEST_UNSET", "fallback"))
	assert.Equal(t, 1.5, GetenvFloat("TRADESHARE_TEST_UNSET", 1.5))
}
