package enrich

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTry(t *testing.T) {
	ok := Try(func() (int, error) { return 7, nil })
	assert.False(t, ok.Skipped)
	assert.Equal(t, 7, ok.Or(0))

	skipped := Try(func() (int, error) { return 0, errors.New("upstream down") })
	assert.True(t, skipped.Skipped)
	assert.Equal(t, "upstream down", skipped.Reason)
	assert.Equal(t, 3, skipped.Or(3))
}
