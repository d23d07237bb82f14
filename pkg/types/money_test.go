package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeFromBps(t *testing.T) {
	// 250 bps on $1,200.00 is $30.00.
	assert.Equal(t, int64(3000), FeeFromBps(120000, 250))
	// Sub-cent results round half up.
	assert.Equal(t, int64(1), FeeFromBps(25, 250))
	assert.Equal(t, int64(0), FeeFromBps(19, 250))
	assert.Equal(t, int64(0), FeeFromBps(100, 0))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$1200.00", FormatCents(120000))
	assert.Equal(t, "$0.07", FormatCents(7))
}
