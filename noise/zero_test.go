package noise

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	assert := assert.New(t)

	z := Zero{}
	assert.Equal(r3.Vector{}, z.Sample())
	assert.NoError(z.Reset())
	assert.Contains(z.String(), "Zero")
}
