package noise

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Zero is zero noise i.e. no noise
type Zero struct{}

// Sample returns zero vector.
func (Zero) Sample() r3.Vector {
	return r3.Vector{}
}

// Reset does nothing.
func (Zero) Reset() error {
	return nil
}

// String implements the Stringer interface.
func (Zero) String() string {
	return fmt.Sprintf("Zero{Mean=%v}", r3.Vector{})
}
