package lifecycle

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

var idPattern = regexp.MustCompile(`^EMR-[0-9A-F]{8}$`)

// ValidID reports whether id has the EMR-XXXXXXXX shape
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// IDGenerator hands out report identifiers. Each process walks a Weyl
// sequence over the 32 bit space from a random start with a random odd
// stride, so no value repeats before 2^32 draws.
type IDGenerator struct {
	mu     sync.Mutex
	next   uint32
	stride uint32
}

// NewIDGenerator seeds a generator from a random UUID
func NewIDGenerator() *IDGenerator {
	u := uuid.New()
	return &IDGenerator{
		next:   binary.BigEndian.Uint32(u[0:4]),
		stride: binary.BigEndian.Uint32(u[4:8]) | 1,
	}
}

// Next returns a fresh identifier
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	g.next += g.stride
	v := g.next
	g.mu.Unlock()
	return fmt.Sprintf("EMR-%08X", v)
}
