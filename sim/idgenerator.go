package sim

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out IDs for events, tasks and progress bars.
type IDGenerator interface {
	Generate() string
}

var idGen struct {
	sync.Mutex
	gen    IDGenerator
	frozen bool
}

// UseSequentialIDGenerator makes IDs count up from 1. Two runs with the
// same stimulus get the same IDs. This is the default.
func UseSequentialIDGenerator() {
	setIDGenerator(new(counterIDGenerator))
}

// UseGlobalIDGenerator makes IDs unique across processes.
func UseGlobalIDGenerator() {
	setIDGenerator(xidGenerator{})
}

func setIDGenerator(g IDGenerator) {
	idGen.Lock()
	defer idGen.Unlock()

	if idGen.frozen {
		log.Panic("the ID generator is already in use")
	}

	idGen.gen = g
	idGen.frozen = true
}

// GetIDGenerator returns the process wide ID generator. The first call
// freezes the choice.
func GetIDGenerator() IDGenerator {
	idGen.Lock()
	defer idGen.Unlock()

	if idGen.gen == nil {
		idGen.gen = new(counterIDGenerator)
	}

	idGen.frozen = true

	return idGen.gen
}

type counterIDGenerator struct {
	last atomic.Uint64
}

func (g *counterIDGenerator) Generate() string {
	return strconv.FormatUint(g.last.Add(1), 10)
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
