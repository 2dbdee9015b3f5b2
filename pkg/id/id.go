// Package id generates ULIDs for journal runs and simulated exchange order
// ids.
//
// ULIDs sort lexicographically by creation time, so a run table ordered by id
// is ordered by start time. Ids drawn from one Generator within the same
// millisecond still increase, because the entropy source is monotonic.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

type Generator struct {
	mu   sync.Mutex
	mono io.Reader
}

// NewGenerator returns a generator whose entropy is derived from seed. The
// same seed and clock give the same ids, which the simulator relies on.
func NewGenerator(seed int64) *Generator {
	return &Generator{mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// New returns the next id stamped with t.
func (g *Generator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.mono)
	if err != nil {
		// Only happens when the monotonic entropy overflows within one millisecond.
		panic(err)
	}
	return id.String()
}

var std = NewGenerator(seed())

func seed() int64 {
	var s int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &s)
	if s == 0 {
		s = time.Now().UnixNano()
	}
	return s
}

// New returns a ULID string stamped with the current time.
func New() string {
	return std.New(time.Now())
}

// Time returns the creation time encoded in an id.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse id %q", s)
	}
	return ulid.Time(u.Time()).UTC(), nil
}
