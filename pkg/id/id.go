// Package id mints identifiers. Orders and trades get ULIDs so they sort
// by time; sessions and backtest runs get random UUIDs.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator hands out ULIDs. Ids minted for the same millisecond are
// strictly increasing.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator seeds a monotonic entropy source from seed. A zero seed is
// replaced by crypto/rand.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:     time.Now,
	}
}

// At mints an id whose timestamp part is ts. Simulated fills pass bar
// time here so replayed ids sort by market time. A zero ts uses the
// wall clock.
func (g *Generator) At(ts time.Time) string {
	if ts.IsZero() {
		ts = g.now()
	}
	ms := ulid.Timestamp(ts.UTC())
	if ts.Before(time.UnixMilli(0)) {
		ms = 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	v, err := ulid.New(ms, g.entropy)
	if err != nil {
		// entropy overflow within one millisecond
		panic(err)
	}
	return v.String()
}

// Next mints an id stamped with the wall clock.
func (g *Generator) Next() string {
	return g.At(time.Time{})
}

var std = NewGenerator(0)

// New returns a wall-clock ULID.
func New() string { return std.Next() }

// At returns a ULID stamped with ts.
func At(ts time.Time) string { return std.At(ts) }

// Time extracts the timestamp from a ULID string.
func Time(s string) (time.Time, error) {
	v, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(v.Time()).UTC(), nil
}

// NewSession returns a random UUID for broker sessions and backtest runs.
func NewSession() string {
	return uuid.NewString()
}
