// Package id generates the identifiers used across the bridge.
//
// Every id is a ULID behind a short type prefix (sess_, ctr_, req_), so ids
// sort by creation time and read well in logs. Peer windows are identified
// separately with UUIDs by the socket layer.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Typed IDs
// ============================================================================

// SessionID identifies one embedding session.
type SessionID string

// ContainerID identifies a host container.
type ContainerID string

// RequestID identifies an API request.
type RequestID string

const (
	SessionPrefix   = "sess"
	ContainerPrefix = "ctr"
	RequestPrefix   = "req"
)

// ErrInvalid is returned by the Parse helpers.
var ErrInvalid = errors.New("invalid id")

// ============================================================================
// Generator
// ============================================================================

// Generator produces ULIDs from an entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand. Ids generated in
// the same millisecond still sort in generation order.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefix_ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Constructors and parsing
// ============================================================================

// NewSessionID generates a session id.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewContainerID generates a container id.
func NewContainerID() ContainerID {
	return ContainerID(Default().GenerateWithPrefix(ContainerPrefix))
}

// NewRequestID generates a request id.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id SessionID) String() string   { return string(id) }
func (id ContainerID) String() string { return string(id) }
func (id RequestID) String() string   { return string(id) }

// ParseSessionID validates a session id received from outside the process.
func ParseSessionID(s string) (SessionID, error) {
	if err := parsePrefixed(s, SessionPrefix); err != nil {
		return "", err
	}
	return SessionID(s), nil
}

func parsePrefixed(s, prefix string) error {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return fmt.Errorf("%w: %q lacks %s_ prefix", ErrInvalid, s, prefix)
	}
	if !IsValid(rest) {
		return fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return nil
}

// IsValid checks whether s is a ULID.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Timestamp extracts the creation time from a ULID or prefixed id.
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
