// Package id provides centralized ID generation for the preview runtime.
//
// ULIDs are used everywhere: they are lexicographically sortable, which keeps
// asset-registry listings and rebuild-pass logs in creation order, and the
// type prefixes (asset_*, pass_*) make logs readable.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// AssetID identifies a materialized asset handle.
type AssetID string

// PassID identifies one rebuild pass of the lifecycle manager.
type PassID string

const (
	AssetPrefix = "asset"
	PassPrefix  = "pass"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewAssetID generates a new asset handle ID.
func NewAssetID() AssetID {
	return AssetID(Default().GenerateWithPrefix(AssetPrefix))
}

// NewPassID generates a new rebuild-pass ID.
func NewPassID() PassID {
	return PassID(Default().GenerateWithPrefix(PassPrefix))
}

func (id AssetID) String() string { return string(id) }
func (id PassID) String() string  { return string(id) }
