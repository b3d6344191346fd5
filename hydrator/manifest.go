package hydrator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/octave-lang/octave/parser"
)

// PruneStrategy controls how unused vocabulary terms are recorded in
// the PRUNED section a hydration produces.
type PruneStrategy string

const (
	PruneList  PruneStrategy = "list"
	PruneHash  PruneStrategy = "hash"
	PruneCount PruneStrategy = "count"
	PruneElide PruneStrategy = "elide"
)

// CollisionPolicy controls what happens when a term is defined both in
// a source document's §CONTEXT::LOCAL block and an imported vocabulary.
type CollisionPolicy string

const (
	CollisionError      CollisionPolicy = "error"
	CollisionSourceWins CollisionPolicy = "source_wins"
	CollisionLocalWins  CollisionPolicy = "local_wins"
)

// Policy is the hydrator's HYDRATION_POLICY block.
type Policy struct {
	Depth     int
	Prune     PruneStrategy
	Collision CollisionPolicy
}

// CollisionError reports terms defined in both the source document's
// local vocabulary and an imported one, under CollisionError policy.
type CollisionError struct {
	Terms []string // sorted
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("colliding terms between local and imported vocabulary: %v", e.Terms)
}

// CycleDetectionError reports a vocabulary resolving back to a path
// already being resolved in the current hydration pass.
type CycleDetectionError struct {
	Path string
}

func (e *CycleDetectionError) Error() string {
	return fmt.Sprintf("cycle detected resolving vocabulary at %q", e.Path)
}

// hashFile computes "sha256:<hex>" over path's contents, streaming in
// fixed-size chunks rather than reading the whole file into memory.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func hashNames(names []string) string {
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func buildManifestSection(sourceURI, sourceHash, requestedVersion, resolvedVersion string, policy Policy, now time.Time) *parser.Section {
	if requestedVersion == "" {
		requestedVersion = "unspecified"
	}
	if resolvedVersion == "" {
		resolvedVersion = "unknown"
	}
	str := func(s string) parser.Value { return parser.LiteralValue{Kind: "string", Raw: s} }
	return &parser.Section{
		ID:   "SNAPSHOT",
		Name: "MANIFEST",
		Body: []parser.Node{
			&parser.Assignment{Key: "SOURCE_URI", Value: str(sourceURI)},
			&parser.Assignment{Key: "SOURCE_HASH", Value: str(sourceHash)},
			&parser.Assignment{Key: "HYDRATION_TIME", Value: str(now.UTC().Format(time.RFC3339))},
			&parser.Assignment{Key: "REQUESTED_VERSION", Value: str(requestedVersion)},
			&parser.Assignment{Key: "RESOLVED_VERSION", Value: str(resolvedVersion)},
			&parser.Block{
				Key: "HYDRATION_POLICY",
				Body: []parser.Node{
					&parser.Assignment{Key: "DEPTH", Value: parser.LiteralValue{Kind: "number", Raw: int64(policy.Depth)}},
					&parser.Assignment{Key: "PRUNE", Value: str(string(policy.Prune))},
					&parser.Assignment{Key: "COLLISION", Value: str(string(policy.Collision))},
				},
			},
		},
	}
}

func buildPrunedSection(unused []string, strategy PruneStrategy) *parser.Section {
	sec := &parser.Section{ID: "SNAPSHOT", Name: "PRUNED"}
	switch strategy {
	case PruneList:
		items := make([]parser.Value, len(unused))
		for i, n := range unused {
			items[i] = parser.LiteralValue{Kind: "string", Raw: n}
		}
		sec.Body = []parser.Node{
			&parser.Assignment{Key: "TERMS", Value: parser.ListValue{Items: items}},
		}
	case PruneHash:
		sec.Body = []parser.Node{
			&parser.Assignment{Key: "HASH", Value: parser.LiteralValue{Kind: "string", Raw: hashNames(unused)}},
		}
	case PruneCount:
		sec.Body = []parser.Node{
			&parser.Assignment{Key: "COUNT", Value: parser.LiteralValue{Kind: "number", Raw: int64(len(unused))}},
		}
	case PruneElide:
		return nil
	}
	return sec
}
