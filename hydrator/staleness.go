package hydrator

import (
	"fmt"
	"path/filepath"

	"github.com/octave-lang/octave/parser"
)

// FreshnessStatus is the outcome of comparing a MANIFEST's recorded
// hash against the vocabulary file it points to.
type FreshnessStatus string

const (
	Fresh       FreshnessStatus = "FRESH"
	Stale       FreshnessStatus = "STALE"
	StaleError  FreshnessStatus = "ERROR"
)

// StalenessResult is the outcome for one SNAPSHOT+MANIFEST pair.
type StalenessResult struct {
	Namespace     string
	Status        FreshnessStatus
	ExpectedHash  string
	ActualHash    string
	Err           string
}

// CheckStaleness walks document for every §CONTEXT::SNAPSHOT +
// §SNAPSHOT::MANIFEST pair, recomputes each manifest's SOURCE_HASH
// against SOURCE_URI resolved relative to basePath, and reports
// whether it's still fresh. A malformed manifest (missing or empty
// SOURCE_URI/SOURCE_HASH) always yields an explicit ERROR result.
func CheckStaleness(document *parser.Document, basePath, allowedRoot string) []StalenessResult {
	var results []StalenessResult
	namespace := ""
	for _, n := range document.Body {
		sec, ok := n.(*parser.Section)
		if !ok {
			continue
		}
		if sec.ID == "CONTEXT" && sec.Name == "SNAPSHOT" {
			namespace = unquote(sec.Annotation)
			continue
		}
		if sec.ID == "SNAPSHOT" && sec.Name == "MANIFEST" {
			results = append(results, checkManifest(namespace, sec, basePath, allowedRoot))
		}
	}
	return results
}

func checkManifest(namespace string, manifest *parser.Section, basePath, allowedRoot string) StalenessResult {
	sourceURI := manifestField(manifest, "SOURCE_URI")
	expectedHash := manifestField(manifest, "SOURCE_HASH")

	if sourceURI == "" {
		return StalenessResult{Namespace: namespace, Status: StaleError, Err: "manifest missing SOURCE_URI"}
	}
	if expectedHash == "" {
		return StalenessResult{Namespace: namespace, Status: StaleError, Err: "manifest missing SOURCE_HASH"}
	}

	resolved, err := ValidateSourceURI(sourceURI, basePath, allowedRoot)
	if err != nil {
		return StalenessResult{Namespace: namespace, Status: StaleError, ExpectedHash: expectedHash, Err: err.Error()}
	}

	actualHash, err := hashFile(resolved)
	if err != nil {
		return StalenessResult{Namespace: namespace, Status: StaleError, ExpectedHash: expectedHash, Err: fmt.Sprintf("hashing %s: %v", filepath.Base(resolved), err)}
	}

	status := Stale
	if actualHash == expectedHash {
		status = Fresh
	}
	return StalenessResult{Namespace: namespace, Status: status, ExpectedHash: expectedHash, ActualHash: actualHash}
}

func manifestField(sec *parser.Section, key string) string {
	for _, n := range sec.Body {
		if asn, ok := n.(*parser.Assignment); ok && asn.Key == key {
			if lit, ok := asn.Value.(parser.LiteralValue); ok {
				return fmt.Sprintf("%v", lit.Raw)
			}
		}
	}
	return ""
}
