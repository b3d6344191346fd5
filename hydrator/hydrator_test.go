package hydrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/octave-lang/octave/hydrator/cache"
	"github.com/octave-lang/octave/parser"
)

// fakeCache is a minimal in-process cache.Cache for exercising the
// get-or-miss path without a real backend.
type fakeCache struct {
	entries map[string][]byte
	gets    int
	sets    int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, hash string) ([]byte, error) {
	c.gets++
	v, ok := c.entries[hash]
	if !ok {
		return nil, cache.ErrCacheMiss{Hash: hash}
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, hash string, terms []byte, ttl time.Duration) error {
	c.sets++
	c.entries[hash] = terms
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, hash string) error {
	delete(c.entries, hash)
	return nil
}

func (c *fakeCache) Clear(ctx context.Context) error {
	c.entries = map[string][]byte{}
	return nil
}

const capsuleSrc = "===VOCAB===\n" +
	"META:\n" +
	"  TYPE::\"CAPSULE\"\n" +
	"§TERMS::\n" +
	"  ALPHA::\"alpha definition\"\n" +
	"  BETA::\"beta definition\"\n" +
	"===END===\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadCapsule(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vocab.oct", capsuleSrc)
	terms, err := loadCapsule(path)
	if err != nil {
		t.Fatalf("loadCapsule: %v", err)
	}
	if terms["ALPHA"] != "alpha definition" || terms["BETA"] != "beta definition" {
		t.Fatalf("unexpected terms: %v", terms)
	}
}

func TestLoadCapsuleRejectsNonCapsule(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notvocab.oct", "===X===\nMETA:\n  TYPE::\"PROTOCOL_DEFINITION\"\n===END===\n")
	if _, err := loadCapsule(path); err == nil {
		t.Fatal("expected error loading non-CAPSULE document as vocabulary")
	}
}

func TestParseImportAnnotation(t *testing.T) {
	ns, ver, err := parseImportAnnotation(`"@ns/vocab", "1.0.0"`)
	if err != nil {
		t.Fatalf("parseImportAnnotation: %v", err)
	}
	if ns != "@ns/vocab" || ver != "1.0.0" {
		t.Fatalf("got ns=%q ver=%q", ns, ver)
	}

	ns2, ver2, err := parseImportAnnotation(`"@ns/vocab"`)
	if err != nil {
		t.Fatalf("parseImportAnnotation: %v", err)
	}
	if ns2 != "@ns/vocab" || ver2 != "" {
		t.Fatalf("got ns=%q ver=%q, want empty version", ns2, ver2)
	}
}

func TestReconcileCollisions(t *testing.T) {
	local := map[string]string{"ALPHA": "local alpha"}
	vocab := map[string]string{"ALPHA": "vocab alpha", "BETA": "vocab beta"}

	if _, err := reconcileCollisions(local, vocab, CollisionError); err == nil {
		t.Fatal("expected CollisionError policy to error on collision")
	}

	sourceWins, err := reconcileCollisions(local, vocab, CollisionSourceWins)
	if err != nil {
		t.Fatalf("reconcileCollisions: %v", err)
	}
	if sourceWins["ALPHA"] != "vocab alpha" {
		t.Fatalf("expected source_wins to keep imported definition, got %q", sourceWins["ALPHA"])
	}

	localWins, err := reconcileCollisions(local, vocab, CollisionLocalWins)
	if err != nil {
		t.Fatalf("reconcileCollisions: %v", err)
	}
	if localWins["ALPHA"] != "local alpha" {
		t.Fatalf("expected local_wins to keep local definition, got %q", localWins["ALPHA"])
	}
	if localWins["BETA"] != "vocab beta" {
		t.Fatalf("expected non-colliding vocabulary term preserved, got %q", localWins["BETA"])
	}
}

func TestValidateSourceURIRejectsAbsolute(t *testing.T) {
	if _, err := ValidateSourceURI("/etc/passwd", "/tmp/base", ""); err == nil {
		t.Fatal("expected absolute source URI to be rejected")
	}
}

func TestValidateSourceURIRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	if _, err := ValidateSourceURI("../../outside", dir, dir); err == nil {
		t.Fatal("expected escaping relative source URI to be rejected")
	}
}

func TestValidateSourceURIAllowsWithinRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inside.oct", "x")
	resolved, err := ValidateSourceURI("inside.oct", dir, dir)
	if err != nil {
		t.Fatalf("ValidateSourceURI: %v", err)
	}
	if filepath.Base(resolved) != "inside.oct" {
		t.Fatalf("resolved = %q", resolved)
	}
}

func TestHydrateEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocab.oct", capsuleSrc)

	src := "===DOC===\n" +
		"§CONTEXT::LOCAL\n" +
		"  ALPHA::\"local alpha\"\n" +
		"§CONTEXT::IMPORT[\"@ns/vocab\", \"1.0.0\"]\n" +
		"§1::INTRO\n" +
		"  NOTE::\"see BETA for details\"\n" +
		"===END===\n"
	docPath := writeFile(t, dir, "doc.oct", src)

	registry := NewRegistry(map[string]Entry{
		"@ns/vocab": {Path: "vocab.oct", Version: "1.0.0"},
	})
	policy := Policy{Depth: 1, Prune: PruneList, Collision: CollisionLocalWins}

	doc, err := Hydrate(docPath, registry, policy)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	var sawSnapshot, sawManifest, sawPruned bool
	for _, n := range doc.Body {
		sec, ok := n.(*parser.Section)
		if !ok {
			continue
		}
		switch {
		case sec.ID == "CONTEXT" && sec.Name == "SNAPSHOT":
			sawSnapshot = true
			found := false
			for _, child := range sec.Body {
				if asn, ok := child.(*parser.Assignment); ok && asn.Key == "BETA" {
					found = true
				}
			}
			if !found {
				t.Fatal("expected BETA (used term) in SNAPSHOT body")
			}
		case sec.ID == "SNAPSHOT" && sec.Name == "MANIFEST":
			sawManifest = true
		case sec.ID == "SNAPSHOT" && sec.Name == "PRUNED":
			sawPruned = true
		}
	}
	if !sawSnapshot || !sawManifest || !sawPruned {
		t.Fatalf("expected SNAPSHOT+MANIFEST+PRUNED triple, snapshot=%v manifest=%v pruned=%v", sawSnapshot, sawManifest, sawPruned)
	}
}

func TestHydrateWithCacheReusesTermMap(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "vocab.oct", capsuleSrc)
	hash, err := hashFile(vocabPath)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}

	src := "===DOC===\n" +
		"§CONTEXT::IMPORT[\"@ns/vocab\", \"1.0.0\"]\n" +
		"§1::INTRO\n" +
		"  NOTE::\"see ALPHA and BETA for details\"\n" +
		"===END===\n"
	docPath := writeFile(t, dir, "doc.oct", src)

	registry := NewRegistry(map[string]Entry{
		"@ns/vocab": {Path: "vocab.oct", Version: "1.0.0"},
	})
	policy := Policy{Depth: 1, Prune: PruneList, Collision: CollisionSourceWins}

	termCache := newFakeCache()
	if _, err := HydrateWithCache(docPath, registry, policy, termCache); err != nil {
		t.Fatalf("HydrateWithCache: %v", err)
	}
	if termCache.sets != 1 {
		t.Fatalf("expected the first hydration to populate the cache once, got %d sets", termCache.sets)
	}
	if _, ok := termCache.entries[hash]; !ok {
		t.Fatalf("expected cache entry keyed by vocabulary source hash %q", hash)
	}

	// Seed a distinguishable term map directly under the real hash so a
	// second hydration can only produce it by reading the cache, never
	// by re-parsing the on-disk CAPSULE.
	termCache.entries[hash] = []byte(`{"ALPHA":"cached alpha","BETA":"cached beta"}`)

	doc, err := HydrateWithCache(docPath, registry, policy, termCache)
	if err != nil {
		t.Fatalf("HydrateWithCache (second pass): %v", err)
	}
	if termCache.gets == 0 {
		t.Fatal("expected the second hydration to consult the cache")
	}

	var gotAlpha string
	for _, n := range doc.Body {
		sec, ok := n.(*parser.Section)
		if !ok || sec.ID != "CONTEXT" || sec.Name != "SNAPSHOT" {
			continue
		}
		for _, child := range sec.Body {
			if asn, ok := child.(*parser.Assignment); ok && asn.Key == "ALPHA" {
				if lit, ok := asn.Value.(parser.LiteralValue); ok {
					gotAlpha = lit.Raw.(string)
				}
			}
		}
	}
	if gotAlpha != "cached alpha" {
		t.Fatalf("expected SNAPSHOT to reflect the cached term map, got ALPHA=%q", gotAlpha)
	}
}

func TestHydrateCycleDetection(t *testing.T) {
	dir := t.TempDir()
	src := "===DOC===\n" +
		"§CONTEXT::IMPORT[\"@ns/self\"]\n" +
		"===END===\n"
	docPath := writeFile(t, dir, "self.oct", src)

	absPath, _ := filepath.Abs(docPath)
	registry := NewRegistry(map[string]Entry{
		"@ns/self": {Path: absPath},
	})
	_, err := Hydrate(docPath, registry, Policy{Prune: PruneElide, Collision: CollisionSourceWins})
	if err == nil {
		t.Fatal("expected cycle detection error when vocabulary resolves to the active source path")
	}
	if _, ok := err.(*CycleDetectionError); !ok {
		if !strings.Contains(err.Error(), "cycle") {
			t.Fatalf("expected a cycle-flavored error, got %v", err)
		}
	}
}

func TestCheckStalenessFreshAndStale(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "vocab.oct", capsuleSrc)
	hash, err := hashFile(vocabPath)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}

	fresh := "===DOC===\n" +
		"§CONTEXT::SNAPSHOT[\"@ns/vocab\"]\n" +
		"  BETA::\"beta definition\"\n" +
		"§SNAPSHOT::MANIFEST\n" +
		"  SOURCE_URI::\"vocab.oct\"\n" +
		"  SOURCE_HASH::\"" + hash + "\"\n" +
		"===END===\n"
	doc, _, err := parser.Parse(fresh, "doc.oct", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	results := CheckStaleness(doc, dir, dir)
	if len(results) != 1 || results[0].Status != Fresh {
		t.Fatalf("expected FRESH result, got %+v", results)
	}

	// mutate the vocabulary file so the recorded hash goes stale.
	mutated := strings.Replace(capsuleSrc, "===END===", "  GAMMA::\"gamma definition\"\n===END===", 1)
	if err := os.WriteFile(vocabPath, []byte(mutated), 0o644); err != nil {
		t.Fatalf("rewriting vocab: %v", err)
	}
	results2 := CheckStaleness(doc, dir, dir)
	if len(results2) != 1 || results2[0].Status != Stale {
		t.Fatalf("expected STALE result after mutation, got %+v", results2)
	}
}

func TestCheckStalenessMalformedManifest(t *testing.T) {
	doc, _, err := parser.Parse("===DOC===\n§SNAPSHOT::MANIFEST\n  SOURCE_URI::\"x\"\n===END===\n", "doc.oct", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	results := CheckStaleness(doc, ".", ".")
	if len(results) != 1 || results[0].Status != StaleError {
		t.Fatalf("expected ERROR result for manifest missing SOURCE_HASH, got %+v", results)
	}
}
