// Package hydrator resolves §CONTEXT::IMPORT directives against a
// VocabularyRegistry, inlining the terms a document actually uses into
// a self-contained §CONTEXT::SNAPSHOT + §SNAPSHOT::MANIFEST +
// §SNAPSHOT::PRUNED triple, and can later re-check that snapshot for
// staleness against the vocabulary it was taken from.
package hydrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/octave-lang/octave/hydrator/cache"
	"github.com/octave-lang/octave/parser"
)

// Hydrate loads sourcePath, resolves every §CONTEXT::IMPORT section
// against registry under policy, and returns the resulting Document
// with each IMPORT section replaced by its SNAPSHOT/MANIFEST/PRUNED
// triple. Every CAPSULE is re-parsed from disk; callers hydrating the
// same vocabulary repeatedly should use HydrateWithCache instead.
func Hydrate(sourcePath string, registry *Registry, policy Policy) (*parser.Document, error) {
	return HydrateWithCache(sourcePath, registry, policy, nil)
}

// HydrateWithCache behaves like Hydrate, but consults termCache before
// parsing a CAPSULE: a hit for the vocabulary file's content hash skips
// loadCapsule entirely, and a miss populates the cache after parsing so
// the next hydration of the same vocabulary version is free. A nil
// termCache disables caching and behaves exactly like Hydrate.
func HydrateWithCache(sourcePath string, registry *Registry, policy Policy, termCache cache.Cache) (*parser.Document, error) {
	text, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, oops.Code("E_FILE").Wrapf(err, "reading %s", sourcePath)
	}
	doc, _, err := parser.Parse(string(text), sourcePath, false)
	if err != nil {
		return nil, oops.Code("E_PARSE").Wrapf(err, "parsing %s", sourcePath)
	}

	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, err
	}
	active := map[string]bool{absSource: true}
	baseDir := filepath.Dir(sourcePath)

	local := localDefinitions(doc)

	var rebuilt []parser.Node
	for _, node := range doc.Body {
		sec, ok := node.(*parser.Section)
		if !ok || sec.ID != "CONTEXT" || sec.Name != "IMPORT" {
			rebuilt = append(rebuilt, node)
			continue
		}
		triple, err := resolveImport(sec, doc, registry, policy, baseDir, active, local, termCache)
		if err != nil {
			return nil, err
		}
		rebuilt = append(rebuilt, triple...)
	}
	doc.Body = rebuilt
	return doc, nil
}

func resolveImport(sec *parser.Section, doc *parser.Document, registry *Registry, policy Policy, baseDir string, active map[string]bool, local map[string]string, termCache cache.Cache) ([]parser.Node, error) {
	namespace, requestedVersion, err := parseImportAnnotation(sec.Annotation)
	if err != nil {
		return nil, err
	}
	entry, err := registry.Resolve(namespace, requestedVersion)
	if err != nil {
		return nil, err
	}

	vocabPath := entry.Path
	if !filepath.IsAbs(vocabPath) {
		vocabPath = filepath.Join(baseDir, vocabPath)
	}
	absVocab, err := filepath.Abs(vocabPath)
	if err != nil {
		return nil, err
	}
	if active[absVocab] {
		return nil, &CycleDetectionError{Path: absVocab}
	}
	active[absVocab] = true
	defer delete(active, absVocab)

	sourceHash, err := hashFile(vocabPath)
	if err != nil {
		return nil, oops.Code("E_HASH").Wrapf(err, "hashing %s", vocabPath)
	}

	terms, err := loadCapsuleCached(vocabPath, sourceHash, termCache)
	if err != nil {
		return nil, err
	}

	resolved, err := reconcileCollisions(local, terms, policy.Collision)
	if err != nil {
		return nil, err
	}

	used, unused := partitionUsedTerms(doc, resolved)

	snapshot := &parser.Section{
		ID:         "CONTEXT",
		Name:       "SNAPSHOT",
		Annotation: fmt.Sprintf("%q", namespace),
	}
	for _, name := range sortedKeys(used) {
		snapshot.Body = append(snapshot.Body, &parser.Assignment{
			Key:   name,
			Value: parser.LiteralValue{Kind: "string", Raw: resolved[name]},
		})
	}

	manifest := buildManifestSection(entry.Path, sourceHash, requestedVersion, entry.Version, policy, time.Now())

	nodes := []parser.Node{snapshot, manifest}
	if pruned := buildPrunedSection(sortedKeys(unused), policy.Prune); pruned != nil {
		nodes = append(nodes, pruned)
	}
	return nodes, nil
}

// parseImportAnnotation parses `"@ns/name", "version"` (version
// optional) out of an IMPORT section's bracket annotation text.
func parseImportAnnotation(annotation string) (namespace, version string, err error) {
	parts := strings.SplitN(annotation, ",", 2)
	namespace = unquote(strings.TrimSpace(parts[0]))
	if namespace == "" {
		return "", "", fmt.Errorf("malformed IMPORT annotation %q: missing namespace", annotation)
	}
	if len(parts) == 2 {
		version = unquote(strings.TrimSpace(parts[1]))
	}
	return namespace, version, nil
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

// loadCapsuleCached consults termCache for hash before parsing path: a
// hit decodes the cached term map directly, a miss falls through to
// loadCapsule and populates the cache for next time. A nil termCache
// always falls through.
func loadCapsuleCached(path, hash string, termCache cache.Cache) (map[string]string, error) {
	if termCache == nil {
		return loadCapsule(path)
	}

	ctx := context.Background()
	if cached, err := termCache.Get(ctx, hash); err == nil {
		var terms map[string]string
		if err := json.Unmarshal(cached, &terms); err == nil {
			return terms, nil
		}
	}

	terms, err := loadCapsule(path)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(terms); err == nil {
		_ = termCache.Set(ctx, hash, encoded, 0)
	}
	return terms, nil
}

// loadCapsule loads path, asserts META.TYPE == "CAPSULE", and
// recursively extracts every KEY::"definition" pair from its sections.
func loadCapsule(path string) (map[string]string, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("E_FILE").Wrapf(err, "reading vocabulary %s", path)
	}
	doc, _, err := parser.Parse(string(text), path, false)
	if err != nil {
		return nil, oops.Code("E_PARSE").Wrapf(err, "parsing vocabulary %s", path)
	}
	if doc.Meta == nil || metaString(doc.Meta, "TYPE") != "CAPSULE" {
		return nil, oops.Code("E_PARSE").Errorf("%s is not a CAPSULE (META.TYPE mismatch)", path)
	}

	terms := map[string]string{}
	var walk func(nodes []parser.Node)
	walk = func(nodes []parser.Node) {
		for _, n := range nodes {
			switch node := n.(type) {
			case *parser.Section:
				walk(node.Body)
			case *parser.Block:
				walk(node.Body)
			case *parser.Assignment:
				if lit, ok := node.Value.(parser.LiteralValue); ok && lit.Kind == "string" {
					terms[node.Key] = fmt.Sprintf("%v", lit.Raw)
				}
			}
		}
	}
	walk(doc.Body)
	return terms, nil
}

func metaString(meta *parser.Block, key string) string {
	for _, n := range meta.Body {
		if asn, ok := n.(*parser.Assignment); ok && asn.Key == key {
			if lit, ok := asn.Value.(parser.LiteralValue); ok {
				return fmt.Sprintf("%v", lit.Raw)
			}
		}
	}
	return ""
}

// localDefinitions extracts KEY::"definition" pairs from the source
// document's §CONTEXT::LOCAL section, if present.
func localDefinitions(doc *parser.Document) map[string]string {
	local := map[string]string{}
	for _, n := range doc.Body {
		sec, ok := n.(*parser.Section)
		if !ok || sec.ID != "CONTEXT" || sec.Name != "LOCAL" {
			continue
		}
		for _, child := range sec.Body {
			if asn, ok := child.(*parser.Assignment); ok {
				if lit, ok := asn.Value.(parser.LiteralValue); ok && lit.Kind == "string" {
					local[asn.Key] = fmt.Sprintf("%v", lit.Raw)
				}
			}
		}
	}
	return local
}

// reconcileCollisions applies policy to terms that are defined in both
// local and vocabulary, returning the final definition map the
// snapshot should draw from (vocabulary terms plus collision
// resolutions; non-colliding local terms are left out, since they
// belong to the source document, not this import).
func reconcileCollisions(local, vocabulary map[string]string, policy CollisionPolicy) (map[string]string, error) {
	var colliding []string
	for name := range vocabulary {
		if _, ok := local[name]; ok {
			colliding = append(colliding, name)
		}
	}
	sort.Strings(colliding)

	if len(colliding) == 0 {
		return vocabulary, nil
	}

	switch policy {
	case CollisionError:
		return nil, &CollisionError{Terms: colliding}
	case CollisionSourceWins:
		return vocabulary, nil
	case CollisionLocalWins:
		resolved := make(map[string]string, len(vocabulary))
		for k, v := range vocabulary {
			resolved[k] = v
		}
		for _, name := range colliding {
			resolved[name] = local[name]
		}
		return resolved, nil
	default:
		return nil, fmt.Errorf("unknown collision policy %q", policy)
	}
}

// partitionUsedTerms scans doc (outside the CONTEXT section itself)
// for references to each candidate term: section/assignment keys match
// exactly, string values match by substring.
func partitionUsedTerms(doc *parser.Document, candidates map[string]string) (used, unused map[string]string) {
	used = map[string]string{}
	unused = map[string]string{}

	keys := map[string]bool{}
	var texts []string
	var walk func(nodes []parser.Node)
	walk = func(nodes []parser.Node) {
		for _, n := range nodes {
			switch node := n.(type) {
			case *parser.Section:
				if node.ID == "CONTEXT" {
					continue
				}
				keys[node.ID] = true
				keys[node.Name] = true
				walk(node.Body)
			case *parser.Block:
				keys[node.Key] = true
				walk(node.Body)
			case *parser.Assignment:
				keys[node.Key] = true
				if lit, ok := node.Value.(parser.LiteralValue); ok && lit.Kind == "string" {
					texts = append(texts, fmt.Sprintf("%v", lit.Raw))
				}
			}
		}
	}
	walk(doc.Body)
	haystack := strings.Join(texts, "\n")

	for name, def := range candidates {
		if keys[name] || strings.Contains(haystack, name) {
			used[name] = def
		} else {
			unused[name] = def
		}
	}
	return used, unused
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
