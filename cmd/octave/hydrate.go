package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octave-lang/octave/emitter"
	"github.com/octave-lang/octave/hydrator"
	"github.com/octave-lang/octave/hydrator/cache"
)

var (
	hydrateRegistryPath string
	hydrateAllowedRoot  string
	hydratePrune        string
	hydrateCollision    string
	hydrateDepth        int
	hydrateOutput       string
	hydrateCheckStale   bool
	hydrateCacheAddr    string
)

func init() {
	hydrateCmd.Flags().StringVar(&hydrateRegistryPath, "registry", "", "YAML file mapping @ns/name to {path, version}")
	hydrateCmd.Flags().StringVar(&hydrateAllowedRoot, "allowed-root", "", "Directory each MANIFEST SOURCE_URI must resolve within during --check-staleness (defaults to the source file's directory); hydration itself does not check it")
	hydrateCmd.Flags().StringVar(&hydratePrune, "prune", "list", "Unused-term recording strategy: list, hash, count, or elide")
	hydrateCmd.Flags().StringVar(&hydrateCollision, "collision", "error", "Local/imported term collision policy: error, source_wins, or local_wins")
	hydrateCmd.Flags().IntVar(&hydrateDepth, "depth", 1, "Recorded HYDRATION_POLICY depth")
	hydrateCmd.Flags().StringVar(&hydrateOutput, "output", "", "Write the hydrated document to this path instead of stdout")
	hydrateCmd.Flags().BoolVar(&hydrateCheckStale, "check-staleness", false, "After hydrating, report FRESH/STALE/ERROR for every SNAPSHOT in the result")
	hydrateCmd.Flags().StringVar(&hydrateCacheAddr, "cache-addr", "", "Redis address for caching parsed vocabulary term maps by content hash (disabled if unset)")
}

var hydrateCmd = &cobra.Command{
	Use:   "hydrate <file>",
	Short: "Resolve §CONTEXT::IMPORT directives into inlined SNAPSHOT/MANIFEST/PRUNED sections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hydrateRegistryPath == "" {
			return fmt.Errorf("--registry is required")
		}
		registry, err := loadRegistry(hydrateRegistryPath)
		if err != nil {
			return fmt.Errorf("loading registry: %w", err)
		}

		policy := hydrator.Policy{
			Depth:     hydrateDepth,
			Prune:     hydrator.PruneStrategy(hydratePrune),
			Collision: hydrator.CollisionPolicy(hydrateCollision),
		}

		log.Debug("hydrating document", zap.String("file", args[0]), zap.String("prune", hydratePrune), zap.String("collision", hydrateCollision))

		var termCache cache.Cache
		if hydrateCacheAddr != "" {
			redisCache, err := cache.NewRedisCacheWithConfig(cache.RedisConfig{Addr: hydrateCacheAddr, Config: cache.DefaultConfig()})
			if err != nil {
				return fmt.Errorf("connecting to vocabulary cache: %w", err)
			}
			defer redisCache.Close()
			termCache = redisCache
			log.Debug("vocabulary term cache enabled", zap.String("addr", hydrateCacheAddr))
		}

		doc, err := hydrator.HydrateWithCache(args[0], registry, policy, termCache)
		if err != nil {
			return fmt.Errorf("hydration failed: %w", err)
		}

		if hydrateCheckStale {
			baseDir := filepath.Dir(args[0])
			allowedRoot := hydrateAllowedRoot
			if allowedRoot == "" {
				allowedRoot = baseDir
			}
			for _, r := range hydrator.CheckStaleness(doc, baseDir, allowedRoot) {
				fmt.Printf("%-24s %s\n", r.Namespace, r.Status)
				if r.Err != "" {
					fmt.Printf("  %s\n", r.Err)
				}
			}
		}

		out, err := emitter.Emit(doc, emitter.DefaultConfig())
		if err != nil {
			return fmt.Errorf("emit failed: %w", err)
		}

		if hydrateOutput == "" {
			fmt.Print(out)
			return nil
		}
		return os.WriteFile(hydrateOutput, []byte(out), 0o644)
	},
}

// loadRegistry reads a YAML file of the form:
//
//	"@ns/name":
//	  path: vocab/ns/name.octave
//	  version: "1.0.0"
func loadRegistry(path string) (*hydrator.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]struct {
		Path    string `yaml:"path"`
		Version string `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	entries := make(map[string]hydrator.Entry, len(raw))
	for ns, v := range raw {
		entries[ns] = hydrator.Entry{Path: v.Path, Version: v.Version}
	}
	return hydrator.NewRegistry(entries), nil
}
