package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"imagery-compare/internal/cache"
	"imagery-compare/internal/handlers/api"
	"imagery-compare/internal/logging"
	"imagery-compare/internal/ratelimit"
	"imagery-compare/internal/stac"
)

// CLI flags
var (
	addrFlag          string
	publicURLFlag     string
	stacURLFlag       string
	tileEndpointFlag  string
	timeoutFlag       time.Duration
	cacheSizeFlag     int
	tileCacheSizeFlag int
	cacheTTLFlag      int
	cacheConfigFlag   string
	devFlag           bool
)

var rootCmd = &cobra.Command{
	Use:   "changeserver",
	Short: "Serve before/after Sentinel-2 image pairs for the comparison app",
	Long: `changeserver answers GET /api/change-detection with the clearest Sentinel-2 scene
around each of two dates for a point, searched on a STAC catalog, and serves the
scenes' map tiles on /api/tiles/{z}/{x}/{y}?url=<COG> through an upstream COG tiler.

Defaults come from the environment (optionally a .env file):
  CHANGESERVER_ADDR, PUBLIC_URL, STAC_SEARCH_URL, TILE_ENDPOINT, CACHE_SIZE,
  TILE_CACHE_SIZE, CACHE_TTL_MINUTES

Examples:
  changeserver
  changeserver --addr :9090 --public-url http://localhost:9090
  changeserver --tile-endpoint https://tiles.example.com/cog/tiles/WebMercatorQuad
  changeserver --dev --cache-ttl 5`,
	RunE: runServer,
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func init() {
	_ = godotenv.Load(".env")

	defaults := cache.DefaultConfig()
	rootCmd.Flags().StringVar(&addrFlag, "addr", envOr("CHANGESERVER_ADDR", ":8080"), "Listen address")
	rootCmd.Flags().StringVar(&publicURLFlag, "public-url", envOr("PUBLIC_URL", api.DefaultPublicURL), "Base URL clients reach this server at, used in tile templates")
	rootCmd.Flags().StringVar(&stacURLFlag, "stac-url", envOr("STAC_SEARCH_URL", stac.DefaultSearchURL), "STAC item search endpoint")
	rootCmd.Flags().StringVar(&tileEndpointFlag, "tile-endpoint", envOr("TILE_ENDPOINT", api.DefaultTileUpstream), "Upstream COG tiler that /api/tiles proxies to")
	rootCmd.Flags().DurationVar(&timeoutFlag, "stac-timeout", 30*time.Second, "Timeout for one catalog search")
	rootCmd.Flags().IntVar(&cacheSizeFlag, "cache-size", envIntOr("CACHE_SIZE", defaults.MaxEntries), "Maximum cached catalog lookups")
	rootCmd.Flags().IntVar(&tileCacheSizeFlag, "tile-cache-size", envIntOr("TILE_CACHE_SIZE", defaults.MaxTiles), "Maximum cached map tiles")
	rootCmd.Flags().IntVar(&cacheTTLFlag, "cache-ttl", envIntOr("CACHE_TTL_MINUTES", defaults.TTLMinutes), "Minutes a catalog lookup stays cached")
	rootCmd.Flags().StringVar(&cacheConfigFlag, "cache-config", "", "JSON file with a \"cache\" section (overrides the cache size and TTL flags)")
	rootCmd.Flags().BoolVar(&devFlag, "dev", false, "Human-readable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	log := logging.New(devFlag)

	cacheCfg := &cache.Config{MaxEntries: cacheSizeFlag, MaxTiles: tileCacheSizeFlag, TTLMinutes: cacheTTLFlag}
	if cacheConfigFlag != "" {
		loaded, err := cache.LoadConfig(cacheConfigFlag)
		if err != nil {
			log.Error().Err(err).Str("path", cacheConfigFlag).Msg("failed to load cache config")
			return err
		}
		cacheCfg = loaded
	}

	limiter := ratelimit.NewHandler(nil, log)
	limiter.SetOnRecovered(func(provider string) {
		log.Info().Str("provider", provider).Msg("catalog reachable again")
	})

	finder := stac.NewClient(stacURLFlag, timeoutFlag, limiter, log)
	server := api.NewServer(finder, cache.NewFeatureCache(cacheCfg), cache.NewTileCache(cacheCfg), limiter, api.Config{
		PublicURL:    publicURLFlag,
		TileUpstream: tileEndpointFlag,
	}, log)

	baseURL, err := server.Start(addrFlag)
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return err
	}
	log.Info().Str("url", baseURL).Str("stac", stacURLFlag).Str("publicURL", publicURLFlag).
		Str("tiler", tileEndpointFlag).Int("cacheSize", cacheCfg.MaxEntries).Int("tileCacheSize", cacheCfg.MaxTiles).
		Int("cacheTTLMinutes", cacheCfg.TTLMinutes).Msg("ready")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
