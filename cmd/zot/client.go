package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/scholium/zotero-go/internal/config"
	"github.com/scholium/zotero-go/zotero"
)

// libraryFlags are persistent overrides for the configured library.
var (
	flagLibraryID   string
	flagLibraryType string
	flagAPIKey      string
	flagLocal       bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLibraryID, "library", "", "Library ID (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLibraryType, "library-type", "", "Library type: user or group (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Zotero API key (overrides config and environment)")
	rootCmd.PersistentFlags().BoolVar(&flagLocal, "local", false, "Talk to the running Zotero desktop app")
}

// newZoteroClient builds a client from flags, environment and the global
// config file, in that precedence order.
func newZoteroClient() (*zotero.Client, error) {
	// .env files are a convenience for development setups
	_ = godotenv.Load()

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}

	libraryID := firstNonEmpty(flagLibraryID, os.Getenv("ZOTERO_LIBRARY_ID"), cfg.LibraryID)
	if libraryID == "" {
		return nil, fmt.Errorf("no library configured: set library_id in %s or pass --library", config.GlobalConfigPath())
	}
	libraryType := zotero.UserLibrary
	switch firstNonEmpty(flagLibraryType, os.Getenv("ZOTERO_LIBRARY_TYPE"), cfg.LibraryType) {
	case "", "user":
	case "group":
		libraryType = zotero.GroupLibrary
	default:
		return nil, fmt.Errorf("library type must be user or group")
	}

	opts := []zotero.Option{}
	if key := firstNonEmpty(flagAPIKey, cfg.APIKey); key != "" {
		opts = append(opts, zotero.WithAPIKey(key))
	}
	if cfg.Locale != "" {
		opts = append(opts, zotero.WithLocale(cfg.Locale))
	}
	if flagLocal || cfg.Local {
		opts = append(opts, zotero.WithLocal())
	}
	return zotero.New(libraryID, libraryType, opts...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
