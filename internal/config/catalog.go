package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PointPackage is one purchasable points bundle. UnitAmount is in minor
// currency units. DefaultPriority is the queue tier granted when the
// purchase request carries no explicit boost (lower is better).
type PointPackage struct {
	ID              string `mapstructure:"id" json:"id"`
	Label           string `mapstructure:"label" json:"label"`
	UnitAmount      int64  `mapstructure:"unitAmount" json:"unit_amount"`
	Points          int64  `mapstructure:"points" json:"points"`
	DefaultPriority int    `mapstructure:"defaultPriority" json:"default_priority"`
}

// Catalog is the static set of purchasable packages, keyed by package id.
type Catalog struct {
	Packages []PointPackage `mapstructure:"packages"`
}

// Lookup returns the package for id, if present.
func (c Catalog) Lookup(id string) (PointPackage, bool) {
	for _, pkg := range c.Packages {
		if pkg.ID == id {
			return pkg, true
		}
	}
	return PointPackage{}, false
}

func DefaultCatalog() Catalog {
	return Catalog{
		Packages: []PointPackage{
			{ID: "p200", Label: "500 points", UnitAmount: 8000, Points: 500, DefaultPriority: 1},
			{ID: "p500", Label: "2000 points", UnitAmount: 1800, Points: 2000, DefaultPriority: 1},
			{ID: "p1000", Label: "5000 points", UnitAmount: 40000, Points: 5000, DefaultPriority: 1},
		},
	}
}

// CatalogHolder serves the current catalog to handlers. The catalog is
// immutable once loaded; reloads swap the whole value.
type CatalogHolder struct {
	current atomic.Value // holds Catalog
}

func NewCatalogHolder() (*CatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/topup/config")
	v.AddConfigPath("/etc/topup")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TOPUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fromFile = false
		defaults := DefaultCatalog()
		v.SetDefault("catalog.packages", defaults.Packages)
	}

	var cfg Catalog
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, err
	}
	if err := validateCatalog(cfg); err != nil {
		return nil, err
	}

	holder := &CatalogHolder{}
	holder.current.Store(cfg)

	if !fromFile {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Catalog
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Printf("[catalog] reload failed: %v", err)
			return
		}
		if err := validateCatalog(updated); err != nil {
			log.Printf("[catalog] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[catalog] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCatalogHolder wraps a fixed catalog without file watching.
func NewStaticCatalogHolder(cfg Catalog) *CatalogHolder {
	holder := &CatalogHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CatalogHolder) Get() Catalog {
	return h.current.Load().(Catalog)
}

func validateCatalog(cfg Catalog) error {
	if len(cfg.Packages) == 0 {
		return errors.New("catalog.packages cannot be empty")
	}
	seen := map[string]struct{}{}
	for _, pkg := range cfg.Packages {
		if strings.TrimSpace(pkg.ID) == "" {
			return errors.New("catalog package id cannot be empty")
		}
		if _, dup := seen[pkg.ID]; dup {
			return errors.New("duplicate catalog package id: " + pkg.ID)
		}
		seen[pkg.ID] = struct{}{}
		if pkg.UnitAmount <= 0 {
			return errors.New("catalog package " + pkg.ID + " must have a positive amount")
		}
		if pkg.Points <= 0 {
			return errors.New("catalog package " + pkg.ID + " must grant points")
		}
		if pkg.DefaultPriority < 0 {
			return errors.New("catalog package " + pkg.ID + " has a negative priority")
		}
	}
	return nil
}
