// Package catalog loads the barbershop service catalog (names, prices and
// durations) from a YAML configuration file.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// DefaultDurationMinutes is used when a service is unknown or has no
// configured duration.
const DefaultDurationMinutes = 60

// Service describes one bookable service.
type Service struct {
	Name            string  `mapstructure:"name"`
	Price           float64 `mapstructure:"price"`
	DurationMinutes int     `mapstructure:"duration_minutes"`
}

// Catalog holds the configured services keyed by their canonical name.
type Catalog struct {
	services map[string]Service
}

// variations maps common client phrasings to canonical service keys.
var variations = map[string]string{
	"corte de cabelo": "corte",
	"corte":           "corte",
	"barba":           "barba",
	"fazer barba":     "barba",
	"corte + barba":   "combo",
	"corte e barba":   "combo",
	"combo":           "combo",
	"sobrancelha":     "sobrancelha",
	"sobrancelhas":    "sobrancelha",
}

// Load reads the service catalog from the given YAML file. A missing file
// yields an empty catalog and a warning rather than an error, so the bot
// can still answer with defaults.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Catalog config file not found, using empty catalog", "path", path)
			return &Catalog{services: map[string]Service{}}, nil
		}
		// viper wraps fs errors differently depending on how the path was
		// set; treat any unreadable file as absent but surface parse errors.
		if strings.Contains(err.Error(), "no such file") {
			slog.Warn("Catalog config file not found, using empty catalog", "path", path)
			return &Catalog{services: map[string]Service{}}, nil
		}
		return nil, fmt.Errorf("failed to read catalog config %s: %w", path, err)
	}

	var cfg struct {
		Services map[string]Service `mapstructure:"services"`
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse catalog config %s: %w", path, err)
	}
	if cfg.Services == nil {
		cfg.Services = map[string]Service{}
	}

	slog.Info("Catalog loaded", "path", path, "services", len(cfg.Services))
	return &Catalog{services: cfg.Services}, nil
}

// NewFromServices builds a catalog directly from a service map (for tests
// and defaults).
func NewFromServices(services map[string]Service) *Catalog {
	if services == nil {
		services = map[string]Service{}
	}
	return &Catalog{services: services}
}

// Normalize maps a client-provided service name to its canonical key.
func Normalize(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := variations[normalized]; ok {
		return canonical
	}
	return normalized
}

// lookup finds a service by canonical key, falling back to partial match.
func (c *Catalog) lookup(name string) (Service, bool) {
	key := Normalize(name)
	if key == "" {
		return Service{}, false
	}
	if svc, ok := c.services[key]; ok {
		return svc, true
	}
	for k, svc := range c.services {
		if strings.Contains(strings.ToLower(k), key) || strings.Contains(key, strings.ToLower(k)) {
			return svc, true
		}
	}
	return Service{}, false
}

// DurationMinutes returns the configured duration for a service, or the
// default when the service is unknown or unconfigured.
func (c *Catalog) DurationMinutes(name string) int {
	if svc, ok := c.lookup(name); ok && svc.DurationMinutes > 0 {
		return svc.DurationMinutes
	}
	return DefaultDurationMinutes
}

// Price returns the configured price for a service and whether it was found.
func (c *Catalog) Price(name string) (float64, bool) {
	if svc, ok := c.lookup(name); ok {
		return svc.Price, true
	}
	return 0, false
}

// Info returns the full service record and whether it was found.
func (c *Catalog) Info(name string) (Service, bool) {
	return c.lookup(name)
}

// Summary returns a formatted one-line listing of all services, used in
// FAQ answers.
func (c *Catalog) Summary() string {
	keys := make([]string, 0, len(c.services))
	for k := range c.services {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		svc := c.services[k]
		name := svc.Name
		if name == "" && k != "" {
			name = strings.ToUpper(k[:1]) + k[1:]
		}
		duration := svc.DurationMinutes
		if duration <= 0 {
			duration = DefaultDurationMinutes
		}
		parts = append(parts, fmt.Sprintf("%s (R$%.0f, %dmin)", name, svc.Price, duration))
	}
	return strings.Join(parts, ", ")
}

// Len returns the number of configured services.
func (c *Catalog) Len() int {
	return len(c.services)
}
