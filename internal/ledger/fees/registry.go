package fees

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apple-taste/trade-view/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// fileSchedule 映射 fee_schedule 配置段。
type fileSchedule struct {
	CommissionRate    float64 `yaml:"commission_rate"`
	MinCommission     float64 `yaml:"min_commission"`
	StampTaxRate      float64 `yaml:"stamp_tax_rate"`
	TransferFeeRate   float64 `yaml:"transfer_fee_rate"`
	TransferFeePrefix string  `yaml:"transfer_fee_prefix"`
}

type fileConfig struct {
	FeeSchedule fileSchedule `yaml:"fee_schedule"`
}

var scheduleSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"fee_schedule": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"commission_rate":     map[string]interface{}{"type": "number", "minimum": 0},
				"min_commission":      map[string]interface{}{"type": "number", "minimum": 0},
				"stamp_tax_rate":      map[string]interface{}{"type": "number", "minimum": 0},
				"transfer_fee_rate":   map[string]interface{}{"type": "number", "minimum": 0},
				"transfer_fee_prefix": map[string]interface{}{"type": "string"},
			},
		},
	},
}

// Registry serves the active fee schedule and hot-reloads it when the YAML
// file changes. With no path it simply pins the built-in defaults.
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	calc     *Calculator
	loadedAt time.Time
}

// NewRegistry reads the schedule file (optional) and watches it for updates.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	r.setCalculator(NewCalculator(DefaultSchedule()))
	if r.path == "" {
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read fee schedule failed: %w", err)
	}
	r.v = v
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("fee schedule reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Calculator returns the currently active calculator.
func (r *Registry) Calculator() *Calculator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calc
}

func (r *Registry) setCalculator(c *Calculator) {
	r.mu.Lock()
	r.calc = c
	r.loadedAt = time.Now()
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read fee schedule failed: %w", err)
	}
	if err := validateScheduleYAML(raw); err != nil {
		return err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse fee schedule failed: %w", err)
	}
	sched := DefaultSchedule()
	fs := cfg.FeeSchedule
	if fs.CommissionRate > 0 {
		sched.CommissionRate = decimalFromFloat(fs.CommissionRate)
	}
	if fs.MinCommission > 0 {
		sched.MinCommission = decimalFromFloat(fs.MinCommission)
	}
	if fs.StampTaxRate > 0 {
		sched.StampTaxRate = decimalFromFloat(fs.StampTaxRate)
	}
	if fs.TransferFeeRate > 0 {
		sched.TransferFeeRate = decimalFromFloat(fs.TransferFeeRate)
	}
	if fs.TransferFeePrefix != "" {
		sched.TransferFeePrefix = fs.TransferFeePrefix
	}
	r.setCalculator(NewCalculator(sched))
	logger.Infof("Fee schedule loaded from %s", filepath.Base(r.path))
	return nil
}

func validateScheduleYAML(raw []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse fee schedule failed: %w", err)
	}
	schemaRaw, err := json.Marshal(scheduleSchema)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(schemaRaw))); err != nil {
		return err
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return err
	}
	normalized, err := normalizeYAML(doc)
	if err != nil {
		return err
	}
	if err := compiled.Validate(normalized); err != nil {
		return fmt.Errorf("fee schedule schema validation failed: %w", err)
	}
	return nil
}

// normalizeYAML round-trips through JSON so the schema validator sees plain
// map[string]interface{} values.
func normalizeYAML(doc map[string]interface{}) (interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
