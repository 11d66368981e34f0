package configx

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Source priorities used by the Builder. Higher values override lower ones.
const (
	PriorityDefaults = 10
	PriorityEnv      = 20
	PriorityDotEnv   = 25
	PriorityFile     = 30
	PriorityMap      = 40
)

// Config represents the main configuration interface
type Config interface {
	// Get retrieves a configuration value by dotted key
	Get(key string) Value

	// Set sets a configuration value
	Set(key string, val any)

	// Has checks if a configuration key exists
	Has(key string) bool

	// AllSettings returns all settings as a map
	AllSettings() map[string]any

	// LoadAll reloads all configuration sources
	LoadAll() error
}

// Source represents a configuration source
type Source interface {
	// Load loads configuration values from the source
	Load() (map[string]any, error)

	// Name returns the name of the source
	Name() string

	// Priority returns the priority of the source (higher values override lower)
	Priority() int
}

// Value wraps a configuration value and provides type conversion methods
type Value interface {
	IsSet() bool
	AsString() string
	AsStringDefault(def string) string
	AsInt() int
	AsIntDefault(def int) int
	AsFloatDefault(def float64) float64
	AsBool() bool
	AsBoolDefault(def bool) bool
	AsDurationDefault(def time.Duration) time.Duration
	AsStringSlice() []string

	// AsStruct unmarshals the value into a struct through its JSON form
	AsStruct(target any) error
}

type configuration struct {
	sync.RWMutex
	values  map[string]any
	sources []Source
}

// New creates an empty Config with the given sources
func New(sources ...Source) Config {
	return &configuration{
		values:  make(map[string]any),
		sources: sources,
	}
}

// Get retrieves a configuration value by key
func (c *configuration) Get(key string) Value {
	c.RLock()
	defer c.RUnlock()
	if key == "" {
		return newValue("", c.values)
	}
	return newValue(key, findValue(c.values, key))
}

func findValue(values map[string]any, key string) any {
	parts := strings.Split(key, ".")
	current := values
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil
		}
		if i == len(parts)-1 {
			return v
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		current = m
	}
	return nil
}

// Set sets a configuration value, creating intermediate maps as needed
func (c *configuration) Set(key string, val any) {
	c.Lock()
	defer c.Unlock()
	setNested(c.values, strings.Split(key, "."), val)
}

func setNested(dst map[string]any, parts []string, val any) {
	current := dst
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = val
}

// Has checks if a configuration key exists
func (c *configuration) Has(key string) bool {
	return c.Get(key).IsSet()
}

// AllSettings returns a copy of all settings
func (c *configuration) AllSettings() map[string]any {
	c.RLock()
	defer c.RUnlock()
	return deepCopyMap(c.values)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func mergeMapRecursive(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMapRecursive(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			dst[k] = deepCopyMap(srcMap)
			continue
		}
		dst[k] = v
	}
}

// LoadAll rebuilds the values from every source in priority order
func (c *configuration) LoadAll() error {
	sources := make([]Source, len(c.sources))
	copy(sources, c.sources)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	merged := make(map[string]any)
	for _, src := range sources {
		data, err := src.Load()
		if err != nil {
			return fmt.Errorf("failed to load config source %s: %w", src.Name(), err)
		}
		mergeMapRecursive(merged, data)
	}

	c.Lock()
	c.values = merged
	c.Unlock()
	return nil
}

//-----------------------------------------------------------------------------
// Value
//-----------------------------------------------------------------------------

type value struct {
	key string
	val any
}

func newValue(key string, val any) Value {
	return &value{key: key, val: val}
}

func (v *value) IsSet() bool { return v.val != nil }

func (v *value) AsString() string { return v.AsStringDefault("") }

func (v *value) AsStringDefault(def string) string {
	switch t := v.val.(type) {
	case nil:
		return def
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (v *value) AsInt() int { return v.AsIntDefault(0) }

func (v *value) AsIntDefault(def int) int {
	switch t := v.val.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	}
	return def
}

func (v *value) AsFloatDefault(def float64) float64 {
	switch t := v.val.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

func (v *value) AsBool() bool { return v.AsBoolDefault(false) }

func (v *value) AsBoolDefault(def bool) bool {
	switch t := v.val.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

func (v *value) AsDurationDefault(def time.Duration) time.Duration {
	switch t := v.val.(type) {
	case time.Duration:
		return t
	case int:
		return time.Duration(t) * time.Second
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			return d
		}
	}
	return def
}

// AsStringSlice accepts a list or a comma separated string
func (v *value) AsStringSlice() []string {
	switch t := v.val.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

func (v *value) AsStruct(target any) error {
	if v.val == nil {
		return fmt.Errorf("config key %q is not set", v.key)
	}
	data, err := json.Marshal(v.val)
	if err != nil {
		return fmt.Errorf("failed to marshal config key %q: %w", v.key, err)
	}
	return json.Unmarshal(data, target)
}

//-----------------------------------------------------------------------------
// Builder
//-----------------------------------------------------------------------------

// Builder provides a fluent API for building configuration
type Builder interface {
	// FromFile adds a YAML or JSON file source
	FromFile(path string) Builder

	// FromDotEnv adds a .env file source; a missing file is ignored
	FromDotEnv(path, prefix string) Builder

	// FromEnv adds an environment variable source
	FromEnv(prefix string) Builder

	// FromMap adds a map source
	FromMap(values map[string]any, name string) Builder

	// WithDefaults adds default values
	WithDefaults(defaults map[string]any) Builder

	// WithValidation adds validation run after loading
	WithValidation(validator func(config Config) error) Builder

	// RequireEnv specifies environment variables that must be present
	RequireEnv(envVars ...string) Builder

	// Build loads every source and validates the result
	Build() (Config, error)
}

type builder struct {
	sources      []Source
	validators   []func(Config) error
	requiredEnvs []string
}

// NewBuilder creates a new configuration builder
func NewBuilder() Builder {
	return &builder{}
}

func (b *builder) FromFile(path string) Builder {
	b.sources = append(b.sources, NewFileSource(path, PriorityFile))
	return b
}

func (b *builder) FromDotEnv(path, prefix string) Builder {
	if _, err := os.Stat(path); err == nil {
		b.sources = append(b.sources, NewDotEnvSource(path, prefix, PriorityDotEnv))
	}
	return b
}

func (b *builder) FromEnv(prefix string) Builder {
	b.sources = append(b.sources, NewEnvSource(prefix, PriorityEnv))
	return b
}

func (b *builder) FromMap(values map[string]any, name string) Builder {
	b.sources = append(b.sources, NewMapSource(values, name, PriorityMap))
	return b
}

func (b *builder) WithDefaults(defaults map[string]any) Builder {
	b.sources = append(b.sources, NewMapSource(defaults, "defaults", PriorityDefaults))
	return b
}

func (b *builder) WithValidation(validator func(config Config) error) Builder {
	b.validators = append(b.validators, validator)
	return b
}

func (b *builder) RequireEnv(envVars ...string) Builder {
	b.requiredEnvs = append(b.requiredEnvs, envVars...)
	return b
}

func (b *builder) Build() (Config, error) {
	var missing []string
	for _, env := range b.requiredEnvs {
		if _, ok := os.LookupEnv(env); !ok {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := New(b.sources...)
	if err := cfg.LoadAll(); err != nil {
		return nil, err
	}
	for _, validate := range b.validators {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}
