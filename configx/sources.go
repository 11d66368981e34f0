package configx

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// NestingSeparator splits environment keys into nested config keys:
// VISIONOCR_EXTRACT__MAX_NEW_TOKENS -> extract.max_new_tokens
const NestingSeparator = "__"

// Environment variables source
// ===========================

// EnvSource loads configuration from environment variables
type EnvSource struct {
	prefix   string
	priority int
	environ  func() []string
}

// NewEnvSource creates a new environment variable source
func NewEnvSource(prefix string, priority int) Source {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		environ:  os.Environ,
	}
}

// Load loads configuration values from environment variables
func (s *EnvSource) Load() (map[string]any, error) {
	result := make(map[string]any)
	for _, env := range s.environ() {
		key, val, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if s.prefix != "" {
			if !strings.HasPrefix(key, s.prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.prefix)
		}
		if key == "" {
			continue
		}
		setNested(result, envKeyParts(key), convertValue(val))
	}
	return result, nil
}

func envKeyParts(key string) []string {
	return strings.Split(strings.ToLower(key), NestingSeparator)
}

// convertValue attempts to convert a string value to a more appropriate type.
// "1" and "0" stay numbers so counts are never read as booleans.
func convertValue(value string) any {
	switch strings.ToLower(value) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// Name returns the name of the source
func (s *EnvSource) Name() string {
	return fmt.Sprintf("env(%s)", s.prefix)
}

// Priority returns the priority of the source
func (s *EnvSource) Priority() int {
	return s.priority
}

// DotEnv file source
// ===========================

// DotEnvSource loads configuration from a .env file using the same key rules
// as EnvSource
type DotEnvSource struct {
	path     string
	prefix   string
	priority int
}

// NewDotEnvSource creates a new .env file source
func NewDotEnvSource(path, prefix string, priority int) Source {
	return &DotEnvSource{
		path:     path,
		prefix:   prefix,
		priority: priority,
	}
}

// Load loads configuration values from a .env file
func (s *DotEnvSource) Load() (map[string]any, error) {
	result := make(map[string]any)

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if len(val) > 1 && (val[0] == '"' && val[len(val)-1] == '"' ||
			val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}

		if s.prefix != "" {
			if !strings.HasPrefix(key, s.prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.prefix)
		}
		setNested(result, envKeyParts(key), convertValue(val))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}
	return result, nil
}

// Name returns the name of the source
func (s *DotEnvSource) Name() string {
	return fmt.Sprintf("dotenv(%s)", s.path)
}

// Priority returns the priority of the source
func (s *DotEnvSource) Priority() int {
	return s.priority
}

// File source
// ===========================

// FileSource loads a YAML document. JSON files parse through the same
// decoder since JSON is valid YAML.
type FileSource struct {
	path     string
	priority int
}

// NewFileSource creates a new file source
func NewFileSource(path string, priority int) Source {
	return &FileSource{path: path, priority: priority}
}

// Load loads configuration values from the file
func (s *FileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	result := make(map[string]any)
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", s.path, err)
	}
	return normalizeMap(result), nil
}

// normalizeMap converts the map[any]any values yaml may produce for
// non-string keys into map[string]any
func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeValue(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}

// Name returns the name of the source
func (s *FileSource) Name() string {
	return fmt.Sprintf("file(%s)", s.path)
}

// Priority returns the priority of the source
func (s *FileSource) Priority() int {
	return s.priority
}

// Map Source implementation
// ===========================

// MapSource loads configuration from a map. Keys may be dotted.
type MapSource struct {
	values   map[string]any
	name     string
	priority int
}

// NewMapSource creates a new map source
func NewMapSource(values map[string]any, name string, priority int) Source {
	return &MapSource{
		values:   deepCopyMap(values),
		name:     name,
		priority: priority,
	}
}

// Load loads configuration values from the map
func (s *MapSource) Load() (map[string]any, error) {
	result := make(map[string]any)
	for k, v := range s.values {
		entry := make(map[string]any)
		setNested(entry, strings.Split(k, "."), v)
		mergeMapRecursive(result, entry)
	}
	return result, nil
}

// Name returns the name of the source
func (s *MapSource) Name() string {
	return s.name
}

// Priority returns the priority of the source
func (s *MapSource) Priority() int {
	return s.priority
}
