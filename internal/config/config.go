// Package config loads marcq settings from YAML or CUE files and wires them
// into the normalizer and query builder.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/adrg/xdg"
	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"

	"github.com/roach88/marcq/internal/lucene"
	"github.com/roach88/marcq/internal/solr"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "MARCQ_CONFIG"

// BuilderConfig controls the query builder.
type BuilderConfig struct {
	DefaultDismaxHandler string `mapstructure:"default_dismax_handler"`
	HighlightingQuery    bool   `mapstructure:"highlighting_query"`
	SpellingQuery        bool   `mapstructure:"spelling_query"`
}

// CacheConfig locates the record cache.
type CacheConfig struct {
	Path string `mapstructure:"path"`
}

// Config is the complete marcq configuration.
type Config struct {
	Normalizer  lucene.Config               `mapstructure:"normalizer"`
	Builder     BuilderConfig               `mapstructure:"builder"`
	SearchSpecs map[string]solr.HandlerSpec `mapstructure:"search_specs"`
	Cache       CacheConfig                 `mapstructure:"cache"`
}

// Default returns a working configuration with the standard search specs.
func Default() Config {
	return Config{
		Normalizer: lucene.DefaultConfig(),
		Builder: BuilderConfig{
			DefaultDismaxHandler: solr.DefaultDismaxHandler,
			SpellingQuery:        true,
		},
		SearchSpecs: defaultSearchSpecs(),
		Cache:       CacheConfig{Path: DefaultCachePath()},
	}
}

// DefaultCachePath is records.db under the XDG cache directory.
func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "marcq", "records.db")
}

func defaultSearchSpecs() map[string]solr.HandlerSpec {
	return map[string]solr.HandlerSpec{
		"AllFields": {
			DismaxFields: []string{"title_short^750", "title_full^400", "author^300", "topic^100", "allfields"},
			ExactSettings: &solr.HandlerSpec{
				DismaxFields: []string{"title_short^750", "title_full^400", "author^300"},
			},
		},
		"Title": {
			DismaxFields: []string{"title_short^500", "title_full^400", "title_alt^200"},
		},
		"Author": {
			DismaxFields: []string{"author^100", "author2"},
		},
		"Subject": {
			DismaxFields: []string{"topic^100", "geographic^50", "genre^50"},
		},
		"ISN": {
			QueryFields: []solr.QueryField{
				{Field: "isbn", Munges: []solr.Munge{{Name: "onephrase"}}},
				{Field: "issn", Munges: []solr.Munge{{Name: "onephrase"}}},
			},
		},
		"CallNumber": {
			CustomMunge: map[string][]solr.MungeOp{
				"callnumber_exact": {
					{Op: "uppercase"},
					{Op: "preg_replace", Args: []string{`/(["\\:\/ ])/`, `\$1`}},
				},
			},
			QueryFields: []solr.QueryField{
				{Field: "callnumber-search", Munges: []solr.Munge{{Name: "callnumber_exact", Weight: 1000}}},
			},
		},
	}
}

// Resolve loads the file named by path, falling back to $MARCQ_CONFIG and
// then to Default.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Load reads a .yaml, .yml or .cue file over the defaults. A search_specs
// section replaces the default specs entirely.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".cue":
		raw, err = parseCUE(path, data)
		if err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	return Decode(raw)
}

// parseCUE evaluates a CUE file to a concrete value and round-trips it
// through JSON so numbers arrive as float64, like YAML scalars.
func parseCUE(path string, data []byte) (map[string]interface{}, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", path, err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("export %s: %w", path, err)
	}
	return raw, nil
}

// Decode applies raw over the defaults. Unknown keys are errors.
func Decode(raw map[string]interface{}) (Config, error) {
	cfg := Default()
	if _, ok := raw["search_specs"]; ok {
		cfg.SearchSpecs = nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       listFormHook,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

var (
	mungeType   = reflect.TypeOf(solr.Munge{})
	paramType   = reflect.TypeOf(solr.Param{})
	mungeOpType = reflect.TypeOf(solr.MungeOp{})
)

// listFormHook accepts the compact list forms used in search specs:
//
//	munges:        [[onephrase, 500], [and, "~"]]
//	dismax_params: [[mm, "100%"]]
//	custom_munge:  {name: [[uppercase], [append, "*"]]}
//
// A "~" weight means no boost.
func listFormHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	list, ok := data.([]interface{})
	if !ok {
		return data, nil
	}

	switch to {
	case mungeType:
		if len(list) < 1 || len(list) > 2 {
			return nil, fmt.Errorf("munge %v: want [name, weight]", list)
		}
		m := map[string]interface{}{"name": list[0]}
		if len(list) == 2 && list[1] != "~" && list[1] != "" {
			m["weight"] = list[1]
		}
		return m, nil
	case paramType:
		if len(list) != 2 {
			return nil, fmt.Errorf("param %v: want [name, value]", list)
		}
		return map[string]interface{}{"name": list[0], "value": list[1]}, nil
	case mungeOpType:
		if len(list) < 1 {
			return nil, fmt.Errorf("munge operation: empty")
		}
		return map[string]interface{}{"op": list[0], "args": list[1:]}, nil
	}
	return data, nil
}

// NewNormalizer builds the configured normalizer.
func (c Config) NewNormalizer(logger *slog.Logger) (*lucene.Normalizer, error) {
	return lucene.NewNormalizer(c.Normalizer, lucene.WithLogger(logger))
}

// NewQueryBuilder builds the configured query builder with its normalizer.
func (c Config) NewQueryBuilder(logger *slog.Logger) (*solr.QueryBuilder, error) {
	n, err := c.NewNormalizer(logger)
	if err != nil {
		return nil, err
	}
	return solr.NewQueryBuilder(c.SearchSpecs,
		solr.WithLogger(logger),
		solr.WithNormalizer(n),
		solr.WithDefaultDismaxHandler(c.Builder.DefaultDismaxHandler),
		solr.WithHighlightingQuery(c.Builder.HighlightingQuery),
		solr.WithSpellingQuery(c.Builder.SpellingQuery),
	)
}
