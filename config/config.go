package config

// config.go describes the target profile: how test invocations are built,
// which environment overlay is applied and which output signatures drive
// classification.

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Placeholders expanded inside argument templates.
const (
	PlaceholderFile    = "{file}"
	PlaceholderID      = "{id}"
	PlaceholderCase    = "{case}"
	PlaceholderSeconds = "{seconds}"
)

const (
	DefaultSuiteFile       = "test/inductor/test_cuda_repro.py"
	DefaultDiscoverTimeout = 120 * time.Second

	// DefaultTimeoutSignature matches the framework's own timeout plugin
	// firing before the orchestrator's deadline.
	DefaultTimeoutSignature = `\+{4,} Timeout \+{4,}|Failed: Timeout >|\bTimeoutError\b|timed out after \d`
	// DefaultErrorSignature matches runtime errors that are not assertion
	// failures.
	DefaultErrorSignature = `\b(RuntimeError|ImportError|ModuleNotFoundError|MemoryError|SystemError)\b|Segmentation fault|core dumped|Fatal Python error`
	// DefaultSkipSignature matches skip reports of unittest and pytest.
	DefaultSkipSignature = `\b\d+ skipped\b|skipped=\d+|\bSKIPPED\b`
)

// Signatures holds the regular expressions matched against captured output.
type Signatures struct {
	Timeout string `yaml:"timeout" toml:"timeout"`
	Error   string `yaml:"error" toml:"error"`
	Skip    string `yaml:"skip" toml:"skip"`
}

// Profile describes the target environment.
type Profile struct {
	// Command is the argv prefix of every invocation (e.g. ["python"]).
	Command []string `yaml:"command" toml:"command"`
	// SuiteFile is the default suite file relative to the target root.
	SuiteFile string `yaml:"suite_file" toml:"suite_file"`
	// KeywordArgs is appended for keyword-fragment identifiers.
	KeywordArgs []string `yaml:"keyword_args" toml:"keyword_args"`
	// NodeArgs is appended for exact node-id identifiers.
	NodeArgs []string `yaml:"node_args" toml:"node_args"`
	// DiscoverArgs lists the tests of one suite file.
	DiscoverArgs []string `yaml:"discover_args" toml:"discover_args"`
	// TimeoutArgs passes a cooperative timeout to the invoked process.
	TimeoutArgs []string `yaml:"timeout_args" toml:"timeout_args"`
	// Env is forced into the environment of every invocation.
	Env map[string]string `yaml:"env" toml:"env"`
	// DiscoverTimeout bounds the discovery command.
	DiscoverTimeout time.Duration `yaml:"discover_timeout" toml:"discover_timeout"`
	// Signatures drive output classification.
	Signatures Signatures `yaml:"signatures" toml:"signatures"`
}

// Default returns the built-in profile for the inductor CUDA repro suite.
func Default() Profile {
	return Profile{
		Command:      []string{"python"},
		SuiteFile:    DefaultSuiteFile,
		KeywordArgs:  []string{PlaceholderFile, "-k", PlaceholderID},
		NodeArgs:     []string{PlaceholderFile, PlaceholderCase},
		DiscoverArgs: []string{PlaceholderFile, "--discover-tests"},
		Env: map[string]string{
			"PYTORCH_TEST_WITH_ROCM": "1",
		},
		DiscoverTimeout: DefaultDiscoverTimeout,
		Signatures: Signatures{
			Timeout: DefaultTimeoutSignature,
			Error:   DefaultErrorSignature,
			Skip:    DefaultSkipSignature,
		},
	}
}

// Load reads a profile from a YAML or TOML file. Fields missing from the file
// keep their defaults.
func Load(path string) (Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &p); err != nil {
			return p, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		return p, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the profile can build invocations.
func (p *Profile) Validate() error {
	if len(p.Command) == 0 || p.Command[0] == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if p.SuiteFile == "" {
		return fmt.Errorf("suite_file cannot be empty")
	}
	if !slices.Contains(p.KeywordArgs, PlaceholderID) {
		return fmt.Errorf("keyword_args must reference %s", PlaceholderID)
	}
	if !slices.ContainsFunc(p.NodeArgs, func(a string) bool { return strings.Contains(a, PlaceholderCase) }) {
		return fmt.Errorf("node_args must reference %s", PlaceholderCase)
	}
	if p.DiscoverTimeout <= 0 {
		return fmt.Errorf("discover_timeout must be positive")
	}
	for name, expr := range map[string]string{
		"timeout": p.Signatures.Timeout,
		"error":   p.Signatures.Error,
		"skip":    p.Signatures.Skip,
	} {
		if expr == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("signatures.%s: %w", name, err)
		}
	}
	return nil
}

// Environ returns base with the profile's overlay applied. Overlay values
// replace existing entries of the same name.
func (p *Profile) Environ(base []string) []string {
	env := make([]string, 0, len(base)+len(p.Env))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := p.Env[name]; overridden {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+p.Env[k])
	}
	return env
}

// Expand replaces placeholders in every template argument.
func Expand(templates []string, values map[string]string) []string {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, 0, len(templates))
	for _, t := range templates {
		out = append(out, r.Replace(t))
	}
	return out
}
