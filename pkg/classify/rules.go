package classify

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// PatternRule is one lexical signature from the rule table. Pattern must
// capture the candidate name in group 1.
type PatternRule struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
	// Suffix is re-appended to the capture before cleanup, for patterns
	// that match a name with its marker suffix stripped.
	Suffix string `yaml:"suffix"`
	// Detect marks the rule as a program-type fingerprint: a match tags the
	// binary with the rule's Kind.
	Detect bool `yaml:"detect"`

	re *regexp.Regexp
}

// Rules is the versionable signature table driving the classifier. The
// embedded default mirrors the conventions seen in deployed Solana programs;
// operators can extend it without code changes.
type Rules struct {
	Version           int           `yaml:"version"`
	Patterns          []PatternRule `yaml:"instruction_patterns"`
	RemovableSuffixes []string      `yaml:"removable_suffixes"`
	FalsePositives    []string      `yaml:"false_positives"`
	ProtectedNames    []string      `yaml:"protected_instructions"`
	ProtectedPrefixes []string      `yaml:"protected_prefixes"`
	StdLibCrates      []string      `yaml:"std_lib_crates"`
	KnownIdentifiers  []string      `yaml:"known_identifiers"`

	falsePositiveSet map[string]struct{}
	protectedSet     map[string]struct{}
	stdLibSet        map[string]struct{}
	knownSet         map[string]struct{}
}

// DefaultRules parses the embedded rule table. The embedded table is
// validated by tests, so failure here is a programming error.
func DefaultRules() *Rules {
	r, err := parseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("classify: embedded rules are invalid: %v", err))
	}
	return r
}

// LoadRules reads a rule table from a YAML file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signature rules: %w", err)
	}
	r, err := parseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parsing signature rules %s: %w", path, err)
	}
	return r, nil
}

func parseRules(data []byte) (*Rules, error) {
	r := &Rules{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, err
	}
	for i := range r.Patterns {
		p := &r.Patterns[i]
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", p.Name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("rule %q: pattern must capture the candidate name", p.Name)
		}
		p.re = re
	}
	r.falsePositiveSet = toSet(r.FalsePositives)
	r.protectedSet = toSet(r.ProtectedNames)
	r.stdLibSet = toSet(r.StdLibCrates)
	r.knownSet = toSet(r.KnownIdentifiers)
	return r, nil
}

func toSet(ss []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}

func (r *Rules) isFalsePositive(name string) bool {
	_, ok := r.falsePositiveSet[name]
	return ok
}

func (r *Rules) isProtected(name string) bool {
	if _, ok := r.protectedSet[name]; ok {
		return true
	}
	for _, p := range r.ProtectedPrefixes {
		if len(name) > len(p) && name[:len(p)] == p {
			return true
		}
	}
	return false
}

func (r *Rules) isStdLibCrate(name string) bool {
	_, ok := r.stdLibSet[name]
	return ok
}

func (r *Rules) isKnownIdentifier(name string) bool {
	_, ok := r.knownSet[name]
	return ok
}
