// Package classify turns recovered binary text into instruction, symbol and
// source-file candidates using a data-driven signature table.
package classify

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Blocks larger than this are classified in chunks so regex cost stays
// linear in the total input size even on adversarial data.
const chunkSize = 64 << 10

var (
	identRe  = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	snakeRe  = regexp.MustCompile(`^[a-z][a-z0-9]*(?:_[a-z0-9]+)*$`)
	pascalRe = regexp.MustCompile(`^(?:[A-Z][a-z0-9]+){2,}$`)
	camelRe  = regexp.MustCompile(`^[a-z]+(?:[A-Z][a-z0-9]+)+$`)

	anchorFileRe = regexp.MustCompile(`programs/([^/]+)/([a-zA-Z0-9_/.-]+\.rs)`)
	nativeFileRe = regexp.MustCompile(`[a-zA-Z0-9_-]+/src/[a-zA-Z0-9_/-]+\.rs`)
)

func log() *slog.Logger {
	return slog.With("component", "classify.Classifier")
}

// SourceFile is a source path reference recovered from the binary.
type SourceFile struct {
	Path         string `json:"path"`
	Project      string `json:"project"`
	RelativePath string `json:"relative_path"`
}

// Definition is a demangled symbol definition recovered from LLD-linked
// binaries.
type Definition struct {
	Ident string `json:"ident"`
	Kind  string `json:"kind"`
	Hash  string `json:"hash,omitempty"`
}

// Report is the classifier output. All slices preserve first-discovery
// order for deterministic serialization.
type Report struct {
	Instructions []string
	Protected    []string
	Definitions  []Definition
	Files        []SourceFile
	ProgramName  string
	ProgramType  string
}

// Options tune candidate acceptance. Zero values fall back to sensible
// defaults for compiled Solana programs.
type Options struct {
	// MinTokenLen rejects candidates shorter than this (default 2).
	MinTokenLen int
	// MaxTokenLen rejects candidates longer than this (default 50).
	MaxTokenLen int
	// MangledSymbols enables Rust symbol demangling (LLD-linked binaries).
	MangledSymbols bool
	// Rules overrides the embedded signature table.
	Rules *Rules
}

type Classifier struct {
	opts  Options
	rules *Rules
}

func New(opts Options) *Classifier {
	if opts.MinTokenLen <= 0 {
		opts.MinTokenLen = 2
	}
	if opts.MaxTokenLen <= 0 {
		opts.MaxTokenLen = 50
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{opts: opts, rules: rules}
}

// Classify applies the signature table to each text block, in order.
// Matching is case-sensitive; duplicates collapse to the first occurrence.
func (c *Classifier) Classify(blocks []string) *Report {
	instructions := newOrderedSet()
	protected := newOrderedSet()
	definitions := newDefSet()
	files := newFileSet()
	kinds := map[string]bool{}

	for _, block := range blocks {
		for _, chunk := range chunked(block) {
			c.classifyChunk(chunk, kinds, instructions, protected)
			c.collectFiles(chunk, files)
			if c.opts.MangledSymbols {
				c.collectDefinitions(chunk, definitions)
			}
		}
	}

	rep := &Report{
		Instructions: instructions.values(),
		Protected:    protected.values(),
		Definitions:  definitions.values(),
		Files:        files.values(),
	}
	rep.ProgramType = c.programType(kinds, rep)
	rep.ProgramName = mainProject(rep.Files)
	rep.Files = normalizeProjects(rep.Files, rep.ProgramName)
	if rep.ProgramType == "unknown" && len(rep.Instructions) == 0 {
		log().Debug("no signature matched the recovered text")
	}
	return rep
}

func (c *Classifier) classifyChunk(chunk string, kinds map[string]bool, instructions, protected *orderedSet) {
	for i := range c.rules.Patterns {
		rule := &c.rules.Patterns[i]
		for _, m := range rule.re.FindAllStringSubmatch(chunk, -1) {
			if rule.Detect {
				kinds[rule.Kind] = true
			}
			name := m[1] + rule.Suffix
			name = c.cleanName(name)
			if !c.acceptable(name) {
				continue
			}
			if c.rules.isProtected(name) {
				protected.add(name)
			} else {
				instructions.add(name)
			}
		}
	}
	if nativeFileRe.MatchString(chunk) {
		kinds["native"] = true
	}

	// Generic identifier rule: tokens with a recognizable casing convention
	// (or an exact known-identifier match) count as candidates too. This is
	// what recovers bare names that no framework marker precedes.
	for _, tok := range identRe.FindAllString(chunk, -1) {
		if !c.acceptable(tok) || c.rules.isStdLibCrate(tok) {
			continue
		}
		// Marker-suffixed tokens are the signature rules' business; the
		// cleaned form has already been collected above.
		if c.cleanName(tok) != tok {
			continue
		}
		if !c.rules.isKnownIdentifier(tok) && !looksLikeIdentifier(tok) {
			continue
		}
		if c.rules.isProtected(tok) {
			protected.add(tok)
		} else {
			instructions.add(tok)
		}
	}
}

// cleanName strips framework marker suffixes the way Anchor logs append
// them, so "TransferInstruction" and "Transfer" dedup to one candidate.
func (c *Classifier) cleanName(name string) string {
	for _, suffix := range c.rules.RemovableSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

func (c *Classifier) acceptable(name string) bool {
	if len(name) < c.opts.MinTokenLen || len(name) > c.opts.MaxTokenLen {
		return false
	}
	return !c.rules.isFalsePositive(name)
}

func looksLikeIdentifier(tok string) bool {
	return snakeRe.MatchString(tok) || pascalRe.MatchString(tok) || camelRe.MatchString(tok)
}

func (c *Classifier) collectFiles(chunk string, files *fileSet) {
	for _, m := range anchorFileRe.FindAllStringSubmatch(chunk, -1) {
		project, rel := m[1], m[2]
		files.add(SourceFile{
			Path:         "programs/" + project + "/" + rel,
			Project:      project,
			RelativePath: rel,
		})
	}
	const anchorRoot = "programs/"
	for _, loc := range nativeFileRe.FindAllStringIndex(chunk, -1) {
		m := chunk[loc[0]:loc[1]]
		// Paths under programs/ were already collected by the anchor rule.
		if strings.HasPrefix(m, anchorRoot) ||
			(loc[0] >= len(anchorRoot) && chunk[loc[0]-len(anchorRoot):loc[0]] == anchorRoot) {
			continue
		}
		parts := strings.SplitN(m, "/src/", 2)
		if len(parts) != 2 || c.rules.isStdLibCrate(parts[0]) {
			continue
		}
		files.add(SourceFile{
			Path:         parts[0] + "/src/" + parts[1],
			Project:      parts[0],
			RelativePath: "src/" + parts[1],
		})
	}
}

func (c *Classifier) collectDefinitions(chunk string, defs *defSet) {
	for _, mangled := range ExtractMangledNames(chunk) {
		sym, err := Demangle(mangled)
		if err != nil {
			continue
		}
		if len(sym.Path) == 0 {
			continue
		}
		if c.rules.isStdLibCrate(sym.Path[0]) {
			continue
		}
		defs.add(Definition{
			Ident: strings.Join(sym.Path, "::"),
			Kind:  sym.Kind,
			Hash:  sym.Hash,
		})
	}
}

func (c *Classifier) programType(kinds map[string]bool, rep *Report) string {
	switch {
	case kinds["anchor"]:
		return "anchor"
	case kinds["native"]:
		return "native"
	}
	// Custom rule tables tag their own kinds; pick deterministically.
	if len(kinds) > 0 {
		tags := make([]string, 0, len(kinds))
		for k := range kinds {
			tags = append(tags, k)
		}
		sort.Strings(tags)
		return tags[0]
	}
	if c.opts.MangledSymbols && len(rep.Definitions) > 0 {
		return "sbf"
	}
	return "unknown"
}

// mainProject picks the project that owns the most recovered source files.
// Ties break lexicographically for deterministic output.
func mainProject(files []SourceFile) string {
	counts := map[string]int{}
	for _, f := range files {
		counts[f.Project]++
	}
	projects := make([]string, 0, len(counts))
	for p := range counts {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		if counts[projects[i]] != counts[projects[j]] {
			return counts[projects[i]] > counts[projects[j]]
		}
		return projects[i] < projects[j]
	})
	if len(projects) == 0 {
		return ""
	}
	return projects[0]
}

// normalizeProjects re-homes stray file references under the inferred
// program name, mirroring how split workspaces compile into one binary.
func normalizeProjects(files []SourceFile, program string) []SourceFile {
	if program == "" {
		return files
	}
	out := make([]SourceFile, len(files))
	for i, f := range files {
		if f.Project != program {
			f.Project = program
			f.Path = program + "/" + f.RelativePath
		}
		out[i] = f
	}
	return out
}

// orderedSet deduplicates strings preserving first-insertion order.
type orderedSet struct {
	seen map[string]struct{}
	list []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]struct{}{}}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.list = append(s.list, v)
}

func (s *orderedSet) values() []string { return s.list }

type fileSet struct {
	seen map[string]struct{}
	list []SourceFile
}

func newFileSet() *fileSet { return &fileSet{seen: map[string]struct{}{}} }

func (s *fileSet) add(f SourceFile) {
	if _, ok := s.seen[f.Path]; ok {
		return
	}
	s.seen[f.Path] = struct{}{}
	s.list = append(s.list, f)
}

func (s *fileSet) values() []SourceFile { return s.list }

type defSet struct {
	seen map[string]struct{}
	list []Definition
}

func newDefSet() *defSet { return &defSet{seen: map[string]struct{}{}} }

func (s *defSet) add(d Definition) {
	key := d.Ident + "\x00" + d.Hash
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.list = append(s.list, d)
}

func (s *defSet) values() []Definition { return s.list }

func chunked(s string) []string {
	if len(s) <= chunkSize {
		return []string{s}
	}
	var out []string
	for len(s) > chunkSize {
		out = append(out, s[:chunkSize])
		s = s[chunkSize:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}
