package classify

import (
	"errors"
	"regexp"
	"strings"
)

// Legacy Rust mangling (an Itanium C++ ABI extension): _ZN, then
// length-prefixed path components, then a 17-byte "h<hex>" disambiguation
// hash, then E. LLD-linked sBPF binaries carry these in a trailing UTF-8
// blob after the last string table.

var mangledNameRe = regexp.MustCompile(`_ZN[0-9][0-9A-Za-z_.$]*E`)

var errBadMangledName = errors.New("not a legacy rust mangled name")

// Symbol is one demangled name.
type Symbol struct {
	// Path holds the unescaped components: crate, modules, item.
	Path []string
	// Name is the final path component.
	Name string
	// Hash is the compiler's disambiguation hash, without the leading 'h'.
	Hash string
	// Kind is a lexical guess: function, method, type, trait_impl,
	// generic_helper.
	Kind string
	// Original is the raw mangled input.
	Original string
}

// ExtractMangledNames returns every legacy-mangled Rust name in the text,
// in scan order.
func ExtractMangledNames(text string) []string {
	return mangledNameRe.FindAllString(text, -1)
}

// Demangle parses one legacy-mangled name. It is intentionally small: full
// v0 mangling is out of scope, and sBPF toolchains still emit the legacy
// scheme.
func Demangle(mangled string) (*Symbol, error) {
	s, ok := strings.CutPrefix(mangled, "_ZN")
	if !ok {
		return nil, errBadMangledName
	}

	var components []string
	for len(s) > 0 && s[0] != 'E' {
		n := 0
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			n = n*10 + int(s[i]-'0')
			i++
		}
		if i == 0 || n == 0 || i+n > len(s) {
			return nil, errBadMangledName
		}
		components = append(components, s[i:i+n])
		s = s[i+n:]
	}
	if s != "E" || len(components) == 0 {
		return nil, errBadMangledName
	}

	sym := &Symbol{Original: mangled}

	last := components[len(components)-1]
	if isDisambiguationHash(last) {
		sym.Hash = last[1:]
		components = components[:len(components)-1]
	}
	if len(components) == 0 {
		return nil, errBadMangledName
	}

	for _, c := range components {
		sym.Path = append(sym.Path, unescapeComponent(c))
	}
	sym.Name = sym.Path[len(sym.Path)-1]
	sym.Kind = classifyKind(sym.Path)
	return sym, nil
}

// isDisambiguationHash matches the trailing 17-char "h" + 16 hex digits
// component the Rust compiler appends for versioning.
func isDisambiguationHash(c string) bool {
	if len(c) != 17 || c[0] != 'h' {
		return false
	}
	for _, r := range c[1:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

var componentEscapes = strings.NewReplacer(
	"$LT$", "<",
	"$GT$", ">",
	"$RF$", "&",
	"$BP$", "*",
	"$C$", ",",
	"$u20$", " ",
	"$u27$", "'",
	"$u7b$", "{",
	"$u7d$", "}",
	"..", "::",
)

func unescapeComponent(c string) string {
	// A leading underscore guards components whose real name starts with a
	// punctuation escape; drop it before expanding the escapes.
	if strings.HasPrefix(c, "_$") {
		c = c[1:]
	}
	return componentEscapes.Replace(c)
}

func classifyKind(path []string) string {
	name := path[len(path)-1]
	switch {
	case strings.Contains(strings.Join(path, "::"), " as "):
		return "trait_impl"
	case strings.ContainsAny(name, "<>{}"):
		return "generic_helper"
	case name != "" && name[0] >= 'A' && name[0] <= 'Z':
		return "type"
	case len(path) > 1 && startsUpper(path[len(path)-2]):
		return "method"
	default:
		return "function"
	}
}

func startsUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}
