package frontend

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
)

// Supported grammar names.
const (
	LanguageTSX        = "tsx"
	LanguageTypeScript = "typescript"
	LanguageJavaScript = "javascript"
)

//nolint:gochecknoglobals // immutable grammar and extension tables.
var (
	languageFuncs = map[string]func() unsafe.Pointer{
		LanguageTSX:        tsx.GetLanguage,
		LanguageTypeScript: typescript.GetLanguage,
		LanguageJavaScript: javascript.GetLanguage,
	}

	extensionLanguages = map[string]string{
		".tsx": LanguageTSX,
		".ts":  LanguageTypeScript,
		".mts": LanguageTypeScript,
		".cts": LanguageTypeScript,
		".jsx": LanguageJavaScript,
		".js":  LanguageJavaScript,
		".mjs": LanguageJavaScript,
		".cjs": LanguageJavaScript,
	}

	// enry reports linguist names.
	linguistLanguages = map[string]string{
		"tsx":        LanguageTSX,
		"typescript": LanguageTypeScript,
		"javascript": LanguageJavaScript,
		"jsx":        LanguageJavaScript,
	}
)

var languageCache sync.Map

// Languages returns the supported grammar names, sorted.
func Languages() []string {
	names := make([]string, 0, len(languageFuncs))
	for name := range languageFuncs {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// GetLanguage returns the tree-sitter Language for the given name, or nil if not supported.
func GetLanguage(name string) *sitter.Language {
	if cached, ok := languageCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := languageFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache.Store(name, lang)

	return lang
}

// DetectLanguage picks a grammar for filename. The extension decides when it
// is known; otherwise enry classifies the file by name and content. It returns
// "" when no supported grammar fits.
func DetectLanguage(filename string, content []byte) string {
	if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(filename))]; ok {
		return lang
	}

	detected := enry.GetLanguage(filepath.Base(filename), content)

	return linguistLanguages[strings.ToLower(detected)]
}

// IsSupported reports whether filename maps to a supported grammar by
// extension alone. Vendored paths are never supported.
func IsSupported(filename string) bool {
	if enry.IsVendor(filename) {
		return false
	}

	_, ok := extensionLanguages[strings.ToLower(filepath.Ext(filename))]

	return ok
}

// IsVendorDir reports whether dir holds vendored or generated code that a
// directory walk should not descend into.
func IsVendorDir(dir string) bool {
	return enry.IsVendor(filepath.ToSlash(dir) + "/")
}
