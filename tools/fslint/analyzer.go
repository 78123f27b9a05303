// Package fslint reports direct filesystem calls in packages that are
// expected to go through an injected afero.Fs.
package fslint

import (
	"fmt"
	"go/ast"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/tools/go/analysis"
)

var configFile string

const defaultHint = "pass an afero.Fs through util.Env instead"

// Config represents the fslint configuration.
type Config struct {
	ScanDirs        []string            `toml:"scan_dirs"`
	AllowedPackages []string            `toml:"allowed_packages"`
	ForbiddenCalls  map[string][]string `toml:"forbidden_calls"`
	// SkipTests leaves _test.go files alone; tests may touch t.TempDir directly.
	SkipTests bool `toml:"skip_tests"`
	// Hint is appended to every report.
	Hint string `toml:"hint"`
}

// Analyzer is the fslint analyzer.
var Analyzer = &analysis.Analyzer{
	Name: "fslint",
	Doc:  "reports direct filesystem calls outside the packages allowed to make them",
	Run:  run,
}

func init() {
	Analyzer.Flags.StringVar(&configFile, "config", "", "path to fslint config file (required)")
}

func loadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required (use -config flag)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Hint == "" {
		cfg.Hint = defaultHint
	}

	return &cfg, nil
}

func run(pass *analysis.Pass) (interface{}, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	pkgPath := pass.Pkg.Path()

	// Skip if not in scan_dirs
	if !shouldScanPackage(pkgPath, cfg.ScanDirs) {
		return nil, nil
	}

	// Skip if in allowed packages
	if isAllowedPackage(pkgPath, cfg.AllowedPackages) {
		return nil, nil
	}

	forbiddenFuncs := buildForbiddenSet(cfg.ForbiddenCalls)

	for _, file := range pass.Files {
		if cfg.SkipTests && isTestFile(pass.Fset.Position(file.Pos()).Filename) {
			continue
		}
		imports := buildImportMap(file)

		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}

			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			ident, ok := sel.X.(*ast.Ident)
			if !ok {
				return true
			}

			// Get the package path from the import alias
			importPath, ok := imports[ident.Name]
			if !ok {
				return true
			}

			// Check if this is a forbidden function call
			funcName := sel.Sel.Name
			if funcs, ok := forbiddenFuncs[importPath]; ok {
				if funcs[funcName] {
					pass.Reportf(call.Pos(), "direct filesystem call %s.%s is not allowed in %s (%s)", ident.Name, funcName, pass.Pkg.Name(), cfg.Hint)
				}
			}

			return true
		})
	}

	return nil, nil
}

func buildForbiddenSet(calls map[string][]string) map[string]map[string]bool {
	set := make(map[string]map[string]bool, len(calls))
	for pkg, funcs := range calls {
		set[pkg] = make(map[string]bool, len(funcs))
		for _, fn := range funcs {
			set[pkg][fn] = true
		}
	}
	return set
}

func isTestFile(filename string) bool {
	return strings.HasSuffix(filepath.Base(filename), "_test.go")
}

// shouldScanPackage checks if the package path should be scanned based on scan_dirs config.
func shouldScanPackage(pkgPath string, scanDirs []string) bool {
	for _, dir := range scanDirs {
		// Match: contains /dir or starts with dir
		if strings.Contains(pkgPath, "/"+dir) || strings.HasPrefix(pkgPath, dir) {
			return true
		}
	}
	return false
}

// isAllowedPackage checks if pkgPath matches any allowed package or is a subpackage of it.
func isAllowedPackage(pkgPath string, allowedPackages []string) bool {
	for _, allowed := range allowedPackages {
		if matchesPackagePath(pkgPath, allowed) {
			return true
		}
	}
	return false
}

// matchesPackagePath checks if pkgPath matches the pattern or is a subpackage of it.
// Pattern examples: "internal/transact", "internal/util"
func matchesPackagePath(pkgPath, pattern string) bool {
	return strings.HasSuffix(pkgPath, "/"+pattern) ||
		strings.Contains(pkgPath, "/"+pattern+"/") ||
		pkgPath == pattern ||
		strings.HasPrefix(pkgPath, pattern+"/")
}

// buildImportMap builds a map from import alias to package path.
func buildImportMap(file *ast.File) map[string]string {
	imports := make(map[string]string)
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		var name string
		if imp.Name != nil {
			name = imp.Name.Name
		} else {
			// Use the last component of the path as the default name
			parts := strings.Split(path, "/")
			name = parts[len(parts)-1]
		}
		imports[name] = path
	}
	return imports
}
