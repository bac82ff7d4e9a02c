package pe

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// SystemPath marks a dependency that is resolved by the OS loader and not followed.
const SystemPath = "<system>"

// DependencyNode represents a node in the dependency tree.
type DependencyNode struct {
	Name         string            // DLL name
	Path         string            // Full path (if found)
	Found        bool              // Whether the DLL was found
	System       bool              // Well-known system DLL, not followed
	Dependencies []*DependencyNode // Child dependencies
	Depth        int               // Depth in dependency tree
}

// DependencyAnalysis contains the complete dependency analysis result.
type DependencyAnalysis struct {
	Root        *DependencyNode   // Root PE file
	AllDeps     map[string]string // All dependencies: name -> path
	MissingDeps []string          // List of missing dependencies
	TotalCount  int               // Total number of unique dependencies
	MaxDepth    int               // Maximum dependency depth
	HasCycles   bool              // Whether circular dependencies exist
}

// DepsOptions controls dependency resolution.
type DepsOptions struct {
	MaxDepth int
	// SearchPaths is tried after the directory of the importing file.
	// Nil means DefaultSearchPaths().
	SearchPaths []string
	Logger      hclog.Logger
}

// systemDLLs is a list of well-known Windows system DLLs that we skip recursion for.
var systemDLLs = map[string]bool{
	"kernel32.dll": true,
	"ntdll.dll":    true,
	"user32.dll":   true,
	"gdi32.dll":    true,
	"advapi32.dll": true,
	"ws2_32.dll":   true,
	"msvcrt.dll":   true,
	"shell32.dll":  true,
	"ole32.dll":    true,
	"comctl32.dll": true,
	"comdlg32.dll": true,
	"oleaut32.dll": true,
	"shlwapi.dll":  true,
	"wininet.dll":  true,
	"rpcrt4.dll":   true,
	"crypt32.dll":  true,
	"version.dll":  true,
	"winspool.drv": true,
	"secur32.dll":  true,
	"netapi32.dll": true,
	"userenv.dll":  true,
	"psapi.dll":    true,
	"iphlpapi.dll": true,
	"bcrypt.dll":   true,
	"setupapi.dll": true,
	"cfgmgr32.dll": true,
	"wintrust.dll": true,
	"imagehlp.dll": true,
	"dbghelp.dll":  true,
	"imm32.dll":    true,
	"msimg32.dll":  true,
	"powrprof.dll": true,
	"uxtheme.dll":  true,
	"dwmapi.dll":   true,
}

// DefaultSearchPaths returns the standard Windows locations, the working
// directory, PATH and the Wine prefix, in that order.
func DefaultSearchPaths() []string {
	searchPaths := []string{
		"C:\\Windows\\System32",
		"C:\\Windows\\SysWOW64",
		"C:\\Windows",
		".",
	}

	if pathEnv := os.Getenv("PATH"); pathEnv != "" {
		searchPaths = append(searchPaths, filepath.SplitList(pathEnv)...)
	}

	// Wine paths for cross-platform analysis
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(homeDir, ".wine/drive_c/windows/system32"),
			filepath.Join(homeDir, ".wine/drive_c/windows/syswow64"),
		)
	}

	return searchPaths
}

type depsWalker struct {
	opts     DepsOptions
	logger   hclog.Logger
	visited  map[string]bool
	analysis *DependencyAnalysis
}

// AnalyzeDependencies performs a complete dependency analysis of a PE file.
func AnalyzeDependencies(filePath string, opts DepsOptions) (*DependencyAnalysis, error) {
	if opts.SearchPaths == nil {
		opts.SearchPaths = DefaultSearchPaths()
	}
	w := &depsWalker{
		opts:    opts,
		logger:  opts.Logger,
		visited: make(map[string]bool),
		analysis: &DependencyAnalysis{
			AllDeps:     make(map[string]string),
			MissingDeps: make([]string, 0),
		},
	}
	if w.logger == nil {
		w.logger = hclog.NewNullLogger()
	}

	// The root must parse; failures below it only mark nodes.
	r, err := OpenWithOptions(filePath, Options{Logger: w.logger})
	if err != nil {
		return nil, err
	}
	names := importedDLLs(r.Pe())
	r.Close()

	root := &DependencyNode{
		Name:  filepath.Base(filePath),
		Path:  filePath,
		Found: true,
	}
	w.visited[strings.ToLower(root.Name)] = true
	if opts.MaxDepth > 0 {
		w.expand(root, names)
	}

	w.analysis.Root = root
	w.analysis.TotalCount = len(w.analysis.AllDeps)
	return w.analysis, nil
}

// buildDependencyTree recursively builds the dependency tree for a found DLL.
func (w *depsWalker) buildDependencyTree(filePath string, depth int) *DependencyNode {
	fileName := filepath.Base(filePath)
	normalizedName := strings.ToLower(fileName)

	node := &DependencyNode{
		Name:  fileName,
		Path:  filePath,
		Found: true,
		Depth: depth,
	}

	// Check if already visited (cycle detection)
	if w.visited[normalizedName] {
		w.analysis.HasCycles = true
		return node
	}

	w.visited[normalizedName] = true
	defer func() { w.visited[normalizedName] = false }()

	if depth > w.analysis.MaxDepth {
		w.analysis.MaxDepth = depth
	}

	// Don't recurse too deep
	if depth >= w.opts.MaxDepth {
		return node
	}

	r, err := OpenWithOptions(filePath, Options{Logger: w.logger})
	if err != nil {
		w.logger.Debug("Skipping unparsable dependency", "path", filePath, "error", err)
		return node
	}
	names := importedDLLs(r.Pe())
	r.Close()

	w.expand(node, names)
	return node
}

func (w *depsWalker) expand(node *DependencyNode, names []string) {
	baseDir := filepath.Dir(node.Path)
	for _, dllName := range names {
		child := &DependencyNode{Name: dllName, Depth: node.Depth + 1}

		switch {
		case isSystemDLL(dllName):
			// Skip system DLLs for recursion (but still record them)
			w.analysis.AllDeps[dllName] = SystemPath
			child.Path, child.Found, child.System = SystemPath, true, true
		default:
			dllPath := findDLL(dllName, baseDir, w.opts.SearchPaths)
			if dllPath == "" {
				if !contains(w.analysis.MissingDeps, dllName) {
					w.analysis.MissingDeps = append(w.analysis.MissingDeps, dllName)
				}
				break
			}
			w.analysis.AllDeps[dllName] = dllPath
			child = w.buildDependencyTree(dllPath, node.Depth+1)
		}
		node.Dependencies = append(node.Dependencies, child)
	}
}

// importedDLLs returns lower-cased module names in import order without repeats.
func importedDLLs(p *Pe) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range p.Imports {
		name := strings.ToLower(m.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// findDLL looks for dllName next to the importer, then in each search path.
func findDLL(dllName, baseDir string, searchPaths []string) string {
	// Normalize name
	if filepath.Ext(dllName) == "" {
		dllName += ".dll"
	}

	for _, dir := range append([]string{baseDir}, searchPaths...) {
		fullPath := filepath.Join(dir, dllName)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath
		}
	}

	return ""
}

// isSystemDLL checks if a DLL is a well-known Windows system DLL.
func isSystemDLL(dllName string) bool {
	normalized := strings.ToLower(dllName)

	if systemDLLs[normalized] {
		return true
	}

	// Pattern match for API sets
	return strings.HasPrefix(normalized, "api-ms-win-") || strings.HasPrefix(normalized, "ext-ms-")
}

// contains checks if a string slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
