// Package cli provides command-line interface utilities.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/ZacharyZcR/pedump/internal/pe"
	"github.com/fatih/color"
)

// Reporter formats and prints PE analysis results.
type Reporter struct {
	info           *pe.Info
	out            io.Writer
	verbose        bool
	suspiciousOnly bool
}

// NewReporter creates a new reporter for the given PE info.
func NewReporter(info *pe.Info) *Reporter {
	return &Reporter{info: info, out: color.Output}
}

// SetOutput redirects the report.
func (r *Reporter) SetOutput(w io.Writer) {
	r.out = w
}

// SetVerbose enables verbose mode (show all functions).
func (r *Reporter) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// SetSuspiciousOnly enables suspicious-only mode (show RWX sections only).
func (r *Reporter) SetSuspiciousOnly(suspicious bool) {
	r.suspiciousOnly = suspicious
}

// Print outputs the complete analysis report.
func (r *Reporter) Print() {
	r.printHeader()
	r.printBasicInfo()
	r.printSections()
	r.printImports()
	r.printExports()
}

func (r *Reporter) printHeader() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(r.out, "\n╔════════════════════════════════════════╗")
	_, _ = cyan.Fprintln(r.out, "║          pedump 分析报告               ║")
	_, _ = cyan.Fprintln(r.out, "╚════════════════════════════════════════╝")
}

func (r *Reporter) printBasicInfo() {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintln(r.out, "\n【基本信息】")

	fmt.Fprintf(r.out, "  %-20s: %s\n", "文件路径", r.info.FilePath)
	fmt.Fprintf(r.out, "  %-20s: %s\n", "文件大小", formatSize(r.info.FileSize))
	fmt.Fprintf(r.out, "  %-20s: %s\n", "架构", r.info.Architecture)
	fmt.Fprintf(r.out, "  %-20s: %s\n", "格式", r.info.Format)
	fmt.Fprintf(r.out, "  %-20s: %s\n", "子系统", r.info.Subsystem)
	fmt.Fprintf(r.out, "  %-20s: 0x%X\n", "入口点", r.info.EntryPoint)
	fmt.Fprintf(r.out, "  %-20s: 0x%X\n", "镜像基址", r.info.ImageBase)
	fmt.Fprintf(r.out, "  %-20s: %s\n", "镜像大小", formatSize(int64(r.info.ImageSize)))
	fmt.Fprintf(r.out, "  %-20s: %s\n", "文件特征", orNone(r.info.Characteristics))
	fmt.Fprintf(r.out, "  %-20s: %s\n", "DLL特征", orNone(r.info.DllCharacteristics))

	// Print checksum verification
	if r.info.Checksum != nil {
		fmt.Fprintf(r.out, "  %-20s: ", "校验和")
		if r.info.Checksum.Stored == 0 {
			gray := color.New(color.FgHiBlack)
			_, _ = gray.Fprint(r.out, "未设置")
		} else if r.info.Checksum.Valid {
			green := color.New(color.FgGreen)
			_, _ = green.Fprintf(r.out, "✓ 有效 (0x%08X)", r.info.Checksum.Stored)
		} else {
			red := color.New(color.FgRed, color.Bold)
			_, _ = red.Fprintf(r.out, "✗ 无效 (存储: 0x%08X, 计算: 0x%08X)",
				r.info.Checksum.Stored, r.info.Checksum.Computed)
		}
		fmt.Fprintln(r.out)
	}
}

func (r *Reporter) printSections() {
	sections := r.info.Sections

	// Filter suspicious sections if flag is set
	if r.suspiciousOnly {
		var suspicious []pe.SectionInfo
		for _, s := range sections {
			if s.Permissions == "RWX" {
				suspicious = append(suspicious, s)
			}
		}
		sections = suspicious
	}

	yellow := color.New(color.FgYellow, color.Bold)
	if r.suspiciousOnly {
		_, _ = yellow.Fprintf(r.out, "\n【可疑节区】(共 %d 个)\n", len(sections))
	} else {
		_, _ = yellow.Fprintf(r.out, "\n【节区信息】(共 %d 个)\n", len(sections))
	}

	if len(sections) == 0 {
		if r.suspiciousOnly {
			fmt.Fprintln(r.out, "  未发现可疑节区")
		} else {
			fmt.Fprintln(r.out, "  未发现节区")
		}
		return
	}

	// Header
	fmt.Fprintln(r.out, strings.Repeat("-", 100))
	fmt.Fprintf(r.out, "  %-10s %-12s %-15s %-15s %-8s %-8s %s\n",
		"名称", "虚拟地址", "虚拟大小", "原始大小", "权限", "熵", "特征")
	fmt.Fprintln(r.out, strings.Repeat("-", 100))

	// Rows
	for _, section := range sections {
		// Highlight dangerous permissions (RWX)
		permColor := color.New(color.FgWhite)
		if section.Permissions == "RWX" {
			permColor = color.New(color.FgRed, color.Bold)
		} else if strings.Contains(section.Permissions, "X") {
			permColor = color.New(color.FgYellow)
		}

		fmt.Fprintf(r.out, "  %-10s 0x%08X   %-15s %-15s ",
			section.Name,
			section.VirtualAddress,
			formatSize(int64(section.VirtualSize)),
			formatSize(int64(section.Size)),
		)
		_, _ = permColor.Fprintf(r.out, "%-8s", section.Permissions)

		entropyColor := color.New(color.FgWhite)
		if section.Entropy > 7.0 {
			entropyColor = color.New(color.FgRed)
		}
		_, _ = entropyColor.Fprintf(r.out, " %-8.3f", section.Entropy)
		fmt.Fprintf(r.out, " %s\n", orNone(section.Characteristics))
	}
	fmt.Fprintln(r.out, strings.Repeat("-", 100))
}

func (r *Reporter) printImports() {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintf(r.out, "\n【导入表】(共 %d 个DLL)\n", len(r.info.Imports))

	if len(r.info.Imports) == 0 {
		fmt.Fprintln(r.out, "  未发现导入")
		return
	}

	for i, imp := range r.info.Imports {
		green := color.New(color.FgGreen)
		funcCount := len(imp.Functions)
		_, _ = green.Fprintf(r.out, "  %3d. %s (%d 个函数)\n", i+1, imp.DLL, funcCount)

		maxDisplay := 10
		if r.verbose {
			maxDisplay = funcCount // Show all in verbose mode
		}
		displayCount := min(funcCount, maxDisplay)

		for j := 0; j < displayCount; j++ {
			fmt.Fprintf(r.out, "       - %s\n", imp.Functions[j])
		}

		if funcCount > maxDisplay {
			gray := color.New(color.FgHiBlack)
			_, _ = gray.Fprintf(r.out, "       ... (还有 %d 个函数)\n", funcCount-maxDisplay)
		}
	}
	fmt.Fprintln(r.out)
}

func (r *Reporter) printExports() {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintf(r.out, "\n【导出表】(共 %d 个函数)\n", len(r.info.Exports))

	if len(r.info.Exports) == 0 {
		fmt.Fprintln(r.out, "  未发现导出")
		return
	}

	maxDisplay := 20
	if r.verbose {
		maxDisplay = len(r.info.Exports) // Show all in verbose mode
	}
	displayCount := min(len(r.info.Exports), maxDisplay)

	for i := 0; i < displayCount; i++ {
		green := color.New(color.FgGreen)
		_, _ = green.Fprintf(r.out, "  %3d. %s\n", i+1, r.info.Exports[i])
	}

	if len(r.info.Exports) > maxDisplay {
		gray := color.New(color.FgHiBlack)
		_, _ = gray.Fprintf(r.out, "  ... (还有 %d 个函数)\n", len(r.info.Exports)-maxDisplay)
	}
	fmt.Fprintln(r.out)
}

// PrintImportList prints every imported symbol of every module without truncation.
func PrintImportList(w io.Writer, modules []pe.ImportedModule) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)

	fmt.Fprintln(w)
	_, _ = cyan.Fprintf(w, "========== 详细导入表 (%d 个DLL) ==========\n", len(modules))

	for i, m := range modules {
		_, _ = green.Fprintf(w, "\n%d. %s (%d 个函数)\n", i+1, m.Name, len(m.Symbols))
		for j, sym := range m.Symbols {
			switch s := sym.(type) {
			case pe.NamedImport:
				fmt.Fprintf(w, "   %d. %s (Hint: %d)\n", j+1, s.Name, s.Hint)
			case pe.OrdinalImport:
				fmt.Fprintf(w, "   %d. 序号 %d\n", j+1, uint64(s))
			}
		}
	}

	fmt.Fprintln(w)
}

// PrintCodeCaves prints the caves found with the given minimum size.
func PrintCodeCaves(w io.Writer, caves []pe.CodeCave, minSize uint32) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(w)
	_, _ = cyan.Fprintf(w, "========== Code Caves (最小 %d 字节) ==========\n", minSize)

	if len(caves) == 0 {
		_, _ = yellow.Fprintln(w, "未发现符合条件的 Code Caves")
		return
	}

	_, _ = green.Fprintf(w, "发现 %d 个 Code Caves:\n\n", len(caves))

	for i, cave := range caves {
		fillPattern := "0x00"
		if cave.FillByte == 0xCC {
			fillPattern = "0xCC (INT3)"
		}

		fmt.Fprintf(w, "%d. 节区: %s\n", i+1, cave.Section)
		fmt.Fprintf(w, "   文件偏移: 0x%08X\n", cave.Offset)
		fmt.Fprintf(w, "   RVA:      0x%08X\n", cave.RVA)
		fmt.Fprintf(w, "   大小:     %d 字节\n", cave.Size)
		fmt.Fprintf(w, "   填充:     %s\n", fillPattern)
		fmt.Fprintln(w)
	}
}

func orNone(s string) string {
	if s == "" {
		return "无"
	}
	return s
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
