// Package main provides the pedump CLI tool.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ZacharyZcR/pedump/internal/cli"
	"github.com/ZacharyZcR/pedump/internal/config"
	"github.com/ZacharyZcR/pedump/internal/pe"
	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
)

var (
	configPath     = flag.String("config", "", "配置文件路径 (TOML，默认读取 $PEDUMP_CONFIG)")
	verbose        = flag.Bool("v", false, "详细模式：显示所有导入/导出函数")
	suspiciousOnly = flag.Bool("s", false, "仅显示可疑节区（RWX权限）")
	output         = flag.String("o", config.OutputText, "输出格式: text, yaml, dump, raw")
	logLevel       = flag.String("log-level", "warn", "日志级别: trace, debug, info, warn, error")
	detectCaves    = flag.Bool("caves", false, "检测Code Caves（连续填充字节）")
	minCaveSize    = flag.Int("min-cave-size", 32, "Code Cave最小大小（字节）")
	listImports    = flag.Bool("list-imports", false, "列出详细导入信息（所有函数）")
	showTLS        = flag.Bool("tls", false, "显示TLS目录和回调")
	showRelocs     = flag.Bool("relocs", false, "显示基址重定位统计")
	analyzeDeps    = flag.Bool("deps", false, "分析依赖关系（递归检测所有DLL依赖）")
	maxDepth       = flag.Int("max-depth", 3, "依赖分析最大深度（默认: 3）")
	flatList       = flag.Bool("flat", false, "依赖分析使用扁平列表格式（默认: 树状）")
	noColor        = flag.Bool("no-color", false, "禁用彩色输出")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err == nil {
		err = run(cfg, flag.Arg(0))
	}

	if err != nil {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintf(os.Stderr, "\n错误: %v\n\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config layers and then applies flags the user set explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Verbose = *verbose
		case "o":
			cfg.Output = *output
		case "log-level":
			cfg.LogLevel = *logLevel
		case "min-cave-size":
			cfg.MinCaveSize = *minCaveSize
		case "max-depth":
			cfg.MaxDepth = *maxDepth
		case "no-color":
			cfg.NoColor = *noColor
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.NoColor {
		color.NoColor = true
	}
	return cfg, nil
}

func run(cfg *config.Config, filepath string) error {
	logger := cfg.Logger(os.Stderr)

	reader, err := pe.OpenWithOptions(filepath, pe.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	out := color.Output
	p := reader.Pe()

	switch cfg.Output {
	case config.OutputDump:
		cli.Dump(out, p)
		return nil
	case config.OutputRaw:
		cli.WriteRaw(out, p)
		return nil
	}

	info, err := pe.NewAnalyzer(reader).Analyze()
	if err != nil {
		return err
	}
	if cfg.Output == config.OutputYAML {
		return cli.WriteYAML(out, info)
	}

	reporter := cli.NewReporter(info)
	reporter.SetOutput(out)
	reporter.SetVerbose(cfg.Verbose)
	reporter.SetSuspiciousOnly(*suspiciousOnly)
	reporter.Print()

	if *detectCaves {
		minSize := uint32(cfg.MinCaveSize)
		caves := pe.NewCodeCaveDetector(p.Header).FindCodeCaves(minSize)
		cli.PrintCodeCaves(out, caves, minSize)
	}

	if *listImports {
		cli.PrintImportList(out, p.Imports)
	}

	if *showTLS {
		if err := printTLS(out, p); err != nil {
			return err
		}
	}

	if *showRelocs {
		if err := printRelocations(out, p); err != nil {
			return err
		}
	}

	if *analyzeDeps {
		if err := analyzeDependencies(out, cfg, filepath, logger); err != nil {
			return err
		}
	}

	return nil
}

func printTLS(w io.Writer, p *pe.Pe) error {
	info, err := p.Header.TLS()
	if err != nil {
		return fmt.Errorf("解析TLS目录失败: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(w)
	_, _ = cyan.Fprintln(w, "========== TLS 目录 ==========")
	if !info.HasTLS {
		fmt.Fprintln(w, "未发现TLS目录")
		return nil
	}

	fmt.Fprintf(w, "  原始数据:   0x%X - 0x%X\n", info.StartAddressOfRawData, info.EndAddressOfRawData)
	fmt.Fprintf(w, "  索引地址:   0x%X\n", info.AddressOfIndex)
	fmt.Fprintf(w, "  零填充大小: %d 字节\n", info.SizeOfZeroFill)
	fmt.Fprintf(w, "  回调数量:   %d\n", len(info.Callbacks))
	for i, cb := range info.Callbacks {
		fmt.Fprintf(w, "    %d. 0x%X\n", i+1, cb)
	}
	return nil
}

func printRelocations(w io.Writer, p *pe.Pe) error {
	info, err := p.Header.Relocations()
	if err != nil {
		return fmt.Errorf("解析重定位表失败: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(w)
	_, _ = cyan.Fprintln(w, "========== 基址重定位 ==========")
	if !info.HasRelocations {
		fmt.Fprintln(w, "未发现重定位表")
		return nil
	}

	fmt.Fprintf(w, "  块数量:   %d\n", info.BlockCount)
	fmt.Fprintf(w, "  条目总数: %d\n", info.TotalEntries)
	for _, t := range []pe.RelocationType{
		pe.RelBasedAbsolute, pe.RelBasedHigh, pe.RelBasedLow, pe.RelBasedHighLow,
		pe.RelBasedHighAdj, pe.RelBasedMipsJmpAddr, pe.RelBasedThumbMov32,
		pe.RelBasedMipsJmpAddr16, pe.RelBasedDir64,
	} {
		if n := info.TypeCounts[t]; n > 0 {
			fmt.Fprintf(w, "    %-24s %d\n", t, n)
		}
	}
	return nil
}

func analyzeDependencies(w io.Writer, cfg *config.Config, filepath string, logger hclog.Logger) error {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)

	fmt.Fprintln(w)
	_, _ = cyan.Fprintf(w, "========== 依赖分析 ==========\n")

	analysis, err := pe.AnalyzeDependencies(filepath, pe.DepsOptions{
		MaxDepth:    cfg.MaxDepth,
		SearchPaths: cfg.SearchPaths,
		Logger:      logger.Named("deps"),
	})
	if err != nil {
		return fmt.Errorf("依赖分析失败: %w", err)
	}

	if *flatList {
		cli.PrintDependencyList(w, analysis)
	} else {
		_, _ = green.Fprintf(w, "\n依赖树:\n")
		cli.PrintDependencyTree(w, analysis.Root, "", false)
		cli.PrintDependencySummary(w, analysis)
	}

	fmt.Fprintln(w)
	return nil
}

func printUsage() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Println("\npedump - PE文件结构解析工具")

	fmt.Println("\n用法:")
	fmt.Println("  pedump [选项] <PE文件路径>")
	fmt.Println("\n选项:")
	fmt.Println("  -config <路径>   TOML 配置文件（默认: $PEDUMP_CONFIG）")
	fmt.Println("  -o <格式>        输出格式: text（报告）, yaml, dump（结构树）, raw（Go 结构）")
	fmt.Println("  -v               详细模式：显示所有导入/导出函数（不限制数量）")
	fmt.Println("  -s               仅显示可疑节区（RWX权限，潜在安全风险）")
	fmt.Println("  -log-level <级>  解析日志级别: trace, debug, info, warn, error（输出到 stderr）")
	fmt.Println("  -caves           检测Code Caves（连续 0x00/0xCC 填充）")
	fmt.Println("  -min-cave-size   Code Cave最小大小（字节，默认: 32）")
	fmt.Println("  -list-imports    列出详细导入信息（所有函数，无截断）")
	fmt.Println("  -tls             显示TLS目录和回调")
	fmt.Println("  -relocs          显示基址重定位统计")
	fmt.Println("  -deps            分析依赖关系（递归检测所有DLL依赖）")
	fmt.Println("  -max-depth       依赖分析最大深度（默认: 3，防止无限递归）")
	fmt.Println("  -flat            依赖分析使用扁平列表格式（默认: 树状）")
	fmt.Println("  -no-color        禁用彩色输出（也可设置 NO_COLOR）")

	fmt.Println("\n环境变量:")
	fmt.Println("  PEDUMP_CONFIG, PEDUMP_VERBOSE, PEDUMP_OUTPUT, PEDUMP_LOG_LEVEL,")
	fmt.Println("  PEDUMP_MAX_DEPTH, PEDUMP_SEARCH_PATH, NO_COLOR")

	fmt.Println("\n示例:")
	fmt.Println("  pedump C:\\Windows\\System32\\notepad.exe")
	fmt.Println("  pedump -v C:\\Windows\\System32\\kernel32.dll")
	fmt.Println("  pedump -o dump program.exe")
	fmt.Println("  pedump -o yaml program.exe > program.yaml")
	fmt.Println("  pedump -log-level trace -o raw program.exe")
	fmt.Println("  pedump -caves -min-cave-size 64 program.exe")
	fmt.Println("  pedump -deps -max-depth 5 program.exe")
	fmt.Println("  pedump -deps -flat program.exe")
	fmt.Println()
}
