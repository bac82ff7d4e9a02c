// Package main provides the pedump GUI application.
package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/fatih/color"

	"github.com/ZacharyZcR/pedump/internal/cli"
	"github.com/ZacharyZcR/pedump/internal/config"
	"github.com/ZacharyZcR/pedump/internal/pe"
)

// report holds the rendered text for each tab.
type report struct {
	summary   string
	structure string
	imports   string
}

func main() {
	// Output goes to text widgets, not a terminal.
	color.NoColor = true

	cfg, err := config.Load("")
	if err != nil {
		cfg = &config.Config{Output: config.OutputText, LogLevel: "warn", MaxDepth: 3, MinCaveSize: 32}
	}

	myApp := app.New()
	myWindow := myApp.NewWindow("pedump - PE文件结构查看器")
	myWindow.Resize(fyne.NewSize(900, 700))

	// File path
	filePathEntry := widget.NewEntry()
	filePathEntry.SetPlaceHolder("选择PE文件...")

	summaryOutput := newOutput("分析结果将显示在这里...")
	structureOutput := newOutput("解析出的头部结构将显示在这里...")
	importsOutput := newOutput("导入表将显示在这里...")

	statusLabel := widget.NewLabel("就绪")

	fileButton := widget.NewButton("选择文件", func() {
		dialog.ShowFileOpen(func(file fyne.URIReadCloser, err error) {
			if err != nil || file == nil {
				return
			}
			defer func() { _ = file.Close() }()
			filePathEntry.SetText(file.URI().Path())
		}, myWindow)
	})

	analyzeButton := widget.NewButton("分析", func() {
		if filePathEntry.Text == "" {
			dialog.ShowError(fmt.Errorf("请先选择PE文件"), myWindow)
			return
		}

		path := filePathEntry.Text
		statusLabel.SetText("正在分析...")
		go func() {
			result, err := analyzePEFile(cfg, path)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, myWindow)
					statusLabel.SetText("分析失败")
					return
				}
				summaryOutput.SetText(result.summary)
				structureOutput.SetText(result.structure)
				importsOutput.SetText(result.imports)
				statusLabel.SetText("分析完成")
			})
		}()
	})

	fileBox := container.NewBorder(nil, nil, nil, fileButton, filePathEntry)

	tabs := container.NewAppTabs(
		container.NewTabItem("概要", container.NewVScroll(summaryOutput)),
		container.NewTabItem("结构", container.NewVScroll(structureOutput)),
		container.NewTabItem("导入", container.NewVScroll(importsOutput)),
	)

	mainContent := container.NewBorder(
		container.NewVBox(
			widget.NewLabel("PE文件路径:"),
			fileBox,
			widget.NewSeparator(),
			analyzeButton,
		),
		container.NewVBox(
			widget.NewSeparator(),
			statusLabel,
		),
		nil,
		nil,
		tabs,
	)

	myWindow.SetContent(mainContent)
	myWindow.ShowAndRun()
}

func newOutput(placeholder string) *widget.Entry {
	e := widget.NewMultiLineEntry()
	e.SetPlaceHolder(placeholder)
	e.TextStyle = fyne.TextStyle{Monospace: true}
	e.Disable()
	return e
}

func analyzePEFile(cfg *config.Config, filepath string) (*report, error) {
	reader, err := pe.OpenWithOptions(filepath, pe.Options{Logger: cfg.Logger(nil)})
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	info, err := pe.NewAnalyzer(reader).Analyze()
	if err != nil {
		return nil, err
	}

	var summary strings.Builder
	reporter := cli.NewReporter(info)
	reporter.SetOutput(&summary)
	reporter.SetVerbose(cfg.Verbose)
	reporter.Print()

	caves := pe.NewCodeCaveDetector(reader.Pe().Header).FindCodeCaves(uint32(cfg.MinCaveSize))
	if len(caves) > 0 {
		cli.PrintCodeCaves(&summary, caves, uint32(cfg.MinCaveSize))
	}

	var structure strings.Builder
	cli.Dump(&structure, reader.Pe())

	var imports strings.Builder
	cli.PrintImportList(&imports, reader.Pe().Imports)

	return &report{
		summary:   summary.String(),
		structure: structure.String(),
		imports:   imports.String(),
	}, nil
}
