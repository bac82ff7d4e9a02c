package cli

import (
	"fmt"
	"io"

	"github.com/ZacharyZcR/pedump/internal/pe"
	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"
)

// WriteYAML encodes the analysis summary as YAML.
func WriteYAML(w io.Writer, info *pe.Info) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("YAML 编码失败: %w", err)
	}
	return enc.Close()
}

var rawConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// WriteRaw dumps the parsed structures with their Go field names and types.
// The image bytes themselves are left out.
func WriteRaw(w io.Writer, p *pe.Pe) {
	header := *p.Header
	header.Data = nil
	rawConfig.Fdump(w, p.DosHeader, &header, p.Imports)
}
