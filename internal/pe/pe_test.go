package pe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/pedump/internal/petest"
)

func TestArch(t *testing.T) {
	tests := []struct {
		name    string
		machine uint16
		is64    bool
		want    ExeInfo
	}{
		{name: "i386", machine: petest.MachineI386, want: ExeInfo{OS: "windows", Arch: "x86", Bits: 32}},
		{name: "amd64", machine: petest.MachineAMD64, is64: true, want: ExeInfo{OS: "windows", Arch: "x86", Bits: 64}},
		{name: "ia64", machine: petest.MachineIA64, is64: true, want: ExeInfo{OS: "windows", Arch: "ia", Bits: 64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := petest.New32()
			if tt.is64 {
				im = petest.New64()
			}
			im.Machine = tt.machine

			p, err := Parse(im.Build())
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Arch())
		})
	}
}

func TestModuleLookup(t *testing.T) {
	im := petest.New32()
	im.AddImports(sampleModules...)
	p, err := Parse(im.Build())
	require.NoError(t, err)

	m, ok := p.Module("kernel32.DLL")
	require.True(t, ok)
	assert.Equal(t, "KERNEL32.dll", m.Name)

	_, ok = p.Module("ntdll.dll")
	assert.False(t, ok)
}

func TestDataAt(t *testing.T) {
	im := petest.New32()
	im.AddSection(".data", []byte("abcdef"), petest.ScnData|petest.ScnRead)
	buf := im.Build()
	p, err := Parse(buf)
	require.NoError(t, err)

	raw := im.RawOffset(0)
	got, err := p.DataAt(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got, err = p.DataAt(len(buf), 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	tests := []struct {
		name          string
		start, length int
	}{
		{name: "past end", start: len(buf), length: 1},
		{name: "straddles end", start: len(buf) - 2, length: 3},
		{name: "negative start", start: -1, length: 1},
		{name: "negative length", start: 0, length: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.DataAt(tt.start, tt.length)
			assert.ErrorIs(t, err, ErrOutOfBounds)
		})
	}
}

func TestParseKeepsBuffer(t *testing.T) {
	buf := sampleImage(true).Build()
	p, err := Parse(buf)
	require.NoError(t, err)

	assert.Len(t, p.Data, len(buf))
	assert.Equal(t, uint16(0x5A4D), p.DosHeader.Magic)
	assert.True(t, p.Header.Is64())
}

func writeImage(t *testing.T, dir, name string, buf []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestReaderOpenAndClose(t *testing.T) {
	buf := sampleImage(false).Build()
	path := writeImage(t, t.TempDir(), "sample.exe", buf)

	r, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, path, r.FilePath())
	assert.Equal(t, int64(len(buf)), r.FileSize())
	require.NotNil(t, r.Pe())
	assert.Equal(t, "KERNEL32.dll", r.Pe().Imports[0].Name)

	require.NoError(t, r.Close())
	assert.Nil(t, r.Pe())

	_, err = NewAnalyzer(r).Analyze()
	assert.Error(t, err)
}

func TestReaderErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "missing.exe"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeImage(t, dir, "empty.exe", nil)
		_, err := Open(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficient)
	})

	t.Run("not a PE", func(t *testing.T) {
		path := writeImage(t, dir, "text.exe", []byte("#!/bin/sh\necho hello\n"+string(make([]byte, 64))))
		_, err := Open(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBadMagic)
		assert.Equal(t, []string{"Image DOS header"}, Contexts(err))
	})
}
