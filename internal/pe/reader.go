// Package pe parses Portable Executable images: DOS header, PE header, section
// table and import directory.
package pe

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Reader maps a PE file read-only and owns the parsed result.
// Every slice reachable from Pe() points into the mapping and is invalid after Close.
type Reader struct {
	file     *os.File
	data     mmap.MMap
	pe       *Pe
	filepath string
	filesize int64
}

// Open opens and parses a PE file.
func Open(filepath string) (*Reader, error) {
	return OpenWithOptions(filepath, Options{})
}

// OpenWithOptions opens and parses a PE file, passing opts to the parser.
func OpenWithOptions(filepath string, opts Options) (*Reader, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开PE文件失败: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("获取文件信息失败: %w", err)
	}

	r := &Reader{
		file:     f,
		filepath: filepath,
		filesize: stat.Size(),
	}

	// Zero-length files cannot be mapped; they still go through the parser so
	// the caller gets the usual truncation error.
	var buf []byte
	if r.filesize > 0 {
		r.data, err = mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("映射文件失败: %w", err)
		}
		buf = r.data
	}

	r.pe, err = ParseWithOptions(buf, opts)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("解析PE文件失败: %w", err)
	}
	return r, nil
}

// Close unmaps the file and closes it.
func (r *Reader) Close() error {
	var errs []error
	if r.data != nil {
		errs = append(errs, r.data.Unmap())
		r.data = nil
	}
	if r.file != nil {
		errs = append(errs, r.file.Close())
		r.file = nil
	}
	r.pe = nil
	return errors.Join(errs...)
}

// Pe returns the parsed image, or nil after Close.
func (r *Reader) Pe() *Pe {
	return r.pe
}

// FilePath returns the file path.
func (r *Reader) FilePath() string {
	return r.filepath
}

// FileSize returns the file size in bytes.
func (r *Reader) FileSize() int64 {
	return r.filesize
}
