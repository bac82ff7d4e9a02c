package pe

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a parse failure.
type ErrorKind int

// Parse failure kinds.
const (
	KindInsufficient ErrorKind = iota + 1
	KindBadMagic
	KindUnknownVariant
	KindTooMany
	KindHeaderSizeMismatch
	KindMisaligned
	KindBadLongName
	KindInvalidUTF8
	KindNotNulTerminated
	KindNoSectionForRva
	KindOutOfBounds
)

var kindNames = map[ErrorKind]string{
	KindInsufficient:       "数据不足",
	KindBadMagic:           "魔数不匹配",
	KindUnknownVariant:     "未知枚举值",
	KindTooMany:            "数量超过上限",
	KindHeaderSizeMismatch: "可选头大小不一致",
	KindMisaligned:         "未按文件对齐",
	KindBadLongName:        "长节区名无效",
	KindInvalidUTF8:        "非法UTF-8字符串",
	KindNotNulTerminated:   "字符串缺少NUL结尾",
	KindNoSectionForRva:    "RVA不在任何节区内",
	KindOutOfBounds:        "偏移超出缓冲区",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ParseError is the leaf of every parse failure.
// Offset is relative to the start of the buffer handed to the entry point.
// NoSectionForRva has no file position: its Offset is unset and the RVA is in Detail.
type ParseError struct {
	Kind   ErrorKind
	Offset int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Kind == KindNoSectionForRva {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s (偏移 0x%X)", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%s: %s (偏移 0x%X)", e.Kind, e.Detail, e.Offset)
}

// Is matches any *ParseError of the same kind, so the Err* sentinels work with errors.Is.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInsufficient       = &ParseError{Kind: KindInsufficient}
	ErrBadMagic           = &ParseError{Kind: KindBadMagic}
	ErrUnknownVariant     = &ParseError{Kind: KindUnknownVariant}
	ErrTooMany            = &ParseError{Kind: KindTooMany}
	ErrHeaderSizeMismatch = &ParseError{Kind: KindHeaderSizeMismatch}
	ErrMisaligned         = &ParseError{Kind: KindMisaligned}
	ErrBadLongName        = &ParseError{Kind: KindBadLongName}
	ErrInvalidUTF8        = &ParseError{Kind: KindInvalidUTF8}
	ErrNotNulTerminated   = &ParseError{Kind: KindNotNulTerminated}
	ErrNoSectionForRva    = &ParseError{Kind: KindNoSectionForRva}
	ErrOutOfBounds        = &ParseError{Kind: KindOutOfBounds}
)

func newError(kind ErrorKind, offset int, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

// ContextError names the structural layer a failure happened in.
type ContextError struct {
	Context string
	Err     error
}

func (e *ContextError) Error() string {
	return e.Context + ": " + e.Err.Error()
}

func (e *ContextError) Unwrap() error {
	return e.Err
}

// withContext wraps err in a named layer. A nil err stays nil.
func withContext(context string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextError{Context: context, Err: err}
}

// Contexts returns the chain of context names carried by err, outermost first.
func Contexts(err error) []string {
	var names []string
	for err != nil {
		var ce *ContextError
		if !errors.As(err, &ce) {
			break
		}
		names = append(names, ce.Context)
		err = ce.Err
	}
	return names
}

// KindOf returns the kind of the ParseError at the bottom of err, or 0.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
