package caesar

import "fmt"

// Kinds of errors that can occur while lifting a container file
// into the ECU model
type ParseErrorKind int

const (
	ErrTruncated ParseErrorKind = iota + 1
	ErrBadMagic
	ErrMissingMetadata
	ErrPoolOutOfRange
	ErrUnknownStructureKind
	ErrInvalidImplType
	ErrUnknownSystemType
	ErrInvalidSystemParam
)

var parseErrorText = map[ParseErrorKind]string{
	ErrTruncated:            "record demanded more bytes than the source has",
	ErrBadMagic:             "file is not a known CxF type",
	ErrMissingMetadata:      "required metadata key is missing",
	ErrPoolOutOfRange:       "pool index does not resolve to an entry",
	ErrUnknownStructureKind: "structure kind is not in the lookup table",
	ErrInvalidImplType:      "implementation type does not exist (impl_type > 6)",
	ErrUnknownSystemType:    "preparation has an unknown system type",
	ErrInvalidSystemParam:   "preparation has an invalid system parameter",
}

// A ParseError fails the record being decoded. Whether it aborts the
// whole container depends on the caller, optional records downgrade
// it to a warning.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	desc, ok := parseErrorText[e.Kind]
	if !ok {
		desc = "unknown parse error"
	}
	if e.Detail == "" {
		return desc
	}
	return fmt.Sprintf("%s : %s", desc, e.Detail)
}

func newParseError(kind ParseErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
