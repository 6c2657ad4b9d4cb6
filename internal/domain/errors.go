package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures of the extract and transfer steps.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindHeader
	KindFetch
	KindExtractionNotFound
	KindIO
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrHeader             = errors.New("invalid header")
	ErrFetch              = errors.New("fetch failed")
	ErrExtractionNotFound = errors.New("media url not found in page")
	ErrIO                 = errors.New("filesystem error")
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindHeader:
		return "HeaderError"
	case KindFetch:
		return "FetchError"
	case KindExtractionNotFound:
		return "ExtractionNotFound"
	case KindIO:
		return "IoError"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindHeader:
		return ErrHeader
	case KindFetch:
		return ErrFetch
	case KindExtractionNotFound:
		return ErrExtractionNotFound
	case KindIO:
		return ErrIO
	default:
		return nil
	}
}

// Error is the typed failure returned by the extractor and the streamer.
type Error struct {
	Kind ErrorKind
	Op   string // what was being done, e.g. "get page", "rename"
	URL  string // request URL, when relevant
	Path string // filesystem path, when relevant
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("error")
	}
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " %s", e.URL)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewHeaderError reports a caller-supplied header that is not valid HTTP.
func NewHeaderError(name string, err error) *Error {
	return &Error{Kind: KindHeader, Op: fmt.Sprintf("header %q", name), Err: err}
}

// NewFetchError reports a transport or protocol failure for rawURL.
func NewFetchError(op, rawURL string, err error) *Error {
	return &Error{Kind: KindFetch, Op: op, URL: rawURL, Err: err}
}

// NewExtractionNotFound reports a page with no media URL. debugPath is the
// HTML snapshot written for inspection ("" if it could not be written).
func NewExtractionNotFound(pageURL, debugPath string) *Error {
	return &Error{Kind: KindExtractionNotFound, Op: "scan page", URL: pageURL, Path: debugPath}
}

// NewIOError reports a filesystem failure on path.
func NewIOError(op, path string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// KindOf returns the ErrorKind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
