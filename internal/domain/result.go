package domain

import (
	"errors"
	"fmt"
	"strings"
)

// NoRelevantContent is the display text used when retrieval finds nothing close enough.
const NoRelevantContent = "No relevant content."

// QueryFailedMessage is shown to the operator when a query cannot be answered.
const QueryFailedMessage = "Error: Unable to process the query."

// Material is what retrieval hands to the answer steps: either matched text or nothing.
type Material struct {
	text    string
	matched bool
}

// Matched wraps retrieved text that passed the similarity filter.
func Matched(text string) Material { return Material{text: text, matched: true} }

// NoMatch reports that no retrieved chunk passed the similarity filter.
func NoMatch() Material { return Material{} }

// IsMatch reports whether the material carries retrieved text.
func (m Material) IsMatch() bool { return m.matched }

// Text returns the matched text, or the no-content display text for NoMatch.
func (m Material) Text() string {
	if !m.matched {
		return NoRelevantContent
	}
	return m.text
}

// ResultKind tells a renderer which fields of a QueryResult are meaningful.
type ResultKind int

const (
	// ResultComposed carries excerpt, summary and supplement.
	ResultComposed ResultKind = iota
	// ResultDirect carries a single plain answer produced without an index.
	ResultDirect
	// ResultFailed carries the generic failure message and the underlying error.
	ResultFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultComposed:
		return "composed"
	case ResultDirect:
		return "direct"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// QueryResult is the composed output of one query.
type QueryResult struct {
	Kind       ResultKind
	Matched    bool
	Excerpt    string
	Summary    string
	Supplement string
	Answer     string
	Err        error
}

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindUpstream       ErrorKind = "upstream"
	KindIndex          ErrorKind = "index"
	KindMalformedInput ErrorKind = "malformed_input"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// QueryError is a pipeline failure tagged with its kind and the stage that failed.
type QueryError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ErrorKindOf returns the kind of the first QueryError in err's chain.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind, true
	}
	return "", false
}

// SplitFirstLine separates the first line of text from the remaining lines.
// Empty text yields an empty first line and no rest.
func SplitFirstLine(text string) (string, []string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], lines[1:]
}
