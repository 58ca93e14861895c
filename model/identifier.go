package model

import "fmt"

// Shape tells the runner how a test identifier has to be passed to the
// underlying test framework. A run only ever holds identifiers of one shape.
type Shape uint8

const (
	// ShapeKeyword is a keyword fragment matched by the framework's keyword
	// filter against the whole suite file. It may select several cases.
	ShapeKeyword Shape = iota
	// ShapeNodeID is a fully qualified node id selecting exactly one case.
	ShapeNodeID
)

func (s Shape) String() string {
	switch s {
	case ShapeKeyword:
		return "keyword"
	case ShapeNodeID:
		return "node-id"
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// Mode is the persisted run mode tag written into the run log header and the
// checkpoint.
type Mode string

const (
	ModeCSV       Mode = "csv"
	ModeFullSuite Mode = "full_suite"
)

// Shape returns the identifier shape runs of this mode use.
func (m Mode) Shape() Shape {
	if m == ModeFullSuite {
		return ShapeNodeID
	}
	return ShapeKeyword
}

// ParseMode validates a mode tag read back from disk.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCSV, ModeFullSuite:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}
