// Package models contains domain types for the CT dataset builder.
package models

import (
	"fmt"
	"strconv"
)

// ClassLabel is the diagnostic class assigned to a slice.
// The numeric values are the ones written to manifests and split files.
type ClassLabel int

const (
	ClassNormal    ClassLabel = 0
	ClassPneumonia ClassLabel = 1
	ClassCOVID19   ClassLabel = 2
)

// ClassLabels lists every label in canonical order.
var ClassLabels = []ClassLabel{ClassNormal, ClassPneumonia, ClassCOVID19}

// String returns the human-readable class name.
func (c ClassLabel) String() string {
	switch c {
	case ClassNormal:
		return "Normal"
	case ClassPneumonia:
		return "Pneumonia"
	case ClassCOVID19:
		return "COVID-19"
	default:
		return fmt.Sprintf("ClassLabel(%d)", int(c))
	}
}

// Valid reports whether the label is one of the three known classes.
func (c ClassLabel) Valid() bool {
	return c >= ClassNormal && c <= ClassCOVID19
}

// ParseClassLabel parses the numeric class token used in manifests
// and split files ("0", "1" or "2").
func ParseClassLabel(token string) (ClassLabel, error) {
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("invalid class token %q: %w", token, err)
	}
	c := ClassLabel(n)
	if !c.Valid() {
		return 0, fmt.Errorf("class %d out of range", n)
	}
	return c, nil
}
