package models

import (
	"fmt"
	"strings"
)

// Partition names the three dataset partitions enumerated by split files.
type Partition string

const (
	PartitionTrain Partition = "train"
	PartitionVal   Partition = "val"
	PartitionTest  Partition = "test"
)

// Partitions lists every partition in canonical order.
var Partitions = []Partition{PartitionTrain, PartitionVal, PartitionTest}

// SplitRecord is one line of a split file. Split lines may carry extra
// fields (e.g. bounding boxes) after the class token; those are ignored.
type SplitRecord struct {
	Filename string
	Class    ClassLabel
}

// ParseSplitLine parses the first two whitespace-separated tokens of a
// split file line into a record.
func ParseSplitLine(line string) (SplitRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return SplitRecord{}, fmt.Errorf("split line %q: want at least filename and class", line)
	}
	class, err := ParseClassLabel(fields[1])
	if err != nil {
		return SplitRecord{}, fmt.Errorf("split line %q: %w", line, err)
	}
	return SplitRecord{Filename: fields[0], Class: class}, nil
}
