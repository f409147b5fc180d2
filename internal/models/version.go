package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant is the dataset sub-variant qualifier. Variant B adds the
// optional MosMedData source on top of everything in variant A.
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// Version identifies a dataset release: a major number plus a variant
// letter, e.g. "3A" or "3B".
type Version struct {
	Major   int
	Variant Variant
}

// ParseVersion parses a version tag like "3B" into its structured form.
func ParseVersion(tag string) (Version, error) {
	tag = strings.TrimSpace(strings.ToUpper(tag))
	if len(tag) < 2 {
		return Version{}, fmt.Errorf("version tag %q too short, want e.g. \"3A\"", tag)
	}

	major, err := strconv.Atoi(tag[:len(tag)-1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version in %q: %w", tag, err)
	}

	variant := Variant(tag[len(tag)-1:])
	switch variant {
	case VariantA, VariantB:
	default:
		return Version{}, fmt.Errorf("unknown variant %q in version tag %q", variant, tag)
	}

	return Version{Major: major, Variant: variant}, nil
}

// Tag returns the canonical string form, e.g. "3B".
func (v Version) Tag() string {
	return fmt.Sprintf("%d%s", v.Major, v.Variant)
}

// IncludesMosMed reports whether the MosMedData source is part of this
// dataset version.
func (v Version) IncludesMosMed() bool {
	return v.Variant == VariantB
}

// Base returns the base variant of the same major version. Split files
// missing for a sub-variant are substituted from the base variant.
func (v Version) Base() Version {
	return Version{Major: v.Major, Variant: VariantA}
}

// IsBase reports whether this version is already the base variant.
func (v Version) IsBase() bool {
	return v.Variant == VariantA
}
