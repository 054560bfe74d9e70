package hive

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Separator is the native path separator between section names.
const Separator = `\`

// Registry limits.
const (
	MaxKeyNameLength   = 255
	MaxValueNameLength = 16383
	MaxDepth           = 512
)

// SplitPath splits a path into section names, dropping empty segments.
func SplitPath(path string) ([]string, error) {
	raw := strings.Split(path, Separator)
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) > MaxKeyNameLength {
			return nil, fmt.Errorf("%w: segment %.16q... exceeds %d characters", ErrInvalidPath, s, MaxKeyNameLength)
		}
		segments = append(segments, s)
	}
	if len(segments) > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrInvalidPath, len(segments), MaxDepth)
	}
	return segments, nil
}

// JoinPath joins section names with Separator, ignoring empty names.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, Separator)
}

// Fold returns the case-folded form of a name, used for case-insensitive comparison.
func Fold(name string) string {
	return cases.Fold().String(name)
}

// CanonicalPath returns the folded, separator-normalized form of path.
func CanonicalPath(path string) (string, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return "", err
	}
	for i, s := range segments {
		segments[i] = Fold(s)
	}
	return strings.Join(segments, Separator), nil
}

// ValidateValueName checks a parameter name. The empty name is the section's default value.
func ValidateValueName(name string) error {
	if utf8.RuneCountInString(name) > MaxValueNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, MaxValueNameLength)
	}
	return nil
}
