/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownCycle is returned for a cycle identifier with no mapping.
var ErrUnknownCycle = errors.New("unknown cycle")

// CycleMap translates a submission cycle identifier (e.g. "cscw21d") to the
// cycle name used by another table.
type CycleMap map[string]string

// DefaultAuthorCycles maps paper cycles to the cycle names of the authors table.
func DefaultAuthorCycles() CycleMap {
	return CycleMap{
		"cscw21b": "jan",
		"cscw21d": "apr",
		"cscw22a": "jul21",
		"cscw22b": "jan22",
	}
}

// DefaultSubmissionCycles maps submission URL cycles to the cycle names of
// the papers table.
func DefaultSubmissionCycles() CycleMap {
	return CycleMap{
		"cscw21b": "apr",
		"cscw21d": "jan22",
		"cscw22a": "jul21",
		"cscw22b": "jan",
	}
}

// Map returns the mapped name, or ErrUnknownCycle.
func (m CycleMap) Map(cycle string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(cycle))
	name, ok := m[key]
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCycle, cycle)
	}
	return name, nil
}

// CycleFile is the YAML layout accepted by LoadCycleMaps.
//
//	authors:
//	  cscw21b: jan
//	submissions:
//	  cscw21b: apr
type CycleFile struct {
	Authors     map[string]string `yaml:"authors"`
	Submissions map[string]string `yaml:"submissions"`
}

// LoadCycleMaps reads both tables from path. Tables missing from the file
// keep their defaults; an empty path returns the defaults.
func LoadCycleMaps(path string) (authors CycleMap, submissions CycleMap, err error) {
	authors, submissions = DefaultAuthorCycles(), DefaultSubmissionCycles()
	if path == "" {
		return authors, submissions, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read cycle file: %w", err)
	}
	var file CycleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse cycle file %s: %w", path, err)
	}
	if len(file.Authors) > 0 {
		authors = lowerKeys(file.Authors)
	}
	if len(file.Submissions) > 0 {
		submissions = lowerKeys(file.Submissions)
	}
	return authors, submissions, nil
}

func lowerKeys(in map[string]string) CycleMap {
	out := make(CycleMap, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}
