package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Course identifies one course to mirror. URL may be empty, in which
// case the content root is derived from BaseURL and Code.
type Course struct {
	Name string `yaml:"name" json:"name"`
	Code string `yaml:"code" json:"code"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// courseFile is the on-disk shape of courses.json:
//
//	{"courses": [{"name": "...", "code": "..."}]}
type courseFile struct {
	Courses []Course `json:"courses"`
}

// LoadCourses reads the course list from a JSON file
func LoadCourses(path string) ([]Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read course list: %w", err)
	}

	var cf courseFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse course list: %w", err)
	}

	if len(cf.Courses) == 0 {
		return nil, errors.New("course list is empty")
	}

	for i, course := range cf.Courses {
		if course.Code == "" {
			return nil, fmt.Errorf("course %d has no code", i)
		}
	}

	return cf.Courses, nil
}

// ContentURL resolves the content root for a course. Brightspace-style
// portals expose it under /d2l/le/content/{code}/home.
func (c Course) ContentURL(baseURL string) string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("%s/d2l/le/content/%s/home", strings.TrimRight(baseURL, "/"), c.Code)
}

// DisplayName returns the folder-friendly name of the course,
// falling back to the code when no name is configured
func (c Course) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Code
}
