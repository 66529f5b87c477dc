// Package profile loads the small hand-edited data files behind the
// projects and moments pages.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eringen/folio/collation"
)

const (
	ProjectsFile = "projects.yaml"
	MomentsFile  = "moments.yaml"
)

type Project struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Summary  string   `yaml:"summary"`
	Year     int      `yaml:"year"`
	Category string   `yaml:"category"` // Web, Tool or Experiment
	Status   string   `yaml:"status"`   // planned, in_progress or done
	Tags     []string `yaml:"tags"`
	Repo     string   `yaml:"repo"`
	Demo     string   `yaml:"demo"`
}

// StatusLabel renders Status for display.
func (p Project) StatusLabel() string {
	switch p.Status {
	case "planned":
		return "Planned"
	case "in_progress":
		return "In progress"
	case "done":
		return "Done"
	}
	return p.Status
}

type Image struct {
	Src string `yaml:"src"`
	Alt string `yaml:"alt"`
}

// Moment is a short dated note. PublishedAt is an RFC 3339 timestamp.
type Moment struct {
	ID          string  `yaml:"id"`
	Content     string  `yaml:"content"`
	PublishedAt string  `yaml:"publishedAt"`
	Title       string  `yaml:"title"`
	Images      []Image `yaml:"images"`
}

// Stamp renders PublishedAt as "2006-01-02 15:04".
func (m Moment) Stamp() string {
	s := m.PublishedAt
	if len(s) >= 16 {
		return s[:10] + " " + s[11:16]
	}
	return s
}

// LoadProjects reads dir/projects.yaml sorted by year descending, then
// title. A missing file yields no projects.
func LoadProjects(dir string) ([]Project, error) {
	var list []Project
	if err := load(filepath.Join(dir, ProjectsFile), &list); err != nil {
		return nil, err
	}
	slices.SortStableFunc(list, func(a, b Project) int {
		if a.Year != b.Year {
			return b.Year - a.Year
		}
		return collation.Compare(a.Title, b.Title)
	})
	return list, nil
}

// LoadMoments reads dir/moments.yaml newest first. A missing file yields no
// moments.
func LoadMoments(dir string) ([]Moment, error) {
	var list []Moment
	if err := load(filepath.Join(dir, MomentsFile), &list); err != nil {
		return nil, err
	}
	slices.SortStableFunc(list, func(a, b Moment) int {
		return strings.Compare(b.PublishedAt, a.PublishedAt)
	})
	return list, nil
}

func load(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
