package graph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// File is the on disk description of a job graph
type File struct {
	Shell string            `yaml:"shell"` // default shell for shell jobs
	Env   map[string]string `yaml:"env"`   // added to the environment of every job
	Jobs  []JobSpec         `yaml:"jobs"`

	// dir is the directory of the file when it was loaded from disk, relative
	// job directories are resolved against it
	dir string
}

// JobSpec describes a single job in a File. Dependencies can only refer to
// jobs declared earlier in the file.
type JobSpec struct {
	Name      string            `yaml:"name"`
	Run       Command           `yaml:"run"`
	Shell     bool              `yaml:"shell"`
	Needs     []string          `yaml:"needs"`
	WaitFor   string            `yaml:"wait_for"`
	OnFailure string            `yaml:"on_failure"`
	Dir       string            `yaml:"dir"`
	Env       map[string]string `yaml:"env"`
	Isolate   bool              `yaml:"isolate"`
}

// Command is either a single string or a list of program arguments
type Command struct {
	Text string
	Args []string
}

// ErrInvalidCommandNode is returned when run is neither a string nor a list of
// strings
var ErrInvalidCommandNode = errors.New("run must be a string or a list of strings")

// UnmarshalYAML implements yaml.Unmarshaler
func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&c.Text)
	case yaml.SequenceNode:
		return value.Decode(&c.Args)
	default:
		return fmt.Errorf("line %d: %w", value.Line, ErrInvalidCommandNode)
	}
}

// Argv returns the program and arguments of the command. A string command is
// split using shell quoting rules.
func (c Command) Argv() ([]string, error) {
	if c.Args != nil {
		return c.Args, nil
	}
	if c.Text == "" {
		return nil, nil
	}
	return shlex.Split(c.Text)
}

// Script returns the command as a single shell script. A list is joined with
// spaces.
func (c Command) Script() string {
	if c.Args != nil {
		return strings.Join(c.Args, " ")
	}
	return c.Text
}

// Parse decodes a File from YAML
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the File at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	f.dir = filepath.Dir(path)

	return f, nil
}
