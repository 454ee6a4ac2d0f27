// Package versionsync keeps package.json's version in line with pyproject.toml,
// which is the source of truth.
package versionsync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

const (
	PyProjectFile   = "pyproject.toml"
	PackageJSONFile = "package.json"
)

// ErrVersionNotFound means pyproject.toml has no x.y.z [project].version
var ErrVersionNotFound = errors.New("could not find version in pyproject.toml")

var releaseVersionRegex = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)

type pyProject struct {
	Project struct {
		Version string `toml:"version"`
	} `toml:"project"`
}

// Status compares the two version sources under a root directory.
type Status struct {
	PyProjectVersion string
	PackageVersion   string
}

// InSync reports whether both files carry the same version.
func (s Status) InSync() bool {
	return s.PyProjectVersion == s.PackageVersion
}

// Syncer reads and writes the version files of one repository root.
type Syncer struct {
	fs   afero.Fs
	root string
}

// New creates a Syncer for root.
func New(fs afero.Fs, root string) *Syncer {
	return &Syncer{fs: fs, root: root}
}

// Check reads both versions without modifying anything.
func (s *Syncer) Check() (Status, error) {
	pyVersion, err := s.PythonVersion()
	if err != nil {
		return Status{}, err
	}

	pkgVersion, err := s.PackageVersion()
	if err != nil {
		return Status{}, err
	}

	return Status{PyProjectVersion: pyVersion, PackageVersion: pkgVersion}, nil
}

// PythonVersion returns [project].version from pyproject.toml.
func (s *Syncer) PythonVersion() (string, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.root, PyProjectFile))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", PyProjectFile, err)
	}

	var doc pyProject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse %s: %w", PyProjectFile, err)
	}

	if !releaseVersionRegex.MatchString(doc.Project.Version) {
		return "", ErrVersionNotFound
	}

	return doc.Project.Version, nil
}

// PackageVersion returns the top-level "version" of package.json, or "" when absent.
func (s *Syncer) PackageVersion() (string, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.root, PackageJSONFile))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", PackageJSONFile, err)
	}

	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("parse %s: %w", PackageJSONFile, err)
	}

	return pkg.Version, nil
}

// WritePackageVersion sets package.json's top-level version, leaving the rest
// of the document byte for byte.
func (s *Syncer) WritePackageVersion(version string) error {
	path := filepath.Join(s.root, PackageJSONFile)

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", PackageJSONFile, err)
	}

	updated, err := setVersion(data, version)
	if err != nil {
		return err
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", PackageJSONFile, err)
	}

	if err := afero.WriteFile(s.fs, path, updated, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", PackageJSONFile, err)
	}

	return nil
}

// Sync updates package.json when it differs and reports whether it changed.
func (s *Syncer) Sync() (Status, bool, error) {
	status, err := s.Check()
	if err != nil {
		return status, false, err
	}

	if status.InSync() {
		return status, false, nil
	}

	if err := s.WritePackageVersion(status.PyProjectVersion); err != nil {
		return status, false, err
	}

	return status, true, nil
}

// setVersion replaces the value of the top-level "version" member, or adds
// one after the last member. Every other byte of data is kept.
func setVersion(data []byte, version string) ([]byte, error) {
	quoted, err := json.Marshal(version)
	if err != nil {
		return nil, fmt.Errorf("encode version: %w", err)
	}

	obj, err := scanObject(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", PackageJSONFile, err)
	}

	if obj.versionStart >= 0 {
		return splice(data, obj.versionStart, obj.versionEnd, quoted), nil
	}

	member := append([]byte(`"version": `), quoted...)

	if obj.lastEnd < 0 {
		insert := append(append([]byte("\n  "), member...), '\n')
		return splice(data, obj.open+1, obj.close, insert), nil
	}

	sep := []byte(", ")
	if obj.multiline {
		sep = []byte(",\n" + obj.indent)
	}
	return splice(data, obj.lastEnd, obj.lastEnd, append(sep, member...)), nil
}

// objectLayout holds byte offsets into a JSON document whose top-level value
// is an object. Offsets are -1 when absent.
type objectLayout struct {
	open, close  int
	lastEnd      int
	versionStart int
	versionEnd   int
	multiline    bool
	indent       string
}

func scanObject(data []byte) (objectLayout, error) {
	obj := objectLayout{lastEnd: -1, versionStart: -1, versionEnd: -1}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return obj, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return obj, errors.New("top-level value is not an object")
	}
	obj.open = int(dec.InputOffset()) - 1

	first := true
	for dec.More() {
		prev := int(dec.InputOffset())

		tok, err := dec.Token()
		if err != nil {
			return obj, err
		}
		key, _ := tok.(string)
		keyEnd := int(dec.InputOffset())

		if first {
			keyStart := prev + bytes.IndexByte(data[prev:keyEnd], '"')
			lead := data[obj.open+1 : keyStart]
			if nl := bytes.LastIndexByte(lead, '\n'); nl >= 0 {
				obj.multiline = true
				obj.indent = string(lead[nl+1:])
			}
			first = false
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return obj, err
		}

		start := keyEnd + bytes.IndexByte(data[keyEnd:], ':') + 1
		for start < len(data) && isSpace(data[start]) {
			start++
		}
		end := int(dec.InputOffset())
		for end > start && isSpace(data[end-1]) {
			end--
		}

		// duplicate keys: the last one wins, as with json.Unmarshal
		if key == "version" {
			obj.versionStart, obj.versionEnd = start, end
		}
		obj.lastEnd = end
	}

	if _, err := dec.Token(); err != nil {
		return obj, err
	}
	obj.close = int(dec.InputOffset()) - 1

	return obj, nil
}

func splice(data []byte, from, to int, insert []byte) []byte {
	out := make([]byte, 0, len(data)-(to-from)+len(insert))
	out = append(out, data[:from]...)
	out = append(out, insert...)
	return append(out, data[to:]...)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
