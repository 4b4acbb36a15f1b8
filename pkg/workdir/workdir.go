// Package workdir keeps the rendered resources of a promotion on disk for inspection.
// Files are written once and never read back.
package workdir

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	yamlv2 "gopkg.in/yaml.v2"

	"github.com/nais/promote/pkg/resources"
)

const Redacted = "***REDACTED***"

type Workdir struct {
	path   string
	keep   bool
	secret map[string]bool
}

// New creates the directory at path, or a temporary directory if path is empty.
// Unless keep is set, Close removes it.
func New(path string, keep bool) (*Workdir, error) {
	var err error
	if len(path) == 0 {
		path, err = os.MkdirTemp("", "promote-")
	} else {
		err = os.MkdirAll(path, 0o700)
	}
	if err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	return &Workdir{
		path:   path,
		keep:   keep,
		secret: make(map[string]bool),
	}, nil
}

func (w *Workdir) Path() string {
	return w.path
}

// Redact hides values from everything written or printed afterwards.
func (w *Workdir) Redact(values ...string) {
	for _, value := range values {
		if len(value) > 0 {
			w.secret[value] = true
		}
	}
}

// Write stores each description as a YAML file in a directory per environment.
func (w *Workdir) Write(environment string, descriptions []resources.Description) error {
	for i, description := range descriptions {
		name := fmt.Sprintf("%02d-%s-%s", i+1, strings.ToLower(string(description.Kind)), description.Name)
		err := w.WriteDocument(environment, name, description.Object.Object)
		if err != nil {
			return fmt.Errorf("%s: %w", description, err)
		}
	}
	return nil
}

// WriteDocument stores any JSON serializable document as <environment>/<name>.yaml.
func (w *Workdir) WriteDocument(environment, name string, document any) error {
	if len(environment) == 0 {
		environment = "default"
	}
	dir := filepath.Join(w.path, environment)
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return err
	}

	content, err := w.document(document)
	if err != nil {
		return err
	}
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	data, err = yaml.JSONToYAML(data)
	if err != nil {
		return err
	}

	file := filepath.Join(dir, name+".yaml")
	err = os.WriteFile(file, data, 0o600)
	if err != nil {
		return err
	}
	log.Tracef("Wrote %s", file)

	return nil
}

// Print writes the descriptions as a multi-document YAML stream.
func (w *Workdir) Print(out io.Writer, descriptions []resources.Description) error {
	documents := make([]any, 0, len(descriptions))
	for _, description := range descriptions {
		documents = append(documents, description.Object.Object)
	}
	return w.PrintDocuments(out, documents...)
}

func (w *Workdir) PrintDocuments(out io.Writer, documents ...any) error {
	encoder := yamlv2.NewEncoder(out)
	defer encoder.Close()

	for i, document := range documents {
		content, err := w.document(document)
		if err != nil {
			return fmt.Errorf("document %d: %w", i+1, err)
		}
		err = encoder.Encode(content)
		if err != nil {
			return fmt.Errorf("document %d: %w", i+1, err)
		}
	}

	return nil
}

func (w *Workdir) Close() error {
	if w.keep {
		log.Infof("Rendered resources are kept in %s", w.path)
		return nil
	}
	return os.RemoveAll(w.path)
}

// document converts a document to generic JSON data with all secrets redacted.
func (w *Workdir) document(document any) (any, error) {
	content, ok := document.(map[string]any)
	if !ok {
		data, err := json.Marshal(document)
		if err != nil {
			return nil, err
		}
		content = make(map[string]any)
		err = json.Unmarshal(data, &content)
		if err != nil {
			return nil, err
		}
	}
	return w.redact(content), nil
}

// redact returns a copy of a document where every string equal to a secret value is replaced.
func (w *Workdir) redact(value any) any {
	switch v := value.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, item := range v {
			m[key] = w.redact(item)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, item := range v {
			s[i] = w.redact(item)
		}
		return s
	case string:
		if w.secret[v] {
			return Redacted
		}
		return v
	default:
		return v
	}
}
