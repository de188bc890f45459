package ir

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// maxLineSize bounds one JSONL record. Legacy payloads are small; the limit
// only guards against reading a binary file as JSONL.
const maxLineSize = 4 << 20

// DecodeJSONL reads one envelope per non-blank line. Every envelope is
// validated; the first failure is reported with its line number.
func DecodeJSONL(r io.Reader) ([]Envelope, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var envs []Envelope
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := env.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		envs = append(envs, env)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return envs, nil
}

// YAMLEnvelope is the YAML form of an Envelope: the payload is written as a
// mapping instead of embedded JSON. A missing data mapping is an empty
// payload, which is what delete envelopes carry.
type YAMLEnvelope struct {
	RecordID   string         `yaml:"record_id"`
	TableName  string         `yaml:"table_name"`
	Action     Action         `yaml:"action"`
	Seq        int64          `yaml:"seq"`
	Data       map[string]any `yaml:"data"`
	SourceSite string         `yaml:"source_site"`
}

// Envelope converts and validates the envelope.
func (y YAMLEnvelope) Envelope() (Envelope, error) {
	data := y.Data
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope %s: encode data: %w", y.RecordID, err)
	}
	env := Envelope{
		RecordID:   y.RecordID,
		TableName:  y.TableName,
		Action:     y.Action,
		Seq:        y.Seq,
		Data:       raw,
		SourceSite: y.SourceSite,
	}
	return env, env.Validate()
}

// DecodeYAML reads a YAML sequence of envelopes.
func DecodeYAML(r io.Reader) ([]Envelope, error) {
	var docs []YAMLEnvelope
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	envs := make([]Envelope, 0, len(docs))
	for i, doc := range docs {
		env, err := doc.Envelope()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		envs = append(envs, env)
	}
	return envs, nil
}
