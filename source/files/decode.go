package files

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/root-talis/henka-kafka/migration"
	"github.com/root-talis/henka-kafka/source"
)

// Document is the generic tree a migration file decodes into, before any of
// its fields are interpreted.
type Document map[string]any

const (
	fieldTopic             = "topic"
	fieldOperation         = "operation"
	fieldNotes             = "notes"
	fieldPartitions        = "partitions"
	fieldReplicationFactor = "replicationFactor"
	fieldConfig            = "config"
)

// maxNotesLength is the size, in characters, of the notes column of the
// migrations log.
const maxNotesLength = 255

func Decode(content []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrDecode, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is empty", source.ErrDecode)
	}
	return doc, nil
}

// ReadDocument reads and decodes a file. Read failures are reported as decode
// failures, the same way a syntax error would be.
func ReadDocument(fsys fs.FS, filePath string) (Document, error) {
	content, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrDecode, err)
	}

	doc, err := Decode(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return doc, nil
}

// Bind maps a decoded document onto a migration.Record. The version is taken
// from the file name, never from the content.
func Bind(doc Document, filePath string) (migration.Record, error) {
	version, ok := ExtractVersionToken(filePath)
	if !ok {
		return migration.Record{}, bindError(filePath, "file name has no version token")
	}

	topic, err := requiredString(doc, fieldTopic)
	if err != nil {
		return migration.Record{}, bindError(filePath, err.Error())
	}

	op, err := bindOperation(doc)
	if err != nil {
		return migration.Record{}, bindError(filePath, err.Error())
	}

	return migration.Record{
		Topic:     topic,
		Version:   version,
		Path:      filePath,
		Operation: op,
	}, nil
}

func bindError(filePath, reason string) error {
	return fmt.Errorf("%w: %s: %s", source.ErrBind, filePath, reason)
}

func bindOperation(doc Document) (migration.Operation, error) {
	var op migration.Operation

	kind, err := requiredString(doc, fieldOperation)
	if err != nil {
		return op, err
	}
	op.Kind = migration.Kind(strings.ToLower(kind))

	if op.Notes, err = optionalString(doc, fieldNotes); err != nil {
		return op, err
	}
	if utf8.RuneCountInString(op.Notes) > maxNotesLength {
		return op, fmt.Errorf("field \"%s\" is longer than %d characters", fieldNotes, maxNotesLength)
	}

	partitions, err := optionalInt(doc, fieldPartitions, math.MaxInt32)
	if err != nil {
		return op, err
	}
	op.Partitions = int32(partitions)

	replicationFactor, err := optionalInt(doc, fieldReplicationFactor, math.MaxInt16)
	if err != nil {
		return op, err
	}
	op.ReplicationFactor = int16(replicationFactor)

	if op.Config, err = optionalConfig(doc); err != nil {
		return op, err
	}

	return op, validateOperation(op)
}

func validateOperation(op migration.Operation) error {
	switch op.Kind {
	case migration.Create:
		if op.Partitions == 0 {
			return fmt.Errorf("field \"%s\" is required to create a topic", fieldPartitions)
		}
		if op.ReplicationFactor == 0 {
			return fmt.Errorf("field \"%s\" is required to create a topic", fieldReplicationFactor)
		}
	case migration.Patch:
		if op.Partitions == 0 && len(op.Config) == 0 {
			return fmt.Errorf("a patch needs \"%s\" or \"%s\"", fieldPartitions, fieldConfig)
		}
		if op.ReplicationFactor != 0 {
			return fmt.Errorf("field \"%s\" can not be patched", fieldReplicationFactor)
		}
	case migration.Remove:
		if op.Partitions != 0 || op.ReplicationFactor != 0 || len(op.Config) != 0 {
			return fmt.Errorf("a remove operation takes no other fields than \"%s\"", fieldNotes)
		}
	default:
		return fmt.Errorf("operation \"%s\" is unknown", op.Kind)
	}
	return nil
}

func requiredString(doc Document, field string) (string, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return "", fmt.Errorf("field \"%s\" is missing", field)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field \"%s\" must be a string, got %T", field, raw)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("field \"%s\" is empty", field)
	}
	return value, nil
}

func optionalString(doc Document, field string) (string, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field \"%s\" must be a string, got %T", field, raw)
	}
	return value, nil
}

func optionalInt(doc Document, field string, limit int64) (int64, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return 0, nil
	}

	var value int64
	switch v := raw.(type) {
	case int:
		value = int64(v)
	case int64:
		value = v
	case uint64:
		if v > uint64(limit) {
			return 0, fmt.Errorf("field \"%s\" is out of range", field)
		}
		value = int64(v)
	default:
		return 0, fmt.Errorf("field \"%s\" must be an integer, got %T", field, raw)
	}

	if value <= 0 || value > limit {
		return 0, fmt.Errorf("field \"%s\" must be between 1 and %d", field, limit)
	}
	return value, nil
}

func optionalConfig(doc Document) (map[string]string, error) {
	raw, ok := doc[fieldConfig]
	if !ok || raw == nil {
		return nil, nil
	}
	var entries map[string]any
	switch v := raw.(type) {
	case Document:
		entries = v
	case map[string]any:
		entries = v
	default:
		return nil, fmt.Errorf("field \"%s\" must be a mapping, got %T", fieldConfig, raw)
	}

	config := make(map[string]string, len(entries))
	for key, value := range entries {
		rendered, err := renderScalar(value)
		if err != nil {
			return nil, fmt.Errorf("field \"%s.%s\": %w", fieldConfig, key, err)
		}
		config[key] = rendered
	}
	return config, nil
}

func renderScalar(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("value must be a scalar, got %T", value)
}

// loadRecord is the single-file pipeline shared by Load and the directory
// scans: grammar check, read+decode, bind.
func loadRecord(fsys fs.FS, filePath string) (migration.Record, error) {
	if err := AssertValidFilename(filePath); err != nil {
		return migration.Record{}, err
	}

	doc, err := ReadDocument(fsys, filePath)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return migration.Record{}, fmt.Errorf("%w: %s: %w", source.ErrLoad, filePath, err)
		}
		return migration.Record{}, err
	}

	return Bind(doc, path.Clean(filePath))
}
