package cli

import (
	"fmt"
	"maps"
	"slices"
)

// Check loads a single migration file and prints its content. The path is
// relative to the migrations directory.
type Check struct {
	File string `arg:"" help:"Migration file, relative to the migrations directory."`
}

// Run the check command.
func (c *Check) Run(appCtx *Context, root *CLI) error {
	src, err := root.openSource(appCtx)
	if err != nil {
		return err
	}

	record, err := src.Load(c.File)
	if err != nil {
		return fmt.Errorf("invalid migration file: %w", err)
	}

	data := [][]string{
		{"topic", record.Topic},
		{"version", record.Version.String()},
		{"operation", string(record.Operation.Kind)},
		{"notes", record.Operation.Notes},
	}
	if record.Operation.Partitions > 0 {
		data = append(data, []string{"partitions", fmt.Sprint(record.Operation.Partitions)})
	}
	if record.Operation.ReplicationFactor > 0 {
		data = append(data, []string{"replication factor", fmt.Sprint(record.Operation.ReplicationFactor)})
	}
	for _, key := range slices.Sorted(maps.Keys(record.Operation.Config)) {
		data = append(data, []string{"config " + key, record.Operation.Config[key]})
	}

	return renderTable([]string{"Field", "Value"}, data, appCtx.Stdout)
}
