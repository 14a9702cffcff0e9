package cli

import (
	"fmt"
	"time"
)

// Status compares the migration files of a topic with the applied ones.
type Status struct {
	Topic string `arg:"" help:"Topic name."`
}

// Run the status command.
func (c *Status) Run(appCtx *Context, root *CLI) error {
	migrator, release, err := root.openMigrator(appCtx, false, false)
	if err != nil {
		return err
	}
	defer release()

	result, err := migrator.Validate(appCtx.Ctx, c.Topic)
	if err != nil {
		return fmt.Errorf("failed validating topic %s: %w", c.Topic, err)
	}

	data := make([][]string, len(result.Migrations))
	for i, state := range result.Migrations {
		appliedAt := ""
		if !state.AppliedAt.IsZero() {
			appliedAt = state.AppliedAt.Format(time.DateTime)
		}
		data[i] = []string{
			state.Version.String(),
			state.Status.String(),
			string(state.Operation.Kind),
			appliedAt,
			state.Path,
		}
	}

	if len(data) > 0 {
		header := []string{"Version", "Status", "Operation", "Applied At", "Path"}
		if err := renderTable(header, data, appCtx.Stdout); err != nil {
			return fmt.Errorf("failed rendering status of topic %s: %w", c.Topic, err)
		}
	}

	appCtx.Logger.Info("topic status",
		"topic", result.Topic,
		"current", result.CurrentVersion,
		"applied", result.AppliedCount,
		"pending", result.PendingCount,
		"missing", result.MissingCount,
	)

	return result.Check() //nolint:wrapcheck // Already carries the topic.
}
