package cli

import (
	"fmt"

	"github.com/root-talis/henka-kafka/migration"
)

// Next shows the migration that would be applied next to a topic.
type Next struct {
	Topic string `arg:"" help:"Topic name."`
}

// Run the next command.
func (c *Next) Run(appCtx *Context, root *CLI) error {
	migrator, release, err := root.openMigrator(appCtx, false, false)
	if err != nil {
		return err
	}
	defer release()

	record, found, err := migrator.Next(appCtx.Ctx, c.Topic)
	if err != nil {
		return fmt.Errorf("failed finding next migration of topic %s: %w", c.Topic, err)
	}
	if !found {
		appCtx.Logger.Info("topic is up to date", "topic", c.Topic)
		return nil
	}

	return renderRecords([]migration.Record{record}, appCtx.Stdout)
}
