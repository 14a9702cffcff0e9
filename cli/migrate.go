package cli

import "fmt"

// Migrate applies the pending migrations of a topic in version order.
type Migrate struct {
	Topic  string       `arg:"" help:"Topic name."`
	To     versionField `help:"Stop after this version instead of applying everything."`
	DryRun bool         `help:"Only validate the requests against the cluster, record nothing."`
	Force  bool         `help:"Apply even if applied migrations are missing from the directory."`
}

// Run the migrate command.
func (c *Migrate) Run(appCtx *Context, root *CLI) error {
	migrator, release, err := root.openMigrator(appCtx, true, c.DryRun)
	if err != nil {
		return err
	}
	defer release()

	result, err := migrator.Validate(appCtx.Ctx, c.Topic)
	if err != nil {
		return fmt.Errorf("failed validating topic %s: %w", c.Topic, err)
	}
	if err := result.Check(); err != nil && !c.Force {
		return fmt.Errorf("refusing to migrate, pass --force to override: %w", err)
	}

	applied, err := migrator.Upgrade(appCtx.Ctx, c.Topic, c.To.version())
	if len(applied) > 0 {
		if rerr := renderRecords(applied, appCtx.Stdout); rerr != nil {
			appCtx.Logger.Warn("failed rendering applied migrations", "error", rerr)
		}
	}
	if err != nil {
		return fmt.Errorf("failed migrating topic %s: %w", c.Topic, err)
	}

	if len(applied) == 0 {
		appCtx.Logger.Info("topic is up to date", "topic", c.Topic)
	} else {
		appCtx.Logger.Info("topic migrated",
			"topic", c.Topic,
			"from", result.CurrentVersion,
			"to", applied[len(applied)-1].Version,
			"count", len(applied),
			"dry_run", c.DryRun,
		)
	}

	return nil
}
