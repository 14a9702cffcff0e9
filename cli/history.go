package cli

import "fmt"

// History lists every migration file of a topic, applied or not.
type History struct {
	Topic string `arg:"" help:"Topic name."`
}

// Run the history command.
func (c *History) Run(appCtx *Context, root *CLI) error {
	src, err := root.openSource(appCtx)
	if err != nil {
		return err
	}

	records, err := src.All(c.Topic)
	if err != nil {
		return fmt.Errorf("failed listing migrations of topic %s: %w", c.Topic, err)
	}

	if len(records) == 0 {
		appCtx.Logger.Info("no migrations found", "topic", c.Topic, "directory", root.Directory)
		return nil
	}

	return renderRecords(records, appCtx.Stdout)
}
