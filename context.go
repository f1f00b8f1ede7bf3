package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/matt-g-everett/framefed/config"
	"github.com/matt-g-everett/framefed/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// logger builds the command logger. Terminal outputs are dropped when the
// terminal is owned by the shell.
func (c *commandContext) logger(terminalOwned bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	outputs := cfg.Log.Outputs
	if terminalOwned {
		outputs = fileOutputs(outputs)
		if len(outputs) == 0 {
			return logging.NewNop(), nil
		}
	}
	return logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: outputs,
	})
}

func fileOutputs(outputs []string) []string {
	var files []string
	for _, o := range outputs {
		switch strings.TrimSpace(o) {
		case "", "stdout", "stderr":
		default:
			files = append(files, o)
		}
	}
	return files
}
