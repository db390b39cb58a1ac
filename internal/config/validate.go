package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
// The LLM API key is deliberately not checked here: tools that never call
// the generation service must be able to load configuration without one.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.Paths.Vocab == "" {
		return fmt.Errorf("paths.vocab must not be empty")
	}
	if c.Paths.Template == "" {
		return fmt.Errorf("paths.template must not be empty")
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths.output must not be empty")
	}

	return nil
}
