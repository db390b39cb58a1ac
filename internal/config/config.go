package config

// Config is the root application configuration.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	LLM   LLMConfig   `yaml:"llm"`
	Paths PathsConfig `yaml:"paths"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// LLMConfig holds text-generation service settings. The API key is left
// empty rather than required here: tools that never call the service
// (scaffold) must load without one, and generate reports the missing key
// with remediation steps instead of a bare config error.
type LLMConfig struct {
	APIKey string `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model  string `yaml:"model"   env:"GEMINI_MODEL" env-default:"gemini-2.5-flash-lite"`
}

// PathsConfig holds the input and output file locations.
type PathsConfig struct {
	Vocab    string `yaml:"vocab"    env:"VOCAB_PATH"  env-default:"words.csv"`
	Template string `yaml:"template" env:"PROMPT_PATH" env-default:"prompt.md"`
	Output   string `yaml:"output"   env:"OUTPUT_PATH" env-default:"generated-cards.json"`
}
