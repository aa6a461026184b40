package llm

// Default sampling for compliance answers: near-deterministic and short.
const (
	DefaultModel       = "llama3.1:8b"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 500
)

// GenerateParams holds sampling parameters for a completion.
type GenerateParams struct {
	// Temperature controls the randomness of the output.
	Temperature float32

	// MaxTokens caps the generated length. If 0, no limit is sent.
	MaxTokens int
}

// DefaultGenerateParams returns the sampling used for answers.
func DefaultGenerateParams() GenerateParams {
	return GenerateParams{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}
