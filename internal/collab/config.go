package collab

// Config tunes the collaborator implementations.
type Config struct {
	// MaxCompanies caps the discovered universe.
	MaxCompanies int
	// SampleSize is the validation sample size.
	SampleSize int
	// QualifyThreshold is the score below which the scorer may omit companies.
	QualifyThreshold int
	// ScoringModel and RankingModel are Claude models for the scorer and ranker.
	ScoringModel string
	RankingModel string
	// StructureModel turns Perplexity prose into JSON when no JSON was returned.
	StructureModel string
	// MaxTokens bounds Claude responses.
	MaxTokens int64
	// RecencyFilter is passed to Perplexity searches ("month", "year", ...).
	RecencyFilter string
}

// DefaultConfig returns the defaults used when config values are zero.
func DefaultConfig() Config {
	return Config{
		MaxCompanies:     50,
		SampleSize:       10,
		QualifyThreshold: 60,
		ScoringModel:     ModelHaiku,
		RankingModel:     ModelSonnet,
		StructureModel:   ModelHaiku,
		MaxTokens:        4096,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCompanies <= 0 {
		c.MaxCompanies = d.MaxCompanies
	}
	if c.SampleSize <= 0 {
		c.SampleSize = d.SampleSize
	}
	if c.QualifyThreshold <= 0 {
		c.QualifyThreshold = d.QualifyThreshold
	}
	if c.ScoringModel == "" {
		c.ScoringModel = d.ScoringModel
	}
	if c.RankingModel == "" {
		c.RankingModel = d.RankingModel
	}
	if c.StructureModel == "" {
		c.StructureModel = d.StructureModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}
