package models

// SimilarityWeights are the six named weights that linearly combine the
// similarity signals into one score. They are designed to sum to 1.0 but the
// engine does not enforce it.
type SimilarityWeights struct {
	Keyword   float64 `json:"keyword"`
	Category  float64 `json:"category"`
	Temporal  float64 `json:"temporal"`
	Semantic  float64 `json:"semantic"`
	Priority  float64 `json:"priority"`
	Sentiment float64 `json:"sentiment"`
}

// DefaultWeights returns the default similarity weights.
func DefaultWeights() SimilarityWeights {
	return SimilarityWeights{
		Keyword:   0.30,
		Category:  0.25,
		Temporal:  0.20,
		Semantic:  0.15,
		Priority:  0.05,
		Sentiment: 0.05,
	}
}

// Default clustering parameters.
const (
	DefaultSimilarityThreshold = 0.65
	DefaultTimeWindowHours     = 24.0
	DefaultMinClusterSize      = 1
	DefaultMaxKeywordsInTitle  = 5
	// DefaultMaxPriority is the priority ceiling used when normalizing
	// priority distance into a similarity score.
	DefaultMaxPriority = 10
)

// WeightOverrides is a partial override of SimilarityWeights. Nil fields keep
// their default value; overrides merge per key.
type WeightOverrides struct {
	Keyword   *float64 `json:"keyword,omitempty"`
	Category  *float64 `json:"category,omitempty"`
	Temporal  *float64 `json:"temporal,omitempty"`
	Semantic  *float64 `json:"semantic,omitempty"`
	Priority  *float64 `json:"priority,omitempty"`
	Sentiment *float64 `json:"sentiment,omitempty"`
}

// ClusteringOptions is the caller-facing run configuration. All fields are
// optional; nil pointers and zero values fall back to defaults in Resolve.
type ClusteringOptions struct {
	Weights             *WeightOverrides `json:"weights,omitempty"`
	SimilarityThreshold *float64         `json:"similarityThreshold,omitempty"`
	TimeWindowHours     *float64         `json:"timeWindowHours,omitempty"`
	MinClusterSize      *int             `json:"minClusterSize,omitempty"`
	UseEmbeddings       *bool            `json:"useEmbeddings,omitempty"`
	// EmbeddingModel names the registry version to embed with. The worker
	// holds one model handle for the whole process, selected at startup, so
	// a per-request value is accepted and echoed but does not swap models
	// mid-flight.
	EmbeddingModel     string `json:"embeddingModel,omitempty"`
	MaxKeywordsInTitle *int   `json:"maxKeywordsInTitle,omitempty"`
	// UseLLMForDescription is accepted for forward compatibility but has no
	// behavioral effect: both paths use the deterministic description builder.
	UseLLMForDescription bool `json:"useLLMForDescription,omitempty"`
	SkipTranslation      bool `json:"skipTranslation,omitempty"`

	// Externally supplied caches, keyed by incident ID. The engine never
	// mutates these maps; it returns merged copies.
	CachedEmbeddings   map[string][]float32   `json:"-"`
	CachedTranslations map[string]Translation `json:"-"`
}

// ClusteringConfig is the fully resolved run configuration.
type ClusteringConfig struct {
	Weights              SimilarityWeights
	SimilarityThreshold  float64
	TimeWindowHours      float64
	MinClusterSize       int
	UseEmbeddings        bool
	EmbeddingModel       string
	MaxKeywordsInTitle   int
	UseLLMForDescription bool
	SkipTranslation      bool
	MaxPriority          int
}

// Resolve merges the options over the defaults and returns the concrete
// configuration. This is the single defaulting point for a run.
func (o ClusteringOptions) Resolve() ClusteringConfig {
	cfg := ClusteringConfig{
		Weights:              DefaultWeights(),
		SimilarityThreshold:  DefaultSimilarityThreshold,
		TimeWindowHours:      DefaultTimeWindowHours,
		MinClusterSize:       DefaultMinClusterSize,
		UseEmbeddings:        true,
		MaxKeywordsInTitle:   DefaultMaxKeywordsInTitle,
		UseLLMForDescription: o.UseLLMForDescription,
		SkipTranslation:      o.SkipTranslation,
		MaxPriority:          DefaultMaxPriority,
	}

	if o.Weights != nil {
		w := &cfg.Weights
		if o.Weights.Keyword != nil {
			w.Keyword = *o.Weights.Keyword
		}
		if o.Weights.Category != nil {
			w.Category = *o.Weights.Category
		}
		if o.Weights.Temporal != nil {
			w.Temporal = *o.Weights.Temporal
		}
		if o.Weights.Semantic != nil {
			w.Semantic = *o.Weights.Semantic
		}
		if o.Weights.Priority != nil {
			w.Priority = *o.Weights.Priority
		}
		if o.Weights.Sentiment != nil {
			w.Sentiment = *o.Weights.Sentiment
		}
	}
	if o.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.TimeWindowHours != nil && *o.TimeWindowHours > 0 {
		cfg.TimeWindowHours = *o.TimeWindowHours
	}
	if o.MinClusterSize != nil && *o.MinClusterSize > 0 {
		cfg.MinClusterSize = *o.MinClusterSize
	}
	if o.UseEmbeddings != nil {
		cfg.UseEmbeddings = *o.UseEmbeddings
	}
	if o.EmbeddingModel != "" {
		cfg.EmbeddingModel = o.EmbeddingModel
	}
	if o.MaxKeywordsInTitle != nil && *o.MaxKeywordsInTitle > 0 {
		cfg.MaxKeywordsInTitle = *o.MaxKeywordsInTitle
	}

	return cfg
}
