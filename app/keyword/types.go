package keyword

const DefaultWeight = 1.0

// DefaultNormalization is the raw score at which importance saturates to 1.
// Three full-weight keyword hits are treated as maximally relevant.
const DefaultNormalization = 3.0

type Keyword struct {
	Keyword  string   `yaml:"keyword" json:"keyword"`
	Synonyms []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Weight   float64  `yaml:"weight,omitempty" json:"weight,omitempty"`
}

type Group struct {
	ID          string    `yaml:"id,omitempty" json:"id,omitempty"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    []Keyword `yaml:"keywords" json:"keywords"`
}

type Result struct {
	Score           float64
	MatchedKeywords []string
	Categories      []string
}
