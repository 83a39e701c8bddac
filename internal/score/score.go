package score

import "strings"

// ESGLabel is the top-level output of the ESG relevance pipeline.
type ESGLabel string

// Category is one of the nine ESG categories.
type Category string

// Sentiment is the tone of the article.
type Sentiment string

// FLS classifies forward-looking statements.
type FLS string

const (
	Environmental ESGLabel = "Environmental"
	Social        ESGLabel = "Social"
	Governance    ESGLabel = "Governance"

	// NonESG is the label the relevance pipeline emits for unrelated text.
	NonESG ESGLabel = "None"
)

const (
	ClimateChange       Category = "Climate Change"
	NaturalCapital      Category = "Natural Capital"
	PollutionWaste      Category = "Pollution & Waste"
	HumanCapital        Category = "Human Capital"
	ProductLiability    Category = "Product Liability"
	CommunityRelations  Category = "Community Relations"
	CorporateGovernance Category = "Corporate Governance"
	BusinessEthics      Category = "Business Ethics & Values"
	NonESGCategory      Category = "Non-ESG"
)

const (
	Positive Sentiment = "Positive"
	Neutral  Sentiment = "Neutral"
	Negative Sentiment = "Negative"
)

const (
	SpecificFLS    FLS = "Specific-FLS"
	NonSpecificFLS FLS = "Non-specific FLS"
	NotFLS         FLS = "Not-FLS"
)

// CategoryMatchBonus is added when the category's parent equals the ESG label.
const CategoryMatchBonus = 10

var labelScores = map[ESGLabel]int{
	Environmental: 50,
	Social:        50,
	Governance:    50,
}

var categoryScores = map[Category]int{
	ClimateChange:       30,
	NaturalCapital:      25,
	PollutionWaste:      20,
	HumanCapital:        20,
	ProductLiability:    15,
	CommunityRelations:  15,
	CorporateGovernance: 30,
	BusinessEthics:      25,
	NonESGCategory:      0,
}

var sentimentScores = map[Sentiment]int{
	Positive: 30,
	Neutral:  10,
	Negative: -20,
}

var flsScores = map[FLS]int{
	SpecificFLS:    40,
	NonSpecificFLS: 20,
	NotFLS:         0,
}

var categoryParent = map[Category]ESGLabel{
	ClimateChange:       Environmental,
	NaturalCapital:      Environmental,
	PollutionWaste:      Environmental,
	HumanCapital:        Social,
	ProductLiability:    Social,
	CommunityRelations:  Social,
	CorporateGovernance: Governance,
	BusinessEthics:      Governance,
}

// Calculate returns the investment score for a set of labels.
// Labels missing from the tables contribute 0.
func Calculate(label ESGLabel, category Category, sentiment Sentiment, fls FLS) int {
	total := labelScores[label]
	total += categoryScores[category]
	if parent, ok := category.Parent(); ok && parent == label {
		total += CategoryMatchBonus
	}
	total += sentimentScores[sentiment]
	total += flsScores[fls]
	return total
}

// Parent returns the ESG label a category belongs to.
func (c Category) Parent() (ESGLabel, bool) {
	p, ok := categoryParent[c]
	return p, ok
}

// Known reports whether the label is one the tables recognise.
func (l ESGLabel) Known() bool {
	_, ok := labelScores[l]
	return ok || l == NonESG
}

// Known reports whether the category is one of the nine model outputs.
func (c Category) Known() bool {
	_, ok := categoryScores[c]
	return ok
}

// Known reports whether the sentiment is in the table.
func (s Sentiment) Known() bool {
	_, ok := sentimentScores[s]
	return ok
}

// Known reports whether the FLS label is in the table.
func (f FLS) Known() bool {
	_, ok := flsScores[f]
	return ok
}

// NormalizeFLS maps the raw finbert-fls labels ("Specific FLS", "Not FLS")
// onto the table keys. Unrecognised values are returned unchanged.
func NormalizeFLS(raw string) FLS {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "specific fls", "specific-fls":
		return SpecificFLS
	case "non-specific fls", "non-specific-fls", "nonspecific fls":
		return NonSpecificFLS
	case "not fls", "not-fls":
		return NotFLS
	}
	return FLS(raw)
}

// NormalizeSentiment accepts the lowercase labels some tone models emit.
func NormalizeSentiment(raw string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive":
		return Positive
	case "neutral":
		return Neutral
	case "negative":
		return Negative
	}
	return Sentiment(raw)
}
