package domain

// ExtractionRequest is the payload handed to the primary (AI) extractor.
type ExtractionRequest struct {
	Subject        string
	Body           string
	PrimaryField   string
	SecondaryField string
	Statuses       []string
}

// ExtractionResult is the structured answer of the primary extractor.
// Values equal to ManualReview mean the extractor could not resolve them.
type ExtractionResult struct {
	Primary       string
	Secondary     string
	Status        string
	Confidence    float64
	HasConfidence bool
}
