package dataset

// Flag column names written by the evaluator.
const (
	FlagRelevance       = "relevance_flag"
	FlagDuplicate       = "duplicate_flag"
	FlagMissingMessage  = "missing_message"
	FlagMissingName     = "missing_name"
	FlagLanguageQuality = "language_quality_flag"

	FlagEmail        = "email_flag"
	FlagSSN          = "ssn_flag"
	FlagPhone        = "phone_flag"
	FlagPIIInference = "pii_flag_inference"
	FlagPII          = "pii_flag"
	FlagPIIDetails   = "pii_flag_details"

	FlagLanguageBias = "language_bias_flag"
	FlagGenderBias   = "gender_bias_flag"
)
