package prompt

// Convenience functions for common prompt operations.

// GetFamilyPrompt returns the Family Classifier's system prompt (spec.md §4.1).
func GetFamilyPrompt() (string, error) {
	return Get().GetSystemPrompt(PromptIDs.Family)
}

// GetSubfamilyPrompt returns the Subfamily Classifier's system prompt
// (spec.md §4.2A).
func GetSubfamilyPrompt() (string, error) {
	return Get().GetSystemPrompt(PromptIDs.Subfamily)
}

// GetCandidateRetrievalPrompt returns the LLM-intelligent candidate
// retrieval strategy's system prompt (spec.md §4.2B Strategy A).
func GetCandidateRetrievalPrompt() (string, error) {
	return Get().GetSystemPrompt(PromptIDs.CandidateRetrieval)
}

// GetAccountSelectorPrompt returns the Account Selector's system prompt
// (spec.md §4.3).
func GetAccountSelectorPrompt() (string, error) {
	return Get().GetSystemPrompt(PromptIDs.AccountSelector)
}

// MustGetFamilyPrompt is like GetFamilyPrompt but panics on error.
func MustGetFamilyPrompt() string {
	p, err := GetFamilyPrompt()
	if err != nil {
		panic(err)
	}
	return p
}

// MustGetAccountSelectorPrompt is like GetAccountSelectorPrompt but panics on
// error.
func MustGetAccountSelectorPrompt() string {
	p, err := GetAccountSelectorPrompt()
	if err != nil {
		panic(err)
	}
	return p
}

// PromptIDs contains all known prompt identifiers for the classification
// pipeline's four LLM-backed phases.
var PromptIDs = struct {
	Family             string
	Subfamily          string
	CandidateRetrieval string
	AccountSelector    string
}{
	Family:             "classification.family",
	Subfamily:          "classification.subfamily",
	CandidateRetrieval: "classification.candidate_retrieval",
	AccountSelector:    "classification.account_selector",
}
