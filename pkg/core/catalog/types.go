// Package catalog is the read-only SAT chart-of-accounts reference: the
// account hierarchy (family -> subfamily -> leaf) the classification
// pipeline narrows into, per spec.md §3.
package catalog

import "github.com/contaflow/classifier-core/pkg/core/vector"

// Account is one row of the SAT chart-of-accounts catalog.
//
// Code follows the SAT hierarchy: 3-digit families ("600"), 3-digit
// subfamilies sharing the family's first digit ("601"), and leaf accounts
// of the form "NNN.NN" ("601.48"). FamilyHint is the family code leaf and
// subfamily rows are also tagged with, letting a subfamily or leaf row be
// filtered by family without string-slicing its own Code.
type Account struct {
	Code        string
	Name        string
	Description string
	FamilyHint  string
	Embedding   vector.Vector
}

// IsLeaf reports whether code is a leaf account ("NNN.NN"), the only shape
// a ClassificationResult's sat_account_code may take per spec.md §8.
func IsLeaf(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i, r := range code {
		switch {
		case i == 3:
			if r != '.' {
				return false
			}
		case r < '0' || r > '9':
			return false
		}
	}
	return true
}

// FamilyDigit returns the leading family digit of a code, regardless of
// whether code is a family, subfamily, or leaf code.
func FamilyDigit(code string) byte {
	if code == "" {
		return 0
	}
	return code[0]
}
