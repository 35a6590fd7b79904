// Package airlock implements the untrusted-JSON boundary spec.md §4.5.1
// step 3 and §4.5.3 step 2 both describe: strip markdown code fences from
// a vision-model response, decode it against the fixed OCR schema, and
// validate every field — never discarding a response that fails, since
// the caller always has a needs_review fallback.
package airlock

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
)

// Prompt is the fixed, language-agnostic multimodal prompt spec.md §4.5.1
// step 2 names, shared verbatim by the instant path and the batch path's
// manifest records so both produce a response this package can parse.
const Prompt = `Extract a single financial transaction from this receipt image. ` +
	`Respond with JSON only: {"amount": int, "type": "income"|"expense", "date": "YYYY-MM-DD", ` +
	`"merchant": string, "category": string, "description": string}.`

// Fields is the fixed vision-model response schema spec.md §4.5.1 step 2
// names: {amount, type, date, merchant, category, description}.
type Fields struct {
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Merchant    string `json:"merchant"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// StripFences removes a leading/trailing ```json ... ``` (or bare ```)
// fence a vision model commonly wraps its JSON answer in.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// Parse strips fences, JSON-decodes, and validates raw against Fields'
// schema. It always returns a best-effort Fields value (zero value on a
// decode failure) plus a list of validation errors — callers never
// discard the response, they route it to needs_review instead (spec.md
// §4.5.1 step 3: "On failure, write the row with status=needs_review and
// attach the validation errors; never discard").
func Parse(raw string) (Fields, []string) {
	var fields Fields

	stripped := StripFences(raw)
	if err := json.Unmarshal([]byte(stripped), &fields); err != nil {
		return Fields{}, []string{fmt.Sprintf("decode: %v", err)}
	}

	return fields, Validate(fields)
}

// Validate checks f against the closed enums and required-field rules
// the OCR schema fixes.
func Validate(f Fields) []string {
	var errs []string

	if f.Amount <= 0 {
		errs = append(errs, "amount must be positive")
	}

	switch transaction.Type(f.Type) {
	case transaction.TypeIncome, transaction.TypeExpense:
	default:
		errs = append(errs, fmt.Sprintf("type %q is not income|expense", f.Type))
	}

	if f.Date == "" {
		errs = append(errs, "date is required")
	}

	if f.Merchant == "" {
		errs = append(errs, "merchant is required")
	}

	switch transaction.Category(f.Category) {
	case transaction.CategoryGroceries, transaction.CategoryDining, transaction.CategoryTransport,
		transaction.CategoryUtilities, transaction.CategoryEntertainment, transaction.CategoryHealth,
		transaction.CategoryShopping, transaction.CategoryIncome, transaction.CategoryOther:
	default:
		errs = append(errs, fmt.Sprintf("category %q is not a recognized category", f.Category))
	}

	return errs
}
