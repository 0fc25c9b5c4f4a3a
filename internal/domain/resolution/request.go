package resolution

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"oracle/pkg/errors"
)

const (
	// MaxQuestionLength bounds the raw question text.
	MaxQuestionLength = 2000

	// MinOptions and MaxOptions bound the option list size.
	MinOptions = 2
	MaxOptions = 10

	// FileNamePrefix is prepended to every question file name for internal
	// analysis tracking.
	FileNamePrefix = "RAIN_"
)

var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Request is the immutable input to one resolution. Created at request entry
// and never mutated.
type Request struct {
	PoolID           string
	Question         string
	Options          []string
	QuestionFileName string
	// UserID is the explicit optional requester identity. It is threaded
	// through calls rather than read from ambient context.
	UserID *uuid.UUID
}

// Attempt distinguishes the initial resolution from a scheduled retry.
// A single entry point is parameterized by the attempt count instead of
// keeping two near-duplicate code paths.
type Attempt struct {
	// RetryCount is 0 for the initial attempt, 1..MaxRetries for retries.
	RetryCount int
	// OriginalRequestID links a retry back to the scheduled request chain.
	OriginalRequestID *uuid.UUID
}

// Initial is the first attempt of a resolution.
func Initial() Attempt {
	return Attempt{}
}

// Retrying marks a re-execution with the given attempt number.
func Retrying(n int, originalID *uuid.UUID) Attempt {
	return Attempt{RetryCount: n, OriginalRequestID: originalID}
}

// IsRetry reports whether this attempt is a scheduled re-execution.
func (a Attempt) IsRetry() bool {
	return a.RetryCount > 0
}

// Validate checks the request against the input constraints. All violations
// are collected so the caller can surface an itemized detail list.
func (r *Request) Validate() error {
	multi := &errors.MultiError{}

	if strings.TrimSpace(r.Question) == "" {
		multi.Add(errors.NewValidationError("question", "question is required", r.Question))
	}
	if len(r.Question) > MaxQuestionLength {
		multi.Add(errors.NewValidationError("question",
			fmt.Sprintf("question must be at most %d characters", MaxQuestionLength), len(r.Question)))
	}

	if len(r.Options) < MinOptions || len(r.Options) > MaxOptions {
		multi.Add(errors.NewValidationError("options",
			fmt.Sprintf("between %d and %d options are required", MinOptions, MaxOptions), len(r.Options)))
	}

	seen := make(map[string]bool, len(r.Options))
	for i, opt := range r.Options {
		if strings.TrimSpace(opt) == "" {
			multi.Add(errors.NewValidationError("options",
				fmt.Sprintf("option %d is empty", i), opt))
			continue
		}
		if seen[opt] {
			multi.Add(errors.NewValidationError("options",
				fmt.Sprintf("option %q is duplicated", opt), opt))
		}
		seen[opt] = true
	}

	if r.QuestionFileName != "" {
		name := strings.TrimPrefix(r.QuestionFileName, FileNamePrefix)
		if !fileNamePattern.MatchString(name) {
			multi.Add(errors.NewValidationError("questionFileName",
				"file name may only contain letters, digits, underscores and hyphens", r.QuestionFileName))
		}
	}

	return multi.ToError()
}

// CanonicalFileName derives the canonical question file identifier. A provided
// name gets the tracking prefix; an absent one is generated from the requester
// name and a random suffix. The identifier is required downstream and never
// optional once derived.
func (r *Request) CanonicalFileName(userName string) string {
	if r.QuestionFileName != "" {
		if strings.HasPrefix(r.QuestionFileName, FileNamePrefix) {
			return r.QuestionFileName
		}
		return FileNamePrefix + r.QuestionFileName
	}
	if userName == "" {
		userName = "Unknown"
	}
	return fmt.Sprintf("%s%s_%d", FileNamePrefix, userName, rand.Intn(10000))
}

// RequesterTag shortens an optional requester id for generated file names.
func RequesterTag(userID *uuid.UUID) string {
	if userID == nil {
		return ""
	}
	return userID.String()[:8]
}
