package entity

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	TitleMinLength       = 3
	TitleMaxLength       = 100
	DescriptionMaxLength = 1000
	SearchMinLength      = 2
)

var titlePattern = regexp.MustCompile(`^[\p{L}\p{N}\p{P}\s]+$`)

// Validate checks a create request. Title is mandatory.
func (r *CreateTaskRequest) Validate() error {
	errs := make(map[string]string)

	title := strings.TrimSpace(r.Title)
	if title == "" {
		errs["title"] = "Title is required and cannot be empty"
	} else if msg := checkTitle(title); msg != "" {
		errs["title"] = msg
	}
	if msg := checkDescription(r.Description); msg != "" {
		errs["description"] = msg
	}
	if msg := checkStatus(r.Status); msg != "" {
		errs["status"] = msg
	}

	return validationResult(errs)
}

// Validate checks an update request. A blank title is allowed and means
// "keep the current one".
func (r *UpdateTaskRequest) Validate() error {
	errs := make(map[string]string)

	if title := strings.TrimSpace(r.Title); title != "" {
		if msg := checkTitle(title); msg != "" {
			errs["title"] = msg
		}
	}
	if msg := checkDescription(r.Description); msg != "" {
		errs["description"] = msg
	}
	if msg := checkStatus(r.Status); msg != "" {
		errs["status"] = msg
	}

	return validationResult(errs)
}

func checkTitle(title string) string {
	n := utf8.RuneCountInString(title)
	if n < TitleMinLength || n > TitleMaxLength {
		return "Title must be between 3 and 100 characters"
	}
	if !titlePattern.MatchString(title) {
		return "Title contains invalid characters"
	}
	return ""
}

func checkDescription(desc *string) string {
	if desc == nil {
		return ""
	}
	if utf8.RuneCountInString(strings.TrimSpace(*desc)) > DescriptionMaxLength {
		return "Description cannot exceed 1000 characters"
	}
	return ""
}

// checkStatus accepts the empty status, which means "not supplied".
func checkStatus(status TaskStatus) string {
	if status != "" && !status.IsValid() {
		return "Status must be one of PENDING, COMPLETED, CANCELLED"
	}
	return ""
}

func validationResult(errs map[string]string) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

// TrimmedDescription returns the trimmed description, keeping nil as nil.
func TrimmedDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*desc)
	return &trimmed
}
