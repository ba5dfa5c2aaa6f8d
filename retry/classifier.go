// Package retry implements the deterministic error classifier and the
// retry manager that sits between stage handlers and the job queue. The
// rule tables and user-facing copy mirror a Python error classifier this
// pipeline replaces, kept in the standard library (regexp) by necessity
// since no third-party classified-retry taxonomy exists in the ecosystem.
package retry

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Category is the coarse bucket a ClassifiedError falls into.
type Category string

const (
	CategoryTransient Category = "transient"
	CategoryPermanent Category = "permanent"
	CategoryUnknown   Category = "unknown"
)

// ClassifiedError is the structured result of running an error through the
// classifier; it is persisted verbatim as Document.ProcessingError.
type ClassifiedError struct {
	Category    Category
	ErrorType   string
	Message     string
	ShouldRetry bool
	UserMessage string
	Guidance    string
	Stage       string
	RetryCount  int
	Timestamp   time.Time
	StackTrace  string
}

type rule struct {
	pattern   *regexp.Regexp
	errorType string
}

// Transient patterns, most specific first.
var transientRules = []rule{
	{regexp.MustCompile(`(?i)gateway.?(timeout|error)|50[24]`), "gateway_error"},
	{regexp.MustCompile(`(?i)socket.?(error|timeout)`), "socket_error"},
	{regexp.MustCompile(`(?i)deadlock|lock.?timeout`), "database_lock"},
	{regexp.MustCompile(`(?i)timeout|timed out`), "timeout"},
	{regexp.MustCompile(`(?i)rate.?limit|429|too many requests`), "rate_limit"},
	{regexp.MustCompile(`(?i)quota.?exceeded`), "quota_exceeded"},
	{regexp.MustCompile(`(?i)service.?unavailable|503`), "service_unavailable"},
	{regexp.MustCompile(`(?i)internal.?server.?error|500`), "server_error"},
	{regexp.MustCompile(`(?i)connection.?(refused|reset|error)`), "connection_error"},
	{regexp.MustCompile(`(?i)network.?(error|failure)`), "network_error"},
	{regexp.MustCompile(`(?i)resource.?busy`), "resource_busy"},
	{regexp.MustCompile(`(?i)temporary|transient|try.?again`), "transient_error"},
}

// Permanent patterns.
var permanentRules = []rule{
	{regexp.MustCompile(`(?i)invalid.?file|file.?corrupt`), "invalid_file"},
	{regexp.MustCompile(`(?i)unsupported.?(format|type)`), "unsupported_format"},
	{regexp.MustCompile(`(?i)permission.?denied|401|403|unauthorized`), "auth_error"},
	{regexp.MustCompile(`(?i)not.?found|404|does.?not.?exist`), "not_found"},
	{regexp.MustCompile(`(?i)validation.?error|invalid.?data`), "validation_error"},
	{regexp.MustCompile(`(?i)file.?too.?large|size.?limit`), "file_too_large"},
	{regexp.MustCompile(`(?i)empty.?file|no.?content`), "empty_file"},
	{regexp.MustCompile(`(?i)password.?protected|encrypted`), "encrypted_file"},
	{regexp.MustCompile(`(?i)malformed|parse.?error|syntax.?error`), "parse_error"},
	{regexp.MustCompile(`(?i)bad.?request|400`), "bad_request"},
}

var transientTypeHint = regexp.MustCompile(`(?i)timeout|connection|network|socket|temporary|retry|ratelimit`)
var permanentTypeHint = regexp.MustCompile(`(?i)value|type|key|index|attribute|invalidfile|unsupported`)

// userMessages maps an error_type to its fixed user-facing message and
// remediation guidance. These are copied verbatim (not paraphrased) from
// the USER_MESSAGES/GUIDANCE_MESSAGES tables of the Python classifier this
// pipeline replaces, so the strings callers see don't change across the
// rewrite.
var userMessages = map[string]struct{ message, guidance string }{
	"timeout":             {"Processing timed out", "Will retry automatically. Large documents may take longer."},
	"rate_limit":          {"Service temporarily busy", "Will retry in a few seconds."},
	"service_unavailable": {"Processing service unavailable", "Will retry automatically."},
	"connection_error":    {"Network connection error", "Will retry automatically."},
	"database_lock":       {"Database temporarily busy", "Will retry automatically."},
	"transient_error":     {"Temporary error occurred", "Will retry automatically."},
	"network_error":       {"Network error occurred", "Check your network connection."},
	"socket_error":        {"Connection error", "Will retry automatically."},
	"server_error":        {"Server error occurred", "Will retry automatically. Contact support if issue persists."},
	"gateway_error":       {"Gateway error", "Will retry automatically."},
	"resource_busy":       {"Resource temporarily busy", "Will retry automatically."},
	"quota_exceeded":      {"API quota exceeded", "Will retry in a few minutes. Usage limits may apply."},
	"invalid_file":        {"File appears to be invalid or corrupted", "Please re-upload the document or try a different file."},
	"unsupported_format":  {"File format not supported", "Supported formats: PDF, XLSX, DOCX, TXT, and common office formats."},
	"auth_error":          {"Access denied", "Contact administrator if issue persists."},
	"not_found":           {"Document file not found", "Please re-upload the document."},
	"validation_error":    {"Invalid document data", "Check the document and try again."},
	"file_too_large":      {"File is too large to process", "Maximum file size is 100MB. Try splitting the document."},
	"empty_file":          {"File is empty or has no content", "The file has no extractable content. Check the file and re-upload."},
	"encrypted_file":      {"File is password protected", "Please remove password protection and re-upload."},
	"parse_error":         {"Could not parse document content", "The document format may be corrupted. Try re-saving and re-uploading."},
	"bad_request":         {"Invalid request", "Please try again. Contact support if issue persists."},
	"unknown_error":       {"An unexpected error occurred", "Will retry automatically. Contact support if issue persists."},
}

// Classify maps err + stage/retryCount context to a ClassifiedError by
// running it through the transient rules, then the permanent rules, then
// the type-name hints, first match wins.
func Classify(err error, stage string, retryCount int) ClassifiedError {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	msg := err.Error()

	if et, ok := matchRules(transientRules, msg); ok {
		return build(CategoryTransient, et, msg, true, stage, retryCount)
	}
	if et, ok := matchRules(permanentRules, msg); ok {
		return build(CategoryPermanent, et, msg, false, stage, retryCount)
	}

	errType := fmt.Sprintf("%T", err)
	if transientTypeHint.MatchString(errType) {
		return build(CategoryTransient, "transient_error", msg, true, stage, retryCount)
	}
	if permanentTypeHint.MatchString(errType) {
		return build(CategoryPermanent, "validation_error", msg, false, stage, retryCount)
	}

	return build(CategoryUnknown, "unknown_error", msg, true, stage, retryCount)
}

func matchRules(rules []rule, msg string) (string, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(msg) {
			return r.errorType, true
		}
	}
	return "", false
}

func build(cat Category, errorType, msg string, shouldRetry bool, stage string, retryCount int) ClassifiedError {
	copy := userMessages[errorType]
	if copy.message == "" {
		copy = userMessages["unknown_error"]
	}
	return ClassifiedError{
		Category:    cat,
		ErrorType:   errorType,
		Message:     strings.TrimSpace(msg),
		ShouldRetry: shouldRetry,
		UserMessage: copy.message,
		Guidance:    copy.guidance,
		Stage:       stage,
		RetryCount:  retryCount,
		Timestamp:   time.Now().UTC(),
	}
}
