package retry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_TransientPatterns(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		errorType string
	}{
		{"gateway timeout", errors.New("upstream returned gateway timeout"), "gateway_error"},
		{"502 status", errors.New("request failed with 502"), "gateway_error"},
		{"socket error", errors.New("socket error while reading response"), "socket_error"},
		{"deadlock", errors.New("deadlock detected while updating row"), "database_lock"},
		{"timeout", errors.New("context deadline exceeded: timed out"), "timeout"},
		{"rate limit", errors.New("429 too many requests"), "rate_limit"},
		{"quota exceeded", errors.New("quota exceeded for this billing period"), "quota_exceeded"},
		{"service unavailable", errors.New("503 service unavailable"), "service_unavailable"},
		{"server error", errors.New("internal server error"), "server_error"},
		{"connection refused", errors.New("dial tcp: connection refused"), "connection_error"},
		{"network failure", errors.New("network error talking to S3"), "network_error"},
		{"resource busy", errors.New("resource busy, try later"), "resource_busy"},
		{"generic transient", errors.New("temporary failure, try again"), "transient_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "parse_document", 0)
			assert.Equal(t, CategoryTransient, got.Category)
			assert.Equal(t, tt.errorType, got.ErrorType)
			assert.True(t, got.ShouldRetry)
			assert.NotEmpty(t, got.UserMessage)
			assert.NotEmpty(t, got.Guidance)
		})
	}
}

func TestClassify_PermanentPatterns(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		errorType string
	}{
		{"invalid file", errors.New("invalid file: could not open archive"), "invalid_file"},
		{"unsupported format", errors.New("unsupported format .xyz"), "unsupported_format"},
		{"auth error", errors.New("403 permission denied"), "auth_error"},
		{"not found", errors.New("document not found"), "not_found"},
		{"validation error", errors.New("validation error: missing required field"), "validation_error"},
		{"too large", errors.New("file too large: exceeds size limit"), "file_too_large"},
		{"empty file", errors.New("empty file, no content extracted"), "empty_file"},
		{"encrypted", errors.New("file is password protected"), "encrypted_file"},
		{"parse error", errors.New("malformed xml, parse error at line 4"), "parse_error"},
		{"bad request", errors.New("400 bad request"), "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "parse_document", 1)
			assert.Equal(t, CategoryPermanent, got.Category)
			assert.Equal(t, tt.errorType, got.ErrorType)
			assert.False(t, got.ShouldRetry)
		})
	}
}

func TestClassify_EncryptedFileMessageMatchesSourceVerbatim(t *testing.T) {
	got := Classify(errors.New("file is password protected"), "parse_document", 0)
	assert.Equal(t, "encrypted_file", got.ErrorType)
	assert.Equal(t, "File is password protected", got.UserMessage)
	assert.Equal(t, "Please remove password protection and re-upload.", got.Guidance)
}

func TestClassify_UnknownFallsBackToTransientRetry(t *testing.T) {
	got := Classify(errors.New("something completely unanticipated happened"), "analyze_document", 2)
	assert.Equal(t, CategoryUnknown, got.Category)
	assert.Equal(t, "unknown_error", got.ErrorType)
	assert.True(t, got.ShouldRetry)
	assert.Equal(t, "analyze_document", got.Stage)
	assert.Equal(t, 2, got.RetryCount)
}

func TestClassify_NilErrorIsUnknown(t *testing.T) {
	got := Classify(nil, "stage", 0)
	assert.Equal(t, CategoryUnknown, got.Category)
	assert.Equal(t, "unknown_error", got.ErrorType)
}

func TestClassify_TrimsWhitespaceFromMessage(t *testing.T) {
	got := Classify(errors.New("  timeout occurred  "), "stage", 0)
	assert.Equal(t, "timeout occurred", got.Message)
}

func TestClassify_FirstMatchingRuleWins(t *testing.T) {
	// "gateway timeout" matches the more specific gateway_error rule before
	// the generic "timeout" rule later in the table.
	got := Classify(errors.New("gateway timeout while proxying request"), "stage", 0)
	assert.Equal(t, "gateway_error", got.ErrorType)
}
