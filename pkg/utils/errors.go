package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed        = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError    = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError    = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError     = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrRobotsDisallowed   = errors.New("disallowed by robots.txt")
	ErrContentSelector    = errors.New("content selector not found")
	ErrDocumentTooLarge   = errors.New("document exceeds size limit")
	ErrSourceNotFound     = errors.New("source not configured")
	ErrParsing            = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON, markdown)
	ErrFilesystem         = errors.New("filesystem error") // Wraps os errors
	ErrDatabase           = errors.New("database error")   // Wraps badger errors
	ErrRequestCreation    = errors.New("failed to create HTTP request")
	ErrResponseBodyRead   = errors.New("failed to read response body")
	ErrMarkdownConversion = errors.New("failed to convert HTML to markdown")
	ErrConfigValidation   = errors.New("configuration validation error")
)

// WrapErrorf wraps err with a formatted message, keeping it matchable with errors.Is.
// Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging and stored failure records.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		// Fetch errors join the sentinel with the last attempt's error, so inspect the whole tree
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "RetryFailed_NetworkTimeout"
		}
		errMsg := err.Error()
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "Timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "RetryFailed_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "RetryFailed_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "RetryFailed_DNSLookup"
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401 ") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrSourceNotFound):
		return "Config_SourceNotFound"
	case errors.Is(err, ErrDocumentTooLarge):
		return "Content_TooLarge"
	case errors.Is(err, ErrContentSelector):
		return "Content_SelectorNotFound"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrMarkdownConversion):
		return "Content_Markdown"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}

	return "Unknown"
}
