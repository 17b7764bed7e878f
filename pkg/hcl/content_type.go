package hcl

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const (
	// ContentTypeHCL is the custom MIME type for HCL configuration
	ContentTypeHCL = "application/vnd.hcl"

	// ContentTypeJSON is the standard MIME type for JSON
	ContentTypeJSON = "application/json"

	// ContentTypeCSV is accepted for observation uploads
	ContentTypeCSV = "text/csv"
)

// DetectContentType determines if the content is JSON or HCL based on content-type header and content inspection
func DetectContentType(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mediaType {
			case ContentTypeHCL, ContentTypeJSON, ContentTypeCSV:
				return mediaType, nil
			}
		}
	}

	// If Content-Type is not set or not recognized, inspect the content
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}

	// Reset the body so it can be read again later
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	return DetectContent(body), nil
}

// DetectContent guesses the format of a pipeline or observation payload.
// JSON starts with { or [. A first line of comma separated names is a CSV
// header. Anything that parses as HCL is HCL and the rest is treated as JSON
// so the JSON decoder reports the error.
func DetectContent(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ContentTypeJSON
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return ContentTypeJSON
	}
	if isCSVHeader(trimmed) {
		return ContentTypeCSV
	}
	if IsHCL(trimmed) {
		return ContentTypeHCL
	}
	return ContentTypeJSON
}

func isCSVHeader(body []byte) bool {
	line, _, _ := bytes.Cut(body, []byte("\n"))
	if line[0] == '#' || line[0] == '/' {
		return false
	}
	return bytes.IndexByte(line, ',') >= 0 && !bytes.ContainsAny(line, "={[")
}

// IsHCLBasedOnExtension checks if the filename has an HCL extension
func IsHCLBasedOnExtension(filename string) bool {
	return strings.HasSuffix(filename, ".hcl") ||
		strings.HasSuffix(filename, ".tf") ||
		strings.HasSuffix(filename, ".tfvars")
}
