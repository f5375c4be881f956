package engine

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
)

const MaxDecodedBodyBytes = 4 << 20 // 4 MiB safety cap

// DecodeResponseBody reads an upstream body, undoing gzip, and fails past the cap
// rather than truncating JSON mid-document.
func DecodeResponseBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer r.Close()
		reader = r
	}

	limited := io.LimitReader(reader, MaxDecodedBodyBytes+1)
	bodyBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(bodyBytes) > MaxDecodedBodyBytes {
		return nil, fmt.Errorf("response body exceeded limit (%d bytes)", MaxDecodedBodyBytes)
	}
	return bodyBytes, nil
}
