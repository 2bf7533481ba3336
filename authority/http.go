package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// errorBody covers both the Challonge error shape and the relay server's.
type errorBody struct {
	Errors []string  `json:"errors"`
	Error  string    `json:"error"`
	Kind   ErrorKind `json:"kind"`
}

func doJSON(ctx context.Context, client *http.Client, op, method, url string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindRejected, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Error{Op: op, Kind: KindRejected, Err: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindTransient, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusError(op string, resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := KindForStatus(resp.StatusCode)
	msg := strings.TrimSpace(string(raw))

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		switch {
		case len(eb.Errors) > 0:
			msg = strings.Join(eb.Errors, "; ")
		case eb.Error != "":
			msg = eb.Error
		}
		switch eb.Kind {
		case KindAuth, KindTransient, KindRejected, KindNotFound:
			kind = eb.Kind
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Op: op, Kind: kind, StatusCode: resp.StatusCode, Err: errors.New(msg)}
}
