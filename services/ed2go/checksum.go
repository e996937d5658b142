package ed2gosvc

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Inbound request types.
const (
	SSORequest    = "sso_request"
	ActionRequest = "action_request"
)

// Inbound request parameter names.
const (
	ParamChecksum          = "Checksum"
	ParamAction            = "Action"
	ParamRegistrationKey   = "RegistrationKey"
	ParamRequestExpiration = "RequestExpirationDatetimeGMT"
	ParamReturnURL         = "ReturnURL"
)

// Checksum generation parameters. Concatenation order is part of the
// shared-secret scheme; do not reorder.
var (
	ssoChecksumParams = []string{
		ParamRegistrationKey,
		ParamRequestExpiration,
		ParamReturnURL,
	}
	actionChecksumParams = []string{
		ParamAction,
		ParamRegistrationKey,
		ParamRequestExpiration,
	}

	timestampLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
)

// Checksum computes the expected checksum for the given request: the SHA-1
// hex digest of the API key followed by the URL-decoded values of the
// request type's ordered parameter list.
func Checksum(apiKey string, data url.Values, requestType string) (string, error) {
	var params []string
	switch requestType {
	case SSORequest:
		params = ssoChecksumParams
	case ActionRequest:
		params = actionChecksumParams
	default:
		return "", errors.Errorf("ed2go: request type %s not supported", requestType)
	}

	h := sha1.New()
	h.Write([]byte(apiKey))
	for _, param := range params {
		if !data.Has(param) {
			return "", errors.Errorf("ed2go: param %s cannot be empty", param)
		}
		h.Write([]byte(unescape(data.Get(param))))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumValid verifies the submitted checksum against the expected one.
// A missing checksum, unknown request type or missing parameter is an
// explicit error, not a plain mismatch.
func ChecksumValid(apiKey string, data url.Values, requestType string) (bool, error) {
	if !data.Has(ParamChecksum) {
		return false, errors.New("ed2go: checksum cannot be empty")
	}
	expected, err := Checksum(apiKey, data, requestType)
	if err != nil {
		return false, err
	}
	return data.Get(ParamChecksum) == expected, nil
}

// RequestExpired reports whether the request's expiration timestamp has passed.
func RequestExpired(data url.Values) (bool, error) {
	raw := unescape(data.Get(ParamRequestExpiration))
	if raw == "" {
		return true, errors.New("ed2go: expiration datetime cannot be empty")
	}
	expiration, err := ParseTimestamp(raw)
	if err != nil {
		return true, err
	}
	return time.Now().UTC().After(expiration), nil
}

// RequestValid validates the request's expiration date and checksum.
// The second return value carries the partner-facing rejection message.
func RequestValid(apiKey string, data url.Values, requestType string) (bool, string) {
	expired, err := RequestExpired(data)
	if err != nil || expired {
		return false, "Request expired."
	}
	valid, err := ChecksumValid(apiKey, data, requestType)
	if err != nil || !valid {
		return false, "Checksum invalid."
	}
	return true, ""
}

// ParseTimestamp parses a partner-format timestamp. Naive timestamps are
// interpreted as GMT.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, errors.Wrap(lastErr, "ed2go: parsing timestamp")
}

// unescape URL-decodes the value one extra time; the partner signs the
// decoded form. Values that are not valid escapes pass through unchanged.
func unescape(s string) string {
	if unescaped, err := url.QueryUnescape(s); err == nil {
		return unescaped
	}
	return s
}
