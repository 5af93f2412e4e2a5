package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
)

const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// Signer computes and checks vnp_SecureHash values. Outbound URLs and
// inbound callbacks go through the same Canonicalize.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Canonicalize returns the string the gateway signs: non-empty parameters
// sorted by name, each rendered as name=encoded(value), joined with '&'.
// Signature fields are excluded.
func Canonicalize(params map[string]string) string {
	keys := signedKeys(params)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Encode(params[k]))
	}
	return b.String()
}

// Encode escapes a value the way java.net.URLEncoder does, which is what the
// gateway hashes on its side: space becomes '+', '*' is kept and '~' is escaped.
func Encode(value string) string {
	escaped := url.QueryEscape(value)
	if strings.ContainsAny(escaped, "~%") {
		escaped = strings.ReplaceAll(escaped, "~", "%7E")
		escaped = strings.ReplaceAll(escaped, "%2A", "*")
	}
	return escaped
}

// Sign returns the lowercase hex HMAC-SHA512 of params' canonical form.
func (s *Signer) Sign(params map[string]string) string {
	mac := hmac.New(sha512.New, s.secret)
	_, _ = mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedQuery renders params as a query string with vnp_SecureHash appended.
func (s *Signer) SignedQuery(params map[string]string) string {
	keys := signedKeys(params)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(Encode(k))
		b.WriteByte('=')
		b.WriteString(Encode(params[k]))
		b.WriteByte('&')
	}
	b.WriteString(ParamSecureHash)
	b.WriteByte('=')
	b.WriteString(s.Sign(params))
	return b.String()
}

// Verify recomputes the hash over params and compares it with the supplied
// vnp_SecureHash, ignoring case. A missing hash or secret fails.
func (s *Signer) Verify(params map[string]string) error {
	if s == nil || len(s.secret) == 0 {
		return paymentdomain.ErrInvalidSignature
	}
	supplied := strings.ToLower(strings.TrimSpace(params[ParamSecureHash]))
	if supplied == "" {
		return paymentdomain.ErrInvalidSignature
	}
	expected := s.Sign(params)
	if !hmac.Equal([]byte(supplied), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func signedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
