// Package hearingcode derives and verifies the attendance codes printed for a
// hearing: a QR token that carries its context in clear text and a short
// manual code for people who cannot scan.
//
// Both forms are keyed with a server-side secret. The fingerprint is
// HMAC-SHA256 over "caseID|YYYY-MM-DD" using a key expanded from the secret
// with HKDF, so the same case and date always yield the same pair.
package hearingcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// QRPrefix marks a QR attendance token.
	QRPrefix = "HS-"
	// DateLayout is the calendar date format embedded in tokens.
	DateLayout = "2006-01-02"

	fingerprintBytes = 8
	manualPrefixLen  = 5
	manualSuffixLen  = 4
	suffixAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	keyInfo          = "hearing-attendance/code/v1"
	maxPresentedLen  = 512
)

// ErrMissingSecret is returned when the codec is built without a secret.
var ErrMissingSecret = errors.New("hearing code secret missing")

// Codes is the pair of presentable tokens for one hearing.
type Codes struct {
	QRToken     string `json:"qr_token"`
	ManualToken string `json:"manual_token"`
}

// Codec derives and verifies hearing codes.
type Codec struct {
	key []byte
}

// New expands secret into the fingerprint key.
func New(secret string) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return &Codec{key: key}, nil
}

// Derive returns the QR and manual tokens for a case on a hearing date.
func (c *Codec) Derive(caseID string, hearingDate time.Time) Codes {
	caseID = strings.TrimSpace(caseID)
	date := hearingDate.Format(DateLayout)
	sum := c.fingerprint(caseID, date)

	return Codes{
		QRToken:     QRPrefix + caseID + "-" + date + "-" + hex.EncodeToString(sum[:fingerprintBytes]),
		ManualToken: manualPrefix(caseID) + "-" + manualSuffix(sum[fingerprintBytes:fingerprintBytes+manualSuffixLen]),
	}
}

// Verify reports whether presented is either currently valid token for the
// case and date. It never panics on malformed input.
func (c *Codec) Verify(presented, caseID string, hearingDate time.Time) bool {
	if c == nil {
		return false
	}
	presented = strings.TrimSpace(presented)
	if presented == "" || len(presented) > maxPresentedLen || strings.TrimSpace(caseID) == "" {
		return false
	}
	expected := c.Derive(caseID, hearingDate)

	qr := subtle.ConstantTimeCompare([]byte(presented), []byte(expected.QRToken))
	manual := subtle.ConstantTimeCompare([]byte(strings.ToUpper(presented)), []byte(expected.ManualToken))
	return qr|manual == 1
}

// LooksLikeQRToken reports whether s has the QR token marker.
func LooksLikeQRToken(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), QRPrefix)
}

// ParseQRToken recovers the case id and hearing date carried by a QR token.
// It only checks the shape; use Verify to authenticate the token.
func ParseQRToken(token string) (string, time.Time, bool) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, QRPrefix) {
		return "", time.Time{}, false
	}
	rest := token[len(QRPrefix):]

	fpLen := fingerprintBytes * 2
	// case id (>=1) + "-" + date + "-" + fingerprint
	if len(rest) < 1+1+len(DateLayout)+1+fpLen {
		return "", time.Time{}, false
	}
	fp := rest[len(rest)-fpLen:]
	if _, err := hex.DecodeString(fp); err != nil || strings.ToLower(fp) != fp {
		return "", time.Time{}, false
	}
	rest = rest[:len(rest)-fpLen]
	if !strings.HasSuffix(rest, "-") {
		return "", time.Time{}, false
	}
	rest = strings.TrimSuffix(rest, "-")

	rawDate := rest[len(rest)-len(DateLayout):]
	date, err := time.Parse(DateLayout, rawDate)
	if err != nil {
		return "", time.Time{}, false
	}
	rest = rest[:len(rest)-len(DateLayout)]
	if !strings.HasSuffix(rest, "-") {
		return "", time.Time{}, false
	}
	caseID := strings.TrimSuffix(rest, "-")
	if caseID == "" {
		return "", time.Time{}, false
	}
	return caseID, date, true
}

func (c *Codec) fingerprint(caseID, date string) []byte {
	mac := hmac.New(sha256.New, c.key)
	_, _ = mac.Write([]byte(caseID + "|" + date))
	return mac.Sum(nil)
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func manualPrefix(caseID string) string {
	folded, _, err := transform.String(foldDiacritics, caseID)
	if err != nil {
		folded = caseID
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if b.Len() == manualPrefixLen {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	for b.Len() < manualPrefixLen {
		b.WriteByte('X')
	}
	return b.String()
}

func manualSuffix(raw []byte) string {
	out := make([]byte, len(raw))
	for i, v := range raw {
		out[i] = suffixAlphabet[int(v)%len(suffixAlphabet)]
	}
	return string(out)
}
