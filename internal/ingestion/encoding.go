package ingestion

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"github.com/zeebo/blake3"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// toUTF8 strips a UTF-8 byte order mark and transcodes extracts written
// in another charset.
func toUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	best, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return nil, fmt.Errorf("%w: detect encoding: %v", ErrMalformedExtract, err)
	}
	return decodeCharset(data, best.Charset)
}

// decodeCharset converts data from the named IANA charset to UTF-8.
func decodeCharset(data []byte, charset string) ([]byte, error) {
	enc, err := ianaindex.IANA.Encoding(strings.ToUpper(charset))
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrMalformedExtract, charset)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedExtract, charset, err)
	}
	return out, nil
}

// fingerprint identifies file contents in the file ledger.
func fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
