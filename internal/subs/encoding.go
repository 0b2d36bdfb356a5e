package subs

import (
	"bytes"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// DecodeText converts raw subtitle bytes to a UTF-8 string. Encoding is
// picked by BOM first, then statistical detection over the whole content;
// if detection fails the bytes are treated as UTF-8. Invalid sequences are
// replaced, never rejected, so this step cannot fail a subtitle load.
func DecodeText(data []byte) string {
	enc := detectEncoding(data)
	if enc == nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return strings.ToValidUTF8(string(out), "�")
}

var boms = []struct {
	prefix []byte
	enc    encoding.Encoding
}{
	// UTF-32 LE must be checked before UTF-16 LE; they share a prefix.
	{[]byte{0xff, 0xfe, 0x00, 0x00}, utf32.UTF32(utf32.LittleEndian, utf32.UseBOM)},
	{[]byte{0x00, 0x00, 0xfe, 0xff}, utf32.UTF32(utf32.BigEndian, utf32.UseBOM)},
	{[]byte{0xff, 0xfe}, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	{[]byte{0xfe, 0xff}, unicode.UTF16(unicode.BigEndian, unicode.UseBOM)},
	{[]byte{0xef, 0xbb, 0xbf}, unicode.UTF8BOM},
}

// detectEncoding returns nil for plain UTF-8, meaning no transform needed.
func detectEncoding(data []byte) encoding.Encoding {
	for _, b := range boms {
		if bytes.HasPrefix(data, b.prefix) {
			return b.enc
		}
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || res == nil {
		return nil
	}
	if strings.EqualFold(res.Charset, "UTF-8") {
		return nil
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return nil
	}
	return enc
}
