// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// MaxClipboardLength is the default upper bound on a clipboard payload read
// from the peer.
const MaxClipboardLength = 10 * 1024 * 1024

// Clipboard entry tags: four ASCII characters read as a big-endian uint32.
const (
	TagText    uint32 = 0x54455854 // "TEXT"
	TagRTF     uint32 = 0x52544620 // "RTF "
	TagHTML    uint32 = 0x48544D4C // "HTML"
	TagFileURL uint32 = 0x4655524C // "FURL"
)

// richClipboardMarker replaces the baseline padding of a cut-text message
// when the rich envelope follows.
var richClipboardMarker = [3]byte{0xFF, 0xFF, 0xFF}

// ClipboardContent is one clipboard value. Empty fields are absent.
type ClipboardContent struct {
	Text    string
	RTF     []byte
	HTML    string
	FileURL string
}

// IsEmpty reports whether all four fields are absent.
func (c ClipboardContent) IsEmpty() bool {
	return c.Text == "" && len(c.RTF) == 0 && c.HTML == "" && c.FileURL == ""
}

// HasRich reports whether any field other than plain text is present.
func (c ClipboardContent) HasRich() bool {
	return len(c.RTF) > 0 || c.HTML != "" || c.FileURL != ""
}

// Capabilities is the list of encodings and pseudo-encodings the peer is
// known to support.
type Capabilities []int32

// Has reports whether capability id is present.
func (c Capabilities) Has(id int32) bool {
	for _, v := range c {
		if v == id {
			return true
		}
	}
	return false
}

// EncodeClipboardEnvelope builds the rich envelope: a u32 length of what
// follows, a u32 entry count, then tag, length and bytes for each present field.
func EncodeClipboardEnvelope(c ClipboardContent) []byte {
	var entries bytes.Buffer
	var count uint32
	add := func(tag uint32, data []byte) {
		if len(data) == 0 {
			return
		}
		count++
		_ = binary.Write(&entries, binary.BigEndian, tag)
		_ = binary.Write(&entries, binary.BigEndian, uint32(len(data))) // #nosec G115 - clipboard payloads are far below 4 GiB
		entries.Write(data)
	}
	add(TagText, []byte(c.Text))
	add(TagRTF, c.RTF)
	add(TagHTML, []byte(c.HTML))
	add(TagFileURL, []byte(c.FileURL))

	out := make([]byte, 8, 8+entries.Len())
	binary.BigEndian.PutUint32(out[0:4], uint32(4+entries.Len())) // #nosec G115 - see above
	binary.BigEndian.PutUint32(out[4:8], count)
	return append(out, entries.Bytes()...)
}

// ReadClipboardEnvelope reads a rich envelope from r using the default
// MaxClipboardLength.
func ReadClipboardEnvelope(r io.Reader, logger Logger) (ClipboardContent, error) {
	return readClipboardEnvelope(r, MaxClipboardLength, orNoOp(logger))
}

// readClipboardEnvelope reads the whole declared envelope before parsing it,
// so a malformed entry never desynchronizes the stream.
func readClipboardEnvelope(r io.Reader, limit uint32, logger Logger) (ClipboardContent, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return ClipboardContent{}, transportError("read_clipboard", "failed to read envelope length", err)
	}
	total := binary.BigEndian.Uint32(hdr[:])
	if total == 0 {
		return ClipboardContent{}, nil
	}
	if total > limit {
		return ClipboardContent{}, protocolError("read_clipboard",
			fmt.Sprintf("envelope length %d exceeds limit %d", total, limit), nil)
	}

	body := make([]byte, total)
	if _, err := io.ReadFull(r, body); err != nil {
		return ClipboardContent{}, transportError("read_clipboard", "failed to read envelope", err)
	}
	return parseClipboardEntries(body, logger), nil
}

func parseClipboardEntries(body []byte, logger Logger) ClipboardContent {
	var c ClipboardContent
	if len(body) < 4 {
		logger.Warn("clipboard envelope too short for entry count", Field{Key: "length", Value: len(body)})
		return c
	}
	count := binary.BigEndian.Uint32(body[:4])
	rest := body[4:]

	for i := uint32(0); i < count; i++ {
		if len(rest) < 8 {
			logger.Warn("clipboard entry header truncated", Field{Key: "entry", Value: i})
			break
		}
		tag := binary.BigEndian.Uint32(rest[0:4])
		n := binary.BigEndian.Uint32(rest[4:8])
		rest = rest[8:]
		if uint64(n) > uint64(len(rest)) {
			logger.Warn("clipboard entry overruns envelope",
				Field{Key: "entry", Value: i},
				Field{Key: "length", Value: n},
				Field{Key: "remaining", Value: len(rest)})
			break
		}
		data := rest[:n]
		rest = rest[n:]

		switch tag {
		case TagText:
			c.Text = string(data)
		case TagRTF:
			c.RTF = append([]byte(nil), data...)
		case TagHTML:
			c.HTML = string(data)
		case TagFileURL:
			c.FileURL = string(data)
		default:
			logger.Debug("skipping unknown clipboard entry",
				Field{Key: "tag", Value: fmt.Sprintf("0x%08x", tag)},
				Field{Key: "length", Value: n})
		}
	}
	return c
}

// latin1Substitute replaces characters ISO-8859-1 cannot represent.
const latin1Substitute = 0x1A

// latin1 converts text for the baseline form. Characters outside ISO-8859-1
// are replaced instead of failing the send.
func latin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range strings.ToValidUTF8(s, "?") {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = latin1Substitute
		}
		out = append(out, b)
	}
	return out
}

// clipboardMessage builds the client cut-text message for c. The rich form is
// used only when c carries rich fields and peer advertises the capability.
func clipboardMessage(c ClipboardContent, peer Capabilities) []byte {
	if !c.HasRich() || !peer.Has(RichClipboardPseudoEncoding) {
		text := latin1(c.Text)
		msg := make([]byte, 8, 8+len(text))
		msg[0] = msgClientCutText
		binary.BigEndian.PutUint32(msg[4:8], uint32(len(text))) // #nosec G115 - clipboard payloads are far below 4 GiB
		return append(msg, text...)
	}

	env := EncodeClipboardEnvelope(c)
	msg := make([]byte, 4, 4+len(env))
	msg[0] = msgClientCutText
	copy(msg[1:4], richClipboardMarker[:])
	return append(msg, env...)
}

// WriteClipboard sends c to the peer in the richest form it supports.
func WriteClipboard(w io.Writer, c ClipboardContent, peer Capabilities) error {
	if _, err := w.Write(clipboardMessage(c, peer)); err != nil {
		return transportError("write_clipboard", "failed to send clipboard", err)
	}
	return nil
}

// ReadServerCutText reads the body of a ServerCutText message, after its type
// byte, using the default MaxClipboardLength. rich reports whether the peer
// used the rich envelope.
func ReadServerCutText(r io.Reader, logger Logger) (c ClipboardContent, rich bool, err error) {
	return readServerCutText(r, MaxClipboardLength, orNoOp(logger))
}

func readServerCutText(r io.Reader, limit uint32, logger Logger) (ClipboardContent, bool, error) {
	var marker [3]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return ClipboardContent{}, false, transportError("read_cut_text", "failed to read padding", err)
	}
	if marker == richClipboardMarker {
		c, err := readClipboardEnvelope(r, limit, logger)
		return c, true, err
	}

	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return ClipboardContent{}, false, transportError("read_cut_text", "failed to read text length", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > limit {
		return ClipboardContent{}, false, protocolError("read_cut_text",
			fmt.Sprintf("text length %d exceeds limit %d", n, limit), nil)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return ClipboardContent{}, false, transportError("read_cut_text", "failed to read text", err)
	}
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return ClipboardContent{}, false, protocolError("read_cut_text", "failed to decode text", err)
	}
	return ClipboardContent{Text: string(text)}, false, nil
}
