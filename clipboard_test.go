// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelope builds a raw envelope with a declared total and arbitrary entries.
func envelope(total uint32, count uint32, entries ...[]byte) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, total)
	_ = binary.Write(&b, binary.BigEndian, count)
	for _, e := range entries {
		b.Write(e)
	}
	return b.Bytes()
}

func entry(tag uint32, data string) []byte {
	b := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint32(b[0:4], tag)
	binary.BigEndian.PutUint32(b[4:8], uint32(len(data)))
	return append(b, data...)
}

func TestClipboard_ContentPredicates(t *testing.T) {
	assert.True(t, ClipboardContent{}.IsEmpty())
	assert.False(t, ClipboardContent{Text: "a"}.IsEmpty())
	assert.False(t, ClipboardContent{Text: "a"}.HasRich())
	assert.True(t, ClipboardContent{RTF: []byte("{\\rtf1}")}.HasRich())
	assert.True(t, ClipboardContent{FileURL: "file:///tmp/a"}.HasRich())
}

func TestClipboard_TagValues(t *testing.T) {
	assert.Equal(t, uint32(0x54455854), TagText)
	assert.Equal(t, uint32(0x52544620), TagRTF)
	assert.Equal(t, uint32(0x48544D4C), TagHTML)
	assert.Equal(t, uint32(0x4655524C), TagFileURL)
}

func TestClipboard_EnvelopeLayout(t *testing.T) {
	got := EncodeClipboardEnvelope(ClipboardContent{Text: "hi", HTML: "<b>"})
	want := envelope(4+10+11, 2, entry(TagText, "hi"), entry(TagHTML, "<b>"))
	assert.Equal(t, want, got)
}

func TestClipboard_EnvelopeRoundTrip(t *testing.T) {
	in := ClipboardContent{Text: "hello", HTML: "<p>hello</p>"}
	out, err := ReadClipboardEnvelope(bytes.NewReader(EncodeClipboardEnvelope(in)), nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Nil(t, out.RTF)
	assert.Empty(t, out.FileURL)
}

func TestClipboard_EnvelopeEmpty(t *testing.T) {
	r := bytes.NewReader([]byte{0, 0, 0, 0, 0xAA})
	c, err := ReadClipboardEnvelope(r, nil)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 1, r.Len(), "nothing past the total field is consumed")
}

func TestClipboard_EnvelopeSkipsUnknownTag(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)
	body := envelope(4+8+3+8+2, 2, entry(0x494D4147, "img"), entry(TagText, "ok"))
	c, err := ReadClipboardEnvelope(bytes.NewReader(body), logger)
	require.NoError(t, err)
	assert.Equal(t, ClipboardContent{Text: "ok"}, c)
	assert.Contains(t, buf.String(), "skipping unknown clipboard entry")
}

func TestClipboard_EnvelopeOverrunStops(t *testing.T) {
	// The second entry claims 100 bytes but the envelope holds only 4.
	bad := make([]byte, 8)
	binary.BigEndian.PutUint32(bad[0:4], TagHTML)
	binary.BigEndian.PutUint32(bad[4:8], 100)
	bad = append(bad, "<b>x"...)

	body := envelope(4+10+12, 2, entry(TagText, "hi"), bad)
	trailer := []byte{0x02}
	r := bytes.NewReader(append(body, trailer...))

	c, err := ReadClipboardEnvelope(r, nil)
	require.NoError(t, err)
	assert.Equal(t, ClipboardContent{Text: "hi"}, c)
	assert.Equal(t, 1, r.Len(), "declared bytes are drained, nothing more")
}

func TestClipboard_EnvelopeTooLarge(t *testing.T) {
	body := envelope(1000, 0)
	_, err := readClipboardEnvelope(bytes.NewReader(body), 100, &NoOpLogger{})
	require.Error(t, err)
	assert.True(t, IsError(err, ErrProtocol))
}

func TestClipboard_EnvelopeTruncated(t *testing.T) {
	body := envelope(50, 1, entry(TagText, "short"))
	_, err := ReadClipboardEnvelope(bytes.NewReader(body), nil)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrTransport))
}

func TestClipboard_Latin1(t *testing.T) {
	assert.Equal(t, []byte("plain"), latin1("plain"))
	assert.Equal(t, []byte{'c', 'a', 'f', 0xE9}, latin1("café"))
	assert.Equal(t, []byte{'5', 0x1A}, latin1("5€"))
	assert.Equal(t, []byte{'a', '?', 'b'}, latin1("a\xffb"))
}

func TestClipboard_WriteBaseline(t *testing.T) {
	tests := []struct {
		name    string
		content ClipboardContent
		peer    Capabilities
	}{
		{"text only to rich peer", ClipboardContent{Text: "hé"}, Capabilities{RichClipboardPseudoEncoding}},
		{"rich content to plain peer", ClipboardContent{Text: "hé", HTML: "<i>hé</i>"}, Capabilities{EncodingRaw}},
		{"no capabilities", ClipboardContent{Text: "hé", RTF: []byte("{}")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteClipboard(&buf, tt.content, tt.peer))
			assert.Equal(t, []byte{6, 0, 0, 0, 0, 0, 0, 2, 'h', 0xE9}, buf.Bytes())
		})
	}
}

func TestClipboard_WriteRich(t *testing.T) {
	c := ClipboardContent{Text: "a", HTML: "<i>a</i>"}
	var buf bytes.Buffer
	require.NoError(t, WriteClipboard(&buf, c, Capabilities{EncodingRaw, RichClipboardPseudoEncoding}))

	out := buf.Bytes()
	require.Greater(t, len(out), 4)
	assert.Equal(t, []byte{6, 0xFF, 0xFF, 0xFF}, out[:4])
	assert.Equal(t, EncodeClipboardEnvelope(c), out[4:])
}

func TestClipboard_WriteFailure(t *testing.T) {
	err := WriteClipboard(&failingWriter{}, ClipboardContent{Text: "x"}, nil)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrTransport))
	assert.ErrorIs(t, err, errWriteFailed)
}

func TestClipboard_ReadServerCutTextBaseline(t *testing.T) {
	body := []byte{0, 0, 0, 0, 0, 0, 4, 'c', 'a', 'f', 0xE9}
	c, rich, err := ReadServerCutText(bytes.NewReader(body), nil)
	require.NoError(t, err)
	assert.False(t, rich)
	assert.Equal(t, ClipboardContent{Text: "café"}, c)
}

func TestClipboard_ReadServerCutTextRich(t *testing.T) {
	in := ClipboardContent{Text: "x", FileURL: "file:///etc/hosts"}
	body := append([]byte{0xFF, 0xFF, 0xFF}, EncodeClipboardEnvelope(in)...)
	c, rich, err := ReadServerCutText(bytes.NewReader(body), nil)
	require.NoError(t, err)
	assert.True(t, rich)
	assert.Equal(t, in, c)
}

func TestClipboard_ReadServerCutTextTooLong(t *testing.T) {
	body := []byte{0, 0, 0, 0, 0, 1, 0}
	_, _, err := readServerCutText(bytes.NewReader(body), 10, &NoOpLogger{})
	require.Error(t, err)
	assert.True(t, IsError(err, ErrProtocol))
}

func TestClipboard_CapabilitiesHas(t *testing.T) {
	caps := Capabilities{EncodingRaw, DesktopSizePseudoEncoding}
	assert.True(t, caps.Has(DesktopSizePseudoEncoding))
	assert.False(t, caps.Has(RichClipboardPseudoEncoding))
	assert.False(t, Capabilities(nil).Has(EncodingRaw))
}
