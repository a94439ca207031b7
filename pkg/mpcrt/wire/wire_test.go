package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/pc"
)

func TestMessageRoundTrip(t *testing.T) {
	in := Message{PC: pc.Stack{3, 0, 70000}, Kind: KindEcho, Data: []byte("X")}
	out, err := Unmarshal(in.Marshal())
	require.NoError(t, err)
	require.True(t, in.PC.Equal(out.PC))
	require.Equal(t, in.Kind, out.Kind)
	require.Equal(t, in.Data, out.Data)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := Message{PC: pc.Stack{1}, Kind: KindShare, Data: []byte{9}}.Marshal()
	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 5)
	m, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, []byte{9}, m.Data)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	for name, b := range map[string][]byte{
		"truncated":  Message{PC: pc.Stack{1}, Kind: KindShare, Data: []byte("abc")}.Marshal()[:8],
		"no kind":    protowire.AppendBytes(protowire.AppendTag(nil, fieldPC, protowire.BytesType), []byte{1}),
		"bad kind":   Message{PC: pc.Stack{1}, Kind: Kind(42)}.Marshal(),
		"all ones":   bytes.Repeat([]byte{0xff}, 8),
		"empty":      nil,
	} {
		_, err := Unmarshal(b)
		require.Errorf(t, err, name)
		require.Truef(t, errors.Is(err, ErrMalformed), "%s: %v", name, err)
	}
}

func TestFraming(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHello(&buf, 3))
	require.NoError(t, WriteFrame(&buf, []byte("one")))
	require.NoError(t, WriteFrame(&buf, nil))

	id, err := ReadHello(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(3), id)

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("one"), f)

	f, err = ReadFrame(&buf)
	require.NoError(t, err)
	require.Empty(t, f)

	_, err = ReadFrame(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
	require.Error(t, err)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "ready", KindReady.String())
	require.Equal(t, "kind(9)", Kind(9).String())
}
