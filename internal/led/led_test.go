package led

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
	"periph.io/x/devices/v3/nrzled"

	"github.com/lumenweave/stripzones/internal/blend"
)

func TestFakeCapturesFrames(t *testing.T) {
	d := &Fake{Log: zerolog.Nop()}
	frame := []blend.Color{{R: 10}, {G: 20}, {B: 30}}
	require.NoError(t, d.Write(frame))
	require.NoError(t, d.Write(frame))
	assert.Equal(t, 2, d.Frames)
	assert.Equal(t, frame, d.Last)

	// The capture is a copy, not an alias.
	frame[0].R = 99
	assert.Equal(t, uint8(10), d.Last[0].R)
}

func TestColorOffsets(t *testing.T) {
	got, err := colorOffsets("GRB")
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 0, 2}, got)

	got, err = colorOffsets("rgb")
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 1, 2}, got)

	_, err = colorOffsets("GR")
	assert.Error(t, err)
	_, err = colorOffsets("GRX")
	assert.Error(t, err)
}

func TestSPIWriteReordersChannels(t *testing.T) {
	var rec bytes.Buffer
	dev, err := nrzled.NewSPI(spitest.NewRecordRaw(&rec), &nrzled.Opts{
		NumPixels: 2,
		Channels:  3,
		Freq:      2500 * physic.KiloHertz,
	})
	require.NoError(t, err)

	order, err := colorOffsets("GRB")
	require.NoError(t, err)
	s := &SPI{dev: dev, buf: make([]byte, 2*3), order: order}

	require.NoError(t, s.Write([]blend.Color{{R: 1, G: 2, B: 3}, {R: 4, G: 5, B: 6}}))
	assert.Equal(t, []byte{2, 1, 3, 5, 4, 6}, s.buf)
	// The encoder expanded the payload onto the wire.
	assert.NotZero(t, rec.Len())
}

func TestSPIWriteClampsOversizedFrames(t *testing.T) {
	var rec bytes.Buffer
	dev, err := nrzled.NewSPI(spitest.NewRecordRaw(&rec), &nrzled.Opts{
		NumPixels: 1,
		Channels:  3,
		Freq:      2500 * physic.KiloHertz,
	})
	require.NoError(t, err)

	s := &SPI{dev: dev, buf: make([]byte, 3), order: [3]int{0, 1, 2}}
	require.NoError(t, s.Write(make([]blend.Color, 10)))
}
