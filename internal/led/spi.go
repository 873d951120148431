package led

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/lumenweave/stripzones/internal/blend"
)

// SPI drives a WS2812-class strip through an NRZ encoder on a spidev port.
type SPI struct {
	port  spi.PortCloser
	dev   *nrzled.Dev
	buf   []byte
	order [3]int
}

// colorOffsets maps a color-order string like "GRB" to byte offsets for the
// R, G and B channels.
func colorOffsets(order string) ([3]int, error) {
	if len(order) != 3 {
		return [3]int{}, fmt.Errorf("led: bad color order %q", order)
	}
	var out [3]int
	for i, ch := range strings.ToUpper(order) {
		switch ch {
		case 'R':
			out[0] = i
		case 'G':
			out[1] = i
		case 'B':
			out[2] = i
		default:
			return [3]int{}, fmt.Errorf("led: bad color order %q", order)
		}
	}
	return out, nil
}

// NewSPI opens the spidev port and wraps it in an NRZ encoder sized for
// count pixels.
func NewSPI(devPath string, count int, speedHz int, colorOrder string) (*SPI, error) {
	order, err := colorOffsets(colorOrder)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("led: host init: %w", err)
	}
	port, err := spireg.Open(devPath)
	if err != nil {
		return nil, fmt.Errorf("led: open %s: %w", devPath, err)
	}
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: count,
		Channels:  3,
		Freq:      physic.Frequency(speedHz) * physic.Hertz,
	})
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("led: nrz device: %w", err)
	}
	return &SPI{
		port:  port,
		dev:   dev,
		buf:   make([]byte, count*3),
		order: order,
	}, nil
}

func (s *SPI) Write(frame []blend.Color) error {
	n := len(frame)
	if n*3 > len(s.buf) {
		n = len(s.buf) / 3
	}
	for i := 0; i < n; i++ {
		s.buf[i*3+s.order[0]] = frame[i].R
		s.buf[i*3+s.order[1]] = frame[i].G
		s.buf[i*3+s.order[2]] = frame[i].B
	}
	_, err := s.dev.Write(s.buf[:n*3])
	return err
}

func (s *SPI) Close() error {
	if err := s.dev.Halt(); err != nil {
		s.port.Close()
		return err
	}
	return s.port.Close()
}
