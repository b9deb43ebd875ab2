package recorder

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// Device captures interleaved 16-bit samples and hands them to sink until
// stopped. sink may be called from another goroutine.
type Device interface {
	Start(sampleRate, channels int, sink func([]int16)) error
	Stop() error
}

// PortAudioDevice records from the system default input device.
type PortAudioDevice struct {
	mu     sync.Mutex
	stream *portaudio.Stream
}

func NewPortAudioDevice() *PortAudioDevice {
	return &PortAudioDevice{}
}

func (d *PortAudioDevice) Start(sampleRate, channels int, sink func([]int16)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		return fmt.Errorf("recording already in progress")
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), framesPerBuffer, func(in []int16) {
		sink(in)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}
	d.stream = stream
	return nil
}

func (d *PortAudioDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return nil
	}
	stream := d.stream
	d.stream = nil
	stopErr := stream.Stop()
	closeErr := stream.Close()
	termErr := portaudio.Terminate()
	for _, err := range []error{stopErr, closeErr, termErr} {
		if err != nil {
			return fmt.Errorf("stop input stream: %w", err)
		}
	}
	return nil
}
