// Package audiosink holds the stereo float sample ring buffer a
// component.AudioSampler hands back from Samples, plus an optional
// WAV recorder a MachineBuilder config can attach to an audio output
// resource for offline debugging of a component's generated audio,
// independent of whatever live playback frontend is driving the machine.
package audiosink

import (
	"io"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleRate is the rate, in frames per second, every RingBuffer and
// Recorder in the framework operates at. Components that generate audio
// at a different native rate are expected to resample before pushing.
const SampleRate = 44100

// Channels is the number of interleaved channels a RingBuffer carries.
// Every audio output in the framework is stereo.
const Channels = 2

// RingBuffer is a fixed-capacity circular buffer of interleaved stereo
// float samples. A component.AudioSampler owns one per audio output
// resource and pushes newly generated frames into it as it runs; a
// frontend (or audiosink.Recorder) drains it at its own pace.
type RingBuffer struct {
	mu   sync.Mutex
	data []float64
	head int
	size int
}

// NewRingBuffer allocates a RingBuffer holding up to capacityFrames
// stereo frames before the oldest unread frame is overwritten.
func NewRingBuffer(capacityFrames int) *RingBuffer {
	if capacityFrames <= 0 {
		capacityFrames = SampleRate / 10
	}
	return &RingBuffer{data: make([]float64, capacityFrames*Channels)}
}

// Push appends interleaved stereo samples (left, right, left, right...)
// to the ring, discarding the oldest samples if the ring is already full.
func (r *RingBuffer) Push(samples []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range samples {
		r.data[r.head] = s
		r.head = (r.head + 1) % len(r.data)
		if r.size < len(r.data) {
			r.size++
		}
	}
}

// PushFrame appends a single stereo frame.
func (r *RingBuffer) PushFrame(left, right float64) {
	r.Push([]float64{left, right})
}

// Len returns the number of samples (not frames) currently held.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Drain returns every sample currently held, oldest first, and empties
// the ring. It is how the ring component.AudioSampler.Samples returns is
// emptied.
func (r *RingBuffer) Drain() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	out := make([]float64, r.size)
	start := (r.head - r.size + len(r.data)) % len(r.data)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	r.size = 0
	return out
}

// DrainFloatBuffer is Drain, packaged as a go-audio Buffer so a caller
// can hand it directly to anything in the go-audio ecosystem (resamplers,
// encoders) without restating the format.
func (r *RingBuffer) DrainFloatBuffer() *audio.FloatBuffer {
	samples := r.Drain()
	if samples == nil {
		return nil
	}
	return &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:   samples,
	}
}

// Recorder captures everything drained from one or more RingBuffers to a
// 16-bit PCM WAV file, for offline inspection of a component's generated
// audio. It is not on the hot playback path; a MachineBuilder config
// attaches one only when a caller explicitly wants a capture.
type Recorder struct {
	mu  sync.Mutex
	enc *wav.Encoder
}

// NewRecorder opens a Recorder writing 16-bit stereo PCM at SampleRate to
// w. Callers must Close the Recorder to finalize the WAV header.
func NewRecorder(w io.WriteSeeker) *Recorder {
	return &Recorder{enc: wav.NewEncoder(w, SampleRate, 16, Channels, 1)}
}

// WriteFrame appends interleaved stereo float samples, clamped to
// [-1, 1], as 16-bit PCM.
func (rec *Recorder) WriteFrame(samples []float64) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	ints := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		ints[i] = int(s * 32767)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	return rec.enc.Write(buf)
}

// Close finalizes the WAV file's header. The Recorder must not be used
// afterward.
func (rec *Recorder) Close() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.enc.Close()
}
