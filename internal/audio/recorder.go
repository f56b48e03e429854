// Package audio keeps a copy of each call's inbound PCM stream and encodes it
// when the call ends.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	DefaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
)

type recording struct {
	rawPath string
	file    *os.File
}

// Recorder tracks one raw recording per active call. Audio written for a call
// that has no recording is discarded.
type Recorder struct {
	dir        string
	sampleRate int

	mu    sync.Mutex
	calls map[string]*recording

	encode func(rawPath, callID string) (string, error)
}

func NewRecorder(dir string, sampleRate int) *Recorder {
	if dir == "" {
		dir = filepath.Join("data", "audio")
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	r := &Recorder{dir: dir, sampleRate: sampleRate, calls: make(map[string]*recording)}
	r.encode = r.defaultEncode
	return r
}

func (r *Recorder) SampleRate() int { return r.sampleRate }

func (r *Recorder) StartCall(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.calls[callID]; ok {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	rawPath := filepath.Join(r.dir, callID+".pcm")
	f, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}
	r.calls[callID] = &recording{rawPath: rawPath, file: f}
	return nil
}

// EndCall closes the call's recording and returns the encoded file path, or
// "" when nothing was recorded.
func (r *Recorder) EndCall(callID string) (string, error) {
	r.mu.Lock()
	rec, ok := r.calls[callID]
	delete(r.calls, callID)
	r.mu.Unlock()
	if !ok {
		return "", nil
	}

	info, statErr := rec.file.Stat()
	if err := rec.file.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}
	if statErr == nil && info.Size() == 0 {
		_ = os.Remove(rec.rawPath)
		return "", nil
	}

	path, err := r.encode(rec.rawPath, callID)
	if err != nil {
		return "", err
	}
	_ = os.Remove(rec.rawPath)
	return path, nil
}

// Writer tees audio for callID into dst and the call's recording.
func (r *Recorder) Writer(callID string, dst io.Writer) io.Writer {
	return &teeWriter{recorder: r, callID: callID, dst: dst}
}

func (r *Recorder) write(callID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.calls[callID]
	if !ok {
		return nil
	}
	if _, err := rec.file.Write(data); err != nil {
		return fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return nil
}

func (r *Recorder) defaultEncode(rawPath, callID string) (string, error) {
	mp3Path := filepath.Join(r.dir, callID+".mp3")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(r.sampleRate),
		"-ac", strconv.Itoa(pcmChannels),
		"-i", rawPath,
		mp3Path,
	)
	if err := cmd.Run(); err == nil {
		return mp3Path, nil
	}

	wavPath := filepath.Join(r.dir, callID+".wav")
	if err := pcmToWav(rawPath, wavPath, r.sampleRate); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}
	return wavPath, nil
}

type wavHeader struct {
	Riff          [4]byte
	ChunkSize     uint32
	Wave          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func newWavHeader(dataSize, sampleRate int) wavHeader {
	blockAlign := pcmChannels * pcmBitDepth / 8
	return wavHeader{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      pcmChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: pcmBitDepth,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(dataSize),
	}
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcm, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer out.Close()

	if err := binary.Write(out, binary.LittleEndian, newWavHeader(len(pcm), sampleRate)); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcm); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}
	return nil
}

type teeWriter struct {
	recorder *Recorder
	callID   string
	dst      io.Writer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.recorder.write(w.callID, p[:n]); err != nil {
		return n, err
	}
	return n, nil
}
