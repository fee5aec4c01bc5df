package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

const DefaultCodec = "mpeg4"

func init() {
	Register("ffmpeg", func(logger *slog.Logger, opts Options) (Backend, error) {
		return NewFFmpeg(logger, opts)
	})
}

// FFmpeg decodes through an ffmpeg subprocess emitting raw rgb24 frames and
// encodes clips by piping rgb24 frames into a second ffmpeg process.
type FFmpeg struct {
	logger      *slog.Logger
	ffmpegPath  string
	ffprobePath string
	codec       string
	threads     int
}

func NewFFmpeg(logger *slog.Logger, opts Options) (*FFmpeg, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	codec := opts.Codec
	if codec == "" {
		codec = DefaultCodec
	}

	return &FFmpeg{
		logger:      logger.With("component", "ffmpeg"),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		codec:       codec,
		threads:     opts.Threads,
	}, nil
}

func (f *FFmpeg) Name() string {
	return "ffmpeg"
}

type probeResult struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		NbReadFrames string `json:"nb_read_frames"`
	} `json:"streams"`
}

// Probe reads stream metadata. The frame count comes from the container
// header when present and from a full decode count otherwise.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	probe, err := f.ffprobe(ctx, path, false)
	if err != nil {
		return Info{}, err
	}
	s := probe.Streams[0]

	info := Info{
		Path:      path,
		Width:     s.Width,
		Height:    s.Height,
		Codec:     s.CodecName,
		FrameRate: s.RFrameRate,
		FPS:       ParseFrameRate(s.AvgFrameRate),
	}
	if info.FPS <= 0 {
		info.FPS = ParseFrameRate(s.RFrameRate)
	}
	if info.FrameRate == "" || ParseFrameRate(info.FrameRate) <= 0 {
		info.FrameRate = strconv.FormatFloat(info.FPS, 'f', -1, 64)
	}

	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else {
		f.logger.Debug("container has no frame count, decoding to count", "path", path)
		counted, err := f.ffprobe(ctx, path, true)
		if err != nil {
			return Info{}, err
		}
		n, _ := strconv.Atoi(counted.Streams[0].NbReadFrames)
		info.FrameCount = n
	}

	return info, nil
}

func (f *FFmpeg) ffprobe(ctx context.Context, path string, countFrames bool) (*probeResult, error) {
	args := []string{"-v", "error", "-select_streams", "v:0"}
	entries := "stream=codec_name,width,height,r_frame_rate,avg_frame_rate,nb_frames"
	if countFrames {
		args = append(args, "-count_frames")
		entries = "stream=nb_read_frames"
	}
	args = append(args, "-show_entries", entries, "-of", "json", path)

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	stderr := newTailWriter()
	cmd.Stderr = stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w %s: %s", ErrOpenVideo, path, stderr)
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w %s: no video stream", ErrOpenVideo, path)
	}
	return &probe, nil
}

func (f *FFmpeg) Open(ctx context.Context, path string) (Reader, error) {
	info, err := f.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w %s: invalid dimensions %dx%d", ErrOpenVideo, path, info.Width, info.Height)
	}

	r := &ffmpegReader{
		ffmpeg: f,
		ctx:    ctx,
		info:   info,
		stderr: newTailWriter(),
		buf:    make([]byte, info.Width*info.Height*3),
	}
	if err := r.start(); err != nil {
		return nil, err
	}
	return r, nil
}

type ffmpegReader struct {
	ffmpeg *FFmpeg
	ctx    context.Context
	info   Info

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailWriter
	buf    []byte
	pos    int
	eof    bool
	// endErr is returned once the stream is exhausted: io.EOF after a
	// clean decoder exit, an IO fault otherwise.
	endErr error
}

func (r *ffmpegReader) start() error {
	args := []string{
		"-v", "error", "-nostdin",
		"-i", r.info.Path,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-",
	}
	cmd := exec.CommandContext(r.ctx, r.ffmpeg.ffmpegPath, args...)
	r.stderr.Reset()
	cmd.Stderr = r.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w %s: %v", ErrOpenVideo, r.info.Path, err)
	}

	r.cmd = cmd
	r.stdout = stdout
	r.pos = 0
	r.eof = false
	r.endErr = nil
	return nil
}

func (r *ffmpegReader) stop() {
	if r.cmd == nil {
		return
	}
	r.stdout.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()
	r.cmd = nil
}

func (r *ffmpegReader) Info() Info {
	return r.info
}

// Seek positions the reader so the next Read returns frame. The decoder is
// restarted for backward seeks; forward seeks decode and discard.
func (r *ffmpegReader) Seek(frame int) error {
	if frame < 0 {
		return fmt.Errorf("invalid seek position %d", frame)
	}
	if frame < r.pos {
		r.stop()
		if err := r.start(); err != nil {
			return err
		}
	}
	for r.pos < frame {
		if err := r.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *ffmpegReader) next() error {
	if r.eof {
		return r.endErr
	}
	if _, err := io.ReadFull(r.stdout, r.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.eof = true
			r.endErr = r.finish()
			return r.endErr
		}
		return fmt.Errorf("failed to read frame %d: %w", r.pos, err)
	}
	r.pos++
	return nil
}

// finish reaps the decoder after its output ended. A non-zero exit means
// the video could not be decoded, not that it ended.
func (r *ffmpegReader) finish() error {
	cmd := r.cmd
	r.cmd = nil
	if cmd == nil {
		return io.EOF
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		msg := r.stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w %s: decoder failed at frame %d: %s", ErrOpenVideo, r.info.Path, r.pos, msg)
	}

	if msg := r.stderr.String(); msg != "" {
		r.ffmpeg.logger.Warn("decoder reported errors", "path", r.info.Path, "stderr", msg)
	}
	return io.EOF
}

func (r *ffmpegReader) Read() (*image.RGBA, error) {
	if err := r.next(); err != nil {
		return nil, err
	}
	return rgb24ToRGBA(r.buf, r.info.Width, r.info.Height), nil
}

func (r *ffmpegReader) Close() error {
	r.stop()
	return nil
}

func (f *FFmpeg) CreateClip(ctx context.Context, path string, info Info) (FrameWriter, error) {
	rate := info.FrameRate
	if rate == "" {
		rate = strconv.FormatFloat(info.FPS, 'f', -1, 64)
	}

	args := []string{"-y", "-v", "error"}
	if f.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(f.threads))
	}
	args = append(args,
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", rate,
		"-i", "-",
		"-an",
		"-c:v", f.codec,
	)
	if f.codec == DefaultCodec {
		args = append(args, "-q:v", "2")
	}
	args = append(args, "-pix_fmt", "yuv420p", path)

	f.logger.Debug("starting clip encoder", "output", path, "args", args)

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	w := &ffmpegWriter{path: path, width: info.Width, height: info.Height, cmd: cmd, stderr: newTailWriter()}
	cmd.Stderr = w.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	w.stdin = stdin
	w.buf = make([]byte, info.Width*info.Height*3)
	return w, nil
}

type ffmpegWriter struct {
	path   string
	width  int
	height int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailWriter
	buf    []byte
}

func (w *ffmpegWriter) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("frame size %dx%d does not match clip size %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}
	rgbaToRGB24(img, w.buf)
	if _, err := w.stdin.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write frame to %s: %w: %s", w.path, err, w.stderr)
	}
	return nil
}

func (w *ffmpegWriter) Close() error {
	w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode of %s failed: %w: %s", w.path, err, w.stderr)
	}
	return nil
}

func rgb24ToRGBA(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(buf); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

func rgbaToRGB24(img image.Image, dst []byte) {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != rgba.Rect.Dx()*4 {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}
	for i, j := 0, 0; j < len(dst); i, j = i+4, j+3 {
		dst[j] = rgba.Pix[i]
		dst[j+1] = rgba.Pix[i+1]
		dst[j+2] = rgba.Pix[i+2]
	}
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30/1")
func ParseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}
	parts := strings.Split(s, "/")
	if len(parts) == 1 {
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0
		}
		return v
	}
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
