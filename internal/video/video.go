package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
)

// VideoEncoder turns a sequence of equally sized frames into a video file.
type VideoEncoder interface {
	Encode(ctx context.Context, frames []image.Image, videoPath string, fps int, encoderName string, quality int) error
}

type FFmpegEncoder struct {
	// Binary defaults to "ffmpeg" from PATH.
	Binary string
}

// DefaultQuality picks the quality value used when none is given.
func DefaultQuality(encoderName string) int {
	switch encoderName {
	case "h264_videotoolbox":
		return 75 // Хорошее качество для VideoToolbox
	case "h264_nvenc":
		return 28 // Эквивалент CRF для NVENC
	default:
		return 23 // Стандартный CRF для x264
	}
}

// Encode pipes the frames to ffmpeg as raw RGBA, one input frame per output
// frame at the given rate.
func (e *FFmpegEncoder) Encode(
	ctx context.Context,
	frames []image.Image,
	videoPath string,
	fps int,
	encoderName string,
	quality int,
) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	size := frames[0].Bounds().Size()
	for i, f := range frames {
		if f.Bounds().Size() != size {
			return fmt.Errorf("frame %d is %v, expected %v", i, f.Bounds().Size(), size)
		}
	}

	binary := e.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	args := e.buildFFmpegArgs(size.X, size.Y, videoPath, fps, encoderName, quality)
	cmd := exec.CommandContext(ctx, binary, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	for i, f := range frames {
		if err := e.writeRawRGBA(stdin, f); err != nil {
			stdin.Close()
			cmd.Wait()
			return fmt.Errorf("write raw error frame %d: %w", i, err)
		}
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, out.String())
	}
	return nil
}

func (e *FFmpegEncoder) buildFFmpegArgs(
	inputW, inputH int,
	videoPath string,
	fps int,
	encoderName string,
	quality int,
) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", inputW, inputH),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		// yuv420p требует чётных размеров
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:v", encoderName,
	}

	// Качество в зависимости от энкодера
	switch encoderName {
	case "h264_videotoolbox":
		bitrate := quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", quality), "-preset", "medium")
	}

	args = append(args, videoPath)
	return args
}

func (e *FFmpegEncoder) writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
