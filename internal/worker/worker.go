package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/andresmejia3/faceindex/internal/utils" // Using the SafeCommand wrapper
)

const (
	// DefaultScript is the detector entry point, relative to the working directory.
	DefaultScript = "python/worker.py"
	// DefaultTimeout bounds a single request/response round trip.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize guards against a corrupted length header allocating gigabytes.
	maxResponseSize = 256 << 20
)

// ErrWorkerBroken is returned by every call after a round trip failed midway.
// The pipe may still hold a late reply, so the worker cannot be reused.
var ErrWorkerBroken = errors.New("worker is out of sync with its process")

// PythonWorker drives a long-lived Python face detector over a length-prefixed
// binary protocol. It is not safe for concurrent use.
type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
	Timeout  time.Duration

	broken error
	closed bool
}

var _ faceindex.Detector = (*PythonWorker)(nil)

func NewPythonWorker(ctx context.Context, id int, script string) (*PythonWorker, error) {
	if script == "" {
		script = DefaultScript
	}
	// 1. Initialize the SafeCommand we built
	py := utils.NewSafeCommand(ctx, "python3", "-u", script)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
		Timeout:  DefaultTimeout,
	}, nil
}

// Communicate sends one framed request and returns the framed response body.
// Any failure kills the process and leaves the worker broken.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	if w.broken != nil {
		return nil, fmt.Errorf("worker %d: %w (%v)", w.ID, ErrWorkerBroken, w.broken)
	}
	resp, err := w.roundTrip(data)
	if err != nil {
		w.broken = err
		w.kill()
		return nil, err
	}
	return resp, nil
}

func (w *PythonWorker) roundTrip(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	// A hung interpreter must not stall the build forever.
	if d, ok := w.DataPipe.(interface{ SetReadDeadline(time.Time) error }); ok && w.Timeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(w.Timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("worker %d timed out after %s", w.ID, w.Timeout)
		}
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponseSize {
		return nil, fmt.Errorf("worker %d sent oversized response (%d bytes)", w.ID, respLen)
	}
	respBody := make([]byte, respLen)
	if _, err := io.ReadFull(w.DataPipe, respBody); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("worker %d timed out after %s", w.ID, w.Timeout)
		}
		return nil, fmt.Errorf("worker %d sent a short response: %w", w.ID, err)
	}
	return respBody, nil
}

// kill stops the interpreter so a late reply can never be read as the answer
// to a later request.
func (w *PythonWorker) kill() {
	if w.Cmd != nil && w.Cmd.Process != nil {
		w.Cmd.Process.Kill()
	}
	w.Close()
}

// DetectFaces implements faceindex.Detector.
func (w *PythonWorker) DetectFaces(ctx context.Context, imagePath string, imageData []byte) ([]faceindex.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := w.Communicate(imageData)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

// parseResponse decodes a detector payload.
// Protocol: [Status:u8] then
//
//	0: [NumFaces:u32] [Dim:u32] { [Top,Right,Bottom,Left:i32] [Vec:Dim x f64] } x NumFaces
//	1: [MsgLen:u32] [Msg]
func parseResponse(payload []byte) ([]faceindex.Detection, error) {
	reader := bytes.NewReader(payload)

	status, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("empty worker response: %w", err)
	}

	if status == 1 {
		var msgLen uint32
		if err := binary.Read(reader, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("malformed worker error: %w", err)
		}
		if int64(msgLen) > int64(reader.Len()) {
			return nil, fmt.Errorf("malformed worker error: message length %d exceeds payload", msgLen)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(reader, msg); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("python worker error: %s", msg)
	}
	if status != 0 {
		return nil, fmt.Errorf("unknown worker status %d", status)
	}

	var numFaces, dim uint32
	if err := binary.Read(reader, binary.BigEndian, &numFaces); err != nil {
		return nil, fmt.Errorf("malformed worker response: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &dim); err != nil {
		return nil, fmt.Errorf("malformed worker response: %w", err)
	}

	perFace := int64(16) + int64(dim)*8
	if int64(numFaces)*perFace != int64(reader.Len()) {
		return nil, fmt.Errorf("malformed worker response: %d faces of dim %d do not fit %d bytes", numFaces, dim, reader.Len())
	}

	detections := make([]faceindex.Detection, 0, numFaces)
	for i := uint32(0); i < numFaces; i++ {
		var box [4]int32
		if err := binary.Read(reader, binary.BigEndian, &box); err != nil {
			return nil, err
		}
		raw := make([]uint64, dim)
		if err := binary.Read(reader, binary.BigEndian, raw); err != nil {
			return nil, err
		}
		vec := make(faceindex.Embedding, dim)
		for j, bits := range raw {
			vec[j] = math.Float64frombits(bits)
		}
		detections = append(detections, faceindex.Detection{
			Location: faceindex.BoundingBox{
				Top:    int(box[0]),
				Right:  int(box[1]),
				Bottom: int(box[2]),
				Left:   int(box[3]),
			},
			Embedding: vec,
		})
	}
	return detections, nil
}

// Close shuts down the pipes and reaps the process. Calls after the first are no-ops.
func (w *PythonWorker) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.Stdin != nil {
		w.Stdin.Close()
	}
	if w.DataPipe != nil {
		w.DataPipe.Close()
	}
	if w.Cmd != nil {
		return w.Cmd.Wait()
	}
	return nil
}
