package bridge

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ayusman/landmarker/internal/landmark"
)

const (
	opMesh  = "mesh"
	opShape = "shape"
)

// maxMessage bounds a single reply line from the service.
const maxMessage = 64 << 20

// request is the header sent before each frame.
type request struct {
	Op   string `json:"op"`
	Rect []int  `json:"rect,omitempty"` // x1, y1, x2, y2
}

// response is one line written by the service per request. Mesh points are normalized; shape
// points are in pixels.
type response struct {
	Subjects []landmark.Subject `json:"subjects"`
	Error    string             `json:"error,omitempty"`
}

// writeRequest frames the header and the encoded image, each as a 4-byte big-endian length
// followed by the payload.
func writeRequest(w io.Writer, req request, img []byte) error {
	header, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := writeFrame(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writeFrame(w, img); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// readResponse reads one reply line of at most limit bytes.
func readResponse(r *bufio.Reader, limit int) (response, error) {
	var resp response
	line, err := readLine(r, limit)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("%w: %s", ErrService, resp.Error)
	}
	return resp, nil
}

func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > limit {
			return nil, fmt.Errorf("%w: over %d bytes", ErrMessageTooLarge, limit)
		}
		line = append(line, chunk...)
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err != nil:
			return nil, fmt.Errorf("read response: %w", err)
		}
		return line, nil
	}
}

func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	if _, err := w.Write(length); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
