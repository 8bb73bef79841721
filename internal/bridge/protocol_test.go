package bridge

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readFrame reads one length-prefixed frame, the way the service does.
func readFrame(r io.Reader) ([]byte, error) {
	length := make([]byte, 4)
	if _, err := io.ReadFull(r, length); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint32(length))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// readRequest is the service side of writeRequest.
func readRequest(r io.Reader) (request, []byte, error) {
	var req request
	header, err := readFrame(r)
	if err != nil {
		return req, nil, err
	}
	if err := json.Unmarshal(header, &req); err != nil {
		return req, nil, fmt.Errorf("parse header: %w", err)
	}
	img, err := readFrame(r)
	if err != nil {
		return req, nil, err
	}
	return req, img, nil
}

func TestWriteRequest_Framing(t *testing.T) {
	var buf bytes.Buffer
	img := []byte{0xff, 0xd8, 0xff, 0xd9}

	require.NoError(t, writeRequest(&buf, request{Op: opShape, Rect: []int{1, 2, 3, 4}}, img))

	raw := buf.Bytes()
	headerLen := binary.BigEndian.Uint32(raw[:4])
	assert.JSONEq(t, `{"op":"shape","rect":[1,2,3,4]}`, string(raw[4:4+headerLen]))

	rest := raw[4+headerLen:]
	assert.Equal(t, uint32(len(img)), binary.BigEndian.Uint32(rest[:4]))
	assert.Equal(t, img, rest[4:])
}

func TestWriteRequest_MeshOmitsRect(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRequest(&buf, request{Op: opMesh}, []byte("jpeg")))

	req, img, err := readRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, opMesh, req.Op)
	assert.Nil(t, req.Rect)
	assert.Equal(t, []byte("jpeg"), img)
}

func TestReadResponse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantPoints int
		wantErr    error
		wantAnyErr bool
	}{
		{
			name:       "subjects",
			input:      `{"subjects":[{"points":[{"x":0.5,"y":0.5,"z":0},{"x":0.1,"y":0.2,"z":0.3}]}]}` + "\n",
			wantPoints: 2,
		},
		{
			name:  "no subjects",
			input: `{"subjects":[]}` + "\n",
		},
		{
			name:    "service error",
			input:   `{"subjects":[],"error":"model not loaded"}` + "\n",
			wantErr: ErrService,
		},
		{
			name:       "malformed",
			input:      "not json\n",
			wantAnyErr: true,
		},
		{
			name:       "closed stream",
			input:      "",
			wantAnyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := readResponse(bufio.NewReader(strings.NewReader(tt.input)), maxMessage)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAnyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				if tt.wantPoints > 0 {
					require.Len(t, resp.Subjects, 1)
					assert.Len(t, resp.Subjects[0].Points, tt.wantPoints)
				} else {
					assert.Empty(t, resp.Subjects)
				}
			}
		})
	}
}

func TestReadResponse_Limit(t *testing.T) {
	reply := `{"subjects":[{"points":[{"x":0.25,"y":0.75,"z":0}]}]}` + "\n"

	tests := []struct {
		name    string
		input   string
		limit   int
		wantErr error
	}{
		{name: "line spanning several buffer fills", input: reply, limit: len(reply)},
		{name: "line one byte over", input: reply, limit: len(reply) - 1, wantErr: ErrMessageTooLarge},
		{name: "runaway line without newline", input: strings.Repeat("x", 4096), limit: 1024, wantErr: ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A small reader buffer forces the line to be assembled from several reads.
			r := bufio.NewReaderSize(strings.NewReader(tt.input), 16)

			resp, err := readResponse(r, tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, resp.Subjects, 1)
			assert.Equal(t, 0.75, resp.Subjects[0].Points[0].Y)
		})
	}
}
