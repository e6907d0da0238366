package tradix

import "encoding/json"

// FrameType represents the type of Tradix gateway frame
type FrameType int

const (
	FrameTypeRequest     FrameType = 0
	FrameTypeResponse    FrameType = 1
	FrameTypeSubscribe   FrameType = 2
	FrameTypeEvent       FrameType = 3
	FrameTypeUnsubscribe FrameType = 4
	FrameTypeError       FrameType = 5
)

// Frame is the wire envelope for every Tradix gateway message. The payload
// is a JSON string, not a nested object.
type Frame struct {
	M int    `json:"m"` // Frame type
	I int    `json:"i"` // Sequence number
	N string `json:"n"` // Operation name
	O string `json:"o"` // Payload (JSON string)
}

// NewFrame creates a new Tradix gateway frame
func NewFrame(frameType FrameType, sequence int, operation string, payload interface{}) (*Frame, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{
		M: int(frameType),
		I: sequence,
		N: operation,
		O: string(payloadJSON),
	}, nil
}

// ParsePayload parses the payload into the given type
func (f *Frame) ParsePayload(v interface{}) error {
	return json.Unmarshal([]byte(f.O), v)
}
