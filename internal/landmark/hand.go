package landmark

// Hand landmark indices following the mediapipe hand topology.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist      = 0
	ThumbCMC   = 1
	ThumbMCP   = 2
	ThumbIP    = 3
	ThumbTip   = 4
	IndexMCP   = 5
	IndexPIP   = 6
	IndexDIP   = 7
	IndexTip   = 8
	MiddleMCP  = 9
	MiddlePIP  = 10
	MiddleDIP  = 11
	MiddleTip  = 12
	RingMCP    = 13
	RingPIP    = 14
	RingDIP    = 15
	RingTip    = 16
	PinkyMCP   = 17
	PinkyPIP   = 18
	PinkyDIP   = 19
	PinkyTip   = 20
	HandPoints = 21
)

// HandConnections is the bone topology drawn between hand landmarks.
var HandConnections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// DefaultHandOptions mirrors the mediapipe hands defaults: two hands, 0.5 confidences.
func DefaultHandOptions() Options {
	return Options{
		MaxSubjects:  2,
		MinDetection: 0.5,
		MinTracking:  0.5,
	}
}

// HandMesh landmarks hands with a hand model.
type HandMesh struct {
	mesh
}

// NewHandMesh creates a hand adapter over model.
func NewHandMesh(model MeshModel) *HandMesh {
	return &HandMesh{mesh: mesh{
		solution:    SolutionHands,
		model:       model,
		connections: HandConnections,
	}}
}
