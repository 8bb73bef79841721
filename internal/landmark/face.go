package landmark

// FacePoints is the number of landmarks in the mediapipe face mesh.
const FacePoints = 468

// DefaultFaceOptions mirrors the mediapipe face mesh defaults: one face, 0.5 confidences.
func DefaultFaceOptions() Options {
	return Options{
		MaxSubjects:  1,
		MinDetection: 0.5,
		MinTracking:  0.5,
	}
}

// FaceMesh landmarks faces with a face mesh model. Only points are drawn in previews; the
// tessellation is left to the model's own tooling.
type FaceMesh struct {
	mesh
}

// NewFaceMesh creates a face mesh adapter over model.
func NewFaceMesh(model MeshModel) *FaceMesh {
	return &FaceMesh{mesh: mesh{
		solution: SolutionFaceMesh,
		model:    model,
	}}
}
