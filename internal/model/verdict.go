package model

// SubmissionStatus is the listing-level outcome of the classification gate
type SubmissionStatus string

const (
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// ImageVerdict is the accept/reject decision derived from one image's scores
type ImageVerdict struct {
	RealEstateScore float64 `json:"score"`
	JunkScore       float64 `json:"junk_score"`
	TopLabel        string  `json:"top_label"`
	Accepted        bool    `json:"is_real_estate"`
}

// SubmissionVerdict is the folded verdict over every image of a submission
type SubmissionVerdict struct {
	Status            SubmissionStatus `json:"status"`
	Message           string           `json:"message"`
	ValidImages       []string         `json:"valid_images,omitempty"`
	RejectedFilenames []string         `json:"rejected_images,omitempty"`
}

// Approved reports whether every image passed the gate
func (v *SubmissionVerdict) Approved() bool {
	return v.Status == SubmissionApproved
}
