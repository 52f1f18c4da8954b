package types

type CarStatus string

const (
	CarStatusDraft         CarStatus = "draft"
	CarStatusMediaUploaded CarStatus = "media_uploaded"
	CarStatusSubmitted     CarStatus = "submitted"
	CarStatusAnalyzing     CarStatus = "analyzing"
	CarStatusReportReady   CarStatus = "report_ready"
)

// Locked reports whether the car has been handed off for analysis and
// its media set can no longer change.
func (s CarStatus) Locked() bool {
	switch s {
	case CarStatusSubmitted, CarStatusAnalyzing, CarStatusReportReady:
		return true
	}
	return false
}

type Car struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Make           string    `json:"make"`
	Model          string    `json:"model"`
	Year           int       `json:"year"`
	Mileage        int       `json:"mileage"`
	OwnershipCount int       `json:"ownership_count"`
	Status         CarStatus `json:"status"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
}

type CarCreateRequest struct {
	Make           string `json:"make" validate:"required"`
	Model          string `json:"model" validate:"required"`
	Year           int    `json:"year" validate:"required,min=1950,max=2100"`
	Mileage        int    `json:"mileage" validate:"min=0"`
	OwnershipCount int    `json:"ownership_count" validate:"min=0"`
}

type CarUpdateRequest struct {
	Make           string `json:"make"`
	Model          string `json:"model"`
	Year           int    `json:"year" validate:"omitempty,min=1950,max=2100"`
	Mileage        int    `json:"mileage" validate:"min=0"`
	OwnershipCount int    `json:"ownership_count" validate:"min=0"`
}
