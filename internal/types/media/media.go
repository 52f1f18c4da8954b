package media

import "time"

type MediaType string

const (
	TypePhoto MediaType = "photo"
	TypeVideo MediaType = "video"
)

// PhotoType is one of the six fixed shot angles a health report needs.
type PhotoType string

const (
	PhotoFront     PhotoType = "front"
	PhotoRear      PhotoType = "rear"
	PhotoLeft      PhotoType = "left"
	PhotoRight     PhotoType = "right"
	PhotoInterior  PhotoType = "interior"
	PhotoEngineBay PhotoType = "engineBay"
)

// RequiredPhotoTypes is the closed set of angles every car submission
// must cover. Order matters only for display.
var RequiredPhotoTypes = []PhotoType{
	PhotoFront,
	PhotoRear,
	PhotoLeft,
	PhotoRight,
	PhotoInterior,
	PhotoEngineBay,
}

func ValidPhotoType(pt PhotoType) bool {
	for _, t := range RequiredPhotoTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// Media is one photo or video belonging to a car submission.
type Media struct {
	ID               string    `json:"id" db:"id"`
	CarID            string    `json:"car_id" db:"car_id"`
	Type             MediaType `json:"type" db:"type"`
	PhotoType        PhotoType `json:"photo_type,omitempty" db:"photo_type"`
	FileName         string    `json:"file_name" db:"file_name"`
	OriginalFileName string    `json:"original_file_name" db:"original_file_name"`
	MimeType         string    `json:"mime_type" db:"mime_type"`
	FileSize         int64     `json:"file_size" db:"file_size"`
	StorageKey       string    `json:"storage_key" db:"storage_key"`
	StorageURL       string    `json:"storage_url" db:"storage_url"`
	ThumbnailURL     string    `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	Width            int       `json:"width,omitempty" db:"width"`
	Height           int       `json:"height,omitempty" db:"height"`
	Duration         float64   `json:"duration,omitempty" db:"duration"`
	IsUploaded       bool      `json:"is_uploaded" db:"is_uploaded"`
	Metadata         *Metadata `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Metadata travels with the registration call and is stored verbatim.
type Metadata struct {
	OriginalFileName string      `json:"originalFileName,omitempty"`
	UploadedAt       string      `json:"uploadedAt,omitempty"`
	Dimensions       *Dimensions `json:"dimensions,omitempty"`
	Duration         float64     `json:"duration,omitempty"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UploadRequest asks the backend to authorize one file transfer.
type UploadRequest struct {
	Type      MediaType `json:"type" validate:"required,oneof=photo video"`
	PhotoType PhotoType `json:"photoType,omitempty" validate:"omitempty,oneof=front rear left right interior engineBay"`
	FileName  string    `json:"fileName" validate:"required"`
	MimeType  string    `json:"mimeType" validate:"required"`
	FileSize  int64     `json:"fileSize" validate:"required,min=1"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
}

// UploadAuthorization is the granted destination for one transfer.
type UploadAuthorization struct {
	MediaID   string `json:"mediaId"`
	UploadURL string `json:"uploadUrl"`
	ExpiresIn int64  `json:"expiresIn"`
}

// RegisterRequest confirms a completed direct transfer.
type RegisterRequest struct {
	StorageKey   string    `json:"storageKey" validate:"required"`
	StorageURL   string    `json:"storageUrl" validate:"required"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Metadata     *Metadata `json:"metadata,omitempty"`
}

// ValidationResult is the server-computed required-media report.
type ValidationResult struct {
	IsValid              bool        `json:"isValid"`
	MissingPhotos        []PhotoType `json:"missingPhotos"`
	HasVideo             bool        `json:"hasVideo"`
	Warnings             []string    `json:"warnings"`
	CompletionPercentage int         `json:"completionPercentage"`
	CanSubmit            bool        `json:"canSubmit"`
}
