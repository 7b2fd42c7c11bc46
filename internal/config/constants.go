package config

import (
	"time"

	"aistudio/internal/domain"
)

// Chat settings
var ChatModels = []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo", "gpt-4o"}

const (
	DefaultChatModel   = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	MaxTokens          = 1000
)

// Image settings
var (
	ImageSizes     = []domain.ImageSize{domain.SizeSquare, domain.SizeLandscape, domain.SizePortrait}
	ImageQualities = []domain.ImageQuality{domain.QualityStandard, domain.QualityHD}
)

const ImageModel = "dall-e-3"

// Video settings
var (
	VideoDurations   = []int{5, 6, 7, 8}
	VideoResolutions = []int{720, 1080}
)

const (
	VideoModel        = "veo-2.0-generate-001"
	VideoPollInterval = 20 * time.Second
	VideoMaxPolls     = 60
)

// Input bounds
const (
	MinPromptLength = 1
	MaxPromptLength = 1000
)

// SessionSweepInterval controls how often idle sessions are dropped.
const SessionSweepInterval = time.Minute

// IsChatModel reports whether id is one of the supported chat models.
func IsChatModel(id string) bool {
	for _, m := range ChatModels {
		if m == id {
			return true
		}
	}
	return false
}

// IsImageSize reports whether s is a supported image size.
func IsImageSize(s domain.ImageSize) bool {
	for _, v := range ImageSizes {
		if v == s {
			return true
		}
	}
	return false
}

// IsImageQuality reports whether q is a supported image quality.
func IsImageQuality(q domain.ImageQuality) bool {
	for _, v := range ImageQualities {
		if v == q {
			return true
		}
	}
	return false
}

// IsVideoDuration reports whether d is a supported video duration.
func IsVideoDuration(d int) bool {
	for _, v := range VideoDurations {
		if v == d {
			return true
		}
	}
	return false
}

// IsVideoResolution reports whether r is a supported video resolution.
func IsVideoResolution(r int) bool {
	for _, v := range VideoResolutions {
		if v == r {
			return true
		}
	}
	return false
}
