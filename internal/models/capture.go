package models

// CaptureType selects how frames are pulled from the camera.
type CaptureType string

const (
	CaptureDevice  CaptureType = "device"
	CaptureRTSP    CaptureType = "rtsp"
	CaptureHTTP    CaptureType = "http"
	CaptureYouTube CaptureType = "youtube"
	CaptureFile    CaptureType = "file"
)

// Valid reports whether t is a supported capture type.
func (t CaptureType) Valid() bool {
	switch t {
	case CaptureDevice, CaptureRTSP, CaptureHTTP, CaptureYouTube, CaptureFile:
		return true
	}
	return false
}
