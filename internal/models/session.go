package models

import "time"

// PanelSessionStatus represents the status of a panel session.
type PanelSessionStatus string

const (
	PanelStatusReady   PanelSessionStatus = "ready"
	PanelStatusExpired PanelSessionStatus = "expired"
)

// PanelSession is the externally visible state of one rendered page.
type PanelSession struct {
	ID            string             `json:"id"`
	FileID        string             `json:"fileId"`
	CompareFileID string             `json:"compareFileId,omitempty"`
	Status        PanelSessionStatus `json:"status"`
	ChartCount    int                `json:"chartCount"`
	BuildTimeMs   int64              `json:"buildTimeMs"`
	CreatedAt     time.Time          `json:"createdAt"`
	ParamOverlays bool               `json:"paramOverlays"`
	OverlaysShown bool               `json:"overlaysShown"`
}

// NewPanelSession creates a ready PanelSession.
func NewPanelSession(id, fileID, compareFileID string) *PanelSession {
	return &PanelSession{
		ID:            id,
		FileID:        fileID,
		CompareFileID: compareFileID,
		Status:        PanelStatusReady,
		CreatedAt:     time.Now(),
	}
}
