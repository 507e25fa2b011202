package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlatformID identifies a social network folder inside a campaign
type PlatformID string

const (
	PlatformFacebook  PlatformID = "facebook"
	PlatformInstagram PlatformID = "instagram"
	PlatformTikTok    PlatformID = "tiktok"
	PlatformX         PlatformID = "x"
	PlatformLinkedIn  PlatformID = "linkedin"
)

// Platforms lists every supported platform in display order
var Platforms = []PlatformID{
	PlatformFacebook,
	PlatformInstagram,
	PlatformTikTok,
	PlatformX,
	PlatformLinkedIn,
}

var platformNames = map[PlatformID]string{
	PlatformFacebook:  "Facebook",
	PlatformInstagram: "Instagram",
	PlatformTikTok:    "TikTok",
	PlatformX:         "X (Twitter)",
	PlatformLinkedIn:  "LinkedIn",
}

// Valid reports whether p is a supported platform
func (p PlatformID) Valid() bool {
	_, ok := platformNames[p]
	return ok
}

// DisplayName returns the human readable platform name
func (p PlatformID) DisplayName() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return string(p)
}

// PostState is the analysis lifecycle state of a post
type PostState string

const (
	PostStateIdle      PostState = "idle"
	PostStateAnalyzing PostState = "analyzing"
	PostStateComplete  PostState = "complete"
	PostStateError     PostState = "error"
)

// Post is a single social-media post whose comment screenshots are analyzed
type Post struct {
	ID         uuid.UUID       `json:"id"`
	CampaignID uuid.UUID       `json:"campaign_id"`
	PlatformID PlatformID      `json:"platform_id"`
	Name       string          `json:"name"`
	State      PostState       `json:"state"`
	Records    []CommentRecord `json:"records"`
	LastError  *string         `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ResolveState derives the state to show for a stored post. A post with
// records and no explicit in-flight or failed state is complete.
func ResolveState(stored PostState, recordCount int) PostState {
	switch stored {
	case PostStateAnalyzing, PostStateError:
		return stored
	}
	if recordCount > 0 {
		return PostStateComplete
	}
	return PostStateIdle
}

// PlatformFolder groups the posts of one platform inside a campaign
type PlatformFolder struct {
	ID    PlatformID `json:"id"`
	Name  string     `json:"name"`
	Posts []Post     `json:"posts"`
}

// Campaign is the top-level grouping owned by a user
type Campaign struct {
	ID        uuid.UUID        `json:"id"`
	OwnerID   string           `json:"owner_id"`
	Name      string           `json:"name"`
	Folders   []PlatformFolder `json:"folders"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewFolders returns one empty folder per supported platform
func NewFolders() []PlatformFolder {
	folders := make([]PlatformFolder, 0, len(Platforms))
	for _, p := range Platforms {
		folders = append(folders, PlatformFolder{ID: p, Name: p.DisplayName(), Posts: []Post{}})
	}
	return folders
}

// ExportFilename names a campaign export after its UTC date
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("commentpulse_export_%s.json", t.UTC().Format("2006-01-02"))
}
