package database

import (
	"errors"
	"testing"
	"time"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/google/uuid"
)

// fakeRow satisfies rowScanner by copying fixed values into the destinations
type fakeRow struct {
	values []any
	err    error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	if len(dest) != len(f.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = f.values[i].(uuid.UUID)
		case *models.PlatformID:
			*p = f.values[i].(models.PlatformID)
		case *models.PostState:
			*p = f.values[i].(models.PostState)
		case *string:
			*p = f.values[i].(string)
		case *[]byte:
			if f.values[i] != nil {
				*p = f.values[i].([]byte)
			}
		case *time.Time:
			*p = f.values[i].(time.Time)
		default:
			if scanner, ok := d.(interface{ Scan(any) error }); ok {
				if err := scanner.Scan(f.values[i]); err != nil {
					return err
				}
				continue
			}
			return errors.New("unsupported destination")
		}
	}
	return nil
}

func TestDecodeRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantLen int
		wantErr bool
	}{
		{name: "nil", data: nil, wantLen: 0},
		{name: "json null", data: []byte("null"), wantLen: 0},
		{name: "empty array", data: []byte("[]"), wantLen: 0},
		{
			name:    "records",
			data:    []byte(`[{"id":"6f1d3c1e-4f5a-4b8e-9a1b-2c3d4e5f6a7b","imageSource":"a.png","text":"hi","sentiment":"positive","confidence":0.9,"topic":"UI","theme":"Praise"}]`),
			wantLen: 1,
		},
		{name: "corrupt", data: []byte(`{"not":"a list"}`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := decodeRecords(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got == nil {
				t.Fatal("Expected non-nil slice")
			}
			if len(got) != tt.wantLen {
				t.Errorf("Expected %d records, got %d", tt.wantLen, len(got))
			}
		})
	}
}

func TestEncodeRecords_NilIsEmptyArray(t *testing.T) {
	t.Parallel()

	data, err := encodeRecords(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Expected [], got %s", data)
	}
}

func TestScanPost_ResolvesState(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	campaignID := uuid.New()
	now := time.Now()
	records := []byte(`[{"id":"6f1d3c1e-4f5a-4b8e-9a1b-2c3d4e5f6a7b","imageSource":"a.png","text":"hi","sentiment":"positive","confidence":0.9,"topic":"UI","theme":"Praise"}]`)

	tests := []struct {
		name      string
		state     models.PostState
		data      []byte
		lastError any
		want      models.PostState
	}{
		{name: "idle without records", state: models.PostStateIdle, data: []byte("[]"), want: models.PostStateIdle},
		{name: "idle with records loads complete", state: models.PostStateIdle, data: records, want: models.PostStateComplete},
		{name: "error kept", state: models.PostStateError, data: records, lastError: "boom", want: models.PostStateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			row := fakeRow{values: []any{id, campaignID, models.PlatformInstagram, "Launch", tt.state, tt.data, tt.lastError, now, now}}
			post, err := scanPost(row)
			if err != nil {
				t.Fatalf("scanPost() error = %v", err)
			}
			if post.State != tt.want {
				t.Errorf("State = %q, want %q", post.State, tt.want)
			}
			if tt.lastError != nil && (post.LastError == nil || *post.LastError != tt.lastError) {
				t.Errorf("LastError = %v, want %v", post.LastError, tt.lastError)
			}
		})
	}
}

func TestAttachPosts(t *testing.T) {
	t.Parallel()

	campaign := &models.Campaign{ID: uuid.New(), Folders: models.NewFolders()}
	other := uuid.New()
	posts := []*models.Post{
		{ID: uuid.New(), CampaignID: campaign.ID, PlatformID: models.PlatformX, Name: "a"},
		{ID: uuid.New(), CampaignID: campaign.ID, PlatformID: models.PlatformX, Name: "b"},
		{ID: uuid.New(), CampaignID: campaign.ID, PlatformID: models.PlatformTikTok, Name: "c"},
		{ID: uuid.New(), CampaignID: other, PlatformID: models.PlatformX, Name: "foreign"},
		{ID: uuid.New(), CampaignID: campaign.ID, PlatformID: "myspace", Name: "unknown"},
	}

	AttachPosts(campaign, posts)

	counts := map[models.PlatformID]int{}
	for _, f := range campaign.Folders {
		counts[f.ID] = len(f.Posts)
	}
	if counts[models.PlatformX] != 2 || counts[models.PlatformTikTok] != 1 || counts[models.PlatformFacebook] != 0 {
		t.Errorf("Unexpected folder counts: %v", counts)
	}
	for _, f := range campaign.Folders {
		if f.ID == models.PlatformX && (f.Posts[0].Name != "a" || f.Posts[1].Name != "b") {
			t.Errorf("Expected posts kept in order, got %q, %q", f.Posts[0].Name, f.Posts[1].Name)
		}
	}
}
