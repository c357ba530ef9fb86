// Package media holds the attachment rules for memories: reconciling an
// edited attachment list, validating uploads and rendering thumbnails.
package media

import "memory-map-backend/internal/models"

// Attachment is one entry of a submitted attachment list. Entries with an ID
// refer to an already stored image; entries without one describe a new upload.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url" validate:"required_without=ID"`
	Filename string `json:"filename" validate:"required_without=ID"`
	Type     string `json:"type" validate:"omitempty,oneof=image video"`
	// ThumbnailURL is the preview returned by the upload, if any
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// IsNew reports whether the attachment has not been stored yet
func (a Attachment) IsNew() bool {
	return a.ID == ""
}

// Plan is the set of storage mutations that turns the stored attachments
// into the submitted ones.
type Plan struct {
	Keep   []string
	Delete []string
	Insert []Attachment
}

// IsNoop reports whether applying the plan changes nothing
func (p Plan) IsNoop() bool {
	return len(p.Delete) == 0 && len(p.Insert) == 0
}

// Reconcile compares the images stored for one memory with the submitted list.
//
// Stored images whose id is not submitted are deleted, submitted entries
// without an id are inserted. Submitted ids that do not belong to the stored
// set are dropped, so an image of another memory can never be re-parented.
func Reconcile(existing []models.MemoryImage, desired []Attachment) Plan {
	owned := make(map[string]struct{}, len(existing))
	for _, img := range existing {
		owned[img.ID] = struct{}{}
	}

	kept := make(map[string]struct{}, len(desired))
	var plan Plan
	for _, a := range desired {
		if a.IsNew() {
			plan.Insert = append(plan.Insert, a)
			continue
		}
		if _, ok := owned[a.ID]; !ok {
			continue
		}
		kept[a.ID] = struct{}{}
	}

	for _, img := range existing {
		if _, ok := kept[img.ID]; ok {
			plan.Keep = append(plan.Keep, img.ID)
		} else {
			plan.Delete = append(plan.Delete, img.ID)
		}
	}
	return plan
}
