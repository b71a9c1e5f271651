package models

// MediaKind discriminates the media variants a post can carry.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindLink  MediaKind = "link"
)

// Media is a single attachment of a post. The concrete types are
// ImageMedia, VideoMedia and LinkMedia.
type Media interface {
	Kind() MediaKind
	Location() string
	Label() string
}

// ImageMedia is an uploaded image. StorageKey addresses the blob in the
// media store so it can be removed with the post.
type ImageMedia struct {
	URL        string
	Caption    string
	StorageKey string
}

// VideoMedia is an externally hosted video.
type VideoMedia struct {
	URL     string
	Caption string
}

// LinkMedia is a plain outbound link.
type LinkMedia struct {
	URL     string
	Caption string
}

func (m ImageMedia) Kind() MediaKind  { return MediaKindImage }
func (m ImageMedia) Location() string { return m.URL }
func (m ImageMedia) Label() string    { return m.Caption }

func (m VideoMedia) Kind() MediaKind  { return MediaKindVideo }
func (m VideoMedia) Location() string { return m.URL }
func (m VideoMedia) Label() string    { return m.Caption }

func (m LinkMedia) Kind() MediaKind  { return MediaKindLink }
func (m LinkMedia) Location() string { return m.URL }
func (m LinkMedia) Label() string    { return m.Caption }

// PostMedia is the persisted row behind a Media value.
type PostMedia struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"not null;index" json:"post_id"`
	Position   int       `gorm:"not null" json:"position"`
	Kind       MediaKind `gorm:"type:varchar(10);not null" json:"type"`
	URL        string    `gorm:"size:2048;not null" json:"url"`
	Caption    string    `gorm:"size:300" json:"caption"`
	StorageKey string    `gorm:"size:255" json:"-"`
}

// TableName specifies the table name for GORM.
func (PostMedia) TableName() string {
	return "post_media"
}

// NewPostMedia converts a Media value into its row form.
func NewPostMedia(m Media, position int) PostMedia {
	row := PostMedia{
		Position: position,
		Kind:     m.Kind(),
		URL:      m.Location(),
		Caption:  m.Label(),
	}
	if img, ok := m.(ImageMedia); ok {
		row.StorageKey = img.StorageKey
	}
	return row
}

// Variant converts the row back into its typed Media value.
// Unknown kinds are treated as links.
func (pm PostMedia) Variant() Media {
	switch pm.Kind {
	case MediaKindImage:
		return ImageMedia{URL: pm.URL, Caption: pm.Caption, StorageKey: pm.StorageKey}
	case MediaKindVideo:
		return VideoMedia{URL: pm.URL, Caption: pm.Caption}
	default:
		return LinkMedia{URL: pm.URL, Caption: pm.Caption}
	}
}
