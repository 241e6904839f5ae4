// Package feed holds the client-side state of a video feed session: the
// loaded items, the current position and the pagination cursor.
package feed

import "context"

// Placeholder texts. PlaceholderName titles a video with no animal record
// at all; MissingNameText stands in for a blank name on an existing record.
const (
	PlaceholderName        = "Animal information unavailable"
	MissingNameText        = "Name unavailable"
	UnavailableAge         = "Age unavailable"
	UnavailableSpecies     = "Species unavailable"
	UnavailableLocation    = "Location unavailable"
	UnavailableDescription = "Description unavailable"
	PlaceholderImageURL    = "/placeholder-animal.jpg"
	DefaultVideoSource     = "/videos/default.mp4"
)

// AnimalInfo is the animal metadata shown next to a video.
type AnimalInfo struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Age         string `json:"age"`
	Species     string `json:"species"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// PlaceholderAnimal returns the record substituted when the join found nothing.
func PlaceholderAnimal() AnimalInfo {
	return AnimalInfo{
		Name:        PlaceholderName,
		Age:         UnavailableAge,
		Species:     UnavailableSpecies,
		Location:    UnavailableLocation,
		Description: UnavailableDescription,
		ImageURL:    PlaceholderImageURL,
	}
}

// VideoItem is one playable entry of the feed. Items are never modified
// after they have been appended to a Controller.
type VideoItem struct {
	ID           string     `json:"id"`
	Source       string     `json:"src"`
	LikeCount    int        `json:"likes"`
	ShareCount   int        `json:"shares"`
	CommentCount int        `json:"comments"`
	AnimalInfo   AnimalInfo `json:"animalInfo"`
}

// Provider returns pages of the feed. Pages are 1-based. FetchPage must
// return an empty slice, not an error, past the last page.
type Provider interface {
	FetchPage(ctx context.Context, page int) ([]VideoItem, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, page int) ([]VideoItem, error)

// FetchPage calls f(ctx, page).
func (f ProviderFunc) FetchPage(ctx context.Context, page int) ([]VideoItem, error) {
	return f(ctx, page)
}

// Reaction is a fire-and-forget signal about a video.
type Reaction string

const (
	ReactionLike  Reaction = "like"
	ReactionShare Reaction = "share"
	ReactionView  Reaction = "view"
)

// Reactor records reactions. Providers that talk to the backend usually
// implement it too.
type Reactor interface {
	React(ctx context.Context, videoID string, reaction Reaction) error
}
